// Package nats connects to NATS and exposes the JetStream resources the chat
// service uses: the cycle event stream and the conversation KV bucket.
package nats

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/scrumpts/cocoa-concierge/pkg/logger"
)

const (
	clientName    = "cocoa-concierge"
	drainTimeout  = 5 * time.Second
	reconnectWait = 2 * time.Second
)

// Config holds NATS connection configuration. TLS is enabled when CAFile is
// set; CertFile and KeyFile add a client certificate.
type Config struct {
	URL      string
	CAFile   string
	CertFile string
	KeyFile  string
	Token    string
}

// Client owns the NATS connection and its JetStream handle.
type Client struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	logger *logger.Logger
}

// Connect dials NATS. ctx bounds the JetStream account check that follows
// the dial, so a server without JetStream fails fast.
func Connect(ctx context.Context, cfg Config, log *logger.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("NATS URL is empty")
	}
	log = log.With(zap.String("component", "nats"))

	opts := []nats.Option{
		nats.Name(clientName),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(reconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			fields := []zap.Field{zap.Error(err)}
			if sub != nil {
				fields = append(fields, zap.String("subject", sub.Subject))
			}
			log.Error("async error", fields...)
		}),
	}

	if cfg.CAFile != "" {
		tlsConfig, err := loadTLSConfig(cfg.CAFile, cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
		opts = append(opts, nats.Secure(tlsConfig))
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}
	if _, err := js.AccountInfo(ctx); err != nil {
		nc.Close()
		return nil, fmt.Errorf("JetStream not available: %w", err)
	}

	log.Info("connected", zap.String("url", nc.ConnectedUrl()))
	return &Client{
		conn:   nc,
		js:     js,
		logger: log,
	}, nil
}

// JetStream returns the JetStream context.
func (c *Client) JetStream() jetstream.JetStream {
	return c.js
}

// Close drains pending publishes and closes the connection.
func (c *Client) Close() {
	if c.conn == nil || c.conn.IsClosed() {
		return
	}
	done := make(chan struct{})
	c.conn.SetClosedHandler(func(*nats.Conn) { close(done) })
	if err := c.conn.Drain(); err != nil {
		c.logger.Warn("drain failed", zap.Error(err))
		c.conn.Close()
		return
	}
	select {
	case <-done:
	case <-time.After(drainTimeout):
		c.conn.Close()
	}
}

// IsConnected reports whether the connection is up. It backs /ready.
func (c *Client) IsConnected() bool {
	return c.conn != nil && c.conn.IsConnected()
}

func loadTLSConfig(caFile, certFile, keyFile string) (*tls.Config, error) {
	caCert, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA file: %w", err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caCert) {
		return nil, errors.New("failed to parse CA certificate")
	}

	tlsConfig := &tls.Config{
		RootCAs:    pool,
		MinVersion: tls.VersionTLS12,
	}
	if certFile != "" || keyFile != "" {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client cert: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}
	return tlsConfig, nil
}
