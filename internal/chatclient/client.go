// Package chatclient is the client side of the chat socket. A Client keeps
// one connection open, reconnects after abnormal closures and re-binds its
// user on every reopen.
package chatclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/scrumpts/cocoa-concierge/internal/model"
	"github.com/scrumpts/cocoa-concierge/pkg/logger"
)

// DefaultReconnectDelay is the wait between an abnormal closure and the next
// dial.
const DefaultReconnectDelay = 3 * time.Second

var (
	ErrNotConnected = errors.New("chat connection is not open")
	ErrNoUserID     = errors.New("user id is not set")
	ErrDisposed     = errors.New("chat client has been disposed")
)

// MessageHandler receives every decoded server frame.
type MessageHandler func(model.ServerMessage)

// ErrorHandler receives transport errors and undecodable frames.
type ErrorHandler func(error)

// Option configures a Client.
type Option func(*Client)

// WithReconnectDelay overrides DefaultReconnectDelay.
func WithReconnectDelay(d time.Duration) Option {
	return func(c *Client) { c.reconnectDelay = d }
}

// WithHeader sets headers sent on every dial, e.g. Authorization.
func WithHeader(h http.Header) Option {
	return func(c *Client) { c.header = h.Clone() }
}

// WithDialer replaces websocket.DefaultDialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// WithUserID sets the user before the first dial.
func WithUserID(userID string) Option {
	return func(c *Client) { c.userID = userID }
}

// WithMessageHandler installs the message handler at construction.
func WithMessageHandler(h MessageHandler) Option {
	return func(c *Client) { c.onMessage = h }
}

// WithErrorHandler installs the error handler at construction.
func WithErrorHandler(h ErrorHandler) Option {
	return func(c *Client) { c.onError = h }
}

// WithLogger sets the client logger.
func WithLogger(l *logger.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// Client is a reconnecting chat socket.
type Client struct {
	url            string
	dialer         *websocket.Dialer
	header         http.Header
	reconnectDelay time.Duration
	logger         *logger.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	userID    string
	onMessage MessageHandler
	onError   ErrorHandler
	timer     *time.Timer
	disposed  bool

	writeMu sync.Mutex
	readers sync.WaitGroup
}

// New creates a client for url. Nothing is dialed until Init.
func New(url string, opts ...Option) *Client {
	c := &Client{
		url:            url,
		dialer:         websocket.DefaultDialer,
		reconnectDelay: DefaultReconnectDelay,
		logger:         logger.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Init opens the connection. A failed dial is reported and a reconnect is
// scheduled, the same as an abnormal closure. Init on an open client is a
// no-op.
func (c *Client) Init(ctx context.Context) error {
	c.mu.Lock()
	disposed, open := c.disposed, c.conn != nil
	c.mu.Unlock()
	if disposed {
		return ErrDisposed
	}
	if open {
		return nil
	}

	if err := c.connect(ctx); err != nil {
		c.reportError(err)
		c.scheduleReconnect()
		return err
	}
	return nil
}

// Dispose closes the connection with a normal closure and cancels any
// pending reconnect. The client cannot be reused.
func (c *Client) Dispose() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.disposed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		c.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		c.writeMu.Unlock()
		_ = conn.Close()
	}
	c.readers.Wait()
}

// SetUserID sets the user sent with every message and re-bind ping.
func (c *Client) SetUserID(userID string) {
	c.mu.Lock()
	c.userID = userID
	c.mu.Unlock()
}

// SetMessageHandler replaces the message handler.
func (c *Client) SetMessageHandler(h MessageHandler) {
	c.mu.Lock()
	c.onMessage = h
	c.mu.Unlock()
}

// SetErrorHandler replaces the error handler.
func (c *Client) SetErrorHandler(h ErrorHandler) {
	c.mu.Lock()
	c.onError = h
	c.mu.Unlock()
}

// Connected reports whether a connection is currently open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// SendMessage sends content for the current user. It never queues: without an
// open connection or a user id it fails immediately.
func (c *Client) SendMessage(content string) error {
	c.mu.Lock()
	conn, userID := c.conn, c.userID
	c.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}
	if userID == "" {
		return ErrNoUserID
	}
	return c.write(conn, model.ClientMessage{UserID: userID, Content: content})
}

func (c *Client) write(conn *websocket.Conn, msg model.ClientMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

func (c *Client) connect(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, c.header)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.url, err)
	}

	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		_ = conn.Close()
		return ErrDisposed
	}
	if c.conn != nil {
		// another dial won; keep a single connection
		c.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	c.conn = conn
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.readers.Add(1)
	userID := c.userID
	c.mu.Unlock()

	c.logger.Info("chat connection established", zap.String("url", c.url))

	go c.readLoop(conn)

	if userID != "" {
		c.logger.Debug("re-binding user", zap.String("user_id", userID))
		ping := model.ClientMessage{UserID: userID, Content: model.MessageTypePing, Type: model.MessageTypePing}
		if err := c.write(conn, ping); err != nil {
			c.reportError(err)
		}
	}
	return nil
}

func (c *Client) readLoop(conn *websocket.Conn) {
	defer c.readers.Done()
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			c.closed(conn, err)
			return
		}

		var msg model.ServerMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.reportError(fmt.Errorf("failed to decode chat message: %w", err))
			continue
		}

		c.mu.Lock()
		h := c.onMessage
		c.mu.Unlock()
		if h != nil {
			h(msg)
		}
	}
}

// closed handles the end of conn. Normal and going-away closures are final;
// anything else schedules a reconnect.
func (c *Client) closed(conn *websocket.Conn, err error) {
	c.mu.Lock()
	current := c.conn == conn
	if current {
		c.conn = nil
	}
	disposed := c.disposed
	c.mu.Unlock()
	_ = conn.Close()

	if disposed || !current {
		return
	}

	code := websocket.CloseAbnormalClosure
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		code = closeErr.Code
	}
	c.logger.Info("chat connection closed", zap.Int("code", code))

	if code == websocket.CloseNormalClosure || code == websocket.CloseGoingAway {
		return
	}
	c.reportError(err)
	c.scheduleReconnect()
}

func (c *Client) scheduleReconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed || c.timer != nil {
		return
	}
	c.logger.Info("reconnecting", zap.Duration("delay", c.reconnectDelay))
	c.timer = time.AfterFunc(c.reconnectDelay, c.reconnect)
}

func (c *Client) reconnect() {
	c.mu.Lock()
	c.timer = nil
	disposed := c.disposed
	c.mu.Unlock()
	if disposed {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.dialTimeout())
	defer cancel()
	if err := c.connect(ctx); err != nil {
		if errors.Is(err, ErrDisposed) {
			return
		}
		c.reportError(err)
		c.scheduleReconnect()
	}
}

func (c *Client) dialTimeout() time.Duration {
	if c.dialer != nil && c.dialer.HandshakeTimeout > 0 {
		return c.dialer.HandshakeTimeout
	}
	return 10 * time.Second
}

func (c *Client) reportError(err error) {
	c.mu.Lock()
	h := c.onError
	c.mu.Unlock()
	if h != nil {
		h(err)
		return
	}
	c.logger.Warn("chat client error", zap.Error(err))
}
