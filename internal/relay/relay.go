// Package relay serves the chat websocket: it binds each connection to a
// user and runs that connection's chat cycles one at a time.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/scrumpts/cocoa-concierge/internal/middleware"
	"github.com/scrumpts/cocoa-concierge/internal/model"
	"github.com/scrumpts/cocoa-concierge/internal/service"
	"github.com/scrumpts/cocoa-concierge/internal/store"
	"github.com/scrumpts/cocoa-concierge/pkg/logger"
	"github.com/scrumpts/cocoa-concierge/pkg/metrics"
)

// ProcessingFailed is the error text of every protocol level failure frame.
const ProcessingFailed = "Failed to process message"

const (
	defaultPingInterval = 30 * time.Second
	defaultReadLimit    = 16 * 1024
	defaultWriteTimeout = 10 * time.Second
	inboxSize           = 32
)

// Responder runs one chat cycle.
type Responder interface {
	Respond(ctx context.Context, userID, content string) (*service.CycleResult, error)
}

// Config tunes the relay.
type Config struct {
	PingInterval time.Duration
	ReadLimit    int64
	WriteTimeout time.Duration
	// CheckOrigin overrides the upgrader's same-origin check.
	CheckOrigin func(r *http.Request) bool
	// Authenticate, when set, must resolve the upgrade request to a user id;
	// every frame on the connection must then carry that id.
	Authenticate func(r *http.Request) (string, error)
}

// AllowOrigins returns a CheckOrigin func accepting the listed origins. A
// "*" entry or an empty list accepts any origin.
func AllowOrigins(origins []string) func(r *http.Request) bool {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		allowed[strings.ToLower(strings.TrimSuffix(o, "/"))] = struct{}{}
	}
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := allowed[strings.ToLower(origin)]
		return ok
	}
}

// Server is the chat websocket endpoint.
type Server struct {
	responder Responder
	cfg       Config
	upgrader  websocket.Upgrader
	logger    *logger.Logger

	// cycles outlive their connection so a reply is persisted even if the
	// client goes away mid-cycle.
	baseCtx    context.Context
	cancelBase context.CancelFunc
	cycles     sync.WaitGroup

	mu           sync.Mutex
	sessions     map[string]*session
	shuttingDown bool
}

// NewServer creates the relay.
func NewServer(responder Responder, cfg Config, log *logger.Logger) *Server {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultPingInterval
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = defaultReadLimit
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	return &Server{
		responder: responder,
		cfg:       cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     cfg.CheckOrigin,
		},
		logger:     log,
		baseCtx:    baseCtx,
		cancelBase: cancel,
		sessions:   make(map[string]*session),
	}
}

// ServeHTTP upgrades the request and serves the connection until it closes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var subject string
	if s.cfg.Authenticate != nil {
		var err error
		subject, err = s.cfg.Authenticate(r)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}
	}

	if s.closing() {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "server is shutting down"})
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already replied
		s.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	sess := newSession(uuid.NewString(), conn, subject)
	s.track(sess)
	metrics.IncrementChatConnections()
	s.logger.Info("chat connection opened",
		zap.String("session_id", sess.id),
		zap.String("correlation_id", middleware.GetCorrelationID(r.Context())),
	)

	s.serve(sess)

	s.untrack(sess)
	metrics.DecrementChatConnections()
	s.logger.Info("chat connection closed",
		zap.String("session_id", sess.id),
		zap.String("user_id", sess.boundUser()),
		zap.Duration("idle", sess.idle()),
	)
}

func (s *Server) serve(sess *session) {
	conn := sess.conn
	readWait := 2 * s.cfg.PingInterval

	conn.SetReadLimit(s.cfg.ReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPongHandler(func(string) error {
		sess.touch()
		return conn.SetReadDeadline(time.Now().Add(readWait))
	})

	inbox := make(chan []byte, inboxSize)

	var g errgroup.Group
	g.Go(func() error {
		defer close(inbox)
		defer sess.markClosed()
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return fmt.Errorf("read: %w", err)
				}
				return nil
			}
			sess.touch()
			_ = conn.SetReadDeadline(time.Now().Add(readWait))
			select {
			case inbox <- raw:
			default:
				s.protocolError(sess, "busy", "Too many pending messages")
			}
		}
	})
	g.Go(func() error {
		for raw := range inbox {
			// frames still queued when the connection closed are dropped
			if sess.closed() {
				continue
			}
			s.handle(sess, raw)
		}
		return nil
	})
	g.Go(func() error {
		ticker := time.NewTicker(s.cfg.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-sess.done:
				return nil
			case <-ticker.C:
				if err := sess.ping(s.cfg.WriteTimeout); err != nil {
					_ = conn.Close()
					return fmt.Errorf("ping: %w", err)
				}
			}
		}
	})

	if err := g.Wait(); err != nil {
		s.logger.Debug("chat connection ended with error", zap.String("session_id", sess.id), zap.Error(err))
	}
	_ = conn.Close()
}

// handle processes one inbound frame. It is the only place a panic from a
// cycle is recovered.
func (s *Server) handle(sess *session, raw []byte) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("chat cycle panicked",
				zap.String("session_id", sess.id),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			metrics.ChatProtocolErrorsTotal.WithLabelValues("panic").Inc()
			sess.setState(StateBound)
			s.reply(sess, model.ServerMessage{Error: ProcessingFailed})
		}
	}()

	var msg model.ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		s.protocolError(sess, "malformed", "Invalid message format")
		return
	}
	if msg.UserID == "" {
		s.protocolError(sess, "missing_user", "Missing userId or content in message")
		return
	}
	if err := store.ValidateUserID(msg.UserID); err != nil {
		s.protocolError(sess, "invalid_user", err.Error())
		return
	}
	if err := sess.bind(msg.UserID); err != nil {
		s.protocolError(sess, "user_mismatch", err.Error())
		return
	}
	if msg.IsPing() {
		return
	}
	if msg.Content == "" {
		s.protocolError(sess, "missing_content", "Missing userId or content in message")
		return
	}
	if err := middleware.ValidateMessageContent(msg.Content); err != nil {
		s.protocolError(sess, "invalid_content", err.Error())
		return
	}

	if !s.beginCycle() {
		s.protocolError(sess, "shutting_down", "Server is shutting down")
		return
	}
	sess.setState(StateProcessing)
	result, err := func() (*service.CycleResult, error) {
		defer s.cycles.Done()
		return s.responder.Respond(s.baseCtx, msg.UserID, msg.Content)
	}()
	sess.setState(StateBound)

	if err != nil {
		s.logger.Error("chat cycle failed",
			zap.String("session_id", sess.id),
			zap.String("user_id", msg.UserID),
			zap.Error(err),
		)
		metrics.ChatProtocolErrorsTotal.WithLabelValues("internal").Inc()
		s.reply(sess, model.ServerMessage{Error: ProcessingFailed})
		return
	}

	s.reply(sess, result.ServerMessage())
}

// beginCycle registers a cycle with the shutdown wait. It fails once
// Shutdown has started.
func (s *Server) beginCycle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shuttingDown {
		return false
	}
	s.cycles.Add(1)
	return true
}

func (s *Server) closing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shuttingDown
}

func (s *Server) protocolError(sess *session, reason, details string) {
	metrics.ChatProtocolErrorsTotal.WithLabelValues(reason).Inc()
	s.reply(sess, model.ServerMessage{Error: ProcessingFailed, Details: details})
}

func (s *Server) reply(sess *session, msg model.ServerMessage) {
	if err := sess.send(msg, s.cfg.WriteTimeout); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		s.logger.Debug("chat reply dropped", zap.String("session_id", sess.id), zap.Error(err))
	}
}

func (s *Server) track(sess *session) {
	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()
}

func (s *Server) untrack(sess *session) {
	s.mu.Lock()
	delete(s.sessions, sess.id)
	s.mu.Unlock()
}

// ActiveSessions returns the number of open connections.
func (s *Server) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Shutdown closes every connection with a going-away frame and waits for
// in-flight cycles to persist, or for ctx to expire. New connections and
// cycles are refused from then on.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.shuttingDown = true
	sessions := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	deadline := time.Now().Add(time.Second)
	for _, sess := range sessions {
		_ = sess.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), deadline)
		_ = sess.conn.Close()
	}

	done := make(chan struct{})
	go func() {
		s.cycles.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancelBase()
		return nil
	case <-ctx.Done():
		s.cancelBase()
		return ctx.Err()
	}
}
