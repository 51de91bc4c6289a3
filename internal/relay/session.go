package relay

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// State is the lifecycle position of a connection session.
type State int32

const (
	StateUnbound State = iota
	StateBound
	StateProcessing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnbound:
		return "unbound"
	case StateBound:
		return "bound"
	case StateProcessing:
		return "processing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

var (
	errUserMismatch = errors.New("userId does not match the user bound to this connection")
	errAuthMismatch = errors.New("userId does not match the authenticated user")
)

// session is the server side of one chat connection. It lives exactly as
// long as the transport.
type session struct {
	id          string
	conn        *websocket.Conn
	authSubject string

	writeMu sync.Mutex

	mu     sync.Mutex
	userID string
	state  State

	lastActivity atomic.Int64
	closeOnce    sync.Once
	done         chan struct{}
}

func newSession(id string, conn *websocket.Conn, authSubject string) *session {
	s := &session{
		id:          id,
		conn:        conn,
		authSubject: authSubject,
		done:        make(chan struct{}),
	}
	s.touch()
	return s
}

func (s *session) touch() {
	s.lastActivity.Store(time.Now().UnixMilli())
}

// idle returns the time since the last inbound frame or pong.
func (s *session) idle() time.Duration {
	return time.Since(time.UnixMilli(s.lastActivity.Load()))
}

// bind associates userID with the session. Re-binding the same id is a
// no-op; a different id is refused.
func (s *session) bind(userID string) error {
	if s.authSubject != "" && userID != s.authSubject {
		return errAuthMismatch
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.state == StateClosed:
		return nil
	case s.userID == "":
		s.userID = userID
		s.state = StateBound
	case s.userID != userID:
		return errUserMismatch
	}
	return nil
}

func (s *session) boundUser() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

func (s *session) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateClosed {
		s.state = state
	}
}

func (s *session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *session) markClosed() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state = StateClosed
		s.mu.Unlock()
		close(s.done)
	})
}

func (s *session) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// send writes one JSON frame. Writes after close are dropped.
func (s *session) send(v any, timeout time.Duration) error {
	if s.closed() {
		return nil
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	return s.conn.WriteJSON(v)
}

func (s *session) ping(timeout time.Duration) error {
	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(timeout))
}
