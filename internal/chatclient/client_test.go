package chatclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/scrumpts/cocoa-concierge/internal/model"
)

// ---------------------------------------------------------------------------
// test server
// ---------------------------------------------------------------------------

type fakeServer struct {
	t        *testing.T
	http     *httptest.Server
	upgrader websocket.Upgrader

	accepted atomic.Int32
	live     atomic.Int32
	frames   chan model.ClientMessage

	// rejected counts down handshakes answered with 503 before upgrading.
	rejected atomic.Int32

	// onConnect runs for each accepted connection with its 1-based index.
	onConnect func(n int, conn *websocket.Conn)
}

func newFakeServer(t *testing.T, onConnect func(n int, conn *websocket.Conn)) *fakeServer {
	t.Helper()
	s := &fakeServer{t: t, frames: make(chan model.ClientMessage, 16), onConnect: onConnect}
	s.http = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.http.Close)
	return s
}

func (s *fakeServer) url() string {
	return "ws" + strings.TrimPrefix(s.http.URL, "http")
}

func (s *fakeServer) serve(w http.ResponseWriter, r *http.Request) {
	if s.rejected.Add(-1) >= 0 {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	n := int(s.accepted.Add(1))
	s.live.Add(1)
	defer s.live.Add(-1)
	if s.onConnect != nil {
		s.onConnect(n, conn)
		return
	}
	s.record(conn)
}

// record forwards every client frame until the connection ends.
func (s *fakeServer) record(conn *websocket.Conn) {
	defer conn.Close()
	for {
		var msg model.ClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		s.frames <- msg
	}
}

func (s *fakeServer) nextFrame(t *testing.T) model.ClientMessage {
	t.Helper()
	select {
	case msg := <-s.frames:
		return msg
	case <-time.After(3 * time.Second):
		t.Fatal("no frame received")
		return model.ClientMessage{}
	}
}

// ---------------------------------------------------------------------------
// tests
// ---------------------------------------------------------------------------

func TestClient_SendFailsFast(t *testing.T) {
	c := New("ws://127.0.0.1:1/never")
	require.ErrorIs(t, c.SendMessage("hi"), ErrNotConnected)

	srv := newFakeServer(t, nil)
	c = New(srv.url())
	require.NoError(t, c.Init(context.Background()))
	defer c.Dispose()

	require.ErrorIs(t, c.SendMessage("hi"), ErrNoUserID)

	c.SetUserID("u1")
	require.NoError(t, c.SendMessage("hi"))
	msg := srv.nextFrame(t)
	require.Equal(t, "u1", msg.UserID)
	require.Equal(t, "hi", msg.Content)
	require.False(t, msg.IsPing())
}

func TestClient_ReconnectRebindsUser(t *testing.T) {
	var srv *fakeServer
	srv = newFakeServer(t, func(n int, conn *websocket.Conn) {
		if n == 1 {
			// drop without a close frame so the client sees 1006
			_ = conn.UnderlyingConn().Close()
			return
		}
		srv.record(conn)
	})

	var errs atomic.Int32
	c := New(srv.url(),
		WithReconnectDelay(20*time.Millisecond),
		WithUserID("u1"),
		WithErrorHandler(func(error) { errs.Add(1) }),
	)
	require.NoError(t, c.Init(context.Background()))
	defer c.Dispose()

	// the first connection also sends a ping because the user was preset
	msg := srv.nextFrame(t)
	require.True(t, msg.IsPing())
	require.Equal(t, "u1", msg.UserID)
	require.Equal(t, "ping", msg.Content)
	require.EqualValues(t, 2, srv.accepted.Load())
	require.GreaterOrEqual(t, errs.Load(), int32(1))

	require.Eventually(t, c.Connected, 3*time.Second, 10*time.Millisecond)
	require.NoError(t, c.SendMessage("after reconnect"))
	require.Equal(t, "after reconnect", srv.nextFrame(t).Content)
}

func TestClient_NoReconnectAfterNormalClosure(t *testing.T) {
	srv := newFakeServer(t, func(_ int, conn *websocket.Conn) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "bye"), time.Now().Add(time.Second))
		_ = conn.Close()
	})

	c := New(srv.url(), WithReconnectDelay(10*time.Millisecond))
	require.NoError(t, c.Init(context.Background()))
	defer c.Dispose()

	require.Eventually(t, func() bool { return !c.Connected() }, 3*time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	require.EqualValues(t, 1, srv.accepted.Load())
}

func TestClient_FailedDialIsRetried(t *testing.T) {
	srv := newFakeServer(t, nil)
	ln := srv.http.Listener.Addr().String()
	srv.http.Close()

	var errs atomic.Int32
	c := New("ws://"+ln, WithReconnectDelay(10*time.Millisecond), WithErrorHandler(func(error) { errs.Add(1) }))
	require.Error(t, c.Init(context.Background()))
	require.Eventually(t, func() bool { return errs.Load() >= 3 }, 3*time.Second, 10*time.Millisecond)
	c.Dispose()
	require.False(t, c.Connected())
}

func TestClient_DeliversMessagesAndDecodeErrors(t *testing.T) {
	srv := newFakeServer(t, func(_ int, conn *websocket.Conn) {
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte("not json"))
		_ = conn.WriteJSON(model.ServerMessage{
			Message:   &model.Turn{Role: model.RoleAssistant, Content: "hello", Timestamp: 2},
			History:   []model.Turn{{Role: model.RoleUser, Content: "hi", Timestamp: 1}},
			Error:     "AI service usage limit reached",
			ErrorCode: "quota_exceeded",
		})
		_, _, _ = conn.ReadMessage()
	})

	var (
		mu       sync.Mutex
		received []model.ServerMessage
		errs     []error
	)
	c := New(srv.url())
	c.SetMessageHandler(func(m model.ServerMessage) {
		mu.Lock()
		received = append(received, m)
		mu.Unlock()
	})
	c.SetErrorHandler(func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	})
	require.NoError(t, c.Init(context.Background()))
	defer c.Dispose()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1 && len(errs) == 1
	}, 3*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, "hello", received[0].Message.Content)
	require.Equal(t, "quota_exceeded", received[0].ErrorCode)
	require.Len(t, received[0].History, 1)
	require.Contains(t, errs[0].Error(), "decode")
}

func TestClient_HandlersLastSetWins(t *testing.T) {
	srv := newFakeServer(t, func(_ int, conn *websocket.Conn) {
		defer conn.Close()
		_ = conn.WriteJSON(model.ServerMessage{Error: "Failed to process message"})
		_, _, _ = conn.ReadMessage()
	})

	var first, second atomic.Int32
	c := New(srv.url(), WithMessageHandler(func(model.ServerMessage) { first.Add(1) }))
	c.SetMessageHandler(func(model.ServerMessage) { second.Add(1) })
	require.NoError(t, c.Init(context.Background()))
	defer c.Dispose()

	require.Eventually(t, func() bool { return second.Load() == 1 }, 3*time.Second, 10*time.Millisecond)
	require.Zero(t, first.Load())
}

func TestClient_DisposeIsFinal(t *testing.T) {
	srv := newFakeServer(t, nil)
	c := New(srv.url())
	require.NoError(t, c.Init(context.Background()))
	c.Dispose()
	c.Dispose()

	require.False(t, c.Connected())
	require.ErrorIs(t, c.Init(context.Background()), ErrDisposed)
	c.SetUserID("u1")
	require.ErrorIs(t, c.SendMessage("hi"), ErrNotConnected)
}

func TestClient_KeepsSingleConnection(t *testing.T) {
	const delay = 30 * time.Millisecond

	cases := []struct {
		name   string
		reject int32
		setup  func(t *testing.T, c *Client)
	}{
		{
			name: "init twice",
			setup: func(t *testing.T, c *Client) {
				require.NoError(t, c.Init(context.Background()))
				require.NoError(t, c.Init(context.Background()))
			},
		},
		{
			name:   "init retried after failed handshake",
			reject: 1,
			setup: func(t *testing.T, c *Client) {
				require.Error(t, c.Init(context.Background()))
				require.NoError(t, c.Init(context.Background()))
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newFakeServer(t, nil)
			srv.rejected.Store(tc.reject)

			c := New(srv.url(), WithReconnectDelay(delay), WithErrorHandler(func(error) {}))
			tc.setup(t, c)

			// let any pending reconnect fire
			time.Sleep(5 * delay)
			require.EqualValues(t, 1, srv.accepted.Load())
			require.EqualValues(t, 1, srv.live.Load())
			require.True(t, c.Connected())

			done := make(chan struct{})
			go func() {
				c.Dispose()
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(3 * time.Second):
				t.Fatal("Dispose did not return")
			}
			require.Eventually(t, func() bool { return srv.live.Load() == 0 }, 3*time.Second, 10*time.Millisecond)
		})
	}
}
