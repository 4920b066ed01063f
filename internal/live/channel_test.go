package live

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/nhle/mail-sync/internal/model"
)

var upgrader = websocket.Upgrader{}

// newSocketServer runs handle for every websocket connection, passing
// the 1-based connection number.
func newSocketServer(t *testing.T, handle func(conn *websocket.Conn, n int)) (srv *httptest.Server, wsURL string) {
	t.Helper()
	var count int64
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		handle(conn, int(atomic.AddInt64(&count, 1)))
	}))
	t.Cleanup(srv.Close)
	return srv, "ws" + strings.TrimPrefix(srv.URL, "http")
}

// nextMsg runs the wait command with a deadline so a broken channel
// fails the test instead of hanging it.
func nextMsg(t *testing.T, cmd tea.Cmd) tea.Msg {
	t.Helper()
	out := make(chan tea.Msg, 1)
	go func() { out <- cmd() }()
	select {
	case msg := <-out:
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a channel message")
		return nil
	}
}

func TestSocketURL(t *testing.T) {
	tests := []struct {
		base, path, want string
	}{
		{"http://localhost:3000", "/socket.io", "ws://localhost:3000/socket.io"},
		{"http://localhost:3000", "socket.io", "ws://localhost:3000/socket.io"},
		{"https://mail.example.com", "/socket.io", "wss://mail.example.com/socket.io"},
	}
	for _, tt := range tests {
		got, err := SocketURL(tt.base, tt.path)
		if err != nil {
			t.Fatalf("SocketURL(%q, %q): %v", tt.base, tt.path, err)
		}
		if got != tt.want {
			t.Errorf("SocketURL(%q, %q) = %q, want %q", tt.base, tt.path, got, tt.want)
		}
	}
}

func TestAuthenticatesAndDeliversEvents(t *testing.T) {
	auths := make(chan frame, 1)
	_, wsURL := newSocketServer(t, func(conn *websocket.Conn, n int) {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			return
		}
		auths <- f

		conn.WriteJSON(frame{Event: "authenticated"})
		// An unknown event type must be ignored, not delivered.
		conn.WriteJSON(frame{Event: "user-event", Type: "CALENDAR_UPDATE"})
		conn.WriteJSON(frame{Event: "user-event", Type: string(model.EventMailUpdate)})

		// Hold the connection open until the client goes away.
		var discard frame
		conn.ReadJSON(&discard)
	})

	c := Open(wsURL, "u1", zerolog.Nop())
	defer c.Close()

	select {
	case f := <-auths:
		if f.Event != "authenticate" || f.UserID != "u1" {
			t.Fatalf("first frame = %+v, want authenticate for u1", f)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the authenticate frame")
	}

	msg := nextMsg(t, c.WaitForEvent())
	ev, ok := msg.(EventMsg)
	if !ok {
		t.Fatalf("got %T, want EventMsg", msg)
	}
	if ev.Event.Kind != model.EventMailUpdate {
		t.Errorf("event kind = %s, want MAIL_UPDATE", ev.Event.Kind)
	}
}

func TestReauthenticatesAfterDisconnect(t *testing.T) {
	auths := make(chan frame, 2)
	_, wsURL := newSocketServer(t, func(conn *websocket.Conn, n int) {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			return
		}
		auths <- f

		if n == 1 {
			// Drop the first connection right after authentication to
			// force a redial.
			return
		}

		conn.WriteJSON(frame{Event: "user-event", Type: string(model.EventMailboxUpdate)})
		var discard frame
		conn.ReadJSON(&discard)
	})

	c := Open(wsURL, "u2", zerolog.Nop())
	defer c.Close()

	msg := nextMsg(t, c.WaitForEvent())
	ev, ok := msg.(EventMsg)
	if !ok {
		t.Fatalf("got %T, want EventMsg", msg)
	}
	if ev.Event.Kind != model.EventMailboxUpdate {
		t.Errorf("event kind = %s, want MAILBOX_UPDATE", ev.Event.Kind)
	}

	// Both connections must have authenticated before the event came
	// through; the association does not survive a reconnect.
	for i := 0; i < 2; i++ {
		select {
		case f := <-auths:
			if f.Event != "authenticate" || f.UserID != "u2" {
				t.Errorf("auth frame %d = %+v", i+1, f)
			}
		default:
			t.Fatalf("connection %d never authenticated", i+1)
		}
	}
}

func TestCloseDuringDialDropsConnection(t *testing.T) {
	release := make(chan struct{})
	frames := make(chan frame, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Stall the handshake until the client has torn down.
		<-release
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		var f frame
		if err := conn.ReadJSON(&f); err == nil {
			frames <- f
		}
	}))
	t.Cleanup(srv.Close)

	c := Open("ws"+strings.TrimPrefix(srv.URL, "http"), "u4", zerolog.Nop())
	// Give the dial time to reach the stalled handler.
	time.Sleep(50 * time.Millisecond)
	c.Close()
	close(release)

	// A connection completed after Close must be discarded before the
	// authenticate frame, otherwise the socket outlives the logout.
	select {
	case f := <-frames:
		t.Fatalf("connection survived Close: received %+v", f)
	case <-time.After(500 * time.Millisecond):
	}
}

func TestCloseEndsStream(t *testing.T) {
	_, wsURL := newSocketServer(t, func(conn *websocket.Conn, n int) {
		var discard frame
		for conn.ReadJSON(&discard) == nil {
		}
	})

	c := Open(wsURL, "u3", zerolog.Nop())
	c.Close()

	msg := nextMsg(t, c.WaitForEvent())
	if _, ok := msg.(ClosedMsg); !ok {
		t.Fatalf("got %T, want ClosedMsg", msg)
	}

	// Close is terminal and idempotent.
	c.Close()
	if _, ok := nextMsg(t, c.WaitForEvent()).(ClosedMsg); !ok {
		t.Fatal("stream must stay closed")
	}
}
