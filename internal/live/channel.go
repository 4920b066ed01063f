package live

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/nhle/mail-sync/internal/model"
)

// State is the connection state of the live update channel.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateAuthenticated
)

// String returns a short label for status displays.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateAuthenticated:
		return "live"
	default:
		return "offline"
	}
}

// EventMsg carries one decoded invalidation event into the Bubble Tea
// update loop.
type EventMsg struct {
	Event model.Event
}

// ClosedMsg is delivered once after Close, when no further events will
// arrive.
type ClosedMsg struct{}

// frame is the wire format of the socket protocol. The client emits
// authenticate frames; the server emits authenticated acks and
// user-event frames.
type frame struct {
	Event  string `json:"event"`
	UserID string `json:"userId,omitempty"`
	Type   string `json:"type,omitempty"`
}

// redialDelay spaces out reconnect attempts. There is no backoff policy
// here on purpose; delivery is best-effort and the server tolerates
// eager clients.
const redialDelay = 3 * time.Second

// Channel maintains the persistent connection that delivers server-side
// invalidation events. It cycles Disconnected -> Connecting ->
// Connected -> Authenticated for as long as it lives and re-sends the
// authenticate frame after every reconnect, since the server does not
// preserve the association across connections.
type Channel struct {
	url    string
	userID string
	dialer *websocket.Dialer
	log    zerolog.Logger

	events chan model.Event
	done   chan struct{}
	once   sync.Once

	mu     sync.Mutex
	state  State
	conn   *websocket.Conn
	closed bool
}

// SocketURL converts the API base URL and socket path into a websocket
// URL on the same origin.
func SocketURL(baseURL, socketPath string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL %q: %w", baseURL, err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/" + strings.TrimLeft(socketPath, "/")
	return u.String(), nil
}

// Open starts the channel for the given user identity and begins
// connecting immediately. The caller must Close it on logout or
// shutdown; a leaked connection past logout is a defect.
func Open(socketURL, userID string, log zerolog.Logger) *Channel {
	c := &Channel{
		url:    socketURL,
		userID: userID,
		dialer: websocket.DefaultDialer,
		log:    log,
		events: make(chan model.Event, 16),
		done:   make(chan struct{}),
		state:  StateDisconnected,
	}
	go c.run()
	return c
}

// State returns the current connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Close tears the channel down permanently. No reconnect attempts are
// made afterwards and the event stream ends.
func (c *Channel) Close() {
	c.once.Do(func() {
		close(c.done)
		c.mu.Lock()
		c.closed = true
		if c.conn != nil {
			c.conn.Close()
		}
		c.mu.Unlock()
	})
}

// WaitForEvent returns a tea.Cmd that blocks for the next invalidation
// event. After handling the resulting EventMsg the caller re-issues
// WaitForEvent to keep listening, mirroring the usual Bubble Tea
// subscription shape.
func (c *Channel) WaitForEvent() tea.Cmd {
	return func() tea.Msg {
		select {
		case ev, ok := <-c.events:
			if !ok {
				return ClosedMsg{}
			}
			return EventMsg{Event: ev}
		case <-c.done:
			return ClosedMsg{}
		}
	}
}

// run is the connection loop: dial, authenticate, pump events, and on
// any transport error fall back to Disconnected and redial.
func (c *Channel) run() {
	for {
		select {
		case <-c.done:
			return
		default:
		}

		c.setState(StateConnecting)
		conn, _, err := c.dialer.Dial(c.url, nil)
		if err != nil {
			c.setState(StateDisconnected)
			c.log.Debug().Err(err).Str("url", c.url).Msg("socket dial failed")
			select {
			case <-c.done:
				return
			case <-time.After(redialDelay):
				continue
			}
		}

		// Close may have run while the dial was in flight; the new
		// connection must not outlive it.
		if !c.setConn(conn) {
			conn.Close()
			return
		}
		c.setState(StateConnected)
		c.log.Info().Str("url", c.url).Msg("socket connected")

		// The association is per-connection, so authenticate again on
		// every cycle. The ack is advisory; state advances regardless.
		auth := frame{Event: "authenticate", UserID: c.userID}
		if err := conn.WriteJSON(auth); err != nil {
			c.log.Warn().Err(err).Msg("sending authenticate")
			c.dropConn(conn)
			continue
		}
		c.setState(StateAuthenticated)

		c.readLoop(conn)
		c.dropConn(conn)
	}
}

// readLoop decodes inbound frames until the connection breaks.
func (c *Channel) readLoop(conn *websocket.Conn) {
	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			select {
			case <-c.done:
			default:
				c.log.Info().Err(err).Msg("socket read ended")
			}
			return
		}

		switch f.Event {
		case "authenticated":
			c.log.Debug().Msg("socket authenticated ack")

		case "user-event":
			kind := model.EventKind(f.Type)
			switch kind {
			case model.EventMailboxUpdate, model.EventMailUpdate:
				c.deliver(model.Event{Kind: kind})
			default:
				c.log.Debug().Str("type", f.Type).Msg("ignoring unknown user-event")
			}

		default:
			c.log.Debug().Str("event", f.Event).Msg("ignoring unknown frame")
		}
	}
}

// deliver hands an event to the consumer without blocking the read
// loop. Delivery is at-most-once; if the consumer is saturated the
// event is dropped and the next refetch will reconcile anyway.
func (c *Channel) deliver(ev model.Event) {
	select {
	case c.events <- ev:
	default:
		c.log.Warn().Str("kind", string(ev.Kind)).Msg("dropping event, consumer busy")
	}
}

func (c *Channel) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// setConn installs a freshly dialed connection and reports whether the
// channel still wants it. After Close the caller must discard it.
func (c *Channel) setConn(conn *websocket.Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.conn = conn
	return true
}

// dropConn closes conn and resets state to Disconnected.
func (c *Channel) dropConn(conn *websocket.Conn) {
	conn.Close()
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.state = StateDisconnected
	c.mu.Unlock()
}
