package relay

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// State is a connection's position in the admission lifecycle.
type State int

const (
	StateConnecting State = iota
	StateUnauthenticated
	StateAuthenticated
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// writeWait bounds a single frame write to a peer.
const writeWait = 10 * time.Second

type outbound struct {
	eventType string
	payload   []byte
}

// Conn is one live duplex channel from a client. The relay server owns
// it for its whole lifetime; the registry only references it. All
// outbound frames pass through a single writer goroutine, so a
// connection's acknowledgements leave in processing order.
type Conn struct {
	id       string
	ws       *websocket.Conn
	clientIP string
	send     chan outbound

	mu       sync.Mutex
	state    State
	userID   string
	alive    bool
	channels map[string]struct{}

	closeOnce sync.Once
}

func newConn(ws *websocket.Conn, clientIP string, sendBuffer int) *Conn {
	return &Conn{
		id:       uuid.New().String(),
		ws:       ws,
		clientIP: clientIP,
		send:     make(chan outbound, sendBuffer),
		state:    StateConnecting,
		alive:    true,
		channels: make(map[string]struct{}),
	}
}

// ID returns the opaque connection handle.
func (c *Conn) ID() string { return c.id }

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() string { return c.ws.RemoteAddr().String() }

// ClientIP returns the client's host address without the ephemeral
// port. This is the rate-limit key, so reconnecting from a new source
// port lands in the same window.
func (c *Conn) ClientIP() string { return c.clientIP }

// State returns the connection's current lifecycle state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// UserID returns the attached identity, or "" while unauthenticated.
func (c *Conn) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

// Open reports whether the transport is still usable for delivery.
func (c *Conn) Open() bool {
	return c.State() != StateClosed
}

// Enqueue hands a serialized event to the writer goroutine without
// blocking. False means the event was dropped: the connection is closed
// or its buffer is full.
func (c *Conn) Enqueue(eventType string, payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateClosed {
		return false
	}

	select {
	case c.send <- outbound{eventType: eventType, payload: payload}:
		return true
	default:
		return false
	}
}

// accepted moves the connection out of Connecting once the transport
// handshake is done.
func (c *Conn) accepted() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateConnecting {
		c.state = StateUnauthenticated
	}
}

// authenticate attaches the resolved identity. Reports false if the
// connection closed in the meantime.
func (c *Conn) authenticate(userID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateClosed {
		return false
	}
	c.state = StateAuthenticated
	c.userID = userID
	return true
}

// subscribe records declared channel interest. Interest is acknowledged
// but never filters delivery.
func (c *Conn) subscribe(channel string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.channels[channel] = struct{}{}
}

func (c *Conn) unsubscribe(channel string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.channels, channel)
}

// Channels returns the declared channel interests.
func (c *Conn) Channels() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, 0, len(c.channels))
	for ch := range c.channels {
		out = append(out, ch)
	}
	return out
}

// markAlive is invoked by the pong handler; it resets the liveness flag
// the monitor cleared when it sent the probe.
func (c *Conn) markAlive() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alive = true
}

// clearAlive flips the liveness flag to false and reports its previous
// value. A false return means the peer never answered the last probe.
func (c *Conn) clearAlive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	was := c.alive
	c.alive = false
	return was
}

// probe sends a transport-level ping. Safe concurrently with the writer
// goroutine; control frames bypass the send queue.
func (c *Conn) probe() error {
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// terminate closes the transport and marks the connection Closed. Safe
// to call from any goroutine, any number of times.
func (c *Conn) terminate() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.state = StateClosed
		c.mu.Unlock()

		close(c.send)
		c.ws.Close()
	})
}

// writePump drains the send queue onto the wire. It exits when
// terminate closes the queue or a write fails; a failed write closes
// the transport so the read loop notices too.
func (c *Conn) writePump() {
	for msg := range c.send {
		c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.ws.WriteMessage(websocket.TextMessage, msg.payload); err != nil {
			c.ws.Close()
			return
		}
	}
}
