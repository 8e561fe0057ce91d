// Package registry tracks live relay connections and their resolved
// user identities. It is the only shared mutable structure in the relay:
// the relay server mutates it on connection lifecycle transitions, and
// producers read it through SendToUser/Broadcast.
package registry

import (
	"encoding/json"
	"sync"

	"github.com/skaisay/capycode-frontend-sub002/internal/logging"
	"github.com/skaisay/capycode-frontend-sub002/internal/metrics"
	"github.com/skaisay/capycode-frontend-sub002/internal/protocol"
)

// Conn is the registry's view of one live duplex connection. The relay
// server owns the concrete connection; the registry only references it.
type Conn interface {
	// ID returns the opaque connection handle.
	ID() string

	// Open reports whether the transport is still usable for delivery.
	Open() bool

	// Enqueue hands a serialized event to the connection's outbound
	// stream without blocking. It reports false when the event was
	// dropped (closed transport or full buffer).
	Enqueue(eventType string, payload []byte) bool
}

// Registry maps user identities to their open connections. Invariants:
// an identity key exists only while its set is non-empty, a connection
// belongs to at most one identity's set, and a connection with no
// attached identity appears in no set.
type Registry struct {
	logger *logging.Logger

	mu    sync.RWMutex
	conns map[Conn]struct{} // every tracked transport
	users map[string]map[Conn]struct{}
	owner map[Conn]string // reverse index: conn -> identity
}

// New creates an empty Registry.
func New(logger *logging.Logger) *Registry {
	return &Registry{
		logger: logger,
		conns:  make(map[Conn]struct{}),
		users:  make(map[string]map[Conn]struct{}),
		owner:  make(map[Conn]string),
	}
}

// Track records a connection at the transport level, before any
// identity is attached. Idempotent.
func (r *Registry) Track(conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[conn]; ok {
		return
	}
	r.conns[conn] = struct{}{}

	metrics.ConnectionsTotal.Inc()
	metrics.ConnectionsActive.Set(float64(len(r.conns)))
}

// Attach inserts conn into identity's set, creating the set if absent.
// Idempotent for the same pair; a conn already attached elsewhere is
// moved, preserving the at-most-one-set invariant.
func (r *Registry) Attach(identity string, conn Conn) {
	if identity == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.owner[conn]; ok {
		if prev == identity {
			return
		}
		r.detachLocked(conn, prev)
	}

	set, ok := r.users[identity]
	if !ok {
		set = make(map[Conn]struct{})
		r.users[identity] = set
	}
	set[conn] = struct{}{}
	r.owner[conn] = identity

	metrics.IdentitiesActive.Set(float64(len(r.users)))
}

// Remove drops a connection from the transport set and from whatever
// identity set contains it, deleting the identity key when its set
// empties. No-op for unknown connections.
func (r *Registry) Remove(conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if identity, ok := r.owner[conn]; ok {
		r.detachLocked(conn, identity)
	}
	delete(r.conns, conn)

	metrics.ConnectionsActive.Set(float64(len(r.conns)))
	metrics.IdentitiesActive.Set(float64(len(r.users)))
}

// detachLocked removes conn from identity's set. Caller holds r.mu.
func (r *Registry) detachLocked(conn Conn, identity string) {
	if set, ok := r.users[identity]; ok {
		delete(set, conn)
		if len(set) == 0 {
			delete(r.users, identity)
		}
	}
	delete(r.owner, conn)
}

// SendToUser serializes event once and delivers it to every open
// connection in identity's set. An identity with no live sessions is a
// silent no-op, not an error. Delivery is best-effort, at most once per
// currently-open connection.
func (r *Registry) SendToUser(identity string, event protocol.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		r.logger.Error("failed to serialize event",
			logging.Event(event.Kind()), logging.Error(err))
		return
	}

	r.mu.RLock()
	targets := make([]Conn, 0, len(r.users[identity]))
	for conn := range r.users[identity] {
		targets = append(targets, conn)
	}
	r.mu.RUnlock()

	r.deliver(targets, event.Kind(), payload)
}

// Broadcast delivers event to every open tracked connection, whether or
// not an identity is attached. Used for process-wide notices.
func (r *Registry) Broadcast(event protocol.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		r.logger.Error("failed to serialize event",
			logging.Event(event.Kind()), logging.Error(err))
		return
	}

	r.mu.RLock()
	targets := make([]Conn, 0, len(r.conns))
	for conn := range r.conns {
		targets = append(targets, conn)
	}
	r.mu.RUnlock()

	r.deliver(targets, event.Kind(), payload)
}

func (r *Registry) deliver(targets []Conn, eventType string, payload []byte) {
	for _, conn := range targets {
		if !conn.Open() {
			continue
		}
		if conn.Enqueue(eventType, payload) {
			metrics.EventsDelivered.WithLabelValues(eventType).Inc()
		} else {
			metrics.EventsDropped.WithLabelValues(eventType).Inc()
		}
	}
}

// CountFor returns the number of open connections attached to identity.
func (r *Registry) CountFor(identity string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users[identity])
}

// CountTotal returns the number of tracked connections.
func (r *Registry) CountTotal() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Identities returns the identities that currently have at least one
// open connection.
func (r *Registry) Identities() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.users))
	for identity := range r.users {
		ids = append(ids, identity)
	}
	return ids
}

// Conns returns a snapshot of every tracked connection. The liveness
// monitor iterates this to probe transports.
func (r *Registry) Conns() []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]Conn, 0, len(r.conns))
	for conn := range r.conns {
		conns = append(conns, conn)
	}
	return conns
}
