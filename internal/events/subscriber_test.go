package events

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skaisay/capycode-frontend-sub002/internal/logging"
	"github.com/skaisay/capycode-frontend-sub002/internal/messaging"
	"github.com/skaisay/capycode-frontend-sub002/internal/registry"
)

// fakeBus hands published messages straight to the registered handlers.
type fakeBus struct {
	mu       sync.Mutex
	handlers map[string]messaging.Handler
}

func newFakeBus() *fakeBus {
	return &fakeBus{handlers: make(map[string]messaging.Handler)}
}

func (b *fakeBus) Subscribe(subject string, handler messaging.Handler) (messaging.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[subject] = handler
	return fakeSubscription{subject: subject, bus: b}, nil
}

func (b *fakeBus) Close() error { return nil }

// inject delivers a message the way the broker would: the wildcard
// handler receives every user subject.
func (b *fakeBus) inject(t *testing.T, subject string, data []byte) error {
	t.Helper()

	b.mu.Lock()
	handler, ok := b.handlers[subject]
	if !ok && messaging.UserFromSubject(subject) != "" {
		handler, ok = b.handlers[messaging.SubjectUserWildcard]
	}
	b.mu.Unlock()

	require.True(t, ok, "no handler for subject %q", subject)
	return handler(context.Background(), &messaging.Message{
		Subject:   subject,
		Data:      data,
		Timestamp: time.Now(),
	})
}

type fakeSubscription struct {
	subject string
	bus     *fakeBus
}

func (s fakeSubscription) Unsubscribe() error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	delete(s.bus.handlers, s.subject)
	return nil
}

func (s fakeSubscription) Subject() string { return s.subject }

// fakeConn records delivered payloads.
type fakeConn struct {
	id string

	mu       sync.Mutex
	received [][]byte
}

func (c *fakeConn) ID() string { return c.id }
func (c *fakeConn) Open() bool { return true }

func (c *fakeConn) Enqueue(_ string, payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.received = append(c.received, payload)
	return true
}

func (c *fakeConn) events(t *testing.T) []map[string]any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]map[string]any, 0, len(c.received))
	for _, payload := range c.received {
		var event map[string]any
		require.NoError(t, json.Unmarshal(payload, &event))
		out = append(out, event)
	}
	return out
}

func newStartedSubscriber(t *testing.T) (*fakeBus, *registry.Registry, *Subscriber) {
	t.Helper()

	bus := newFakeBus()
	logger := logging.New("error", "text")
	reg := registry.New(logger)
	sub := NewSubscriber(bus, reg, logger)
	require.NoError(t, sub.Start())
	t.Cleanup(func() { sub.Stop() })

	return bus, reg, sub
}

func TestUserEventForwarded(t *testing.T) {
	bus, reg, _ := newStartedSubscriber(t)

	conn := &fakeConn{id: "c-1"}
	reg.Track(conn)
	reg.Attach("u-1", conn)

	other := &fakeConn{id: "c-2"}
	reg.Track(other)
	reg.Attach("u-2", other)

	payload := []byte(`{"type":"build_update","buildId":"b-1","status":"succeeded"}`)
	require.NoError(t, bus.inject(t, messaging.UserSubject("u-1"), payload))

	events := conn.events(t)
	require.Len(t, events, 1)
	assert.Equal(t, "build_update", events[0]["type"])
	assert.Equal(t, "b-1", events[0]["buildId"])

	assert.Empty(t, other.events(t), "other users must not receive the event")
}

func TestBroadcastForwarded(t *testing.T) {
	bus, reg, _ := newStartedSubscriber(t)

	attached := &fakeConn{id: "c-1"}
	reg.Track(attached)
	reg.Attach("u-1", attached)

	anonymous := &fakeConn{id: "c-2"}
	reg.Track(anonymous)

	payload := []byte(`{"type":"preview_update","projectId":"p-1","status":"ready"}`)
	require.NoError(t, bus.inject(t, messaging.SubjectBroadcast, payload))

	require.Len(t, attached.events(t), 1)
	require.Len(t, anonymous.events(t), 1, "broadcasts reach unauthenticated connections")
}

func TestMalformedEventDropped(t *testing.T) {
	bus, reg, _ := newStartedSubscriber(t)

	conn := &fakeConn{id: "c-1"}
	reg.Track(conn)
	reg.Attach("u-1", conn)

	err := bus.inject(t, messaging.UserSubject("u-1"), []byte("{broken"))
	assert.Error(t, err)

	err = bus.inject(t, messaging.UserSubject("u-1"), []byte(`{"type":"drop_tables"}`))
	assert.Error(t, err)

	assert.Empty(t, conn.events(t))
}

func TestSubjectWithoutUserRejected(t *testing.T) {
	bus, _, _ := newStartedSubscriber(t)

	bus.mu.Lock()
	handler := bus.handlers[messaging.SubjectUserWildcard]
	bus.mu.Unlock()
	require.NotNil(t, handler)

	err := handler(context.Background(), &messaging.Message{
		Subject: "capycode.notify.user.",
		Data:    []byte(`{"type":"build_update"}`),
	})
	assert.Error(t, err)
}

func TestStopUnsubscribes(t *testing.T) {
	bus, _, sub := newStartedSubscriber(t)

	require.NoError(t, sub.Stop())

	bus.mu.Lock()
	remaining := len(bus.handlers)
	bus.mu.Unlock()
	assert.Zero(t, remaining)
}
