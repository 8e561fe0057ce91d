package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skaisay/capycode-frontend-sub002/internal/logging"
	"github.com/skaisay/capycode-frontend-sub002/internal/registry"
)

type fakeConn struct {
	id string

	mu       sync.Mutex
	received []string
}

func (c *fakeConn) ID() string { return c.id }
func (c *fakeConn) Open() bool { return true }

func (c *fakeConn) Enqueue(_ string, payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.received = append(c.received, string(payload))
	return true
}

func (c *fakeConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.received)
}

const testToken = "svc-secret"

func newHandler(t *testing.T) (*NotifyHandler, *registry.Registry) {
	t.Helper()
	logger := logging.New("error", "text")
	reg := registry.New(logger)
	return NewNotifyHandler(reg, testToken, logger), reg
}

func doNotify(t *testing.T, h *NotifyHandler, token, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/notify", strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	h.HandleNotify(rec, req)
	return rec
}

func TestHandleNotify_Authorization(t *testing.T) {
	h, _ := newHandler(t)
	body := `{"user_id":"u-1","event":{"type":"build_update","buildId":"b-1","status":"queued"}}`

	t.Run("missing token", func(t *testing.T) {
		rec := doNotify(t, h, "", body)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong token", func(t *testing.T) {
		rec := doNotify(t, h, "wrong", body)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("empty configured token disables the surface", func(t *testing.T) {
		logger := logging.New("error", "text")
		disabled := NewNotifyHandler(registry.New(logger), "", logger)
		rec := doNotify(t, disabled, "", body)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestHandleNotify_Validation(t *testing.T) {
	h, _ := newHandler(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed body", `{broken`},
		{"no target", `{"event":{"type":"build_update"}}`},
		{"unknown event kind", `{"user_id":"u-1","event":{"type":"rm_rf"}}`},
		{"missing event", `{"user_id":"u-1"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doNotify(t, h, testToken, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestHandleNotify_DeliversToUser(t *testing.T) {
	h, reg := newHandler(t)

	target := &fakeConn{id: "c-1"}
	reg.Track(target)
	reg.Attach("u-1", target)

	other := &fakeConn{id: "c-2"}
	reg.Track(other)
	reg.Attach("u-2", other)

	rec := doNotify(t, h, testToken,
		`{"user_id":"u-1","event":{"type":"generation_progress","projectId":"p-1","step":"scaffold","percent":40}}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Equal(t, 1, target.count())
	assert.Contains(t, target.received[0], `"generation_progress"`)
	assert.Zero(t, other.count())
}

func TestHandleNotify_Broadcast(t *testing.T) {
	h, reg := newHandler(t)

	first := &fakeConn{id: "c-1"}
	reg.Track(first)
	second := &fakeConn{id: "c-2"}
	reg.Track(second)

	rec := doNotify(t, h, testToken,
		`{"broadcast":true,"event":{"type":"preview_update","projectId":"p-1","status":"ready"}}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	assert.Equal(t, 1, first.count())
	assert.Equal(t, 1, second.count())
}

func TestHandleNotify_AcceptedForOfflineUser(t *testing.T) {
	h, _ := newHandler(t)

	// Best-effort contract: no open sessions is still a 202.
	rec := doNotify(t, h, testToken,
		`{"user_id":"nobody","event":{"type":"build_update","buildId":"b-1","status":"failed"}}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestHandleNotify_MethodNotAllowed(t *testing.T) {
	h, _ := newHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/notify", nil)
	rec := httptest.NewRecorder()
	h.HandleNotify(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleStats(t *testing.T) {
	h, reg := newHandler(t)

	a := &fakeConn{id: "c-1"}
	reg.Track(a)
	reg.Attach("u-1", a)

	b := &fakeConn{id: "c-2"}
	reg.Track(b)
	reg.Attach("u-1", b)

	anon := &fakeConn{id: "c-3"}
	reg.Track(anon)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	req.Header.Set("Authorization", "Bearer "+testToken)
	rec := httptest.NewRecorder()
	h.HandleStats(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var stats StatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 3, stats.Connections)
	assert.Equal(t, map[string]int{"u-1": 2}, stats.Identities)
}

func TestHandleStats_Unauthorized(t *testing.T) {
	h, _ := newHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	rec := httptest.NewRecorder()
	h.HandleStats(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
