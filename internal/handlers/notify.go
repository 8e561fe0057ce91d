// Package handlers implements the relay's internal HTTP surface:
// producer event injection and observability reads.
package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/skaisay/capycode-frontend-sub002/internal/httputil"
	"github.com/skaisay/capycode-frontend-sub002/internal/logging"
	"github.com/skaisay/capycode-frontend-sub002/internal/protocol"
	"github.com/skaisay/capycode-frontend-sub002/internal/registry"
)

// NotifyRequest is the producer-facing push contract. Either UserID or
// Broadcast must be set; Event carries a serialized producer event.
type NotifyRequest struct {
	UserID    string          `json:"user_id,omitempty"`
	Broadcast bool            `json:"broadcast,omitempty"`
	Event     json.RawMessage `json:"event"`
}

// NotifyHandler serves HTTP-only producers (e.g. the build webhook
// processor) that cannot publish to the bus. Guarded by a shared
// service token; this surface is never exposed to end users.
type NotifyHandler struct {
	registry     *registry.Registry
	serviceToken string
	logger       *logging.Logger
}

// NewNotifyHandler creates the handler. An empty serviceToken disables
// the surface entirely.
func NewNotifyHandler(reg *registry.Registry, serviceToken string, logger *logging.Logger) *NotifyHandler {
	return &NotifyHandler{
		registry:     reg,
		serviceToken: serviceToken,
		logger:       logger,
	}
}

// HandleNotify accepts a producer event and enqueues it for delivery.
// Delivery is best-effort; a 202 means accepted, not received.
func (h *NotifyHandler) HandleNotify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !h.authorized(r) {
		httputil.WriteError(w, http.StatusUnauthorized, "invalid service token")
		return
	}

	var req NotifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.UserID == "" && !req.Broadcast {
		httputil.WriteError(w, http.StatusBadRequest, "user_id or broadcast is required")
		return
	}

	event, err := protocol.ParseProducerEvent(req.Event)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.Broadcast {
		h.registry.Broadcast(event)
	} else {
		h.registry.SendToUser(req.UserID, event)
	}

	h.logger.WithContext(r.Context()).Debug("producer event accepted",
		logging.Event(event.Kind()),
		logging.UserID(req.UserID),
	)
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// StatsResponse reports registry occupancy.
type StatsResponse struct {
	Connections int            `json:"connections"`
	Identities  map[string]int `json:"identities"`
}

// HandleStats reports per-identity and total connection counts.
func (h *NotifyHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !h.authorized(r) {
		httputil.WriteError(w, http.StatusUnauthorized, "invalid service token")
		return
	}

	identities := make(map[string]int)
	for _, id := range h.registry.Identities() {
		identities[id] = h.registry.CountFor(id)
	}

	httputil.WriteJSON(w, http.StatusOK, StatsResponse{
		Connections: h.registry.CountTotal(),
		Identities:  identities,
	})
}

func (h *NotifyHandler) authorized(r *http.Request) bool {
	if h.serviceToken == "" {
		return false
	}

	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.serviceToken)) == 1
}
