// Package relay implements the realtime notification relay: WebSocket
// admission and authentication, per-connection control-message dispatch,
// liveness pruning, and the send/broadcast contract producers use to
// push events to a user's open sessions.
package relay

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/skaisay/capycode-frontend-sub002/internal/authclient"
	"github.com/skaisay/capycode-frontend-sub002/internal/logging"
	"github.com/skaisay/capycode-frontend-sub002/internal/metrics"
	"github.com/skaisay/capycode-frontend-sub002/internal/protocol"
	"github.com/skaisay/capycode-frontend-sub002/internal/ratelimit"
	"github.com/skaisay/capycode-frontend-sub002/internal/registry"
)

// Resolver validates an opaque bearer token against the identity
// provider. Implemented by authclient.Client.
type Resolver interface {
	Resolve(ctx context.Context, token string) (*authclient.Identity, error)
}

// Options holds relay tunables.
type Options struct {
	// AllowedOrigins restricts browser origins for the WebSocket
	// handshake. Empty means any origin is accepted.
	AllowedOrigins []string

	// SendBuffer is the per-connection outbound queue size.
	SendBuffer int

	// MaxMessageBytes bounds a single inbound frame.
	MaxMessageBytes int64

	// AuthTimeout bounds each identity provider call.
	AuthTimeout time.Duration
}

func (o *Options) withDefaults() {
	if o.SendBuffer <= 0 {
		o.SendBuffer = 64
	}
	if o.MaxMessageBytes <= 0 {
		o.MaxMessageBytes = 64 * 1024
	}
	if o.AuthTimeout <= 0 {
		o.AuthTimeout = 5 * time.Second
	}
}

// Server accepts relay connections and drives their lifecycle. It is
// also the producer-facing send surface: external collaborators call
// SendToUser/Broadcast (or the typed Notify helpers) and never block on
// delivery.
type Server struct {
	registry *registry.Registry
	resolver Resolver
	limiter  ratelimit.Limiter
	logger   *logging.Logger
	upgrader websocket.Upgrader
	opts     Options
}

// NewServer wires the relay against its collaborators. limiter may be a
// ratelimit.NoOpLimiter when rate limiting is disabled.
func NewServer(reg *registry.Registry, resolver Resolver, limiter ratelimit.Limiter, logger *logging.Logger, opts Options) *Server {
	opts.withDefaults()

	allowed := make(map[string]bool, len(opts.AllowedOrigins))
	for _, origin := range opts.AllowedOrigins {
		allowed[origin] = true
	}

	return &Server{
		registry: reg,
		resolver: resolver,
		limiter:  limiter,
		logger:   logger,
		opts:     opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowed) == 0 {
					return true
				}
				return allowed[r.Header.Get("Origin")]
			},
		},
	}
}

// HandleWS upgrades the request and runs the connection until the
// transport closes. Admission tokens arrive as a ?token= query
// parameter; their absence is answered with auth_required, never with a
// rejected handshake.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		s.logger.Warn("websocket upgrade failed", logging.Error(err))
		return
	}

	conn := newConn(ws, clientIP(r), s.opts.SendBuffer)
	conn.accepted()
	s.registry.Track(conn)
	go conn.writePump()

	s.logger.Debug("connection accepted",
		logging.ConnID(conn.ID()),
		logging.Remote(conn.RemoteAddr()),
	)

	s.admit(r.Context(), conn, r.URL.Query().Get("token"))
	s.readLoop(r.Context(), conn)

	s.registry.Remove(conn)
	conn.terminate()
	s.logger.Debug("connection closed", logging.ConnID(conn.ID()))
}

// admit runs the out-of-band token, if any, through the resolver. An
// absent or invalid token yields auth_required; the transport stays
// open for a later in-channel auth message.
func (s *Server) admit(ctx context.Context, conn *Conn, token string) {
	if token == "" {
		s.reply(conn, protocol.AuthRequired())
		return
	}

	identity, err := s.resolve(ctx, conn, token)
	if err != nil {
		metrics.AuthFailures.Inc()
		s.reply(conn, protocol.AuthRequired())
		return
	}

	if conn.authenticate(identity.UserID) {
		s.registry.Attach(identity.UserID, conn)
		metrics.AuthSuccess.Inc()
		s.reply(conn, protocol.Connected(identity.UserID))
		s.logger.Debug("connection admitted",
			logging.ConnID(conn.ID()),
			logging.UserID(identity.UserID),
		)
	}
}

// readLoop pulls inbound frames until the transport errors or closes.
// Per-message errors never propagate past the connection that caused
// them.
func (s *Server) readLoop(ctx context.Context, conn *Conn) {
	conn.ws.SetReadLimit(s.opts.MaxMessageBytes)
	conn.ws.SetPongHandler(func(string) error {
		conn.markAlive()
		return nil
	})

	for {
		_, data, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("read error", logging.ConnID(conn.ID()), logging.Error(err))
			}
			return
		}
		s.handleMessage(ctx, conn, data)
	}
}

func (s *Server) handleMessage(ctx context.Context, conn *Conn, data []byte) {
	var msg protocol.Inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		s.reply(conn, protocol.Error("invalid message payload"))
		return
	}

	switch msg.Type {
	case protocol.TypeAuth:
		s.handleAuth(ctx, conn, msg.Token)

	case protocol.TypePing:
		s.reply(conn, protocol.Pong(time.Now()))

	case protocol.TypeSubscribe:
		// Channel interest is acknowledged for authenticated
		// connections and silently ignored otherwise. It never
		// filters delivery.
		if conn.State() == StateAuthenticated && msg.Channel != "" {
			conn.subscribe(msg.Channel)
			s.reply(conn, protocol.Subscribed(msg.Channel))
		}

	case protocol.TypeUnsubscribe:
		if conn.State() == StateAuthenticated && msg.Channel != "" {
			conn.unsubscribe(msg.Channel)
			s.reply(conn, protocol.Unsubscribed(msg.Channel))
		}

	default:
		s.reply(conn, protocol.UnknownMessageType())
	}
}

// handleAuth attempts the Unauthenticated -> Authenticated transition.
// Failure leaves the connection open and unauthenticated; the client
// may retry.
func (s *Server) handleAuth(ctx context.Context, conn *Conn, token string) {
	identity, err := s.resolve(ctx, conn, token)
	if err != nil {
		metrics.AuthFailures.Inc()
		s.reply(conn, protocol.AuthFailed())
		return
	}

	if conn.authenticate(identity.UserID) {
		s.registry.Attach(identity.UserID, conn)
		metrics.AuthSuccess.Inc()
		s.reply(conn, protocol.Authenticated(identity.UserID))
		s.logger.Debug("connection authenticated",
			logging.ConnID(conn.ID()),
			logging.UserID(identity.UserID),
		)
	}
}

// clientIP extracts the client's host address from the upgrade request,
// preferring proxy headers so clients behind an ingress are limited
// individually rather than as the proxy's address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// resolve checks the rate limit for the peer and then asks the identity
// provider, bounded by the configured timeout. The limit is keyed by
// client host, not the per-connection remote address, so a reconnect
// does not reset the window.
func (s *Server) resolve(ctx context.Context, conn *Conn, token string) (*authclient.Identity, error) {
	allowed, err := s.limiter.Allow(ctx, conn.ClientIP())
	if err != nil {
		// A broken limiter must not lock every client out; log and
		// fall through to the provider.
		s.logger.Warn("rate limiter unavailable", logging.Error(err))
	} else if !allowed {
		s.logger.Warn("auth attempt rate limited",
			logging.ConnID(conn.ID()),
			logging.Remote(conn.RemoteAddr()),
		)
		return nil, authclient.ErrNotAuthenticated
	}

	resolveCtx, cancel := context.WithTimeout(ctx, s.opts.AuthTimeout)
	defer cancel()

	return s.resolver.Resolve(resolveCtx, token)
}

// reply enqueues a protocol acknowledgement on a single connection.
func (s *Server) reply(conn *Conn, event protocol.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("failed to serialize acknowledgement",
			logging.Event(event.Kind()), logging.Error(err))
		return
	}
	if conn.Enqueue(event.Kind(), payload) {
		metrics.EventsDelivered.WithLabelValues(event.Kind()).Inc()
	} else {
		metrics.EventsDropped.WithLabelValues(event.Kind()).Inc()
	}
}

// SendToUser delivers event to all of a user's open connections.
// Non-blocking from the producer's perspective.
func (s *Server) SendToUser(identity string, event protocol.Event) {
	s.registry.SendToUser(identity, event)
}

// Broadcast delivers event to every open connection.
func (s *Server) Broadcast(event protocol.Event) {
	s.registry.Broadcast(event)
}

// NotifyBuildUpdate pushes a native build status change to a user.
func (s *Server) NotifyBuildUpdate(userID, buildID, status, detail string) {
	s.SendToUser(userID, protocol.BuildUpdate(buildID, status, detail))
}

// NotifyBuildProgress pushes build pipeline progress to a user.
func (s *Server) NotifyBuildProgress(userID, buildID, phase string, percent float64) {
	s.SendToUser(userID, protocol.BuildProgress(buildID, phase, percent))
}

// NotifyPreviewUpdate pushes sandbox preview readiness to a user.
func (s *Server) NotifyPreviewUpdate(userID, projectID, url, status string) {
	s.SendToUser(userID, protocol.PreviewUpdate(projectID, url, status))
}

// NotifyGenerationProgress pushes code generation progress to a user.
func (s *Server) NotifyGenerationProgress(userID, projectID, step, message string, percent float64) {
	s.SendToUser(userID, protocol.GenerationProgress(projectID, step, message, percent))
}
