package relay

import (
	"time"

	"github.com/skaisay/capycode-frontend-sub002/internal/logging"
	"github.com/skaisay/capycode-frontend-sub002/internal/metrics"
	"github.com/skaisay/capycode-frontend-sub002/internal/registry"
)

// LivenessMonitor probes every tracked connection on a fixed interval
// and prunes the ones that never answered the previous probe. A silent
// peer is gone within two intervals. This is the only server-initiated
// termination path besides transport close/error.
type LivenessMonitor struct {
	registry *registry.Registry
	interval time.Duration
	logger   *logging.Logger
	stop     chan struct{}
	done     chan struct{}
}

// NewLivenessMonitor creates a monitor over reg. Start must be called
// to begin sweeping.
func NewLivenessMonitor(reg *registry.Registry, interval time.Duration, logger *logging.Logger) *LivenessMonitor {
	return &LivenessMonitor{
		registry: reg,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the sweep loop.
func (m *LivenessMonitor) Start() {
	go m.run()
}

// Stop halts the sweep loop and waits for the current sweep to finish.
func (m *LivenessMonitor) Stop() {
	close(m.stop)
	<-m.done
}

func (m *LivenessMonitor) run() {
	defer close(m.done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.sweep()
		case <-m.stop:
			return
		}
	}
}

// sweep terminates connections whose liveness flag is still clear from
// the previous cycle, then clears the flag and probes the rest. The
// pong handler sets the flag back when the peer answers.
func (m *LivenessMonitor) sweep() {
	for _, tracked := range m.registry.Conns() {
		conn, ok := tracked.(*Conn)
		if !ok {
			continue
		}

		if !conn.clearAlive() {
			// Peer never answered; assume unreachable and tear the
			// transport down without a close handshake.
			m.registry.Remove(conn)
			conn.terminate()
			metrics.LivenessTerminations.Inc()
			m.logger.Info("pruned unresponsive connection",
				logging.ConnID(conn.ID()),
				logging.UserID(conn.UserID()),
			)
			continue
		}

		if err := conn.probe(); err != nil {
			m.registry.Remove(conn)
			conn.terminate()
			m.logger.Debug("probe write failed",
				logging.ConnID(conn.ID()), logging.Error(err))
		}
	}
}
