package relay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skaisay/capycode-frontend-sub002/internal/logging"
	"github.com/skaisay/capycode-frontend-sub002/internal/ratelimit"
)

func TestClearAliveReportsPreviousValue(t *testing.T) {
	conn := &Conn{alive: true}

	assert.True(t, conn.clearAlive(), "first clear sees the flag set")
	assert.False(t, conn.clearAlive(), "second clear sees it still cleared")

	conn.markAlive()
	assert.True(t, conn.clearAlive(), "markAlive resets the flag")
}

func TestLivenessPrunesSilentPeer(t *testing.T) {
	_, reg, httpSrv := newTestServer(t, ratelimit.NoOpLimiter{})

	monitor := NewLivenessMonitor(reg, 50*time.Millisecond, logging.New("error", "text"))
	monitor.Start()
	t.Cleanup(monitor.Stop)

	ws := dial(t, httpSrv, "good-token")
	readEvent(t, ws) // connected

	require.Eventually(t, func() bool {
		return reg.CountTotal() == 1
	}, time.Second, 10*time.Millisecond)

	// Stop reading. The client never processes the server's pings, so it
	// never pongs; the monitor must prune it within two sweep cycles.
	require.Eventually(t, func() bool {
		return reg.CountTotal() == 0 && reg.CountFor("u-1") == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestLivenessKeepsResponsivePeer(t *testing.T) {
	_, reg, httpSrv := newTestServer(t, ratelimit.NoOpLimiter{})

	monitor := NewLivenessMonitor(reg, 50*time.Millisecond, logging.New("error", "text"))
	monitor.Start()
	t.Cleanup(monitor.Stop)

	ws := dial(t, httpSrv, "good-token")
	readEvent(t, ws)

	// Keep reading so the client's default ping handler answers probes.
	go func() {
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 1, reg.CountTotal(), "a responsive peer must survive the sweeps")
}
