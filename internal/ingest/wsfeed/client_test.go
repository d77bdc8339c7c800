package wsfeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/e2kpm/internal/export"
	"github.com/ethpandaops/e2kpm/internal/ingest"
	"github.com/ethpandaops/e2kpm/internal/kpm/telemetry"
)

func testLog() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.DebugLevel)

	return log
}

func rlcFrame(ue int) string {
	return `{"type":"rlc","rlc":{"ue_index":` + strconv.Itoa(ue) + `,"bearer_id":1,"mode":"um","period_ms":1000}}`
}

// duServer is a fake DU metrics websocket. Every connection records the
// first frame it receives and then sends frames, optionally closing after.
type duServer struct {
	*httptest.Server

	mu         sync.Mutex
	subscribes []string
	conns      atomic.Int32
}

func newDUServer(t *testing.T, frames func(n int32) []string, closeAfter bool) *duServer {
	t.Helper()

	d := &duServer{}
	upgrader := websocket.Upgrader{}

	d.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		n := d.conns.Add(1)

		_, msg, err := ws.ReadMessage()
		if err != nil {
			return
		}

		d.mu.Lock()
		d.subscribes = append(d.subscribes, string(msg))
		d.mu.Unlock()

		for _, f := range frames(n) {
			if err := ws.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}

		if closeAfter {
			_ = ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))

			return
		}

		// Hold the connection open until the client goes away.
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(d.Close)

	return d
}

func (d *duServer) wsURL() string {
	return "ws" + strings.TrimPrefix(d.URL, "http")
}

func newTestClient(t *testing.T, cfg Config) (*Client, *telemetry.Accumulator, *export.HealthMetrics) {
	t.Helper()

	acc := telemetry.New(testLog())
	health := export.NewHealthMetrics(testLog(), export.HealthConfig{})
	ing := ingest.NewIngester(testLog(), acc, health)

	c := New(testLog(), cfg, ing, health)
	t.Cleanup(func() { _ = c.Stop() })

	return c, acc, health
}

func TestClient_IngestsFrames(t *testing.T) {
	du := newDUServer(t, func(int32) []string {
		return []string{
			`{"type":"scheduler","scheduler":{"pci":9,"nof_prbs":51,"ues":[]}}`,
			rlcFrame(3),
			`garbage`,
		}
	}, false)

	c, acc, health := newTestClient(t, Config{Enabled: true, URL: du.wsURL()})
	require.NoError(t, c.Start(context.Background()))

	require.Eventually(t, func() bool {
		return acc.Stats().RLCReports == 1 && acc.Stats().SchedulerReports == 1
	}, 5*time.Second, 20*time.Millisecond)

	_, ok := acc.Cell(9)
	assert.True(t, ok)

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(health.ReportsRejected.WithLabelValues(ingest.TransportWebsocket, "decode")) == 1
	}, 5*time.Second, 20*time.Millisecond)

	assert.InDelta(t, 1, testutil.ToFloat64(health.IngestConnected.WithLabelValues(ingest.TransportWebsocket)), 1e-9)

	du.mu.Lock()
	assert.Equal(t, []string{DefaultSubscribe}, du.subscribes)
	du.mu.Unlock()
}

func TestClient_Reconnects(t *testing.T) {
	du := newDUServer(t, func(n int32) []string {
		return []string{rlcFrame(int(n))}
	}, true)

	c, acc, health := newTestClient(t, Config{
		Enabled:    true,
		URL:        du.wsURL(),
		Subscribe:  `{"cmd":"custom"}`,
		MaxBackoff: 50 * time.Millisecond,
	})
	require.NoError(t, c.Start(context.Background()))

	require.Eventually(t, func() bool {
		return du.conns.Load() >= 2 && acc.Stats().RLCReports >= 2
	}, 5*time.Second, 20*time.Millisecond)

	_, ok := acc.UE(1)
	assert.True(t, ok)

	_, ok = acc.UE(2)
	assert.True(t, ok)

	assert.GreaterOrEqual(t, testutil.ToFloat64(
		health.IngestReconnects.WithLabelValues(ingest.TransportWebsocket)), 1.0)

	du.mu.Lock()
	assert.Equal(t, `{"cmd":"custom"}`, du.subscribes[0])
	du.mu.Unlock()
}

func TestClient_StopWhileDisconnected(t *testing.T) {
	c, _, _ := newTestClient(t, Config{
		Enabled: true,
		URL:     "ws://127.0.0.1:1/metrics",
	})
	require.NoError(t, c.Start(context.Background()))

	time.Sleep(50 * time.Millisecond)

	done := make(chan struct{})

	go func() {
		_ = c.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stop did not return")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "disabled", cfg: Config{}},
		{name: "ws", cfg: Config{Enabled: true, URL: "ws://du:8001"}},
		{name: "wss", cfg: Config{Enabled: true, URL: "wss://du:8001/metrics"}},
		{name: "http scheme", cfg: Config{Enabled: true, URL: "http://du:8001"}, wantErr: true},
		{name: "missing", cfg: Config{Enabled: true}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
