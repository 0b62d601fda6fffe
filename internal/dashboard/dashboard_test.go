package dashboard

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/DoyleJ11/signal-dashboard/internal/controller"
	"github.com/DoyleJ11/signal-dashboard/internal/feed"
	"github.com/DoyleJ11/signal-dashboard/internal/flash"
	"github.com/DoyleJ11/signal-dashboard/internal/poller"
	"github.com/DoyleJ11/signal-dashboard/internal/signal"
)

func controllerServer(t *testing.T, healthy *atomic.Bool) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy.Load() {
			http.Error(w, "down", http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"green_lane":"North","phase":"green","timer":12,
			"north_count":5,"south_count":3,"north_emergency":false,"south_emergency":true}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(endpoint string) Config {
	return Config{
		ID:            "main-and-5th",
		Endpoint:      endpoint,
		Lanes:         []string{"North", "South"},
		PollInterval:  10 * time.Millisecond,
		FlashInterval: 5 * time.Millisecond,
	}
}

func TestDashboard_EndToEnd(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	srv := controllerServer(t, &healthy)

	cfg := testConfig(srv.URL)
	d := New(cfg, controller.NewHTTPFetcher(srv.URL, time.Second), nil, zaptest.NewLogger(t))
	require.NoError(t, d.Start(context.Background()))
	defer d.Stop()
	require.ErrorIs(t, d.Start(context.Background()), ErrAlreadyStarted)

	out := make(chan feed.Frame, 64)
	require.True(t, d.Feed().Send(feed.Join{ClientID: "t", Outbox: out}))

	var sawRed, sawGrey bool
	deadline := time.After(2 * time.Second)
	for !(sawRed && sawGrey) {
		select {
		case f, ok := <-out:
			require.True(t, ok, "outbox closed")
			if f.GreenLane != "North" {
				continue
			}
			assert.Equal(t, signal.ColorGreen, f.Lanes[0].Color)
			switch f.Lanes[1].Color {
			case signal.ColorRed:
				sawRed = true
			case signal.ColorGrey:
				sawGrey = true
			}
		case <-deadline:
			t.Fatalf("South never blinked: red=%v grey=%v", sawRed, sawGrey)
		}
	}
}

func TestDashboard_OutageKeepsLastSnapshot(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	srv := controllerServer(t, &healthy)

	var failures atomic.Int32
	rep := poller.ReporterFunc(func(o poller.Outcome) {
		if o.Err != nil {
			failures.Add(1)
		}
	})

	d := New(testConfig(srv.URL), controller.NewHTTPFetcher(srv.URL, time.Second), rep, nil)
	require.NoError(t, d.Start(context.Background()))
	defer d.Stop()

	require.Eventually(t, func() bool { return d.Store().Snapshot().GreenLane == "North" }, time.Second, time.Millisecond)
	good := d.Store().Snapshot()

	healthy.Store(false)
	require.Eventually(t, func() bool { return failures.Load() >= 2 }, time.Second, time.Millisecond)

	assert.Equal(t, good, d.Store().Snapshot(), "outage must not clear the display")
	assert.GreaterOrEqual(t, d.Stats().Failures, uint64(2))
	assert.Contains(t, d.Stats().LastError, "502")
}

func TestDashboard_StopFreezesState(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	srv := controllerServer(t, &healthy)

	d := New(testConfig(srv.URL), controller.NewHTTPFetcher(srv.URL, time.Second), nil, nil)
	require.NoError(t, d.Start(context.Background()))
	require.Eventually(t, func() bool { return d.Stats().Successes > 0 }, time.Second, time.Millisecond)

	d.Stop()
	d.Stop()
	frozen := d.Store().Read()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, frozen, d.Store().Read())

	f := d.Frame()
	assert.Equal(t, "main-and-5th", f.Intersection)
	assert.Len(t, f.Lanes, 2)
}

func TestDashboard_StartFailureUnwinds(t *testing.T) {
	cfg := testConfig("http://unused")
	cfg.FlashInterval = 0

	d := New(cfg, controller.FetcherFunc(func(context.Context) (signal.Snapshot, error) {
		return signal.EmptySnapshot(), nil
	}), nil, nil)

	err := d.Start(context.Background())
	require.ErrorIs(t, err, flash.ErrInvalidInterval)

	_, ok := d.Feed().Current(context.Background())
	assert.False(t, ok, "feed should be closed after a failed start")
}
