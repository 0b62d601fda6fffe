package fleet

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/signal-dashboard/internal/controller"
	"github.com/DoyleJ11/signal-dashboard/internal/dashboard"
	"github.com/DoyleJ11/signal-dashboard/internal/signal"
)

func stubFactory(cfg dashboard.Config) (*dashboard.Dashboard, error) {
	f := controller.FetcherFunc(func(context.Context) (signal.Snapshot, error) {
		return signal.Snapshot{GreenLane: "North", Phase: signal.PhaseGreen, Lanes: map[string]signal.LaneState{"North": {}}}, nil
	})
	return dashboard.New(cfg, f, nil, nil), nil
}

func cfg(id string) dashboard.Config {
	return dashboard.Config{
		ID:            id,
		Lanes:         []string{"North", "South"},
		PollInterval:  20 * time.Millisecond,
		FlashInterval: 20 * time.Millisecond,
	}
}

func TestFleet_Create_Get_SamePointer(t *testing.T) {
	f := NewFleet(context.Background(), stubFactory)
	defer f.Shutdown()

	reply := make(chan Result, 1)
	f.Inbox() <- CreateIntersection{Config: cfg("elm"), Reply: reply}
	res := <-reply
	require.NoError(t, res.Err)

	got := make(chan *dashboard.Dashboard, 1)
	f.Inbox() <- GetIntersection{ID: "elm", Reply: got}
	d := <-got

	if res.Dashboard == nil || d == nil || res.Dashboard != d {
		t.Fatalf("expected same dashboard pointer")
	}
}

func TestFleet_CreateRejectsDuplicate_EnsureReuses(t *testing.T) {
	f := NewFleet(context.Background(), stubFactory)
	defer f.Shutdown()

	d1, err := f.Create(cfg("oak"))
	require.NoError(t, err)

	_, err = f.Create(cfg("oak"))
	assert.ErrorIs(t, err, ErrExists)

	d2, err := f.Ensure(cfg("oak"))
	require.NoError(t, err)
	assert.Same(t, d1, d2)

	_, err = f.Ensure(cfg(""))
	assert.ErrorIs(t, err, ErrMissingID)
}

func TestFleet_FactoryAndStartErrors(t *testing.T) {
	boom := errors.New("no such controller")
	f := NewFleet(context.Background(), func(dashboard.Config) (*dashboard.Dashboard, error) { return nil, boom })
	defer f.Shutdown()

	_, err := f.Ensure(cfg("pine"))
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, f.Get("pine"))

	g := NewFleet(context.Background(), stubFactory)
	defer g.Shutdown()
	bad := cfg("birch")
	bad.PollInterval = 0
	_, err = g.Ensure(bad)
	assert.Error(t, err)
	assert.Empty(t, g.List())
}

func TestFleet_ListSortedAndRemove(t *testing.T) {
	f := NewFleet(context.Background(), stubFactory)
	defer f.Shutdown()

	for _, id := range []string{"c", "a", "b"} {
		_, err := f.Ensure(cfg(id))
		require.NoError(t, err)
	}

	ids := func() []string {
		var out []string
		for _, d := range f.List() {
			out = append(out, d.ID())
		}
		return out
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids())

	removed := f.Get("b")
	require.NoError(t, f.Remove("b"))
	assert.Equal(t, []string{"a", "c"}, ids())

	frozen := removed.Store().Read()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, frozen, removed.Store().Read(), "removed dashboard kept running")
}

func TestFleet_ShutdownStopsEverything(t *testing.T) {
	f := NewFleet(context.Background(), stubFactory)
	d, err := f.Ensure(cfg("main"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return d.Stats().Successes > 0 }, time.Second, time.Millisecond)

	f.Shutdown()
	f.Shutdown()

	frozen := d.Store().Read()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, frozen, d.Store().Read())

	_, err = f.Ensure(cfg("late"))
	assert.ErrorIs(t, err, ErrShutdown)
	assert.Nil(t, f.Get("main"))
}
