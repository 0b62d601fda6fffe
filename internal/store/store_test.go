package store

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/signal-dashboard/internal/signal"
)

func TestStore_InitialState(t *testing.T) {
	s := New()
	v := s.Read()

	assert.Equal(t, 0, v.Version)
	assert.False(t, v.Flash)
	assert.Equal(t, signal.PhaseUnknown, v.Snapshot.Phase)
	assert.Empty(t, v.Snapshot.Lanes)
	assert.True(t, v.UpdatedAt.IsZero())
}

func TestStore_ReplaceSnapshot_CopiesInAndOut(t *testing.T) {
	s := New()
	in := signal.Snapshot{
		GreenLane: "North",
		Phase:     signal.PhaseGreen,
		Lanes:     map[string]signal.LaneState{"North": {VehicleCount: 3}},
	}
	s.ReplaceSnapshot(in)

	in.Lanes["North"] = signal.LaneState{VehicleCount: 99}
	got := s.Snapshot()
	assert.Equal(t, 3, got.Lanes["North"].VehicleCount, "caller edits must not leak into the store")

	got.Lanes["North"] = signal.LaneState{VehicleCount: 42}
	assert.Equal(t, 3, s.Snapshot().Lanes["North"].VehicleCount, "reader edits must not leak into the store")
	assert.Equal(t, 1, s.Read().Version)
	assert.False(t, s.Read().UpdatedAt.IsZero())
}

func TestStore_ToggleFlash(t *testing.T) {
	s := New()
	s.ToggleFlash()
	assert.True(t, s.Flash())
	s.ToggleFlash()
	assert.False(t, s.Flash())
}

func TestStore_ToggleDoesNotTouchSnapshot(t *testing.T) {
	s := New()
	s.ReplaceSnapshot(signal.Snapshot{GreenLane: "South", Phase: signal.PhaseYellow, Lanes: map[string]signal.LaneState{}})
	before := s.Read()
	s.ToggleFlash()
	after := s.Read()

	assert.Equal(t, before.Snapshot, after.Snapshot)
	assert.Equal(t, before.UpdatedAt, after.UpdatedAt)
	assert.NotEqual(t, before.Flash, after.Flash)
}

// Readers must never see a mix of two snapshots.
func TestStore_ConcurrentReplaceIsAtomic(t *testing.T) {
	s := New()
	mk := func(n int) signal.Snapshot {
		return signal.Snapshot{
			GreenLane:    "North",
			Phase:        signal.PhaseGreen,
			TimerSeconds: n,
			Lanes: map[string]signal.LaneState{
				"North": {VehicleCount: n},
				"South": {VehicleCount: n},
			},
		}
	}
	s.ReplaceSnapshot(mk(0))

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for w := 0; w < 2; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 1; ; i++ {
				select {
				case <-stop:
					return
				default:
				}
				s.ReplaceSnapshot(mk(i))
				s.ToggleFlash()
			}
		}()
	}

	deadline := time.After(100 * time.Millisecond)
	for done := false; !done; {
		select {
		case <-deadline:
			done = true
		default:
			v := s.Read()
			n := v.Snapshot.TimerSeconds
			require.Equal(t, n, v.Snapshot.Lanes["North"].VehicleCount)
			require.Equal(t, n, v.Snapshot.Lanes["South"].VehicleCount)
		}
	}
	close(stop)
	wg.Wait()
}

func TestStore_SubscribeCoalesces(t *testing.T) {
	s := New()
	ch := s.Subscribe()

	s.ToggleFlash()
	s.ToggleFlash()
	s.ReplaceSnapshot(signal.EmptySnapshot())

	select {
	case <-ch:
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("expected a change notification")
	}
	select {
	case <-ch:
		t.Fatalf("notifications should coalesce into one pending signal")
	default:
	}

	s.Unsubscribe(ch)
	s.ToggleFlash()
	select {
	case <-ch:
		t.Fatalf("unsubscribed channel still notified")
	default:
	}
}
