package flash

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrInvalidInterval = errors.New("flash interval must be positive")
	ErrAlreadyStarted  = errors.New("flash ticker already started")
	ErrStopped         = errors.New("flash ticker stopped")
)

type Toggler interface {
	ToggleFlash()
}

// Ticker flips the flash phase on a fixed cadence. It knows nothing about
// data freshness and has no failure modes once started.
type Ticker struct {
	target Toggler

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func New(target Toggler) *Ticker {
	return &Ticker{target: target}
}

func (t *Ticker) Start(parent context.Context, interval time.Duration) error {
	if interval <= 0 {
		return ErrInvalidInterval
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return ErrStopped
	}
	if t.started {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(parent)
	t.started = true
	t.cancel = cancel
	t.done = make(chan struct{})

	go t.loop(ctx, interval)
	return nil
}

func (t *Ticker) loop(ctx context.Context, interval time.Duration) {
	defer close(t.done)

	tk := time.NewTicker(interval)
	defer tk.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tk.C:
			// a tick and a cancel can be ready together
			if ctx.Err() != nil {
				return
			}
			t.target.ToggleFlash()
		}
	}
}

// Stop halts toggling. No toggle happens after it returns. Idempotent.
func (t *Ticker) Stop() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	cancel, done := t.cancel, t.done
	t.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}
