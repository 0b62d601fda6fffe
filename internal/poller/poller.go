package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/DoyleJ11/signal-dashboard/internal/controller"
	"github.com/DoyleJ11/signal-dashboard/internal/signal"
)

var (
	ErrInvalidInterval = errors.New("poll interval must be positive")
	ErrAlreadyStarted  = errors.New("poller already started")
	ErrStopped         = errors.New("poller stopped")
	ErrStaleResponse   = errors.New("response older than applied snapshot")
)

// Replacer is the slice of the state store the poller writes to.
type Replacer interface {
	ReplaceSnapshot(signal.Snapshot)
}

type Stats struct {
	Attempts  uint64 `json:"attempts"`
	Successes uint64 `json:"successes"`
	Failures  uint64 `json:"failures"`
	Discarded uint64 `json:"discarded"`
	LastError string `json:"last_error,omitempty"`
}

type Option func(*Poller)

// WithTimeout bounds each request. Zero means the fetcher's own limits apply.
func WithTimeout(d time.Duration) Option {
	return func(p *Poller) { p.timeout = d }
}

func WithReporter(r Reporter) Option {
	return func(p *Poller) { p.reporter = r }
}

func WithClock(now func() time.Time) Option {
	return func(p *Poller) { p.now = now }
}

type Poller struct {
	fetcher  controller.Fetcher
	store    Replacer
	reporter Reporter
	timeout  time.Duration
	now      func() time.Time

	mu      sync.Mutex
	issued  uint64
	applied uint64
	started bool
	stopped bool
	lastErr error
	cancel  context.CancelFunc
	done    chan struct{}

	inflight sync.WaitGroup

	attempts  atomic.Uint64
	successes atomic.Uint64
	failures  atomic.Uint64
	discarded atomic.Uint64
}

func New(f controller.Fetcher, s Replacer, opts ...Option) *Poller {
	p := &Poller{
		fetcher:  f,
		store:    s,
		reporter: Discard,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start polls immediately and then once per interval until Stop or until
// parent is cancelled. A slow response does not hold back the next tick.
func (p *Poller) Start(parent context.Context, interval time.Duration) error {
	if interval <= 0 {
		return ErrInvalidInterval
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return ErrStopped
	}
	if p.started {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(parent)
	p.started = true
	p.cancel = cancel
	p.done = make(chan struct{})

	go p.loop(ctx, interval)
	return nil
}

func (p *Poller) loop(ctx context.Context, interval time.Duration) {
	defer close(p.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.spawn(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.spawn(ctx)
		}
	}
}

func (p *Poller) spawn(ctx context.Context) {
	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()
		_ = p.Poll(ctx)
	}()
}

// Poll runs one request-response cycle. On success the snapshot replaces the
// store's unless a later-issued poll already landed. On failure the store is
// left alone and the error goes to the reporter.
func (p *Poller) Poll(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return ErrStopped
	}
	p.issued++
	seq := p.issued
	p.mu.Unlock()

	p.attempts.Add(1)

	fctx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		fctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	issuedAt := p.now()
	snap, err := p.fetcher.Fetch(fctx)
	out := Outcome{Seq: seq, IssuedAt: issuedAt, Duration: p.now().Sub(issuedAt)}

	if err != nil {
		if ctx.Err() != nil {
			// shutting down, not a controller failure
			return err
		}
		p.failures.Add(1)
		p.mu.Lock()
		p.lastErr = err
		p.mu.Unlock()
		out.Err = err
		p.reporter.Report(out)
		return err
	}

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return ErrStopped
	}
	if seq <= p.applied {
		p.mu.Unlock()
		p.discarded.Add(1)
		out.Stale = true
		p.reporter.Report(out)
		return ErrStaleResponse
	}
	p.applied = seq
	p.store.ReplaceSnapshot(snap)
	p.mu.Unlock()

	p.successes.Add(1)
	out.Snapshot = &snap
	p.reporter.Report(out)
	return nil
}

// Stop cancels the schedule and waits for in-flight polls to unwind. Nothing
// touches the store after it returns. Safe to call more than once.
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	p.inflight.Wait()
}

func (p *Poller) Stats() Stats {
	st := Stats{
		Attempts:  p.attempts.Load(),
		Successes: p.successes.Load(),
		Failures:  p.failures.Load(),
		Discarded: p.discarded.Load(),
	}
	p.mu.Lock()
	if p.lastErr != nil {
		st.LastError = p.lastErr.Error()
	}
	p.mu.Unlock()
	return st
}
