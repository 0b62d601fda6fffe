package fleet

import (
	"context"
	"errors"
	"sort"

	"github.com/DoyleJ11/signal-dashboard/internal/dashboard"
)

var (
	ErrMissingID = errors.New("intersection id is required")
	ErrShutdown  = errors.New("fleet shut down")
	ErrExists    = errors.New("intersection already registered")
)

// Factory builds an unstarted dashboard for one intersection.
type Factory func(cfg dashboard.Config) (*dashboard.Dashboard, error)

type FleetMsg interface{ isFleetMsg() }

type Result struct {
	Dashboard *dashboard.Dashboard
	Err       error
}

type CreateIntersection struct {
	Config dashboard.Config
	Reply  chan Result
}

type GetIntersection struct {
	ID    string
	Reply chan *dashboard.Dashboard
}

type EnsureIntersection struct {
	Config dashboard.Config // only used if creation happens
	Reply  chan Result
}

type RemoveIntersection struct {
	ID string
}

type ListIntersections struct {
	Reply chan []*dashboard.Dashboard
}

type ShutdownFleet struct {
	Done chan struct{}
}

func (CreateIntersection) isFleetMsg() {}
func (GetIntersection) isFleetMsg()    {}
func (EnsureIntersection) isFleetMsg() {}
func (RemoveIntersection) isFleetMsg() {}
func (ListIntersections) isFleetMsg()  {}
func (ShutdownFleet) isFleetMsg()      {}

// Fleet owns every running dashboard, keyed by intersection id.
type Fleet struct {
	inbox   chan FleetMsg
	boards  map[string]*dashboard.Dashboard
	factory Factory
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewFleet(parent context.Context, factory Factory) *Fleet {
	ctx, cancel := context.WithCancel(parent)
	f := &Fleet{
		inbox:   make(chan FleetMsg, 64),
		boards:  make(map[string]*dashboard.Dashboard),
		factory: factory,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go f.loop()
	return f
}

func (f *Fleet) Inbox() chan<- FleetMsg { return f.inbox }

func (f *Fleet) loop() {
	defer close(f.done)
	for {
		select {
		case <-f.ctx.Done():
			f.shutdown()
			return

		case m := <-f.inbox:
			switch msg := m.(type) {
			case CreateIntersection:
				if f.boards[msg.Config.ID] != nil {
					msg.Reply <- Result{Err: ErrExists}
					break
				}
				msg.Reply <- f.create(msg.Config)

			case EnsureIntersection:
				msg.Reply <- f.create(msg.Config)

			case GetIntersection:
				msg.Reply <- f.boards[msg.ID] // May be nil

			case RemoveIntersection:
				if d := f.boards[msg.ID]; d != nil {
					d.Stop()
					delete(f.boards, msg.ID)
				}

			case ListIntersections:
				out := make([]*dashboard.Dashboard, 0, len(f.boards))
				for _, d := range f.boards {
					out = append(out, d)
				}
				sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
				msg.Reply <- out

			case ShutdownFleet:
				f.shutdown()
				f.cancel()
				if msg.Done != nil {
					close(msg.Done)
				}
				return
			}
		}
	}
}

// create returns the existing dashboard for cfg.ID or builds and starts one.
func (f *Fleet) create(cfg dashboard.Config) Result {
	if cfg.ID == "" {
		return Result{Err: ErrMissingID}
	}
	if d := f.boards[cfg.ID]; d != nil {
		return Result{Dashboard: d}
	}

	d, err := f.factory(cfg)
	if err != nil {
		return Result{Err: err}
	}
	if err := d.Start(f.ctx); err != nil {
		d.Stop()
		return Result{Err: err}
	}
	f.boards[cfg.ID] = d
	return Result{Dashboard: d}
}

func (f *Fleet) shutdown() {
	for id, d := range f.boards {
		d.Stop()
		delete(f.boards, id)
	}
}

func (f *Fleet) send(m FleetMsg) error {
	if f.ctx.Err() != nil {
		return ErrShutdown
	}
	select {
	case f.inbox <- m:
		return nil
	case <-f.ctx.Done():
		return ErrShutdown
	}
}

// Create registers and starts a new dashboard. ErrExists if the id is taken.
func (f *Fleet) Create(cfg dashboard.Config) (*dashboard.Dashboard, error) {
	reply := make(chan Result, 1)
	return f.await(CreateIntersection{Config: cfg, Reply: reply}, reply)
}

// Ensure returns the registered dashboard for cfg.ID, creating it if needed.
func (f *Fleet) Ensure(cfg dashboard.Config) (*dashboard.Dashboard, error) {
	reply := make(chan Result, 1)
	return f.await(EnsureIntersection{Config: cfg, Reply: reply}, reply)
}

func (f *Fleet) await(m FleetMsg, reply chan Result) (*dashboard.Dashboard, error) {
	if err := f.send(m); err != nil {
		return nil, err
	}
	select {
	case r := <-reply:
		return r.Dashboard, r.Err
	case <-f.done:
		return nil, ErrShutdown
	}
}

// Get returns nil when the id is unknown or the fleet is gone.
func (f *Fleet) Get(id string) *dashboard.Dashboard {
	reply := make(chan *dashboard.Dashboard, 1)
	if f.send(GetIntersection{ID: id, Reply: reply}) != nil {
		return nil
	}
	select {
	case d := <-reply:
		return d
	case <-f.done:
		return nil
	}
}

func (f *Fleet) List() []*dashboard.Dashboard {
	reply := make(chan []*dashboard.Dashboard, 1)
	if f.send(ListIntersections{Reply: reply}) != nil {
		return nil
	}
	select {
	case ds := <-reply:
		return ds
	case <-f.done:
		return nil
	}
}

func (f *Fleet) Remove(id string) error {
	return f.send(RemoveIntersection{ID: id})
}

// Shutdown stops every dashboard and waits for the loop to exit.
func (f *Fleet) Shutdown() {
	_ = f.send(ShutdownFleet{})
	<-f.done
}
