package dashboard

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/signal-dashboard/internal/controller"
	"github.com/DoyleJ11/signal-dashboard/internal/feed"
	"github.com/DoyleJ11/signal-dashboard/internal/flash"
	"github.com/DoyleJ11/signal-dashboard/internal/poller"
	"github.com/DoyleJ11/signal-dashboard/internal/store"
)

var ErrAlreadyStarted = errors.New("dashboard already started")

type Config struct {
	ID             string        `yaml:"id"`
	Endpoint       string        `yaml:"endpoint"`
	Lanes          []string      `yaml:"lanes"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	FlashInterval  time.Duration `yaml:"flash_interval"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// Dashboard is one intersection's display: a store written by a poller and a
// flash ticker, rendered by a feed. Start and Stop bracket all of it.
type Dashboard struct {
	cfg    Config
	log    *zap.Logger
	store  *store.Store
	poller *poller.Poller
	flash  *flash.Ticker

	mu       sync.Mutex
	feed     *feed.Feed
	stopOnce sync.Once
}

func New(cfg Config, f controller.Fetcher, rep poller.Reporter, log *zap.Logger) *Dashboard {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("intersection", cfg.ID))

	st := store.New()
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = cfg.PollInterval
	}

	return &Dashboard{
		cfg:   cfg,
		log:   log,
		store: st,
		poller: poller.New(f, st,
			poller.WithTimeout(timeout),
			poller.WithReporter(poller.Reporters(poller.NewLogReporter(log.Named("poller")), rep)),
		),
		flash: flash.New(st),
	}
}

// Start launches the feed, the poller and the flash ticker. If any of them
// refuses to start, whatever already started is stopped again.
func (d *Dashboard) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.feed != nil {
		d.mu.Unlock()
		return ErrAlreadyStarted
	}
	fd := feed.NewFeed(ctx, d.cfg.ID, d.store, d.cfg.Lanes)
	d.feed = fd
	d.mu.Unlock()

	if err := d.poller.Start(ctx, d.cfg.PollInterval); err != nil {
		fd.Close()
		return err
	}
	if err := d.flash.Start(ctx, d.cfg.FlashInterval); err != nil {
		d.poller.Stop()
		fd.Close()
		return err
	}

	d.log.Info("dashboard started",
		zap.String("endpoint", d.cfg.Endpoint),
		zap.Duration("poll_interval", d.cfg.PollInterval),
		zap.Duration("flash_interval", d.cfg.FlashInterval),
		zap.Strings("lanes", d.cfg.Lanes),
	)
	return nil
}

// Stop tears down both timers and then the feed. Idempotent.
func (d *Dashboard) Stop() {
	d.stopOnce.Do(func() {
		d.poller.Stop()
		d.flash.Stop()
		if fd := d.Feed(); fd != nil {
			fd.Close()
		}
		st := d.poller.Stats()
		d.log.Info("dashboard stopped",
			zap.Uint64("polls", st.Attempts),
			zap.Uint64("applied", st.Successes),
			zap.Uint64("failed", st.Failures),
		)
	})
}

func (d *Dashboard) ID() string          { return d.cfg.ID }
func (d *Dashboard) Config() Config      { return d.cfg }
func (d *Dashboard) Store() *store.Store { return d.store }
func (d *Dashboard) Stats() poller.Stats { return d.poller.Stats() }

// Feed is nil until Start has run.
func (d *Dashboard) Feed() *feed.Feed {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.feed
}

// Frame renders straight from the store. Used before Start or after the feed
// has shut down.
func (d *Dashboard) Frame() feed.Frame {
	return feed.Render(d.cfg.ID, d.store.Read(), d.cfg.Lanes)
}
