package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/signal-dashboard/internal/audit"
	"github.com/DoyleJ11/signal-dashboard/internal/config"
	"github.com/DoyleJ11/signal-dashboard/internal/controller"
	"github.com/DoyleJ11/signal-dashboard/internal/dashboard"
	"github.com/DoyleJ11/signal-dashboard/internal/fleet"
	"github.com/DoyleJ11/signal-dashboard/internal/httpapi"
	"github.com/DoyleJ11/signal-dashboard/internal/logging"
	"github.com/DoyleJ11/signal-dashboard/internal/poller"
)

const shutdownTimeout = 5 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 1
	}

	log, err := logging.New(cfg.LogLevel, cfg.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg, log); err != nil {
		log.Error("dashboard exited", zap.Error(err))
		return 1
	}
	return 0
}

func serve(ctx context.Context, cfg config.Config, log *zap.Logger) (err error) {
	var rec *audit.Recorder
	var hist httpapi.History
	if cfg.AuditDriver != "" {
		rec, err = audit.Open(cfg.AuditDriver, cfg.AuditDSN, log.Named("audit"))
		if err != nil {
			return err
		}
		hist = rec
		defer func() { err = multierr.Append(err, rec.Close()) }()
	}

	factory := func(ic dashboard.Config) (*dashboard.Dashboard, error) {
		var rep poller.Reporter
		if rec != nil {
			rep = rec.ForIntersection(ic.ID)
		}
		f := controller.NewHTTPFetcher(ic.Endpoint, ic.RequestTimeout)
		return dashboard.New(ic, f, rep, log.Named("dashboard")), nil
	}

	fl := fleet.NewFleet(ctx, factory)
	defer fl.Shutdown()

	for _, ic := range cfg.Intersections {
		if _, err := fl.Create(ic); err != nil {
			return fmt.Errorf("start intersection %s: %w", ic.ID, err)
		}
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.SetupRoutes(fl, hist, log, cfg.AllowedOrigins...),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.Addr), zap.Int("intersections", len(cfg.Intersections)))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		// stop every timer before the listener goes away
		fl.Shutdown()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	return g.Wait()
}
