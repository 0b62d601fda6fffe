package poller

import (
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/signal-dashboard/internal/controller"
	"github.com/DoyleJ11/signal-dashboard/internal/signal"
)

// Outcome describes one finished poll. Exactly one of Err, Stale or Snapshot
// is set.
type Outcome struct {
	Seq      uint64
	IssuedAt time.Time
	Duration time.Duration
	Err      error
	Stale    bool
	Snapshot *signal.Snapshot
}

// Reporter is the observability sink for poll outcomes. Implementations must
// not block for long; they run on the poll goroutine.
type Reporter interface {
	Report(Outcome)
}

type ReporterFunc func(Outcome)

func (f ReporterFunc) Report(o Outcome) { f(o) }

var Discard Reporter = ReporterFunc(func(Outcome) {})

type multiReporter []Reporter

func (m multiReporter) Report(o Outcome) {
	for _, r := range m {
		r.Report(o)
	}
}

// Reporters fans an outcome out to every non-nil reporter.
func Reporters(rs ...Reporter) Reporter {
	out := make(multiReporter, 0, len(rs))
	for _, r := range rs {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

type logReporter struct {
	log *zap.Logger
}

func NewLogReporter(log *zap.Logger) Reporter {
	return logReporter{log: log}
}

func (l logReporter) Report(o Outcome) {
	switch {
	case o.Err != nil:
		l.log.Warn("poll failed, keeping last snapshot",
			zap.Uint64("seq", o.Seq),
			zap.String("kind", controller.Kind(o.Err)),
			zap.Duration("took", o.Duration),
			zap.Error(o.Err),
		)
	case o.Stale:
		l.log.Debug("discarded out-of-order response",
			zap.Uint64("seq", o.Seq),
			zap.Duration("took", o.Duration),
		)
	case o.Snapshot != nil:
		l.log.Debug("snapshot applied",
			zap.Uint64("seq", o.Seq),
			zap.String("green_lane", o.Snapshot.GreenLane),
			zap.String("phase", string(o.Snapshot.Phase)),
			zap.Int("timer", o.Snapshot.TimerSeconds),
			zap.Int("lanes", len(o.Snapshot.Lanes)),
			zap.Duration("took", o.Duration),
		)
	}
}
