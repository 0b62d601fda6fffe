package audit

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/DoyleJ11/signal-dashboard/internal/controller"
	"github.com/DoyleJ11/signal-dashboard/internal/poller"
)

var ErrUnknownDriver = errors.New("unknown audit driver")

const queueSize = 256

// PollRecord is one poll outcome. Rows are only ever appended and listed for
// operators; the dashboard never restores display state from them.
type PollRecord struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Intersection string    `gorm:"size:64;index" json:"intersection"`
	Seq          uint64    `json:"seq"`
	IssuedAt     time.Time `gorm:"index" json:"issued_at"`
	DurationMS   int64     `json:"duration_ms"`
	Outcome      string    `gorm:"size:16" json:"outcome"` // applied | failed | stale
	ErrorKind    string    `gorm:"size:16" json:"error_kind,omitempty"`
	Error        string    `json:"error,omitempty"`
	GreenLane    string    `gorm:"size:64" json:"green_lane,omitempty"`
	Phase        string    `gorm:"size:16" json:"phase,omitempty"`
	Timer        int       `json:"timer"`
	Lanes        int       `json:"lanes"`
	Emergencies  int       `json:"emergencies"`
}

type Recorder struct {
	db  *gorm.DB
	log *zap.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan PollRecord
	done   chan struct{}

	dropped atomic.Uint64
}

func Open(driver, dsn string, log *zap.Logger) (*Recorder, error) {
	var dial gorm.Dialector
	switch driver {
	case "postgres":
		dial = postgres.Open(dsn)
	case "sqlite":
		dial = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}

	db, err := gorm.Open(dial, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	return New(db, log)
}

// New wraps an open gorm handle, migrating the schema first.
func New(db *gorm.DB, log *zap.Logger) (*Recorder, error) {
	if err := db.AutoMigrate(&PollRecord{}); err != nil {
		return nil, fmt.Errorf("migrate audit db: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}

	r := &Recorder{
		db:    db,
		log:   log,
		queue: make(chan PollRecord, queueSize),
		done:  make(chan struct{}),
	}
	go r.run(r.queue)
	return r, nil
}

func (r *Recorder) run(queue <-chan PollRecord) {
	defer close(r.done)
	for rec := range queue {
		if err := r.db.Create(&rec).Error; err != nil {
			r.log.Warn("audit write failed", zap.String("intersection", rec.Intersection), zap.Error(err))
		}
	}
}

// ForIntersection returns a poll reporter tagging rows with id. Reports never
// block the poller: when the write queue is full the row is dropped.
func (r *Recorder) ForIntersection(id string) poller.Reporter {
	return poller.ReporterFunc(func(o poller.Outcome) {
		r.enqueue(toRecord(id, o))
	})
}

func (r *Recorder) enqueue(rec PollRecord) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- rec:
	default:
		r.dropped.Add(1)
	}
}

func toRecord(id string, o poller.Outcome) PollRecord {
	rec := PollRecord{
		Intersection: id,
		Seq:          o.Seq,
		IssuedAt:     o.IssuedAt,
		DurationMS:   o.Duration.Milliseconds(),
	}
	switch {
	case o.Err != nil:
		rec.Outcome = "failed"
		rec.ErrorKind = controller.Kind(o.Err)
		rec.Error = o.Err.Error()
	case o.Stale:
		rec.Outcome = "stale"
	case o.Snapshot != nil:
		rec.Outcome = "applied"
		rec.GreenLane = o.Snapshot.GreenLane
		rec.Phase = string(o.Snapshot.Phase)
		rec.Timer = o.Snapshot.TimerSeconds
		rec.Lanes = len(o.Snapshot.Lanes)
		for _, ls := range o.Snapshot.Lanes {
			if ls.EmergencyActive {
				rec.Emergencies++
			}
		}
	}
	return rec
}

// Recent lists the newest rows for an intersection, newest first.
func (r *Recorder) Recent(intersection string, limit int) ([]PollRecord, error) {
	var out []PollRecord
	err := r.db.Where("intersection = ?", intersection).
		Order("id desc").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// Dropped counts rows lost because the write queue was full.
func (r *Recorder) Dropped() uint64 { return r.dropped.Load() }

// Close drains queued rows and closes the database.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	<-r.done
	if n := r.Dropped(); n > 0 {
		r.log.Warn("audit rows dropped on a full queue", zap.Uint64("dropped", n))
	}
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
