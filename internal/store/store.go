package store

import (
	"sync"
	"time"

	"github.com/DoyleJ11/signal-dashboard/internal/signal"
)

// View is a single point-in-time read of the store.
type View struct {
	Version   int
	Snapshot  signal.Snapshot
	Flash     bool
	UpdatedAt time.Time
}

// Store holds the latest controller snapshot and the flash phase. Poller and
// flash ticker are its only writers; readers always get whole values.
type Store struct {
	mu        sync.RWMutex
	snap      signal.Snapshot
	flash     bool
	version   int
	updatedAt time.Time
	now       func() time.Time

	subMu sync.Mutex
	subs  map[chan struct{}]struct{}
}

func New() *Store {
	return &Store{
		snap: signal.EmptySnapshot(),
		now:  time.Now,
		subs: make(map[chan struct{}]struct{}),
	}
}

func (s *Store) Snapshot() signal.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Clone()
}

func (s *Store) Flash() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flash
}

func (s *Store) Read() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return View{
		Version:   s.version,
		Snapshot:  s.snap.Clone(),
		Flash:     s.flash,
		UpdatedAt: s.updatedAt,
	}
}

// ReplaceSnapshot swaps in a copy of next. The caller keeps ownership of next.
func (s *Store) ReplaceSnapshot(next signal.Snapshot) {
	cp := next.Clone()
	s.mu.Lock()
	s.snap = cp
	s.version++
	s.updatedAt = s.now()
	s.mu.Unlock()
	s.notify()
}

func (s *Store) ToggleFlash() {
	s.mu.Lock()
	s.flash = !s.flash
	s.version++
	s.mu.Unlock()
	s.notify()
}

// Subscribe returns a channel that receives a signal after each mutation.
// Signals coalesce: a reader that falls behind sees one pending signal, then
// reads the latest view.
func (s *Store) Subscribe() <-chan struct{} {
	ch := make(chan struct{}, 1)
	s.subMu.Lock()
	s.subs[ch] = struct{}{}
	s.subMu.Unlock()
	return ch
}

func (s *Store) Unsubscribe(ch <-chan struct{}) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for c := range s.subs {
		if c == ch {
			delete(s.subs, c)
			return
		}
	}
}

func (s *Store) notify() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
			// already pending
		}
	}
}
