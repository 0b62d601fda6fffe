package feed

import (
	"context"
	"time"

	"github.com/DoyleJ11/signal-dashboard/internal/signal"
	"github.com/DoyleJ11/signal-dashboard/internal/store"
)

type Msg interface{ isFeedMsg() }

type Join struct {
	ClientID string
	Outbox   chan Frame // where this client wants to receive frames
}

func (Join) isFeedMsg() {}

type Leave struct{ ClientID string }

func (Leave) isFeedMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isFeedMsg() {}

// Frame is one render of an intersection: every lane's colour and label plus
// the phase footer.
type Frame struct {
	Intersection string               `json:"intersection"`
	Version      int                  `json:"version"`
	Flash        bool                 `json:"flash"`
	GreenLane    string               `json:"green_lane"`
	Phase        signal.Phase         `json:"phase"`
	TimerSeconds int                  `json:"timer"`
	Lanes        []signal.LaneDisplay `json:"lanes"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

type View struct {
	Version    int
	NumClients int
	Frame      Frame
}

// Source is what the feed renders from.
type Source interface {
	Read() store.View
	Subscribe() <-chan struct{}
	Unsubscribe(<-chan struct{})
}

// Render derives a frame from one store read.
func Render(intersection string, v store.View, lanes []string) Frame {
	return Frame{
		Intersection: intersection,
		Flash:        v.Flash,
		GreenLane:    v.Snapshot.GreenLane,
		Phase:        v.Snapshot.Phase,
		TimerSeconds: v.Snapshot.TimerSeconds,
		Lanes:        signal.Derive(v.Snapshot, v.Flash, signal.Lanes(v.Snapshot, lanes)),
		UpdatedAt:    v.UpdatedAt,
	}
}

type Feed struct {
	id      string
	lanes   []string
	src     Source
	inbox   chan Msg
	frame   Frame
	version int
	clients map[string]chan Frame
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewFeed(parent context.Context, id string, src Source, lanes []string) *Feed {
	ctx, cancel := context.WithCancel(parent)

	f := &Feed{
		id:      id,
		lanes:   lanes,
		src:     src,
		inbox:   make(chan Msg, 64),
		clients: make(map[string]chan Frame),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	// subscribe before the first read so no change slips between them
	changes := src.Subscribe()
	f.frame = Render(id, src.Read(), lanes)
	go f.loop(changes)
	return f
}

func (f *Feed) loop(changes <-chan struct{}) {
	defer close(f.done)
	defer f.src.Unsubscribe(changes)

	for {
		select {
		case <-f.ctx.Done():
			f.shutdown()
			return

		case <-changes:
			f.version++
			f.frame = Render(f.id, f.src.Read(), f.lanes)
			f.frame.Version = f.version
			f.broadcast(f.frame)

		case m := <-f.inbox:
			switch msg := m.(type) {
			case Join:
				// Register client + send current frame immediately
				f.clients[msg.ClientID] = msg.Outbox
				select {
				case msg.Outbox <- f.frame:
				default:
				}

			case Leave:
				if ch, ok := f.clients[msg.ClientID]; ok {
					close(ch)
					delete(f.clients, msg.ClientID)
				}

			case GetState:
				msg.Reply <- View{
					Version:    f.version,
					NumClients: len(f.clients),
					Frame:      f.frame,
				}

			}
		}
	}
}

func (f *Feed) shutdown() {
	for id, ch := range f.clients {
		close(ch) // Tell client no more frames
		delete(f.clients, id)
	}
	f.cancel()
}

func (f *Feed) broadcast(frame Frame) {
	for id, ch := range f.clients {
		select {
		case ch <- frame:
			//ok
		default:
			// Client is slow/full - drop them.
			close(ch)
			delete(f.clients, id)
		}
	}
}

// Expose the inbox so tests or WS layer can send messages.
func (f *Feed) Inbox() chan<- Msg { return f.inbox }

// Send delivers m unless the feed has already shut down.
func (f *Feed) Send(m Msg) bool {
	if f.ctx.Err() != nil {
		return false
	}
	select {
	case f.inbox <- m:
		return true
	case <-f.ctx.Done():
		return false
	}
}

// Current asks the loop for its latest view.
func (f *Feed) Current(ctx context.Context) (View, bool) {
	reply := make(chan View, 1)
	if !f.Send(GetState{Reply: reply}) {
		return View{}, false
	}
	select {
	case v := <-reply:
		return v, true
	case <-f.done:
		return View{}, false
	case <-ctx.Done():
		return View{}, false
	}
}

// Close stops the loop and waits for it to exit.
func (f *Feed) Close() {
	f.cancel()
	<-f.done
}
