package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/signal-dashboard/internal/feed"
	"github.com/DoyleJ11/signal-dashboard/internal/fleet"
	"github.com/DoyleJ11/signal-dashboard/internal/types"
)

const writeTimeout = 3 * time.Second

// Handler streams display frames for ?intersection=<id>. Frames go out as JSON
// text, or CBOR binary with ?encoding=cbor. Cross-origin clients are refused
// unless their host matches one of originPatterns.
func Handler(fl *fleet.Fleet, log *zap.Logger, originPatterns ...string) http.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("intersection")
		if id == "" {
			http.Error(w, "missing intersection", http.StatusBadRequest)
			return
		}
		enc, err := codecFor(r.URL.Query().Get("encoding"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		d := fl.Get(id)
		if d == nil {
			http.Error(w, "intersection not found", http.StatusNotFound)
			return
		}
		fd := d.Feed()
		if fd == nil {
			http.Error(w, "intersection not running", http.StatusServiceUnavailable)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: originPatterns,
		})
		if err != nil {
			log.Debug("websocket accept failed", zap.String("origin", r.Header.Get("Origin")), zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		clientID := uuid.NewString()
		log := log.With(zap.String("intersection", id), zap.String("client", clientID), zap.String("encoding", enc.name))

		out := make(chan feed.Frame, 8)
		if !fd.Send(feed.Join{ClientID: clientID, Outbox: out}) {
			conn.Close(websocket.StatusGoingAway, "intersection stopped")
			return
		}
		defer fd.Send(feed.Leave{ClientID: clientID})
		log.Debug("display client joined")

		send := func(ctx context.Context, msg types.ServerMessage) error {
			payload, err := enc.encode(msg)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(ctx, writeTimeout)
			defer cancel()
			return conn.Write(ctx, enc.msgType, payload)
		}

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for frame := range out {
				if err := send(writeCtx, types.FrameMessage(frame)); err != nil {
					log.Debug("frame write failed", zap.Error(err))
				}
			}
			// outbox closed: dropped as slow, or the feed shut down
			conn.Close(websocket.StatusGoingAway, "feed closed")
		}()

		// Reader loop
		for {
			typ, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					log.Debug("display client read ended", zap.Error(err))
				}
				return
			}

			cm, err := decode(typ, data)
			if err != nil {
				_ = send(r.Context(), types.ErrorMessage("bad message"))
				continue
			}

			switch cm.Type {
			case "GetFrame":
				v, ok := fd.Current(r.Context())
				if !ok {
					return
				}
				_ = send(r.Context(), types.FrameMessage(v.Frame))
			default:
				_ = send(r.Context(), types.ErrorMessage("unknown type"))
			}
		}
	}
}
