package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/DoyleJ11/signal-dashboard/internal/audit"
	"github.com/DoyleJ11/signal-dashboard/internal/fleet"
	"github.com/DoyleJ11/signal-dashboard/internal/poller"
)

const (
	defaultPollLimit = 50
	maxPollLimit     = 500
)

// History is the read side of the poll audit log.
type History interface {
	Recent(intersection string, limit int) ([]audit.PollRecord, error)
}

type intersectionInfo struct {
	ID       string       `json:"id"`
	Endpoint string       `json:"endpoint"`
	Lanes    []string     `json:"lanes"`
	Stats    poller.Stats `json:"stats"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func ListIntersections(fl *fleet.Fleet) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out := []intersectionInfo{}
		for _, d := range fl.List() {
			cfg := d.Config()
			out = append(out, intersectionInfo{
				ID:       cfg.ID,
				Endpoint: cfg.Endpoint,
				Lanes:    cfg.Lanes,
				Stats:    d.Stats(),
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// GetFrame returns the intersection's latest rendered frame.
func GetFrame(fl *fleet.Fleet) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d := fl.Get(chi.URLParam(r, "id"))
		if d == nil {
			http.Error(w, "intersection not found", http.StatusNotFound)
			return
		}

		frame := d.Frame()
		if fd := d.Feed(); fd != nil {
			if v, ok := fd.Current(r.Context()); ok {
				frame = v.Frame
			}
		}
		writeJSON(w, http.StatusOK, frame)
	}
}

func ListPolls(fl *fleet.Fleet, hist History) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if hist == nil {
			http.Error(w, "poll audit disabled", http.StatusNotFound)
			return
		}
		id := chi.URLParam(r, "id")
		if fl.Get(id) == nil {
			http.Error(w, "intersection not found", http.StatusNotFound)
			return
		}

		limit := defaultPollLimit
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				http.Error(w, "bad limit", http.StatusBadRequest)
				return
			}
			limit = min(n, maxPollLimit)
		}

		rows, err := hist.Recent(id, limit)
		if err != nil {
			http.Error(w, "failed to read poll history", http.StatusInternalServerError)
			return
		}
		if rows == nil {
			rows = []audit.PollRecord{}
		}
		writeJSON(w, http.StatusOK, rows)
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
