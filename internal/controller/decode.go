package controller

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/DoyleJ11/signal-dashboard/internal/signal"
)

var errNotObject = errors.New("body is not a JSON object")

// Decode normalizes either controller shape into a Snapshot:
//
//	flat:  {"green_lane":"North","phase":"green","timer":5,"north_count":3,"north_emergency":false}
//	lanes: {"lanes":{"N":3,"S":1},"signal":"N Green"}
//
// Missing or mistyped fields fall back to zero values and an unknown phase.
// Only a body that is not a JSON object fails.
func Decode(body []byte) (signal.Snapshot, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return signal.Snapshot{}, &ParseError{Err: err}
	}
	if fields == nil {
		return signal.Snapshot{}, &ParseError{Err: errNotObject}
	}

	s := signal.EmptySnapshot()
	s.TimerSeconds = intField(fields["timer"])

	// lanes shape
	if raw, ok := fields["lanes"]; ok {
		var counts map[string]json.RawMessage
		if json.Unmarshal(raw, &counts) == nil {
			for id, c := range counts {
				lane := CanonicalLane(id)
				if lane == "" {
					continue
				}
				ls := s.Lanes[lane]
				ls.VehicleCount = intField(c)
				s.Lanes[lane] = ls
			}
		}
	}
	if raw, ok := fields["emergency"]; ok {
		var flags map[string]json.RawMessage
		if json.Unmarshal(raw, &flags) == nil {
			for id, f := range flags {
				lane := CanonicalLane(id)
				if lane == "" {
					continue
				}
				ls := s.Lanes[lane]
				ls.EmergencyActive = boolField(f)
				s.Lanes[lane] = ls
			}
		}
	}

	// flat shape
	for key, raw := range fields {
		switch {
		case strings.HasSuffix(key, "_count"):
			lane := CanonicalLane(strings.TrimSuffix(key, "_count"))
			if lane == "" {
				continue
			}
			ls := s.Lanes[lane]
			ls.VehicleCount = intField(raw)
			s.Lanes[lane] = ls
		case strings.HasSuffix(key, "_emergency"):
			lane := CanonicalLane(strings.TrimSuffix(key, "_emergency"))
			if lane == "" {
				continue
			}
			ls := s.Lanes[lane]
			ls.EmergencyActive = boolField(raw)
			s.Lanes[lane] = ls
		}
	}

	green, hasGreen := stringField(fields["green_lane"])
	phase, hasPhase := stringField(fields["phase"])
	if hasGreen {
		s.GreenLane = CanonicalLane(green)
	}
	if hasPhase {
		s.Phase = signal.ParsePhase(strings.ToLower(strings.TrimSpace(phase)))
	}

	if sig, ok := stringField(fields["signal"]); ok {
		lane, p := parseSignal(sig, s.Lanes)
		if !hasGreen {
			s.GreenLane = lane
		}
		if !hasPhase {
			s.Phase = p
		}
	}

	return s, nil
}

// CanonicalLane trims and title-cases a lane id so "north", "NORTH" and
// "North" all name the same lane.
func CanonicalLane(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	return cases.Title(language.English).String(id)
}

// parseSignal reads strings like "North Green" or "Green for S". The phase is
// the first colour word, the lane is the first word naming a known lane.
func parseSignal(sig string, lanes map[string]signal.LaneState) (string, signal.Phase) {
	phase := signal.PhaseUnknown
	lane := ""
	words := strings.FieldsFunc(sig, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	for _, w := range words {
		switch strings.ToLower(w) {
		case "green":
			if phase == signal.PhaseUnknown {
				phase = signal.PhaseGreen
			}
			continue
		case "yellow", "amber":
			if phase == signal.PhaseUnknown {
				phase = signal.PhaseYellow
			}
			continue
		case "red":
			if phase == signal.PhaseUnknown {
				phase = signal.PhaseRed
			}
			continue
		}
		if lane == "" {
			if _, ok := lanes[CanonicalLane(w)]; ok {
				lane = CanonicalLane(w)
			}
		}
	}
	return lane, phase
}

func intField(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0
	}
	// negatives and anything past int32 are treated as absent
	if math.IsNaN(f) || f < 0 || f > math.MaxInt32 {
		return 0
	}
	return int(f)
}

func boolField(raw json.RawMessage) bool {
	var b bool
	if len(raw) == 0 || json.Unmarshal(raw, &b) != nil {
		return false
	}
	return b
}

func stringField(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}
