package signal

import (
	"fmt"
	"sort"
)

type Phase string

const (
	PhaseGreen   Phase = "green"
	PhaseYellow  Phase = "yellow"
	PhaseRed     Phase = "red"
	PhaseUnknown Phase = "unknown"
)

// ParsePhase maps a wire value onto a Phase. Anything unrecognized is unknown.
func ParsePhase(s string) Phase {
	switch Phase(s) {
	case PhaseGreen, PhaseYellow, PhaseRed:
		return Phase(s)
	default:
		return PhaseUnknown
	}
}

type Color string

const (
	ColorGreen  Color = "green"
	ColorYellow Color = "yellow"
	ColorRed    Color = "red"
	ColorGrey   Color = "grey"
)

type LaneState struct {
	VehicleCount    int  `json:"vehicle_count"`
	EmergencyActive bool `json:"emergency_active"`
}

// Snapshot is one complete reading of controller state. It is replaced
// wholesale, never edited in place once published.
type Snapshot struct {
	GreenLane    string               `json:"green_lane"`
	Phase        Phase                `json:"phase"`
	TimerSeconds int                  `json:"timer"`
	Lanes        map[string]LaneState `json:"lanes"`
}

func EmptySnapshot() Snapshot {
	return Snapshot{
		Phase: PhaseUnknown,
		Lanes: map[string]LaneState{},
	}
}

// Clone returns a deep copy so the lanes map is never shared between owners.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Lanes = make(map[string]LaneState, len(s.Lanes))
	for id, ls := range s.Lanes {
		out.Lanes[id] = ls
	}
	return out
}

type Label struct {
	Lane          string `json:"lane"`
	Count         int    `json:"count"`
	Emergency     bool   `json:"emergency"`
	Text          string `json:"text"`
	EmergencyText string `json:"emergency_text"`
}

type LaneDisplay struct {
	Lane            string `json:"lane"`
	Color           Color  `json:"color"`
	VehicleCount    int    `json:"vehicle_count"`
	EmergencyActive bool   `json:"emergency_active"`
	Label           Label  `json:"label"`
}

/*
	Priority, highest first:
	1. emergency on this lane && flash on -> red, whatever the phase
	2. lane holds right-of-way -> green / yellow from the phase
	3. everything else -> grey

	The green lane in a red or unknown phase lands in 3. There is no distinct
	"active but red" rendering.
*/

func DeriveColor(s Snapshot, flash bool, lane string) Color {
	if flash && s.Lanes[lane].EmergencyActive {
		return ColorRed
	}

	if lane == s.GreenLane && lane != "" {
		switch s.Phase {
		case PhaseGreen:
			return ColorGreen
		case PhaseYellow:
			return ColorYellow
		}
	}

	return ColorGrey
}

func DeriveLabel(s Snapshot, lane string) Label {
	ls := s.Lanes[lane]
	l := Label{
		Lane:          lane,
		Count:         ls.VehicleCount,
		Emergency:     ls.EmergencyActive,
		Text:          fmt.Sprintf("%s Lane: %d vehicles", lane, ls.VehicleCount),
		EmergencyText: "Emergency: No",
	}
	if ls.EmergencyActive {
		l.EmergencyText = "Emergency: Yes"
	}
	return l
}

// Derive renders every lane in order. It reads s and never writes to it.
func Derive(s Snapshot, flash bool, lanes []string) []LaneDisplay {
	out := make([]LaneDisplay, 0, len(lanes))
	for _, lane := range lanes {
		ls := s.Lanes[lane]
		out = append(out, LaneDisplay{
			Lane:            lane,
			Color:           DeriveColor(s, flash, lane),
			VehicleCount:    ls.VehicleCount,
			EmergencyActive: ls.EmergencyActive,
			Label:           DeriveLabel(s, lane),
		})
	}
	return out
}

// Lanes picks which lanes to render: the configured ones when there are any,
// otherwise whatever the snapshot reports, sorted for a stable layout.
func Lanes(s Snapshot, configured []string) []string {
	if len(configured) > 0 {
		return configured
	}
	ids := make([]string, 0, len(s.Lanes))
	for id := range s.Lanes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
