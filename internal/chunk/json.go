package chunk

import (
	"encoding/json"

	"github.com/leafo/patterncorpus/internal/model"
)

// DrumRepresentation is the canonical JSON shape for a drum-role chunk
// (spec.md §6: `{stepsPerBar, hits:[{step,pitch,vel}]}`).
type DrumRepresentation struct {
	Hits        []DrumHit `json:"hits"`
	StepsPerBar int       `json:"stepsPerBar"`
}

type DrumHit struct {
	Pitch uint8 `json:"pitch"`
	Step  int   `json:"step"`
	Vel   uint8 `json:"vel"`
}

// MarshalJSON renders a chunk's sorted-key drum representation.
func (d DrumRepresentation) MarshalJSON() ([]byte, error) {
	type alias DrumRepresentation
	return json.Marshal(alias(d))
}

// DrumShape builds the canonical drum JSON representation of a chunk.
func DrumShape(c model.Chunk) DrumRepresentation {
	hits := make([]DrumHit, len(c.Onsets))
	for i, ev := range c.Onsets {
		step := 0
		if i < len(c.OnsetSteps) {
			step = c.OnsetSteps[i]
		}
		hits[i] = DrumHit{Step: step, Pitch: ev.Pitch, Vel: ev.Velocity}
	}
	return DrumRepresentation{StepsPerBar: c.GridStepsPerBar, Hits: hits}
}

// MelodicRepresentation is the canonical JSON shape for a melodic chunk
// (spec.md §6: `{events:[{step,interval,dur}]}`).
type MelodicRepresentation struct {
	Events []MelodicEvent `json:"events"`
}

type MelodicEvent struct {
	Dur      float64 `json:"dur"`
	Interval int     `json:"interval"`
	Step     int     `json:"step"`
}

func (m MelodicRepresentation) MarshalJSON() ([]byte, error) {
	type alias MelodicRepresentation
	return json.Marshal(alias(m))
}

// MelodicShape builds the canonical melodic JSON representation, encoding
// each onset's interval from the previous onset (0 for the first).
func MelodicShape(c model.Chunk) MelodicRepresentation {
	events := make([]MelodicEvent, len(c.Onsets))
	prevPitch := 0
	for i, ev := range c.Onsets {
		interval := 0
		if i > 0 {
			interval = int(ev.Pitch) - prevPitch
		}
		step := 0
		if i < len(c.OnsetSteps) {
			step = c.OnsetSteps[i]
		}
		events[i] = MelodicEvent{Step: step, Interval: interval, Dur: ev.DurationBeats}
		prevPitch = int(ev.Pitch)
	}
	return MelodicRepresentation{Events: events}
}
