package model

// Mode is the scale mode a KeyEstimate reports.
type Mode string

const (
	ModeMajor Mode = "major"
	ModeMinor Mode = "minor"
)

// KeyEstimate is the result of Krumhansl-Schmuckler key detection.
type KeyEstimate struct {
	Tonic            int // 0..11, 0 = C
	Mode             Mode
	Confidence       float64 // (best - second_best) / best, clamped [0,1]
	StabilitySamples float64 // fraction of quartile windows agreeing with the global choice
}

// PitchClassNames for display, sharps preferred (matches the teacher's
// general_midi.go convention of naming constants rather than indices).
var PitchClassNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

func (k KeyEstimate) String() string {
	name := PitchClassNames[((k.Tonic%12)+12)%12]
	if k.Mode == ModeMinor {
		return name + "m"
	}
	return name
}
