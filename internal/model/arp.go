package model

// Rate is a named rhythmic division used to quantize arpeggio speed.
type Rate string

const (
	RateQuarter      Rate = "1/4"
	RateEighth       Rate = "1/8"
	RateEighthTriplet Rate = "1/8T"
	RateSixteenth    Rate = "1/16"
	RateSixteenthTriplet Rate = "1/16T"
	RateThirtySecond Rate = "1/32"
	RateUnknown      Rate = "unknown"
)

// RateBeats maps a named rate to its length in quarter-note beats.
var RateBeats = map[Rate]float64{
	RateQuarter:          1.0,
	RateEighth:           0.5,
	RateEighthTriplet:    1.0 / 3.0,
	RateSixteenth:        0.25,
	RateSixteenthTriplet: 1.0 / 6.0,
	RateThirtySecond:     0.125,
}

// OrderedRates lists named rates from slowest to fastest, the order
// internal/arp's nearestRate scans to find the closest named division.
var OrderedRates = []Rate{RateQuarter, RateEighth, RateEighthTriplet, RateSixteenth, RateSixteenthTriplet, RateThirtySecond}

// ArpWindow is one chord-window segment's worth of arpeggio analysis
// (spec.md §4.9).
type ArpWindow struct {
	StartBeat        float64
	EndBeat          float64
	Rate             Rate
	IntervalSequence []int // semitone offsets mod 12
	OctaveJumps      []int // per-step octave index relative to first note
	Gate             float64
}

// ArpAggregate summarizes all windows of one track.
type ArpAggregate struct {
	TrackID              string
	DominantRate         Rate
	MeanGate             float64
	MostCommonIntervals  []int
	Windows              []ArpWindow
}
