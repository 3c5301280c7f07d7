package model

// ChordQuality enumerates the fixed chord-quality vocabulary scored by
// ChordInferer (spec.md §4.8).
type ChordQuality string

const (
	QualityMaj  ChordQuality = "maj"
	QualityMin  ChordQuality = "min"
	QualityDim  ChordQuality = "dim"
	QualityAug  ChordQuality = "aug"
	QualityMaj7 ChordQuality = "maj7"
	QualityMin7 ChordQuality = "min7"
	QualityDom7 ChordQuality = "7"
	QualitySus4 ChordQuality = "sus4"
)

// ChordIntervals maps each quality to its semitone intervals from the root,
// within one octave (sus4 and dom7 included).
var ChordIntervals = map[ChordQuality][]int{
	QualityMaj:  {0, 4, 7},
	QualityMin:  {0, 3, 7},
	QualityDim:  {0, 3, 6},
	QualityAug:  {0, 4, 8},
	QualityMaj7: {0, 4, 7, 11},
	QualityMin7: {0, 3, 7, 10},
	QualityDom7: {0, 4, 7, 10},
	QualitySus4: {0, 5, 7},
}

// AllQualities lists qualities in a fixed evaluation order for determinism
// when scores tie.
var AllQualities = []ChordQuality{QualityMaj, QualityMin, QualityDim, QualityAug, QualityMaj7, QualityMin7, QualityDom7, QualitySus4}

// ChordEvent is one inferred chord span.
type ChordEvent struct {
	StartBeat  float64
	EndBeat    float64
	Root       int // 0..11
	Quality    ChordQuality
	Roman      string
	Confidence float64
}
