package model

import "encoding/hex"

// Chunk is a non-overlapping, bar-aligned window of a track used as the
// unit of fingerprinting and pattern mining.
type Chunk struct {
	TrackID        string
	StartBar       int
	LengthBars     int // 1, 2, or 4
	GridStepsPerBar int

	// Onsets holds the note events whose StartBeat falls within
	// [StartBar, StartBar+LengthBars), already relative to the chunk's own
	// start beat so fingerprints are transposition/translation independent
	// on the time axis.
	Onsets []NoteEvent

	// OnsetSteps holds the quantized grid step (0..GridLength()-1) for each
	// entry in Onsets, parallel by index. Computed once by the chunker
	// since it needs the song's meter map; the fingerprinter just reads it.
	OnsetSteps []int

	ShapeDescriptor ShapeDescriptor
	Fingerprint     Fingerprint
}

// GridLength is the number of grid steps the chunk spans.
func (c Chunk) GridLength() int {
	return c.LengthBars * c.GridStepsPerBar
}

// ShapeDescriptor captures stored-but-not-hashed descriptive data about a
// chunk's contents (spec.md §4.5).
type ShapeDescriptor struct {
	Density        float64
	AccentProfile  []float64 // per-step mean velocity, len == GridLength
	PitchContour   []int     // semitone deltas between consecutive onsets
	OnsetCount     int
}

// Fingerprint holds the three deterministic content hashes computed for a
// Chunk (spec.md §4.5). Bytes, not hex strings, since PatternID derivation
// needs the raw combo_fp bytes.
type Fingerprint struct {
	RhythmFP []byte
	PitchFP  []byte
	ComboFP  []byte
}

// PatternID is the first 12 hex characters of ComboFP.
func (fp Fingerprint) PatternID() string {
	const n = 6 // 6 bytes -> 12 hex chars
	b := fp.ComboFP
	if len(b) > n {
		b = b[:n]
	}
	return hex.EncodeToString(b)
}
