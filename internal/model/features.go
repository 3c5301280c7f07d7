package model

// Features holds the per-track scalar descriptors computed by
// internal/feature. All fields are finite; fields documented as
// non-negative are clamped there by the extractor.
type Features struct {
	Density         float64 // onsets / total_bars
	PolyphonyRatio  float64 // time-weighted mean of max(0, voices-1), normalized
	PitchRange      float64 // max_pitch - min_pitch
	MedianPitch     float64
	Syncopation     float64
	Repetition      float64 // Jaccard similarity of adjacent 1-bar onset sets
	DrumLikeness    float64
	OnsetIQR        float64 // interquartile range of inter-onset intervals

	// Supporting values, not in spec.md's Features table but needed by
	// RoleClassifier's weights (§4.4) and kept here so role scoring has a
	// single source of truth instead of recomputing them.
	DownbeatRatio     float64 // fraction of onsets landing on a downbeat
	MeanDurationBeats float64
	PitchRangeNorm    float64 // PitchRange normalized to [0,1] over 0..127
	BrokenChordRatio  float64 // fraction of onsets that are part of an arpeggiated run
}
