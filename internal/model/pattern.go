package model

// Pattern is a canonical, deduplicated musical pattern: one per distinct
// cluster of near-identical chunks across the whole corpus.
type Pattern struct {
	PatternID      string // = combo_fp prefix of the canonical instance
	Role           Role
	LengthBars     int
	Meter          string // e.g. "4/4"
	GridResolution int    // grid_steps_per_bar used to build it
	Representation string // "drum", "melodic", or "arp"

	RhythmFP []byte
	PitchFP  []byte
	ComboFP  []byte

	Stats PatternStats
	Tags  []string
}

// PatternStats accumulates corpus-wide statistics about a Pattern, used to
// rank ClipQuery results by popularity.
type PatternStats struct {
	InstanceCount int
	SongCount     int
}

// Transform describes how a non-canonical instance maps back to its
// pattern's canonical representative.
type Transform struct {
	PitchOffset int     // semitones, median interval diff vs canonical
	TimeScale   float64 // ratio of grid lengths; 1.0 while lengths are bucketed
}

// PatternInstance records one occurrence of a Pattern in a song/track.
type PatternInstance struct {
	PatternID  string
	SongID     string
	TrackID    string
	StartBar   int
	Confidence float64 // 1.0 for the canonical instance, else similarity to canonical
	Transform  Transform
}
