// Package model holds the data entities shared by every analysis stage:
// songs, tracks, note events, tempo/meter maps, features, role
// probabilities, chunks, fingerprints, patterns, keys, chords, and
// sections. None of these types perform analysis themselves; they are the
// nouns the rest of the packages operate on.
package model

import "fmt"

// TempoSegment is one constant-tempo span of a song, in beat-domain
// coordinates. Segments are non-overlapping and sorted by StartBeat.
type TempoSegment struct {
	StartBeat            float64
	MicrosecondsPerQuarter int
}

// TimeSigSegment is one constant-meter span of a song, addressed by bar
// number rather than beat, since bar length depends on the meter itself.
type TimeSigSegment struct {
	StartBar   int
	Numerator  int
	Denominator int // 1, 2, 4, 8, 16, or 32
}

// NoteEvent is a single sounding note in beat-domain coordinates.
type NoteEvent struct {
	StartBeat    float64
	DurationBeats float64
	Pitch        uint8 // 0..127
	Velocity     uint8 // 1..127, never 0 (note-on vel 0 is an implicit note-off)
	Channel      uint8
}

// EndBeat is a convenience accessor for StartBeat + DurationBeats.
func (n NoteEvent) EndBeat() float64 {
	return n.StartBeat + n.DurationBeats
}

// Track is one MIDI track's worth of normalized note events, plus whatever
// later stages have computed about it.
type Track struct {
	TrackID    string
	SongID     string
	Name       string
	Channel    uint8
	NoteEvents []NoteEvent

	Features  *Features
	RoleProbs RoleProbs
}

// Song is the normalized, immutable-after-construction representation of
// one MIDI file. Tempo and meter maps cover [0, EndBeat] without gaps.
type Song struct {
	SongID     string
	SourcePath string

	TempoMap   []TempoSegment
	TimeSigMap []TimeSigSegment
	EndBeat    float64

	Tracks []Track

	Artist string
	Title  string
	Genres []string
	Tags   []string

	Key    *KeyEstimate
	Chords []ChordEvent
	Sections []Section
	Arps   []ArpAggregate

	// Warnings accumulates downgraded NormalizationErrors (see
	// internal/corpuserr) so callers can derive an analysis_status without
	// re-walking the normalization pass.
	Warnings []string
}

// BarStartBeat returns the beat at which bar (0-indexed) begins, by walking
// the time-signature map. Bars before the first segment are assumed to be
// in the first segment's meter.
func (s *Song) BarStartBeat(bar int) float64 {
	if len(s.TimeSigMap) == 0 {
		return float64(bar) * 4.0
	}

	beat := 0.0
	curBar := 0
	for i, seg := range s.TimeSigMap {
		beatsPerBar := beatsPerBar(seg)

		var barsInSegment int
		if i+1 < len(s.TimeSigMap) {
			barsInSegment = s.TimeSigMap[i+1].StartBar - seg.StartBar
		} else {
			barsInSegment = bar - curBar + 1
			if barsInSegment < 0 {
				barsInSegment = 0
			}
		}

		if bar < curBar+barsInSegment || i+1 >= len(s.TimeSigMap) {
			return beat + float64(bar-curBar)*beatsPerBar
		}

		beat += float64(barsInSegment) * beatsPerBar
		curBar += barsInSegment
	}

	return beat
}

// BarAtBeat returns the bar index containing the given beat.
func (s *Song) BarAtBeat(b float64) int {
	if len(s.TimeSigMap) == 0 {
		return int(b / 4.0)
	}

	beat := 0.0
	curBar := 0
	for i, seg := range s.TimeSigMap {
		beatsPerBar := beatsPerBar(seg)

		var barsInSegment int
		if i+1 < len(s.TimeSigMap) {
			barsInSegment = s.TimeSigMap[i+1].StartBar - seg.StartBar
		} else {
			// last segment: run until b
			if beatsPerBar <= 0 {
				return curBar
			}
			remaining := b - beat
			if remaining < 0 {
				remaining = 0
			}
			return curBar + int(remaining/beatsPerBar)
		}

		segEndBeat := beat + float64(barsInSegment)*beatsPerBar
		if b < segEndBeat {
			return curBar + int((b-beat)/beatsPerBar)
		}

		beat = segEndBeat
		curBar += barsInSegment
	}

	return curBar
}

// TimeSigAtBar returns the effective time signature in force at bar.
func (s *Song) TimeSigAtBar(bar int) TimeSigSegment {
	if len(s.TimeSigMap) == 0 {
		return TimeSigSegment{StartBar: 0, Numerator: 4, Denominator: 4}
	}
	result := s.TimeSigMap[0]
	for _, seg := range s.TimeSigMap {
		if seg.StartBar > bar {
			break
		}
		result = seg
	}
	return result
}

func beatsPerBar(seg TimeSigSegment) float64 {
	if seg.Denominator <= 0 {
		return 4.0
	}
	// numerator beats of (1/denominator) note length, expressed in quarter
	// notes: numerator * (4.0 / denominator).
	return float64(seg.Numerator) * (4.0 / float64(seg.Denominator))
}

// Validate checks the invariants spec.md §3 requires of a Song. It is used
// by the pipeline to fail fast on InvariantViolation-class
// bugs rather than persist corrupt rows.
func (s *Song) Validate() error {
	if s.SongID == "" {
		return fmt.Errorf("song: missing song_id")
	}
	for i := 1; i < len(s.TempoMap); i++ {
		if s.TempoMap[i].StartBeat < s.TempoMap[i-1].StartBeat {
			return fmt.Errorf("song: tempo_map out of order at index %d", i)
		}
	}
	for i := 1; i < len(s.TimeSigMap); i++ {
		if s.TimeSigMap[i].StartBar < s.TimeSigMap[i-1].StartBar {
			return fmt.Errorf("song: time_sig_map out of order at index %d", i)
		}
	}
	for _, t := range s.Tracks {
		for i := 1; i < len(t.NoteEvents); i++ {
			if t.NoteEvents[i].StartBeat < t.NoteEvents[i-1].StartBeat {
				return fmt.Errorf("song: track %s note events unsorted", t.TrackID)
			}
		}
	}
	return nil
}
