package chord

import (
	"testing"

	"github.com/leafo/patterncorpus/internal/model"
)

func cMajorProgressionSong() *model.Song {
	// I (C-E-G) for 2 bars, then V (G-B-D) for 2 bars, in 4/4.
	var events []model.NoteEvent
	chordAt := func(beat float64, pitches []uint8) {
		for _, p := range pitches {
			events = append(events, model.NoteEvent{StartBeat: beat, DurationBeats: 4, Pitch: p, Velocity: 90})
		}
	}
	chordAt(0, []uint8{60, 64, 67})
	chordAt(4, []uint8{60, 64, 67})
	chordAt(8, []uint8{67, 71, 62})
	chordAt(12, []uint8{67, 71, 62})

	return &model.Song{
		SongID:     "chordsong",
		TimeSigMap: []model.TimeSigSegment{{StartBar: 0, Numerator: 4, Denominator: 4}},
		EndBeat:    16,
		Tracks:     []model.Track{{TrackID: "piano", NoteEvents: events}},
	}
}

func TestInferNonOverlappingContiguous(t *testing.T) {
	song := cMajorProgressionSong()
	key := model.KeyEstimate{Tonic: 0, Mode: model.ModeMajor}
	events := New().Infer(song, key)

	if len(events) == 0 {
		t.Fatal("expected at least one chord event")
	}
	for i := 1; i < len(events); i++ {
		if events[i].StartBeat < events[i-1].EndBeat {
			t.Errorf("event %d overlaps previous: start=%v prevEnd=%v", i, events[i].StartBeat, events[i-1].EndBeat)
		}
		gap := events[i].StartBeat - events[i-1].EndBeat
		if gap > 2.0 { // one half-bar window at 4/4
			t.Errorf("event %d has gap %v exceeding one window", i, gap)
		}
	}
	for _, e := range events {
		if e.EndBeat <= e.StartBeat {
			t.Errorf("expected EndBeat > StartBeat, got %+v", e)
		}
	}
}

func TestRomanNumeralCasing(t *testing.T) {
	key := model.KeyEstimate{Tonic: 0, Mode: model.ModeMajor}
	if got := romanNumeral(0, model.QualityMaj, key); got != "I" {
		t.Errorf("expected I, got %s", got)
	}
	if got := romanNumeral(9, model.QualityMin, key); got != "vi" {
		t.Errorf("expected vi, got %s", got)
	}
	if got := romanNumeral(11, model.QualityDim, key); got != "vii°" {
		t.Errorf("expected vii°, got %s", got)
	}
}

func TestEmptySongYieldsNoEvents(t *testing.T) {
	song := &model.Song{SongID: "empty"}
	key := model.KeyEstimate{}
	if events := New().Infer(song, key); len(events) != 0 {
		t.Errorf("expected no events for empty song, got %d", len(events))
	}
}
