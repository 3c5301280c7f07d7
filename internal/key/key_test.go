package key

import (
	"testing"

	"github.com/leafo/patterncorpus/internal/model"
)

// cMajorSong builds a song whose single melodic track plays a C-major
// scale repeatedly, weighted toward the tonic, with one drum-labeled
// track (which should be excluded from the histogram).
func cMajorSong() *model.Song {
	scale := []uint8{60, 62, 64, 65, 67, 69, 71} // C D E F G A B
	var events []model.NoteEvent
	beat := 0.0
	for rep := 0; rep < 4; rep++ {
		for _, p := range scale {
			dur := 0.5
			if p == 60 {
				dur = 2.0 // weight the tonic heavily
			}
			events = append(events, model.NoteEvent{StartBeat: beat, DurationBeats: dur, Pitch: p, Velocity: 90})
			beat += 1.0
		}
	}

	drumEvents := []model.NoteEvent{
		{StartBeat: 0, DurationBeats: 0.1, Pitch: 36, Velocity: 100, Channel: 9},
		{StartBeat: 1, DurationBeats: 0.1, Pitch: 42, Velocity: 100, Channel: 9},
	}

	return &model.Song{
		SongID:  "keysong",
		EndBeat: beat,
		Tracks: []model.Track{
			{TrackID: "melody", NoteEvents: events},
			{TrackID: "drums", NoteEvents: drumEvents, Features: &model.Features{DrumLikeness: 0.9}},
		},
	}
}

func TestDetectCMajor(t *testing.T) {
	song := cMajorSong()
	est := New().Detect(song)

	if est.Tonic != 0 {
		t.Errorf("expected tonic C (0), got %d", est.Tonic)
	}
	if est.Mode != model.ModeMajor {
		t.Errorf("expected major mode, got %v", est.Mode)
	}
	if est.Confidence <= 0 {
		t.Errorf("expected positive confidence, got %v", est.Confidence)
	}
}

func TestConfidenceBounded(t *testing.T) {
	song := cMajorSong()
	est := New().Detect(song)
	if est.Confidence < 0 || est.Confidence > 1 {
		t.Errorf("expected confidence in [0,1], got %v", est.Confidence)
	}
	if est.StabilitySamples < 0 || est.StabilitySamples > 1 {
		t.Errorf("expected stability_samples in [0,1], got %v", est.StabilitySamples)
	}
}

func TestEmptySongNoPanic(t *testing.T) {
	song := &model.Song{SongID: "empty"}
	est := New().Detect(song)
	if est.Confidence != 0 {
		t.Errorf("expected zero confidence for empty song, got %v", est.Confidence)
	}
}
