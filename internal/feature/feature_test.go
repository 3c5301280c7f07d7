package feature

import (
	"testing"

	"github.com/leafo/patterncorpus/internal/model"
)

func fourOnTheFloorSong() (*model.Song, *model.Track) {
	song := &model.Song{
		SongID:     "song1",
		TempoMap:   []model.TempoSegment{{StartBeat: 0, MicrosecondsPerQuarter: 500000}},
		TimeSigMap: []model.TimeSigSegment{{StartBar: 0, Numerator: 4, Denominator: 4}},
		EndBeat:    4,
	}
	track := &model.Track{
		TrackID: "t1",
		Channel: 9,
		NoteEvents: []model.NoteEvent{
			{StartBeat: 0, DurationBeats: 0.1, Pitch: 36, Velocity: 100, Channel: 9},
			{StartBeat: 1, DurationBeats: 0.1, Pitch: 36, Velocity: 100, Channel: 9},
			{StartBeat: 2, DurationBeats: 0.1, Pitch: 36, Velocity: 100, Channel: 9},
			{StartBeat: 3, DurationBeats: 0.1, Pitch: 36, Velocity: 100, Channel: 9},
		},
	}
	return song, track
}

func TestExtractFourOnTheFloor(t *testing.T) {
	song, track := fourOnTheFloorSong()
	f := New().Extract(song, track)

	if f.Density != 4 {
		t.Errorf("expected density 4, got %v", f.Density)
	}
	if f.DrumLikeness < 0.5 {
		t.Errorf("expected high drum likeness for channel-10 short notes, got %v", f.DrumLikeness)
	}
	if f.DownbeatRatio != 0.25 {
		t.Errorf("expected one of four onsets on the bar downbeat, got %v", f.DownbeatRatio)
	}
	if f.Syncopation != 0 {
		t.Errorf("expected zero syncopation for on-the-beat kicks, got %v", f.Syncopation)
	}
}

func TestExtractEmptyTrack(t *testing.T) {
	song := &model.Song{
		SongID:     "song2",
		TimeSigMap: []model.TimeSigSegment{{StartBar: 0, Numerator: 4, Denominator: 4}},
	}
	track := &model.Track{TrackID: "t2"}

	f := New().Extract(song, track)
	if f.Density != 0 || f.PitchRange != 0 {
		t.Errorf("expected zero-valued features for empty track, got %+v", f)
	}
}

func TestPolyphonyRatioSingleVoice(t *testing.T) {
	events := []model.NoteEvent{
		{StartBeat: 0, DurationBeats: 1},
		{StartBeat: 1, DurationBeats: 1},
	}
	if got := polyphonyRatio(events); got != 0 {
		t.Errorf("expected 0 polyphony ratio for non-overlapping notes, got %v", got)
	}
}
