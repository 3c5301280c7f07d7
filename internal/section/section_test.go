package section

import (
	"testing"

	"github.com/leafo/patterncorpus/internal/model"
)

func repeatingSong(bars int) *model.Song {
	song := &model.Song{
		SongID:     "sectionsong",
		TimeSigMap: []model.TimeSigSegment{{StartBar: 0, Numerator: 4, Denominator: 4}},
		EndBeat:    float64(bars) * 4,
	}
	var events []model.NoteEvent
	for bar := 0; bar < bars; bar++ {
		for beat := 0; beat < 4; beat++ {
			events = append(events, model.NoteEvent{
				StartBeat:     float64(bar)*4 + float64(beat),
				DurationBeats: 0.5,
				Pitch:         60,
				Velocity:      90,
			})
		}
	}
	song.Tracks = []model.Track{{TrackID: "t1", NoteEvents: events, RoleProbs: model.RoleProbs{model.RoleLead: 1.0}}}
	return song
}

func TestSegmentContiguousPrefixCoverage(t *testing.T) {
	song := repeatingSong(16)
	sections := New().Segment(song, nil)

	if len(sections) == 0 {
		t.Fatal("expected at least one section")
	}
	if sections[0].StartBar != 0 {
		t.Errorf("expected first section to start at bar 0, got %d", sections[0].StartBar)
	}
	for i := 1; i < len(sections); i++ {
		if sections[i].StartBar != sections[i-1].EndBar {
			t.Errorf("gap/overlap between section %d (end %d) and %d (start %d)", i-1, sections[i-1].EndBar, i, sections[i].StartBar)
		}
	}
	last := sections[len(sections)-1]
	expectedBars := song.BarAtBeat(song.EndBeat) + 1
	if last.EndBar != expectedBars {
		t.Errorf("expected last section to end at bar %d, got %d", expectedBars, last.EndBar)
	}
}

func TestFormLabelSequence(t *testing.T) {
	cases := map[int]string{0: "A", 1: "B", 25: "Z", 26: "AA", 27: "AB"}
	for n, want := range cases {
		if got := formLabel(n); got != want {
			t.Errorf("formLabel(%d) = %s, want %s", n, got, want)
		}
	}
}

func TestEmptySongNoSections(t *testing.T) {
	song := &model.Song{SongID: "empty"}
	if sections := New().Segment(song, nil); sections != nil {
		t.Errorf("expected nil sections for empty song, got %v", sections)
	}
}
