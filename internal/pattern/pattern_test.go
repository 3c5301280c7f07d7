package pattern

import (
	"testing"

	"github.com/leafo/patterncorpus/internal/chunk"
	"github.com/leafo/patterncorpus/internal/model"
)

func fourOnFloorSong() (*model.Song, *model.Track) {
	song := &model.Song{
		SongID:     "songA",
		TempoMap:   []model.TempoSegment{{StartBeat: 0, MicrosecondsPerQuarter: 500000}},
		TimeSigMap: []model.TimeSigSegment{{StartBar: 0, Numerator: 4, Denominator: 4}},
		EndBeat:    4,
	}
	track := &model.Track{
		TrackID: "trackA",
		Channel: 9,
		NoteEvents: []model.NoteEvent{
			{StartBeat: 0, DurationBeats: 0.1, Pitch: 36, Velocity: 100, Channel: 9},
			{StartBeat: 1, DurationBeats: 0.1, Pitch: 38, Velocity: 100, Channel: 9},
			{StartBeat: 2, DurationBeats: 0.1, Pitch: 36, Velocity: 100, Channel: 9},
			{StartBeat: 3, DurationBeats: 0.1, Pitch: 38, Velocity: 100, Channel: 9},
		},
	}
	return song, track
}

func recordsFromChunks(songID, trackID string, role model.Role, chunks []model.Chunk) []ChunkRecord {
	recs := make([]ChunkRecord, len(chunks))
	for i, c := range chunks {
		recs[i] = ChunkRecord{
			SongID:   songID,
			TrackID:  trackID,
			Role:     role,
			Meter:    "4/4",
			StartBar: c.StartBar,
			Chunk:    c,
		}
	}
	return recs
}

func TestMineExactDuplicatesAcrossSongs(t *testing.T) {
	songA, trackA := fourOnFloorSong()
	chunksA := chunk.ChunkAndFingerprint(songA, trackA, false)

	songB, trackB := fourOnFloorSong()
	songB.SongID = "songB"
	trackB.TrackID = "trackB"
	chunksB := chunk.ChunkAndFingerprint(songB, trackB, false)

	var records []ChunkRecord
	records = append(records, recordsFromChunks("songA", "trackA", model.RoleDrums, chunksA)...)
	records = append(records, recordsFromChunks("songB", "trackB", model.RoleDrums, chunksB)...)

	patterns, instances := New().Mine(records)
	if len(patterns) == 0 {
		t.Fatal("expected at least one mined pattern")
	}

	// The identical 1-bar chunk should collapse into a single pattern
	// with instances from both songs.
	found := false
	for _, p := range patterns {
		if p.LengthBars == 1 && p.Stats.SongCount == 2 {
			found = true
			if p.Stats.InstanceCount < 2 {
				t.Errorf("expected instance count >= 2, got %d", p.Stats.InstanceCount)
			}
		}
	}
	if !found {
		t.Error("expected a 1-bar pattern shared by both songs")
	}

	for _, inst := range instances {
		foundPattern := false
		for _, p := range patterns {
			if p.PatternID == inst.PatternID {
				foundPattern = true
			}
		}
		if !foundPattern {
			t.Errorf("instance references unknown pattern_id %s", inst.PatternID)
		}
	}
}

func TestMinedPatternsSortedByPatternID(t *testing.T) {
	songA, trackA := fourOnFloorSong()
	chunksA := chunk.ChunkAndFingerprint(songA, trackA, false)
	records := recordsFromChunks("songA", "trackA", model.RoleDrums, chunksA)

	patterns, _ := New().Mine(records)
	for i := 1; i < len(patterns); i++ {
		if patterns[i].PatternID < patterns[i-1].PatternID {
			t.Errorf("expected patterns sorted by pattern_id, got %s before %s", patterns[i-1].PatternID, patterns[i].PatternID)
		}
	}
}

func TestHammingDistanceAndEditDistance(t *testing.T) {
	a := []byte{0b10101010}
	b := []byte{0b10101011}
	if d := hammingDistance(a, b); d != 1 {
		t.Errorf("expected hamming distance 1, got %d", d)
	}

	if d := levenshtein([]int{1, 2, 3}, []int{1, 2, 3}); d != 0 {
		t.Errorf("expected 0 edit distance for identical sequences, got %d", d)
	}
	if d := levenshtein([]int{1, 2, 3}, []int{1, 2, 4}); d != 1 {
		t.Errorf("expected edit distance 1 for single substitution, got %d", d)
	}
}
