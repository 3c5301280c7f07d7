package chunk

import (
	"bytes"
	"testing"

	"github.com/leafo/patterncorpus/internal/model"
)

func twoBarSong() (*model.Song, *model.Track) {
	song := &model.Song{
		SongID:     "song1",
		TempoMap:   []model.TempoSegment{{StartBeat: 0, MicrosecondsPerQuarter: 500000}},
		TimeSigMap: []model.TimeSigSegment{{StartBar: 0, Numerator: 4, Denominator: 4}},
		EndBeat:    8,
	}
	track := &model.Track{
		TrackID: "t1",
		NoteEvents: []model.NoteEvent{
			{StartBeat: 0, DurationBeats: 0.5, Pitch: 60, Velocity: 100},
			{StartBeat: 1, DurationBeats: 0.5, Pitch: 64, Velocity: 100},
			{StartBeat: 4, DurationBeats: 0.5, Pitch: 67, Velocity: 100},
		},
	}
	return song, track
}

func TestChunkNonOverlappingBarAligned(t *testing.T) {
	song, track := twoBarSong()
	chunks := New().Chunk(song, track)

	var oneBar []model.Chunk
	for _, c := range chunks {
		if c.LengthBars == 1 {
			oneBar = append(oneBar, c)
		}
	}
	if len(oneBar) != 2 {
		t.Fatalf("expected 2 one-bar chunks (bar 0 and bar 1 have onsets), got %d", len(oneBar))
	}
	if oneBar[0].StartBar != 0 || oneBar[1].StartBar != 1 {
		t.Errorf("expected bars 0 and 1, got %d and %d", oneBar[0].StartBar, oneBar[1].StartBar)
	}
}

func TestComboFingerprintDeterministic(t *testing.T) {
	song, track := twoBarSong()
	a := ChunkAndFingerprint(song, track, false)
	b := ChunkAndFingerprint(song, track, false)

	if len(a) != len(b) || len(a) == 0 {
		t.Fatalf("expected matching non-empty chunk sets, got %d and %d", len(a), len(b))
	}
	for i := range a {
		if !bytes.Equal(a[i].Fingerprint.ComboFP, b[i].Fingerprint.ComboFP) {
			t.Errorf("chunk %d: combo_fp differs across reruns", i)
		}
		if a[i].Fingerprint.PatternID() != b[i].Fingerprint.PatternID() {
			t.Errorf("chunk %d: pattern_id differs across reruns", i)
		}
	}
}

func TestRhythmFingerprintBitLength(t *testing.T) {
	song, track := twoBarSong()
	chunks := ChunkAndFingerprint(song, track, false)
	for _, c := range chunks {
		wantBits := c.LengthBars * c.GridStepsPerBar
		wantBytes := (wantBits + 7) / 8
		fp := NewFingerprinter()
		// Recompute the raw bitset length (pre-hash) via the same packing
		// the fingerprinter uses, by checking the unweighted bitset size.
		bits := binaryBitset(c, c.GridLength())
		if len(bits) != wantBytes {
			t.Errorf("length_bars=%d grid=%d: bitset has %d bytes, want %d", c.LengthBars, c.GridStepsPerBar, len(bits), wantBytes)
		}
		_ = fp
	}
}

func TestPitchFingerprintTranspositionInvariant(t *testing.T) {
	song, track := twoBarSong()
	original := ChunkAndFingerprint(song, track, false)

	transposed := &model.Track{TrackID: track.TrackID}
	for _, ev := range track.NoteEvents {
		shifted := ev
		shifted.Pitch = ev.Pitch + 7
		transposed.NoteEvents = append(transposed.NoteEvents, shifted)
	}
	shiftedChunks := ChunkAndFingerprint(song, transposed, false)

	if len(original) != len(shiftedChunks) {
		t.Fatalf("expected same chunk count after transposition, got %d vs %d", len(original), len(shiftedChunks))
	}
	for i := range original {
		if !bytes.Equal(original[i].Fingerprint.PitchFP, shiftedChunks[i].Fingerprint.PitchFP) {
			t.Errorf("chunk %d: pitch_fp changed under transposition", i)
		}
		if !bytes.Equal(original[i].Fingerprint.RhythmFP, shiftedChunks[i].Fingerprint.RhythmFP) {
			t.Errorf("chunk %d: rhythm_fp changed under transposition (should be pitch-independent)", i)
		}
	}
}

func TestWeightedVariantDiffersFromBinary(t *testing.T) {
	song, track := twoBarSong()
	binary := ChunkAndFingerprint(song, track, false)
	weighted := ChunkAndFingerprint(song, track, true)

	if len(binary) == 0 || len(weighted) == 0 {
		t.Fatal("expected non-empty chunk sets")
	}
	if bytes.Equal(binary[0].Fingerprint.RhythmFP, weighted[0].Fingerprint.RhythmFP) {
		t.Errorf("expected weighted and binary rhythm_fp to differ for a uniform-velocity fixture's prefix bytes at minimum")
	}
}

func TestDrumAndMelodicShapeJSON(t *testing.T) {
	song, track := twoBarSong()
	chunks := New().Chunk(song, track)
	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}

	drum := DrumShape(chunks[0])
	if _, err := drum.MarshalJSON(); err != nil {
		t.Errorf("drum MarshalJSON failed: %v", err)
	}
	if drum.StepsPerBar != chunks[0].GridStepsPerBar {
		t.Errorf("expected stepsPerBar %d, got %d", chunks[0].GridStepsPerBar, drum.StepsPerBar)
	}

	melodic := MelodicShape(chunks[0])
	if _, err := melodic.MarshalJSON(); err != nil {
		t.Errorf("melodic MarshalJSON failed: %v", err)
	}
	if len(melodic.Events) != len(chunks[0].Onsets) {
		t.Errorf("expected %d melodic events, got %d", len(chunks[0].Onsets), len(melodic.Events))
	}
}

// TestPitchIntervalsRelativeToFirstOnset pins spec.md scenario 8.2: the
// pitch sequence C4-E4-G4-C5-G4-E4 must encode [0,4,7,12,7,4], the
// semitone offset of every onset from the chunk's first onset (not
// consecutive onset-to-onset deltas).
func TestPitchIntervalsRelativeToFirstOnset(t *testing.T) {
	c := model.Chunk{
		Onsets: []model.NoteEvent{
			{Pitch: 60}, // C4
			{Pitch: 64}, // E4
			{Pitch: 67}, // G4
			{Pitch: 72}, // C5
			{Pitch: 67}, // G4
			{Pitch: 64}, // E4
		},
	}
	want := []int{0, 4, 7, 12, 7, 4}
	got := PitchIntervals(c)
	if len(got) != len(want) {
		t.Fatalf("PitchIntervals length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("PitchIntervals[%d] = %d, want %d (full: %v)", i, got[i], want[i], got)
		}
	}
}

func TestEmptyTrackYieldsNoChunks(t *testing.T) {
	song := &model.Song{
		SongID:     "song2",
		TimeSigMap: []model.TimeSigSegment{{StartBar: 0, Numerator: 4, Denominator: 4}},
	}
	track := &model.Track{TrackID: "empty"}
	if chunks := New().Chunk(song, track); chunks != nil {
		t.Errorf("expected nil chunks for empty track, got %v", chunks)
	}
}
