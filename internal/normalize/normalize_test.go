package normalize

import (
	"bytes"
	"testing"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

func buildTestSMF(t *testing.T) []byte {
	t.Helper()

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(480)

	var track0 smf.Track
	track0.Add(0, smf.MetaTempo(120.0))
	track0.Add(0, smf.MetaTimeSig(4, 4, 24, 8)) // 4/4
	track0.Add(0, smf.MetaTrackSequenceName("Conductor"))
	track0.Close(0)
	s.Add(track0)

	var track1 smf.Track
	track1.Add(0, smf.MetaTrackSequenceName("Kick"))
	track1.Add(0, midi.NoteOn(9, 36, 100))
	track1.Add(240, midi.NoteOff(9, 36))
	track1.Add(240, midi.NoteOn(9, 36, 100))
	track1.Add(240, midi.NoteOff(9, 36))
	track1.Close(0)
	s.Add(track1)

	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		t.Fatalf("write test smf: %v", err)
	}
	return buf.Bytes()
}

func TestNormalizeBasic(t *testing.T) {
	raw := buildTestSMF(t)

	n := New()
	song, err := n.Normalize(raw, "test.mid")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	if song.SongID == "" {
		t.Fatal("expected non-empty song id")
	}
	if len(song.TempoMap) == 0 || song.TempoMap[0].MicrosecondsPerQuarter != 500000 {
		t.Fatalf("expected 120bpm tempo map entry, got %+v", song.TempoMap)
	}
	if len(song.TimeSigMap) == 0 || song.TimeSigMap[0].Numerator != 4 || song.TimeSigMap[0].Denominator != 4 {
		t.Fatalf("expected 4/4 time sig, got %+v", song.TimeSigMap)
	}

	if len(song.Tracks) != 2 {
		t.Fatalf("expected 2 tracks, got %d", len(song.Tracks))
	}

	kickTrack := song.Tracks[1]
	if kickTrack.Name != "Kick" {
		t.Fatalf("expected track named Kick, got %q", kickTrack.Name)
	}
	if len(kickTrack.NoteEvents) != 2 {
		t.Fatalf("expected 2 note events, got %d", len(kickTrack.NoteEvents))
	}
	if kickTrack.NoteEvents[0].StartBeat != 0 {
		t.Fatalf("expected first note at beat 0, got %v", kickTrack.NoteEvents[0].StartBeat)
	}
	if kickTrack.NoteEvents[1].StartBeat != 1.0 {
		t.Fatalf("expected second note at beat 1, got %v", kickTrack.NoteEvents[1].StartBeat)
	}
}

func TestNormalizeDeterministic(t *testing.T) {
	raw := buildTestSMF(t)
	n := New()

	first, err := n.Normalize(raw, "a.mid")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	second, err := n.Normalize(raw, "b.mid")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	if first.SongID != second.SongID {
		t.Fatalf("expected stable song id regardless of source_path, got %q vs %q", first.SongID, second.SongID)
	}
}

func TestNormalizeUnmatchedNoteOnWarns(t *testing.T) {
	s := smf.New()
	s.TimeFormat = smf.MetricTicks(480)

	var track0 smf.Track
	track0.Add(0, smf.MetaTempo(120.0))
	track0.Close(0)
	s.Add(track0)

	var track1 smf.Track
	track1.Add(0, midi.NoteOn(0, 60, 90))
	track1.Close(0)
	s.Add(track1)

	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		t.Fatalf("write: %v", err)
	}

	n := New()
	song, err := n.Normalize(buf.Bytes(), "unmatched.mid")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(song.Warnings) == 0 {
		t.Fatal("expected a warning for the unmatched note-on")
	}
	if len(song.Tracks[1].NoteEvents) != 0 {
		t.Fatalf("expected unmatched note-on to be discarded, got %d events", len(song.Tracks[1].NoteEvents))
	}
}
