package metadata

import "testing"

func TestResolvePriorityMidiMetaWins(t *testing.T) {
	meta := MidiMeta{TrackName: "Daft Punk - One More Time"}
	got := Resolve(meta, "/library/Unsorted/track042.mid")
	if got.Artist != "Daft Punk" || got.Title != "One More Time" {
		t.Errorf("got %+v", got)
	}
	if got.Confidence <= MinConfidence {
		t.Errorf("expected confidence above threshold, got %f", got.Confidence)
	}
}

func TestResolveFallsBackToFolderStructure(t *testing.T) {
	meta := MidiMeta{}
	got := Resolve(meta, "/library/D/Daft Punk/One More Time.mid")
	if got.Artist != "Daft Punk" || got.Title != "One More Time" {
		t.Errorf("got %+v", got)
	}
}

func TestResolveFallsBackToFilename(t *testing.T) {
	meta := MidiMeta{}
	got := Resolve(meta, "/dumps/Daft Punk - One More Time-nonstop2k.com.mid")
	if got.Title == "" {
		t.Errorf("expected a non-empty title, got %+v", got)
	}
}

func TestFromMidiMetaTitleArtistOrder(t *testing.T) {
	got := fromMidiMeta(MidiMeta{Text: "One More Time / Daft Punk"})
	if got.Title != "One More Time" || got.Artist != "Daft Punk" {
		t.Errorf("got %+v", got)
	}
}

func TestFromMidiMetaNoSeparatorIsEmpty(t *testing.T) {
	got := fromMidiMeta(MidiMeta{TrackName: "untitled"})
	if got.Confidence != 0 {
		t.Errorf("expected zero confidence with no separator, got %+v", got)
	}
}

func TestFromFolderStructureRequiresLetterArtistTitle(t *testing.T) {
	if got := fromFolderStructure("/library/Daft Punk/One More Time.mid"); got.Confidence != 0 {
		t.Errorf("expected no match without the single-letter prefix directory, got %+v", got)
	}
	got := fromFolderStructure("/library/D/Daft Punk/One More Time.mid")
	if got.Artist != "Daft Punk" || got.Title != "One More Time" {
		t.Errorf("got %+v", got)
	}
}

func TestFromFilenameStripsTimestampAndDomain(t *testing.T) {
	got := fromFilename("/dumps/20230914-Daft Punk - One More Time-nonstop2k.com.mid")
	if got.Title == "" {
		t.Errorf("expected non-empty title, got %+v", got)
	}
}

func TestFromFilenameCapWordHeuristic(t *testing.T) {
	got := fromFilename("/dumps/daft punk feat someone - One More Time.mid")
	if got.Title != "One More Time" {
		t.Errorf("expected the more-capitalized side to be the title, got %+v", got)
	}
}

func TestFromFilenameEmptyBase(t *testing.T) {
	got := fromFilename("/dumps/20230914-nonstop2k.com.mid")
	if got.Confidence != 0 {
		t.Errorf("expected zero confidence for an all-stripped filename, got %+v", got)
	}
}
