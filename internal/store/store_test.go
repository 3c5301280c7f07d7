package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/leafo/patterncorpus/internal/corpuserr"
	"github.com/leafo/patterncorpus/internal/model"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "corpus.db"), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func samplePattern(id string, instances int) *model.Pattern {
	return &model.Pattern{
		PatternID:      id,
		Role:           model.RoleDrums,
		LengthBars:     1,
		Meter:          "4/4",
		GridResolution: 16,
		RhythmFP:       []byte{1, 2, 3},
		PitchFP:        []byte{4, 5, 6},
		ComboFP:        []byte{7, 8, 9},
		Representation: "drum",
		Stats:          model.PatternStats{InstanceCount: instances},
	}
}

// putSongWithTrack stores a minimal song with one track, so that the
// song_id and track_id foreign keys of pattern_instances resolve.
func putSongWithTrack(t *testing.T, db *DB, songID, trackID string) {
	t.Helper()
	song := &model.Song{
		SongID:     songID,
		SourcePath: "/x/" + songID + ".mid",
		Tracks:     []model.Track{{TrackID: trackID, SongID: songID}},
	}
	if err := db.PutSong(song, corpuserr.StatusOK); err != nil {
		t.Fatalf("PutSong %s: %v", songID, err)
	}
}

func TestPutSongAndGetSongRoundTrip(t *testing.T) {
	db := openTestDB(t)
	song := &model.Song{
		SongID:     "song1",
		SourcePath: "/x/song1.mid",
		TimeSigMap: []model.TimeSigSegment{{StartBar: 0, Numerator: 4, Denominator: 4}},
		Artist:     "Daft Punk",
		Title:      "One More Time",
		Genres:     []string{"house", "french-touch"},
		Key:        &model.KeyEstimate{Tonic: 0, Mode: model.ModeMajor},
		Tracks: []model.Track{
			{TrackID: "t1", SongID: "song1", Name: "drums", RoleProbs: model.RoleProbs{model.RoleDrums: 1.0}},
		},
	}

	if err := db.PutSong(song, corpuserr.StatusOK); err != nil {
		t.Fatalf("PutSong: %v", err)
	}
	// Re-run to confirm upsert idempotence (no unique-constraint error).
	if err := db.PutSong(song, corpuserr.StatusOK); err != nil {
		t.Fatalf("PutSong (second call): %v", err)
	}

	got, err := db.GetSong("song1")
	if err != nil {
		t.Fatalf("GetSong: %v", err)
	}
	if got.Artist != "Daft Punk" || got.Title != "One More Time" {
		t.Errorf("got %+v", got)
	}
	if got.Key == nil || got.Key.Mode != model.ModeMajor {
		t.Errorf("expected major key, got %+v", got.Key)
	}
}

func TestPatternInstanceRequiresExistingPattern(t *testing.T) {
	db := openTestDB(t)
	inst := &model.PatternInstance{PatternID: "missing", SongID: "s1", TrackID: "t1", StartBar: 0, Confidence: 1.0}
	err := db.PutPatternInstance(inst)
	if err == nil {
		t.Fatal("expected error for instance referencing a missing pattern")
	}
	if !corpuserr.IsKind(err, corpuserr.InvariantViolation) {
		t.Errorf("expected InvariantViolation, got %v", err)
	}
}

func TestPatternInstanceBumpsStats(t *testing.T) {
	db := openTestDB(t)
	p := samplePattern("pat1", 0)
	if err := db.PutPattern(p); err != nil {
		t.Fatalf("PutPattern: %v", err)
	}

	for i, songID := range []string{"songA", "songB"} {
		putSongWithTrack(t, db, songID, "trk")
		inst := &model.PatternInstance{PatternID: "pat1", SongID: songID, TrackID: "trk", StartBar: i, Confidence: 1.0}
		if err := db.PutPatternInstance(inst); err != nil {
			t.Fatalf("PutPatternInstance: %v", err)
		}
	}

	results, err := db.Query(ClipQuery{Role: model.RoleDrums, Limit: 10})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 pattern, got %d", len(results))
	}
	if results[0].Pattern.Stats.InstanceCount != 2 || results[0].Pattern.Stats.SongCount != 2 {
		t.Errorf("expected stats to reflect 2 instances/2 songs, got %+v", results[0].Pattern.Stats)
	}
}

func TestQueryOrdersByPopularityThenPatternID(t *testing.T) {
	db := openTestDB(t)
	putSongWithTrack(t, db, "s", "t")
	putSongWithTrack(t, db, "s2", "t2")
	if err := db.PutPattern(samplePattern("b000", 1)); err != nil {
		t.Fatal(err)
	}
	if err := db.PutPattern(samplePattern("a000", 1)); err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{"a000", "b000"} {
		if err := db.PutPatternInstance(&model.PatternInstance{PatternID: id, SongID: "s", TrackID: "t", StartBar: 0, Confidence: 1.0}); err != nil {
			t.Fatal(err)
		}
	}
	if err := db.PutPattern(samplePattern("c000", 5)); err != nil {
		t.Fatal(err)
	}
	// Each PutPatternInstance recounts stats from the stored instances, so
	// c000's popularity comes from its two instances, not the 5 given above.
	for _, bar := range []int{0, 1} {
		if err := db.PutPatternInstance(&model.PatternInstance{PatternID: "c000", SongID: "s2", TrackID: "t2", StartBar: bar, Confidence: 1.0}); err != nil {
			t.Fatal(err)
		}
	}

	results, err := db.Query(ClipQuery{Role: model.RoleDrums, Limit: 10})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 patterns, got %d", len(results))
	}
	if results[0].Pattern.PatternID != "c000" {
		t.Errorf("expected most popular pattern first, got %s", results[0].Pattern.PatternID)
	}
	if results[1].Pattern.PatternID != "a000" || results[2].Pattern.PatternID != "b000" {
		t.Errorf("expected tie-break by pattern_id ascending, got %s then %s", results[1].Pattern.PatternID, results[2].Pattern.PatternID)
	}
}

func TestMetadataCacheTTL(t *testing.T) {
	db := openTestDB(t)
	entry := CacheEntry{Key: "daft punk|one more time", Source: "musicbrainz", FetchedAt: time.Now(), Payload: `{"sources":{}}`}
	if err := db.PutCacheEntry(entry); err != nil {
		t.Fatalf("PutCacheEntry: %v", err)
	}

	got, fresh, err := db.GetCacheEntry(entry.Key, 24*time.Hour)
	if err != nil {
		t.Fatalf("GetCacheEntry: %v", err)
	}
	if !fresh || got.Source != "musicbrainz" {
		t.Errorf("expected fresh cache hit, got fresh=%v entry=%+v", fresh, got)
	}

	_, fresh, err = db.GetCacheEntry(entry.Key, -1*time.Second)
	if err != nil {
		t.Fatalf("GetCacheEntry: %v", err)
	}
	if fresh {
		t.Error("expected ttl of -1s to make the entry stale")
	}
}
