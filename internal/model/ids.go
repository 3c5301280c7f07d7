package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// SongIDFromContent derives a stable song_id from the raw MIDI bytes, so
// reparsing the same file always yields the same id (spec.md §3: "song_id
// (stable hash of content)").
func SongIDFromContent(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:16])
}

// TrackID derives a stable track_id from its song and index plus name, so
// two tracks with the same name in the same song don't collide.
func TrackID(songID string, index int, name string) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s/%d/%s", songID, index, name)))
	return hex.EncodeToString(h[:12])
}
