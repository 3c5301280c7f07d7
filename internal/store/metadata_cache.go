package store

import (
	"time"

	"github.com/leafo/patterncorpus/internal/corpuserr"
)

// CacheEntry mirrors metadata_cache's row shape (spec.md §6), keyed by
// lowercased-and-normalized (artist, title) per spec.md §5.
type CacheEntry struct {
	Key       string
	Source    string
	FetchedAt time.Time
	Payload   string
}

// PutCacheEntry upserts a metadata_cache row, including negative entries
// recorded after ExternalServiceError's retry budget is exhausted
// (spec.md §7: "record the failure ... with a short negative-TTL").
func (d *DB) PutCacheEntry(entry CacheEntry) error {
	return d.withWriteLock(func() error {
		_, err := d.conn.Exec(`
			INSERT INTO metadata_cache (key, source, fetched_at, payload)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET
				source = excluded.source,
				fetched_at = excluded.fetched_at,
				payload = excluded.payload
		`, entry.Key, entry.Source, entry.FetchedAt, entry.Payload)
		if err != nil {
			return corpuserr.Wrap(corpuserr.Store, "upsert metadata_cache", err)
		}
		return nil
	})
}

// GetCacheEntry reads a cache row. Its bool is true only when the row was
// found and is still within ttl of its FetchedAt; a stale row is returned
// with false, and a missing row (or a read error) gives an empty entry,
// false and a nil error.
func (d *DB) GetCacheEntry(key string, ttl time.Duration) (CacheEntry, bool, error) {
	row := d.conn.QueryRow("SELECT key, source, fetched_at, payload FROM metadata_cache WHERE key = ?", key)
	var entry CacheEntry
	if err := row.Scan(&entry.Key, &entry.Source, &entry.FetchedAt, &entry.Payload); err != nil {
		return CacheEntry{}, false, nil
	}
	if time.Since(entry.FetchedAt) > ttl {
		return entry, false, nil
	}
	return entry, true, nil
}
