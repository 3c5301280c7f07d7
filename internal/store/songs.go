package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/leafo/patterncorpus/internal/corpuserr"
	"github.com/leafo/patterncorpus/internal/model"
)

// PutSong upserts a song and all of its tracks. It is idempotent: calling
// it twice with the same SongID overwrites rather than duplicates,
// matching spec.md invariant "running the pipeline twice yields identical
// rows".
func (d *DB) PutSong(song *model.Song, status corpuserr.AnalysisStatus) error {
	return d.withWriteLock(func() error {
		tempoMap, err := json.Marshal(song.TempoMap)
		if err != nil {
			return corpuserr.Wrap(corpuserr.Store, "marshal tempo_map", err)
		}
		timeSigMap, err := json.Marshal(song.TimeSigMap)
		if err != nil {
			return corpuserr.Wrap(corpuserr.Store, "marshal time_sig_map", err)
		}

		var tonic sql.NullInt64
		var mode sql.NullString
		if song.Key != nil {
			tonic = sql.NullInt64{Int64: int64(song.Key.Tonic), Valid: true}
			mode = sql.NullString{String: string(song.Key.Mode), Valid: true}
		}

		_, err = d.conn.Exec(`
			INSERT INTO songs (song_id, source_path, tempo_map, time_sig_map, detected_tonic, detected_mode, artist, title, genres, tags, analysis_status)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(song_id) DO UPDATE SET
				source_path = excluded.source_path,
				tempo_map = excluded.tempo_map,
				time_sig_map = excluded.time_sig_map,
				detected_tonic = excluded.detected_tonic,
				detected_mode = excluded.detected_mode,
				artist = excluded.artist,
				title = excluded.title,
				genres = excluded.genres,
				tags = excluded.tags,
				analysis_status = excluded.analysis_status
		`, song.SongID, song.SourcePath, string(tempoMap), string(timeSigMap), tonic, mode,
			song.Artist, song.Title, strings.Join(song.Genres, ","), strings.Join(song.Tags, ","), string(status))
		if err != nil {
			return corpuserr.Wrap(corpuserr.Store, "upsert song", err)
		}

		for i := range song.Tracks {
			if err := d.putTrack(&song.Tracks[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (d *DB) putTrack(track *model.Track) error {
	roleProbs, err := json.Marshal(track.RoleProbs)
	if err != nil {
		return corpuserr.Wrap(corpuserr.Store, "marshal role_probs", err)
	}
	var features sql.NullString
	if track.Features != nil {
		b, err := json.Marshal(track.Features)
		if err != nil {
			return corpuserr.Wrap(corpuserr.Store, "marshal features", err)
		}
		features = sql.NullString{String: string(b), Valid: true}
	}

	_, err = d.conn.Exec(`
		INSERT INTO tracks (track_id, song_id, name, channel, role_probs, features)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(track_id) DO UPDATE SET
			name = excluded.name,
			channel = excluded.channel,
			role_probs = excluded.role_probs,
			features = excluded.features
	`, track.TrackID, track.SongID, track.Name, track.Channel, string(roleProbs), features)
	if err != nil {
		return corpuserr.Wrap(corpuserr.Store, fmt.Sprintf("upsert track %s", track.TrackID), err)
	}
	return nil
}

// GetSong retrieves a song's row by id. Tracks are not populated.
func (d *DB) GetSong(songID string) (*model.Song, error) {
	row := d.conn.QueryRow(`
		SELECT song_id, source_path, tempo_map, time_sig_map, detected_tonic, detected_mode, artist, title, genres, tags
		FROM songs WHERE song_id = ?
	`, songID)

	var tempoMapJSON, timeSigMapJSON, genres, tags string
	var artist, title sql.NullString
	var tonic sql.NullInt64
	var mode sql.NullString
	song := &model.Song{}

	if err := row.Scan(&song.SongID, &song.SourcePath, &tempoMapJSON, &timeSigMapJSON, &tonic, &mode, &artist, &title, &genres, &tags); err != nil {
		return nil, corpuserr.Wrap(corpuserr.Store, "get song", err)
	}
	if err := json.Unmarshal([]byte(tempoMapJSON), &song.TempoMap); err != nil {
		return nil, corpuserr.Wrap(corpuserr.Store, "unmarshal tempo_map", err)
	}
	if err := json.Unmarshal([]byte(timeSigMapJSON), &song.TimeSigMap); err != nil {
		return nil, corpuserr.Wrap(corpuserr.Store, "unmarshal time_sig_map", err)
	}
	if artist.Valid {
		song.Artist = artist.String
	}
	if title.Valid {
		song.Title = title.String
	}
	if genres != "" {
		song.Genres = strings.Split(genres, ",")
	}
	if tags != "" {
		song.Tags = strings.Split(tags, ",")
	}
	if tonic.Valid && mode.Valid {
		song.Key = &model.KeyEstimate{Tonic: int(tonic.Int64), Mode: model.Mode(mode.String)}
	}
	return song, nil
}
