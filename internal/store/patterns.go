package store

import (
	"encoding/json"
	"fmt"

	"github.com/leafo/patterncorpus/internal/corpuserr"
	"github.com/leafo/patterncorpus/internal/model"
)

// PutPattern upserts a canonical pattern. Stats are overwritten wholesale
// here; PutPatternInstance then replaces InstanceCount/SongCount with
// counts of the pattern's stored instances.
func (d *DB) PutPattern(p *model.Pattern) error {
	return d.withWriteLock(func() error {
		return d.putPatternLocked(p)
	})
}

func (d *DB) putPatternLocked(p *model.Pattern) error {
	stats, err := json.Marshal(p.Stats)
	if err != nil {
		return corpuserr.Wrap(corpuserr.Store, "marshal pattern stats", err)
	}
	tags, err := json.Marshal(p.Tags)
	if err != nil {
		return corpuserr.Wrap(corpuserr.Store, "marshal pattern tags", err)
	}

	_, err = d.conn.Exec(`
		INSERT INTO patterns (pattern_id, role, length_bars, meter, grid_resolution, rhythm_fp, pitch_fp, combo_fp, representation, stats, tags)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(pattern_id) DO UPDATE SET
			stats = excluded.stats,
			tags = excluded.tags
	`, p.PatternID, string(p.Role), p.LengthBars, p.Meter, p.GridResolution, p.RhythmFP, p.PitchFP, p.ComboFP, p.Representation, string(stats), string(tags))
	if err != nil {
		return corpuserr.Wrap(corpuserr.Store, fmt.Sprintf("upsert pattern %s", p.PatternID), err)
	}
	return nil
}

// PutPatternInstance upserts an occurrence and recounts the parent
// pattern's InstanceCount/SongCount from pattern_instances. It requires the pattern to already exist
// (invariant 5: every pattern_instance references an existing pattern_id).
func (d *DB) PutPatternInstance(inst *model.PatternInstance) error {
	return d.withWriteLock(func() error {
		transform, err := json.Marshal(inst.Transform)
		if err != nil {
			return corpuserr.Wrap(corpuserr.Store, "marshal transform", err)
		}

		var exists int
		if err := d.conn.QueryRow("SELECT COUNT(*) FROM patterns WHERE pattern_id = ?", inst.PatternID).Scan(&exists); err != nil {
			return corpuserr.Wrap(corpuserr.Store, "check pattern exists", err)
		}
		if exists == 0 {
			return corpuserr.New(corpuserr.InvariantViolation, fmt.Sprintf("pattern_instance references missing pattern %s", inst.PatternID))
		}

		res, err := d.conn.Exec(`
			INSERT INTO pattern_instances (pattern_id, song_id, track_id, start_bar, confidence, transform)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(pattern_id, song_id, track_id, start_bar) DO UPDATE SET
				confidence = excluded.confidence,
				transform = excluded.transform
		`, inst.PatternID, inst.SongID, inst.TrackID, inst.StartBar, inst.Confidence, string(transform))
		if err != nil {
			return corpuserr.Wrap(corpuserr.Store, "upsert pattern_instance", err)
		}

		rows, err := res.RowsAffected()
		if err != nil {
			return corpuserr.Wrap(corpuserr.Store, "rows affected", err)
		}
		if rows == 0 {
			return nil // nothing written, stats unchanged
		}
		return d.refreshPatternStatsLocked(inst.PatternID)
	})
}

func (d *DB) refreshPatternStatsLocked(patternID string) error {
	var instanceCount int
	var songCount int
	if err := d.conn.QueryRow("SELECT COUNT(*) FROM pattern_instances WHERE pattern_id = ?", patternID).Scan(&instanceCount); err != nil {
		return corpuserr.Wrap(corpuserr.Store, "count instances", err)
	}
	if err := d.conn.QueryRow("SELECT COUNT(DISTINCT song_id) FROM pattern_instances WHERE pattern_id = ?", patternID).Scan(&songCount); err != nil {
		return corpuserr.Wrap(corpuserr.Store, "count songs", err)
	}
	stats, err := json.Marshal(model.PatternStats{InstanceCount: instanceCount, SongCount: songCount})
	if err != nil {
		return corpuserr.Wrap(corpuserr.Store, "marshal refreshed stats", err)
	}
	_, err = d.conn.Exec("UPDATE patterns SET stats = ? WHERE pattern_id = ?", string(stats), patternID)
	if err != nil {
		return corpuserr.Wrap(corpuserr.Store, "write refreshed stats", err)
	}
	return nil
}
