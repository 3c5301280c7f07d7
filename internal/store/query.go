package store

import (
	"encoding/json"
	"strings"

	"github.com/leafo/patterncorpus/internal/corpuserr"
	"github.com/leafo/patterncorpus/internal/model"
)

// ClipQuery is the read contract of spec.md §6: filter patterns by
// role/genre/artist/meter/length, paginated, ordered by
// (pattern_popularity desc, pattern_id asc) for stable results across
// identical queries.
type ClipQuery struct {
	Role          model.Role
	Genre         string
	Artist        string
	Meter         string
	MinLengthBars int
	MaxLengthBars int
	Limit         int
	Offset        int
}

// PatternResult is one ClipQuery row: the matching pattern. It does not
// carry the artists or genres of the songs the pattern was found in.
type PatternResult struct {
	Pattern model.Pattern
}

// Query runs a ClipQuery against the store. Reads take no lock: WAL mode
// gives them a consistent snapshot concurrently with any in-flight write
// (spec.md §5's "snapshot-isolated reads").
func (d *DB) Query(q ClipQuery) ([]PatternResult, error) {
	var clauses []string
	var args []any

	if q.Role != "" {
		clauses = append(clauses, "p.role = ?")
		args = append(args, string(q.Role))
	}
	if q.Meter != "" {
		clauses = append(clauses, "p.meter = ?")
		args = append(args, q.Meter)
	}
	if q.MinLengthBars > 0 {
		clauses = append(clauses, "p.length_bars >= ?")
		args = append(args, q.MinLengthBars)
	}
	if q.MaxLengthBars > 0 {
		clauses = append(clauses, "p.length_bars <= ?")
		args = append(args, q.MaxLengthBars)
	}
	if q.Artist != "" || q.Genre != "" {
		clauses = append(clauses, `p.pattern_id IN (
			SELECT pi.pattern_id FROM pattern_instances pi
			JOIN songs s ON s.song_id = pi.song_id
			WHERE 1=1`+artistGenreFilter(q, &args)+`
		)`)
	}

	query := `
		SELECT p.pattern_id, p.role, p.length_bars, p.meter, p.grid_resolution,
		       p.rhythm_fp, p.pitch_fp, p.combo_fp, p.representation, p.stats, p.tags
		FROM patterns p`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += `
		ORDER BY json_extract(p.stats, '$.InstanceCount') DESC, p.pattern_id ASC
		LIMIT ? OFFSET ?`

	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit, q.Offset)

	rows, err := d.conn.Query(query, args...)
	if err != nil {
		return nil, corpuserr.Wrap(corpuserr.Store, "clip query", err)
	}
	defer rows.Close()

	var results []PatternResult
	for rows.Next() {
		var p model.Pattern
		var role, statsJSON, tagsJSON string
		if err := rows.Scan(&p.PatternID, &role, &p.LengthBars, &p.Meter, &p.GridResolution,
			&p.RhythmFP, &p.PitchFP, &p.ComboFP, &p.Representation, &statsJSON, &tagsJSON); err != nil {
			return nil, corpuserr.Wrap(corpuserr.Store, "scan pattern row", err)
		}
		p.Role = model.Role(role)
		if err := json.Unmarshal([]byte(statsJSON), &p.Stats); err != nil {
			return nil, corpuserr.Wrap(corpuserr.Store, "unmarshal pattern stats", err)
		}
		if tagsJSON != "" {
			if err := json.Unmarshal([]byte(tagsJSON), &p.Tags); err != nil {
				return nil, corpuserr.Wrap(corpuserr.Store, "unmarshal pattern tags", err)
			}
		}
		results = append(results, PatternResult{Pattern: p})
	}
	if err := rows.Err(); err != nil {
		return nil, corpuserr.Wrap(corpuserr.Store, "iterate clip query rows", err)
	}
	return results, nil
}

func artistGenreFilter(q ClipQuery, args *[]any) string {
	var b strings.Builder
	if q.Artist != "" {
		b.WriteString(" AND s.artist = ?")
		*args = append(*args, q.Artist)
	}
	if q.Genre != "" {
		b.WriteString(" AND ',' || s.genres || ',' LIKE ?")
		*args = append(*args, "%,"+q.Genre+",%")
	}
	return b.String()
}
