// Package metadata implements MetadataResolver (spec.md §4.2):
// priority-ordered (artist, title) derivation strategies plus a pluggable
// tag-enrichment sink contract.
package metadata

import (
	"path/filepath"
	"regexp"
	"strings"
)

// MinConfidence is the threshold a strategy's result must clear for the
// resolver to accept it outright (spec.md §4.2: "first non-empty result
// with confidence > 0.5 wins").
const MinConfidence = 0.5

// Result is one strategy's guess at a song's identity.
type Result struct {
	Artist     string
	Title      string
	Confidence float64
}

// MidiMeta carries the subset of parsed MIDI meta events the first
// strategy needs. internal/pipeline fills TrackName from track 0's name;
// Text and Copyright are not populated by the pipeline.
type MidiMeta struct {
	TrackName string // 0x03 on track 0
	Text      string // 0x01
	Copyright string // 0x02
}

// Resolve runs the priority-ordered strategies and returns the first
// result clearing MinConfidence, or the best attempt found if none do.
func Resolve(meta MidiMeta, sourcePath string) Result {
	strategies := []func() Result{
		func() Result { return fromMidiMeta(meta) },
		func() Result { return fromFolderStructure(sourcePath) },
		func() Result { return fromFilename(sourcePath) },
	}

	var best Result
	for _, strategy := range strategies {
		r := strategy()
		if r.Confidence > MinConfidence {
			return r
		}
		if r.Confidence > best.Confidence {
			best = r
		}
	}
	return best
}

var artistTitleSep = regexp.MustCompile(`\s+-\s+`)
var titleArtistSep = regexp.MustCompile(`\s+/\s+`)

// fromMidiMeta parses "Artist - Title" or "Title / Artist" out of the
// track-name/text/copyright meta events, in that priority order.
func fromMidiMeta(meta MidiMeta) Result {
	for _, raw := range []string{meta.TrackName, meta.Text, meta.Copyright} {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if parts := artistTitleSep.Split(raw, 2); len(parts) == 2 {
			return Result{Artist: strings.TrimSpace(parts[0]), Title: strings.TrimSpace(parts[1]), Confidence: 0.8}
		}
		if parts := titleArtistSep.Split(raw, 2); len(parts) == 2 {
			return Result{Title: strings.TrimSpace(parts[0]), Artist: strings.TrimSpace(parts[1]), Confidence: 0.8}
		}
	}
	return Result{}
}

// folderPattern matches `<letter>/<artist>/<title>.mid`.
var folderPattern = regexp.MustCompile(`[/\\]([A-Za-z])[/\\]([^/\\]+)[/\\]([^/\\]+)\.[mM][iI][dD]$`)

func fromFolderStructure(path string) Result {
	m := folderPattern.FindStringSubmatch(path)
	if m == nil {
		return Result{}
	}
	return Result{Artist: m[2], Title: m[3], Confidence: 0.9}
}

var timestampRun = regexp.MustCompile(`\d{8,}`)
var domainSuffix = regexp.MustCompile(`(?i)-?(nonstop2k\.com|nonstop2k|[a-z0-9-]+\.(com|net|org))$`)
var capitalizedWord = regexp.MustCompile(`\b[A-Z][a-zA-Z]*\b`)

// fromFilename applies the strip-and-split heuristics of spec.md §4.2.
func fromFilename(path string) Result {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = timestampRun.ReplaceAllString(base, "")
	base = domainSuffix.ReplaceAllString(base, "")
	base = strings.TrimSpace(strings.Trim(base, "-_ "))

	parts := strings.SplitN(base, " - ", 2)
	if len(parts) == 2 {
		a, b := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
		if capWordCount(a) >= capWordCount(b) {
			return Result{Artist: b, Title: a, Confidence: 0.4}
		}
		return Result{Artist: a, Title: b, Confidence: 0.4}
	}

	if base == "" {
		return Result{}
	}
	return Result{Title: base, Confidence: 0.4}
}

func capWordCount(s string) int {
	return len(capitalizedWord.FindAllString(s, -1))
}
