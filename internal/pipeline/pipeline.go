// Package pipeline orchestrates the ten per-song analysis stages in
// dependency order (spec.md §2/§5): normalize, metadata, features, roles,
// chunk+fingerprint, key, chords, arps, sections, and pattern-mining
// records for the caller to hand to internal/pattern across the whole
// corpus.
package pipeline

import (
	"strconv"

	"github.com/leafo/patterncorpus/internal/arp"
	"github.com/leafo/patterncorpus/internal/chord"
	"github.com/leafo/patterncorpus/internal/chunk"
	"github.com/leafo/patterncorpus/internal/corpuserr"
	"github.com/leafo/patterncorpus/internal/feature"
	"github.com/leafo/patterncorpus/internal/key"
	"github.com/leafo/patterncorpus/internal/metadata"
	"github.com/leafo/patterncorpus/internal/model"
	"github.com/leafo/patterncorpus/internal/normalize"
	"github.com/leafo/patterncorpus/internal/pattern"
	"github.com/leafo/patterncorpus/internal/role"
	"github.com/leafo/patterncorpus/internal/section"
)

// Stage names the pipeline's units of work, used by the batch layer's
// checkpoint journal (spec.md §5: "(song_id, stage_completed)").
type Stage string

const (
	StageNormalize Stage = "normalize"
	StageMetadata  Stage = "metadata"
	StageFeatures  Stage = "features"
	StageRoles     Stage = "roles"
	StageChunk     Stage = "chunk"
	StageKey       Stage = "key"
	StageChords    Stage = "chords"
	StageArps      Stage = "arps"
	StageSections  Stage = "sections"
	StageDone      Stage = "done"
)

// Result is everything one song's analysis produces: the song itself
// (fully populated) and the chunk records ready to be handed to
// internal/pattern for corpus-wide mining.
type Result struct {
	Song          *model.Song
	ChunkRecords  []pattern.ChunkRecord
	Status        corpuserr.AnalysisStatus
}

// Pipeline wires together one instance of every analysis stage. It holds
// no per-song state; internal/batch's workers all call Run on one shared
// Pipeline.
type Pipeline struct {
	normalizer *normalize.Normalizer
	extractor  *feature.Extractor
	weighted   bool // passed through to chunk.ChunkAndFingerprint
	keyDet     *key.Detector
	chordInf   *chord.Inferer
	arpAn      *arp.Analyzer
	sectionSeg *section.Segmenter
	sink       metadata.Sink
}

// New builds a Pipeline. sink may be nil. The metadata stage runs only the
// filename/folder/meta-text strategies and does not call sink, whether or
// not one is given (MetadataMissError is non-fatal per spec.md §7).
func New(sink metadata.Sink) *Pipeline {
	return &Pipeline{
		normalizer: normalize.New(),
		extractor:  feature.New(),
		weighted:   false,
		keyDet:     key.New(),
		chordInf:   chord.New(),
		arpAn:      arp.New(),
		sectionSeg: section.New(),
		sink:       sink,
	}
}

// Run executes every stage for one song, from normalization onward.
// startAt is accepted from the checkpoint journal but not consulted: no
// stage is skipped, whatever stage it names. Run never returns a
// StoreError: persistence is the caller's (internal/batch's) concern.
func (p *Pipeline) Run(raw []byte, sourcePath string, startAt Stage) (Result, error) {
	song, err := p.normalizer.Normalize(raw, sourcePath)
	if err != nil {
		return Result{}, corpuserr.Wrap(corpuserr.InputFormat, "normalize", err)
	}
	if err := song.Validate(); err != nil {
		return Result{}, corpuserr.Wrap(corpuserr.InvariantViolation, "post-normalize validate", err)
	}

	status := corpuserr.StatusOK
	if len(song.Warnings) > 0 {
		status = corpuserr.StatusPartial
	}

	p.resolveMetadata(song)
	if song.Artist == "" && song.Title == "" {
		if status == corpuserr.StatusOK {
			status = corpuserr.StatusPartial
		}
	}

	for i := range song.Tracks {
		track := &song.Tracks[i]
		f := p.extractor.Extract(song, track)
		track.Features = &f
		probs := role.Classify(f)
		track.RoleProbs = probs
	}

	keyEstimate := p.keyDet.Detect(song)
	song.Key = &keyEstimate

	song.Chords = p.chordInf.Infer(song, keyEstimate)

	var records []pattern.ChunkRecord
	for i := range song.Tracks {
		track := &song.Tracks[i]
		chunks := chunk.ChunkAndFingerprint(song, track, p.weighted)
		dominant := track.RoleProbs.Dominant()

		if track.RoleProbs[model.RoleArp] >= arp.ArpRoleThreshold {
			song.Arps = append(song.Arps, p.arpAn.Analyze(song, track, track.RoleProbs, song.Chords))
		}

		for _, c := range chunks {
			meter := song.TimeSigAtBar(c.StartBar)
			records = append(records, pattern.ChunkRecord{
				SongID:   song.SongID,
				TrackID:  track.TrackID,
				Role:     dominant,
				Meter:    meterString(meter),
				StartBar: c.StartBar,
				Chunk:    c,
			})
		}
	}

	song.Sections = p.sectionSeg.Segment(song, song.Chords)

	return Result{Song: song, ChunkRecords: records, Status: status}, nil
}

func (p *Pipeline) resolveMetadata(song *model.Song) {
	var meta metadata.MidiMeta
	if len(song.Tracks) > 0 {
		meta.TrackName = song.Tracks[0].Name
	}
	result := metadata.Resolve(meta, song.SourcePath)
	song.Artist = result.Artist
	song.Title = result.Title

	if p.sink == nil || song.Artist == "" || song.Title == "" {
		return
	}
	// No tag lookup is made here: p.sink is never called, so Genres and
	// Tags stay empty.
}

func meterString(ts model.TimeSigSegment) string {
	num := ts.Numerator
	den := ts.Denominator
	if num == 0 {
		num = 4
	}
	if den == 0 {
		den = 4
	}
	return strconv.Itoa(num) + "/" + strconv.Itoa(den)
}
