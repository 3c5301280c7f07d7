// Package pattern implements PatternMiner (spec.md §4.6): intra-song
// fingerprint dedup followed by cross-corpus near-duplicate clustering,
// producing canonical Patterns and their PatternInstances.
package pattern

import (
	"encoding/hex"
	"fmt"
	"math/bits"
	"sort"

	"github.com/leafo/patterncorpus/internal/chunk"
	"github.com/leafo/patterncorpus/internal/model"
)

// SimilarityThreshold is the single-linkage clustering cutoff.
const SimilarityThreshold = 0.85

// HammingGate bounds the candidate-pair prefilter: only pairs whose
// rhythm bitsets differ in at most this fraction of bits are considered.
const HammingGate = 0.15

// ChunkRecord is one chunk occurrence fed into the miner, carrying the
// song/track context the resulting PatternInstance needs.
type ChunkRecord struct {
	SongID   string
	TrackID  string
	Role     model.Role
	Meter    string
	StartBar int
	Chunk    model.Chunk
}

// Miner clusters ChunkRecords into canonical Patterns.
type Miner struct {
	// Weighted selects the velocity-weighted rhythm bitset for similarity
	// comparisons, matching whichever fingerprint variant was mined.
	Weighted bool
}

// New builds a Miner using the default (binary) rhythm fingerprint.
func New() *Miner {
	return &Miner{}
}

// representative is one distinct combo_fp within a bucket, plus every
// occurrence that shares it (the intra-song/exact-duplicate phase).
type representative struct {
	comboHex string
	record   ChunkRecord // first occurrence, used for its Chunk/Fingerprint
	members  []ChunkRecord
}

// Mine runs both mining phases and returns the corpus's Patterns and
// PatternInstances.
func (m *Miner) Mine(records []ChunkRecord) ([]model.Pattern, []model.PatternInstance) {
	reps := dedupExact(records)

	buckets := make(map[string][]int) // bucket key -> indices into reps
	for i, r := range reps {
		key := bucketKey(r.record.Role, r.record.Chunk.LengthBars, r.record.Meter)
		buckets[key] = append(buckets[key], i)
	}

	uf := newUnionFind(len(reps))
	for _, idxs := range buckets {
		clusterBucket(reps, idxs, m.Weighted, uf)
	}

	clusters := uf.components()

	var patterns []model.Pattern
	var instances []model.PatternInstance

	all := make([]clusterBuild, 0, len(clusters))
	for _, members := range clusters {
		all = append(all, buildCluster(reps, members))
	}

	// Deterministic output order: sort by the eventual canonical pattern_id.
	sort.Slice(all, func(i, j int) bool { return all[i].pattern.PatternID < all[j].pattern.PatternID })

	for _, b := range all {
		patterns = append(patterns, b.pattern)
		instances = append(instances, b.instances...)
	}

	return patterns, instances
}

func bucketKey(role model.Role, lengthBars int, meter string) string {
	return fmt.Sprintf("%s|%d|%s", role, lengthBars, meter)
}

// dedupExact collapses chunks sharing an identical combo_fp into one
// representative, per spec.md §4.6's intra-song phase (which also,
// incidentally, catches exact cross-song duplicates - two songs with a
// byte-identical combo_fp are the same pattern regardless of which song
// first produced it).
func dedupExact(records []ChunkRecord) []representative {
	index := make(map[string]int)
	var reps []representative

	for _, rec := range records {
		key := hex.EncodeToString(rec.Chunk.Fingerprint.ComboFP)
		if i, ok := index[key]; ok {
			reps[i].members = append(reps[i].members, rec)
			continue
		}
		index[key] = len(reps)
		reps = append(reps, representative{
			comboHex: key,
			record:   rec,
			members:  []ChunkRecord{rec},
		})
	}

	return reps
}

func clusterBucket(reps []representative, idxs []int, weighted bool, uf *unionFind) {
	bitsets := make(map[int][]byte, len(idxs))
	pitchSeqs := make(map[int][]int, len(idxs))
	for _, i := range idxs {
		bitsets[i] = chunk.RhythmBitset(reps[i].record.Chunk, weighted)
		pitchSeqs[i] = chunk.PitchIntervals(reps[i].record.Chunk)
	}

	for a := 0; a < len(idxs); a++ {
		for b := a + 1; b < len(idxs); b++ {
			i, j := idxs[a], idxs[b]
			s, ok := similarity(bitsets[i], bitsets[j], pitchSeqs[i], pitchSeqs[j])
			if ok && s >= SimilarityThreshold {
				uf.union(i, j)
			}
		}
	}
}

// similarity returns (S, true) if the rhythm bitsets pass the Hamming
// prefilter; otherwise (0, false) and the pair is never a candidate.
func similarity(bitsA, bitsB []byte, pitchA, pitchB []int) (float64, bool) {
	if len(bitsA) != len(bitsB) {
		return 0, false
	}
	totalBits := len(bitsA) * 8
	if totalBits == 0 {
		return 0, false
	}
	hamming := hammingDistance(bitsA, bitsB)
	if float64(hamming)/float64(totalBits) > HammingGate {
		return 0, false
	}

	rhythmSim := 1 - float64(hamming)/float64(totalBits)
	pitchSim := 1 - normalizedEditDistance(pitchA, pitchB)
	return 0.6*rhythmSim + 0.4*pitchSim, true
}

func hammingDistance(a, b []byte) int {
	total := 0
	for i := range a {
		total += bits.OnesCount8(a[i] ^ b[i])
	}
	return total
}

// normalizedEditDistance is the Levenshtein distance between two int
// sequences divided by the longer sequence's length (0 if both empty).
func normalizedEditDistance(a, b []int) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	d := levenshtein(a, b)
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	return float64(d) / float64(maxLen)
}

func levenshtein(a, b []int) int {
	n, m := len(a), len(b)
	prev := make([]int, m+1)
	cur := make([]int, m+1)
	for j := 0; j <= m; j++ {
		prev[j] = j
	}
	for i := 1; i <= n; i++ {
		cur[0] = i
		for j := 1; j <= m; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := cur[j-1] + 1
			sub := prev[j-1] + cost
			cur[j] = min3(del, ins, sub)
		}
		prev, cur = cur, prev
	}
	return prev[m]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
