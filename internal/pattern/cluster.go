package pattern

import (
	"sort"

	"github.com/leafo/patterncorpus/internal/chunk"
	"github.com/leafo/patterncorpus/internal/model"
)

type clusterBuild struct {
	pattern   model.Pattern
	instances []model.PatternInstance
}

// buildCluster picks the canonical representative of a cluster (the
// representative with the most occurrences, ties broken by the lexically
// lowest pattern_id) and emits the Pattern row plus every instance.
func buildCluster(reps []representative, memberIdxs []int) clusterBuild {
	canonicalIdx := memberIdxs[0]
	for _, idx := range memberIdxs[1:] {
		if betterCanonical(reps[idx], reps[canonicalIdx]) {
			canonicalIdx = idx
		}
	}
	canonical := reps[canonicalIdx]
	canonicalPitch := chunk.PitchIntervals(canonical.record.Chunk)

	songSet := make(map[string]bool)
	totalInstances := 0
	var instances []model.PatternInstance
	patternID := canonical.record.Chunk.Fingerprint.PatternID()

	for _, idx := range memberIdxs {
		rep := reps[idx]
		confidence := 1.0
		transform := model.Transform{TimeScale: 1.0}

		if idx != canonicalIdx {
			pitchSeq := chunk.PitchIntervals(rep.record.Chunk)
			bitsA := chunk.RhythmBitset(canonical.record.Chunk, false)
			bitsB := chunk.RhythmBitset(rep.record.Chunk, false)
			if s, ok := similarity(bitsA, bitsB, canonicalPitch, pitchSeq); ok {
				confidence = s
			}
			transform.PitchOffset = medianIntervalDiff(canonicalPitch, pitchSeq)
		}

		for _, member := range rep.members {
			songSet[member.SongID] = true
			totalInstances++
			instances = append(instances, model.PatternInstance{
				PatternID:  patternID,
				SongID:     member.SongID,
				TrackID:    member.TrackID,
				StartBar:   member.StartBar,
				Confidence: confidence,
				Transform:  transform,
			})
		}
	}

	sort.Slice(instances, func(i, j int) bool {
		if instances[i].SongID != instances[j].SongID {
			return instances[i].SongID < instances[j].SongID
		}
		if instances[i].TrackID != instances[j].TrackID {
			return instances[i].TrackID < instances[j].TrackID
		}
		return instances[i].StartBar < instances[j].StartBar
	})

	p := model.Pattern{
		PatternID:      patternID,
		Role:           canonical.record.Role,
		LengthBars:     canonical.record.Chunk.LengthBars,
		Meter:          canonical.record.Meter,
		GridResolution: canonical.record.Chunk.GridStepsPerBar,
		Representation: representationFor(canonical.record.Role),
		RhythmFP:       canonical.record.Chunk.Fingerprint.RhythmFP,
		PitchFP:        canonical.record.Chunk.Fingerprint.PitchFP,
		ComboFP:        canonical.record.Chunk.Fingerprint.ComboFP,
		Stats: model.PatternStats{
			InstanceCount: totalInstances,
			SongCount:     len(songSet),
		},
	}

	return clusterBuild{pattern: p, instances: instances}
}

// betterCanonical reports whether candidate should replace current as the
// canonical representative: more occurrences wins, ties broken by the
// lexically lowest pattern_id (spec.md §4.6).
func betterCanonical(candidate, current representative) bool {
	if len(candidate.members) != len(current.members) {
		return len(candidate.members) > len(current.members)
	}
	return candidate.comboHex < current.comboHex
}

func representationFor(role model.Role) string {
	switch role {
	case model.RoleDrums:
		return "drum"
	case model.RoleArp:
		return "arp"
	default:
		return "melodic"
	}
}

// medianIntervalDiff is the median element-wise difference between two
// pitch-interval sequences, used as a non-canonical instance's
// pitch_offset transform (spec.md §4.6). Sequences of differing length are
// compared over their shared prefix.
func medianIntervalDiff(canonical, instance []int) int {
	n := len(canonical)
	if len(instance) < n {
		n = len(instance)
	}
	if n == 0 {
		return 0
	}
	diffs := make([]int, n)
	for i := 0; i < n; i++ {
		diffs[i] = instance[i] - canonical[i]
	}
	sort.Ints(diffs)
	return diffs[n/2]
}
