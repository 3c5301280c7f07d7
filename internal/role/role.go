// Package role implements RoleClassifier (spec.md §4.4): a fixed-weight
// linear scoring of Features per role, normalized to a probability
// distribution by softmax.
package role

import (
	"math"

	"github.com/leafo/patterncorpus/internal/model"
)

// indicator is a small readability helper for the weight formulas below,
// which are written as boolean-indicator terms in spec.md ("+1.0·(density>8)").
func indicator(cond bool) float64 {
	if cond {
		return 1
	}
	return 0
}

// Score computes the fixed linear score for each role from the track's
// Features, per the weights in spec.md §4.4.
func Score(f model.Features) map[model.Role]float64 {
	scores := make(map[model.Role]float64, len(model.AllRoles))

	scores[model.RoleDrums] = 4.0*f.DrumLikeness + 1.0*indicator(f.Density > 8)

	scores[model.RoleBass] = 2.0*indicator(f.MedianPitch < 48) +
		1.0*(1-f.PolyphonyRatio) +
		1.0*f.DownbeatRatio

	chordScore := 2.0*f.PolyphonyRatio + 1.0*indicator(f.MeanDurationBeats > 1.0)
	scores[model.RoleChords] = chordScore
	scores[model.RolePad] = chordScore + 1.0*indicator(f.Density < 1)

	scores[model.RoleLead] = 1.5*(1-f.PolyphonyRatio) +
		1.0*f.PitchRangeNorm +
		0.5*indicator(f.MedianPitch >= 48 && f.MedianPitch <= 84)

	scores[model.RoleArp] = 2.0*indicator(f.Density > 6) +
		1.5*f.Repetition +
		1.0*f.BrokenChordRatio

	scores[model.RoleOther] = 0.1

	return scores
}

// Classify turns raw linear scores into a normalized RoleProbs via softmax,
// matching spec.md's "Linear score per role ... softmax -> RoleProbs."
func Classify(f model.Features) model.RoleProbs {
	scores := Score(f)
	return softmax(scores)
}

func softmax(scores map[model.Role]float64) model.RoleProbs {
	maxScore := math.Inf(-1)
	for _, r := range model.AllRoles {
		if s := scores[r]; s > maxScore {
			maxScore = s
		}
	}

	exps := make(map[model.Role]float64, len(model.AllRoles))
	var sum float64
	for _, r := range model.AllRoles {
		e := math.Exp(scores[r] - maxScore)
		exps[r] = e
		sum += e
	}

	probs := make(model.RoleProbs, len(model.AllRoles))
	if sum <= 0 {
		probs[model.RoleOther] = 1.0
		return probs
	}
	for _, r := range model.AllRoles {
		probs[r] = exps[r] / sum
	}
	return probs
}

// Default returns the {other: 1.0} distribution spec.md §8 requires for an
// empty track ("role_probs defaults to {other:1}").
func Default() model.RoleProbs {
	probs := make(model.RoleProbs, len(model.AllRoles))
	probs[model.RoleOther] = 1.0
	return probs
}
