// Package chord implements ChordInferer (spec.md §4.8): sliding
// half-bar-window chord candidate scoring with temporal smoothing and
// Roman-numeral labeling relative to a detected key.
package chord

import (
	"sort"

	"github.com/leafo/patterncorpus/internal/model"
)

// DiatonicPenalty is applied when a candidate root/quality lies outside
// the detected key's diatonic triad set.
const DiatonicPenalty = 0.25

// LowConfidenceMergeThreshold is the cutoff below which a smoothed event
// is merged into its higher-confidence neighbor.
const LowConfidenceMergeThreshold = 0.2

// Inferer scores chord candidates over sliding windows of a song.
type Inferer struct {
	// WindowsPerBar is the window subdivision; spec.md §4.8 default is 2
	// (half-bar windows), configurable.
	WindowsPerBar int
}

// New builds an Inferer at the spec.md default (half-bar windows).
func New() *Inferer {
	return &Inferer{WindowsPerBar: 2}
}

type window struct {
	startBeat, endBeat float64
}

func (ci *Inferer) windows(song *model.Song) []window {
	if song.EndBeat <= 0 {
		return nil
	}
	perBar := ci.WindowsPerBar
	if perBar <= 0 {
		perBar = 2
	}

	lastBar := song.BarAtBeat(song.EndBeat)
	var out []window
	for bar := 0; bar <= lastBar; bar++ {
		barStart := song.BarStartBeat(bar)
		barEnd := song.BarStartBeat(bar + 1)
		step := (barEnd - barStart) / float64(perBar)
		if step <= 0 {
			continue
		}
		for i := 0; i < perBar; i++ {
			out = append(out, window{startBeat: barStart + float64(i)*step, endBeat: barStart + float64(i+1)*step})
		}
	}
	return out
}

// pitchClassWeights sums overlap-duration with the window across all
// non-drum tracks, keyed by pitch class 0..11.
func pitchClassWeights(song *model.Song, w window) [12]float64 {
	var weights [12]float64
	for _, track := range song.Tracks {
		if track.Features != nil && track.Features.DrumLikeness > 0.5 {
			continue
		}
		for _, ev := range track.NoteEvents {
			overlap := overlapDuration(ev.StartBeat, ev.EndBeat(), w.startBeat, w.endBeat)
			if overlap > 0 {
				weights[int(ev.Pitch)%12] += overlap
			}
		}
	}
	return weights
}

func overlapDuration(aStart, aEnd, bStart, bEnd float64) float64 {
	start := aStart
	if bStart > start {
		start = bStart
	}
	end := aEnd
	if bEnd < end {
		end = bEnd
	}
	if end <= start {
		return 0
	}
	return end - start
}

type candidate struct {
	root    int
	quality model.ChordQuality
	score   float64
}

// bestCandidate scores every (root, quality) pair for a window's pitch
// weights and returns the winner plus its confidence.
func bestCandidate(weights [12]float64, key model.KeyEstimate) (candidate, float64) {
	var all []candidate
	total := 0.0
	for _, w := range weights {
		total += w
	}

	for root := 0; root < 12; root++ {
		for _, q := range model.AllQualities {
			chordTones := make(map[int]bool, len(model.ChordIntervals[q]))
			for _, interval := range model.ChordIntervals[q] {
				chordTones[(root+interval)%12] = true
			}
			chordWeight := 0.0
			for pc := range chordTones {
				chordWeight += weights[pc]
			}
			nonChordWeight := total - chordWeight
			score := chordWeight - 0.5*nonChordWeight - diatonicPenalty(root, q, key)
			all = append(all, candidate{root: root, quality: q, score: score})
		}
	}

	sort.Slice(all, func(i, j int) bool { return all[i].score > all[j].score })
	best := all[0]
	second := all[1].score

	confidence := 0.0
	if best.score > 0 {
		confidence = (best.score - second) / best.score
	}
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	return best, confidence
}

// diatonicTriads maps a scale-degree semitone offset from the tonic to
// its expected triad quality, for major and natural-minor modes.
func diatonicTriads(mode model.Mode) map[int]model.ChordQuality {
	if mode == model.ModeMinor {
		return map[int]model.ChordQuality{
			0: model.QualityMin, 2: model.QualityDim, 3: model.QualityMaj,
			5: model.QualityMin, 7: model.QualityMin, 8: model.QualityMaj, 10: model.QualityMaj,
		}
	}
	return map[int]model.ChordQuality{
		0: model.QualityMaj, 2: model.QualityMin, 4: model.QualityMin,
		5: model.QualityMaj, 7: model.QualityMaj, 9: model.QualityMin, 11: model.QualityDim,
	}
}

func diatonicPenalty(root int, quality model.ChordQuality, key model.KeyEstimate) float64 {
	offset := ((root - key.Tonic) % 12 + 12) % 12
	triads := diatonicTriads(key.Mode)
	if expected, ok := triads[offset]; ok && expected == quality {
		return 0
	}
	return DiatonicPenalty
}
