// Package key implements KeyDetector (spec.md §4.7): a weighted
// pitch-class histogram correlated against the 24 Krumhansl-Schmuckler
// tonal profiles.
package key

import (
	"math"

	"github.com/leafo/patterncorpus/internal/model"
)

// majorProfile and minorProfile are the classic Krumhansl-Schmuckler
// tonal hierarchy ratings for a tonic-rooted major/minor scale.
var majorProfile = [12]float64{6.35, 2.23, 3.48, 2.33, 4.38, 4.09, 2.52, 5.19, 2.39, 3.66, 2.29, 2.88}
var minorProfile = [12]float64{6.33, 2.68, 3.52, 5.38, 2.60, 3.53, 2.54, 4.75, 3.98, 2.69, 3.34, 3.17}

// DrumLikenessExclusionThreshold matches spec.md §4.7's "exclude
// drum-likeness>0.5" rule.
const DrumLikenessExclusionThreshold = 0.5

// Detector estimates a Song's key.
type Detector struct{}

// New builds a Detector.
func New() *Detector {
	return &Detector{}
}

type scored struct {
	tonic int
	mode  model.Mode
	score float64
}

// Detect runs the full key estimate, including stability sampling over
// quartile-sized windows.
func (d *Detector) Detect(song *model.Song) model.KeyEstimate {
	hist := histogram(song, 0, song.EndBeat)
	global, ranked := bestKey(hist)

	estimate := model.KeyEstimate{
		Tonic:      global.tonic,
		Mode:       global.mode,
		Confidence: confidence(ranked),
	}
	estimate.StabilitySamples = stability(song, estimate)
	return estimate
}

// histogram builds the normalized, duration-weighted pitch-class
// histogram over all non-drum tracks active within [startBeat, endBeat).
func histogram(song *model.Song, startBeat, endBeat float64) [12]float64 {
	var hist [12]float64
	for _, track := range song.Tracks {
		if track.Features != nil && track.Features.DrumLikeness > DrumLikenessExclusionThreshold {
			continue
		}
		for _, ev := range track.NoteEvents {
			if ev.StartBeat < startBeat || ev.StartBeat >= endBeat {
				continue
			}
			hist[int(ev.Pitch)%12] += ev.DurationBeats
		}
	}

	total := 0.0
	for _, v := range hist {
		total += v
	}
	if total > 0 {
		for i := range hist {
			hist[i] /= total
		}
	}
	return hist
}

// bestKey correlates the histogram against all 24 rotated profiles and
// returns the argmax plus the full ranked list (for confidence).
func bestKey(hist [12]float64) (scored, []scored) {
	var all []scored
	for tonic := 0; tonic < 12; tonic++ {
		all = append(all, scored{tonic: tonic, mode: model.ModeMajor, score: correlate(hist, majorProfile, tonic)})
		all = append(all, scored{tonic: tonic, mode: model.ModeMinor, score: correlate(hist, minorProfile, tonic)})
	}

	best := all[0]
	for _, s := range all[1:] {
		if s.score > best.score {
			best = s
		}
	}
	return best, all
}

// correlate computes the Pearson correlation between hist and profile
// rotated so the profile's tonic-degree aligns with pitch class `tonic`.
func correlate(hist [12]float64, profile [12]float64, tonic int) float64 {
	var rotated [12]float64
	for i := 0; i < 12; i++ {
		rotated[i] = profile[((i-tonic)%12+12)%12]
	}
	return pearson(hist[:], rotated[:])
}

func pearson(x, y []float64) float64 {
	n := float64(len(x))
	if n == 0 {
		return 0
	}
	var sumX, sumY float64
	for i := range x {
		sumX += x[i]
		sumY += y[i]
	}
	meanX, meanY := sumX/n, sumY/n

	var num, denX, denY float64
	for i := range x {
		dx := x[i] - meanX
		dy := y[i] - meanY
		num += dx * dy
		denX += dx * dx
		denY += dy * dy
	}
	den := math.Sqrt(denX * denY)
	if den == 0 {
		return 0
	}
	return num / den
}

// confidence is (best - second_best) / best, clamped to [0,1] per
// spec.md §4.7. A non-positive best correlation (no tonal center at all)
// reports zero confidence rather than a misleading ratio.
func confidence(ranked []scored) float64 {
	best, second := math.Inf(-1), math.Inf(-1)
	for _, s := range ranked {
		if s.score > best {
			second = best
			best = s.score
		} else if s.score > second {
			second = s.score
		}
	}
	if best <= 0 {
		return 0
	}
	c := (best - second) / best
	if c < 0 {
		c = 0
	}
	if c > 1 {
		c = 1
	}
	return c
}

// stability repeats detection on quartile-sized windows and reports the
// fraction agreeing with the global estimate (spec.md §4.7).
func stability(song *model.Song, global model.KeyEstimate) float64 {
	const windows = 4
	if song.EndBeat <= 0 {
		return 0
	}
	step := song.EndBeat / float64(windows)

	agree := 0
	for w := 0; w < windows; w++ {
		start := float64(w) * step
		end := start + step
		hist := histogram(song, start, end)
		best, _ := bestKey(hist)
		if best.tonic == global.Tonic && best.mode == global.Mode {
			agree++
		}
	}
	return float64(agree) / float64(windows)
}
