// Package arp implements ArpAnalyzer (spec.md §4.9): chord-window
// segmentation, monophonic interval/octave extraction, and rate
// quantization for tracks classified as arpeggios.
package arp

import (
	"math"
	"sort"

	"github.com/leafo/patterncorpus/internal/model"
)

// ArpRoleThreshold is the role_probs.arp cutoff spec.md §4.9 analyzes at.
const ArpRoleThreshold = 0.5

// RateAgreementThreshold is the minimum fraction of inter-onset intervals
// that must agree with the chosen rate before it is reported; below this,
// the window's rate is RateUnknown rather than a noisy guess (this
// resolves spec.md's open question on low-agreement IOI sequences).
const RateAgreementThreshold = 0.6

// GateMin/GateMax bound the gate of a window with a named rate; a window
// whose rate is RateUnknown reports a gate of 0.
const (
	GateMin = 0.05
	GateMax = 1.0
)

// Analyzer computes ArpAggregate for a track.
type Analyzer struct{}

// New builds an Analyzer.
func New() *Analyzer {
	return &Analyzer{}
}

type span struct{ startBeat, endBeat float64 }

// Analyze runs the full arpeggio analysis for one track. chords may be nil,
// in which case fixed 1-bar windows are used as the fallback segmentation.
func (a *Analyzer) Analyze(song *model.Song, track *model.Track, roleProbs model.RoleProbs, chords []model.ChordEvent) model.ArpAggregate {
	agg := model.ArpAggregate{TrackID: track.TrackID}
	if roleProbs[model.RoleArp] < ArpRoleThreshold {
		return agg
	}

	spans := windowSpans(song, chords)
	var windows []model.ArpWindow
	for _, sp := range spans {
		onsets := onsetsInSpan(track.NoteEvents, sp)
		if len(onsets) == 0 {
			continue
		}
		root := rootForSpan(sp, chords, onsets)
		w := analyzeWindow(sp, onsets, root)
		windows = append(windows, w)
	}

	agg.Windows = windows
	agg.DominantRate = dominantRate(windows)
	agg.MeanGate = meanGate(windows)
	agg.MostCommonIntervals = mostCommonIntervals(windows)
	return agg
}

// windowSpans uses the chord inferer's spans when available, falling back
// to fixed 1-bar windows (spec.md §4.9).
func windowSpans(song *model.Song, chords []model.ChordEvent) []span {
	if len(chords) > 0 {
		spans := make([]span, len(chords))
		for i, c := range chords {
			spans[i] = span{startBeat: c.StartBeat, endBeat: c.EndBeat}
		}
		return spans
	}

	if song.EndBeat <= 0 {
		return nil
	}
	lastBar := song.BarAtBeat(song.EndBeat)
	spans := make([]span, 0, lastBar+1)
	for bar := 0; bar <= lastBar; bar++ {
		spans = append(spans, span{startBeat: song.BarStartBeat(bar), endBeat: song.BarStartBeat(bar + 1)})
	}
	return spans
}

func onsetsInSpan(events []model.NoteEvent, sp span) []model.NoteEvent {
	var out []model.NoteEvent
	for _, ev := range events {
		if ev.StartBeat >= sp.startBeat && ev.StartBeat < sp.endBeat {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartBeat < out[j].StartBeat })
	return out
}

// rootForSpan uses the matching chord's root pitch class if one exists
// for this exact span, else the lowest-pitched onset in the window.
func rootForSpan(sp span, chords []model.ChordEvent, onsets []model.NoteEvent) int {
	for _, c := range chords {
		if c.StartBeat == sp.startBeat && c.EndBeat == sp.endBeat {
			return c.Root
		}
	}
	lowest := onsets[0].Pitch
	for _, ev := range onsets {
		if ev.Pitch < lowest {
			lowest = ev.Pitch
		}
	}
	return int(lowest) % 12
}

func analyzeWindow(sp span, onsets []model.NoteEvent, root int) model.ArpWindow {
	intervals := make([]int, len(onsets))
	octaves := make([]int, len(onsets))
	firstPitch := int(onsets[0].Pitch)

	for i, ev := range onsets {
		intervals[i] = ((int(ev.Pitch)-root)%12 + 12) % 12
		octaves[i] = int(math.Floor(float64(int(ev.Pitch)-firstPitch) / 12.0))
	}

	iois := make([]float64, 0, len(onsets)-1)
	for i := 1; i < len(onsets); i++ {
		iois = append(iois, onsets[i].StartBeat-onsets[i-1].StartBeat)
	}
	rate := rateFromIOIs(iois)

	gate := 0.0
	if rateBeats, ok := model.RateBeats[rate]; ok && rateBeats > 0 {
		total := 0.0
		for _, ev := range onsets {
			total += ev.DurationBeats / rateBeats
		}
		gate = total / float64(len(onsets))
		gate = clampGate(gate)
	}

	return model.ArpWindow{
		StartBeat:        sp.startBeat,
		EndBeat:          sp.endBeat,
		Rate:             rate,
		IntervalSequence: intervals,
		OctaveJumps:      octaves,
		Gate:             gate,
	}
}

func clampGate(g float64) float64 {
	if g < GateMin {
		return GateMin
	}
	if g > GateMax {
		return GateMax
	}
	return g
}

func nearestRate(ioi float64) model.Rate {
	best := model.OrderedRates[0]
	bestDiff := math.Inf(1)
	for _, r := range model.OrderedRates {
		diff := math.Abs(model.RateBeats[r] - ioi)
		if diff < bestDiff {
			bestDiff = diff
			best = r
		}
	}
	return best
}

func rateFromIOIs(iois []float64) model.Rate {
	if len(iois) == 0 {
		return model.RateUnknown
	}
	med := median(iois)
	chosen := nearestRate(med)

	matches := 0
	for _, ioi := range iois {
		if nearestRate(ioi) == chosen {
			matches++
		}
	}
	if float64(matches)/float64(len(iois)) < RateAgreementThreshold {
		return model.RateUnknown
	}
	return chosen
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func dominantRate(windows []model.ArpWindow) model.Rate {
	counts := make(map[model.Rate]int)
	for _, w := range windows {
		counts[w.Rate]++
	}
	best := model.RateUnknown
	bestCount := -1
	for _, r := range append([]model.Rate{model.RateUnknown}, model.OrderedRates...) {
		if counts[r] > bestCount {
			bestCount = counts[r]
			best = r
		}
	}
	return best
}

func meanGate(windows []model.ArpWindow) float64 {
	if len(windows) == 0 {
		return 0
	}
	total := 0.0
	for _, w := range windows {
		total += w.Gate
	}
	return total / float64(len(windows))
}

func mostCommonIntervals(windows []model.ArpWindow) []int {
	counts := make(map[string]int)
	seqs := make(map[string][]int)
	var keys []string
	for _, w := range windows {
		k := intervalsKey(w.IntervalSequence)
		if counts[k] == 0 {
			keys = append(keys, k)
		}
		counts[k]++
		seqs[k] = w.IntervalSequence
	}
	sort.Strings(keys) // deterministic tie-break

	best := ""
	bestCount := -1
	for _, k := range keys {
		if counts[k] > bestCount {
			bestCount = counts[k]
			best = k
		}
	}
	return seqs[best]
}

func intervalsKey(intervals []int) string {
	b := make([]byte, len(intervals))
	for i, v := range intervals {
		b[i] = byte(v)
	}
	return string(b)
}
