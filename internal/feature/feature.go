// Package feature computes the per-track scalar descriptors spec.md §4.3
// defines: density, polyphony, pitch statistics, syncopation, repetition,
// drum-likeness, and onset timing spread.
package feature

import (
	"math"
	"sort"

	"github.com/leafo/patterncorpus/internal/model"
)

// GridStepsPerBar is the resolution used for syncopation's metric-weight
// lookup; it matches the normalizer's default quantization grid.
const GridStepsPerBar = 16

// metricWeight returns the down-beat/half-bar/beat/half-beat/other weight
// for a grid step within a bar, per spec.md §4.3.
func metricWeight(step, gridStepsPerBar int) float64 {
	if gridStepsPerBar <= 0 {
		return 0.1
	}
	switch {
	case step == 0:
		return 1.0
	case gridStepsPerBar%2 == 0 && step == gridStepsPerBar/2:
		return 0.7
	case gridStepsPerBar%4 == 0 && step%(gridStepsPerBar/4) == 0:
		return 0.5
	case gridStepsPerBar%8 == 0 && step%(gridStepsPerBar/8) == 0:
		return 0.3
	default:
		return 0.1
	}
}

// Extractor computes Features for a Track within the context of its Song
// (bar/tempo maps are needed for density and syncopation).
type Extractor struct {
	GridStepsPerBar int
}

// New builds an Extractor with spec.md defaults.
func New() *Extractor {
	return &Extractor{GridStepsPerBar: GridStepsPerBar}
}

// Extract computes all Features fields for one track of a song.
func (e *Extractor) Extract(song *model.Song, track *model.Track) model.Features {
	events := track.NoteEvents
	var f model.Features

	if len(events) == 0 {
		return f
	}

	lastBar := song.BarAtBeat(song.EndBeat)
	if lastBar > 0 && song.BarStartBeat(lastBar) >= song.EndBeat {
		lastBar-- // EndBeat on a bar line: that bar holds no part of the song
	}
	totalBars := lastBar + 1
	if totalBars < 1 {
		totalBars = 1
	}

	f.Density = float64(len(events)) / float64(totalBars)
	f.PolyphonyRatio = polyphonyRatio(events)

	minPitch, maxPitch := events[0].Pitch, events[0].Pitch
	pitches := make([]float64, len(events))
	for i, ev := range events {
		if ev.Pitch < minPitch {
			minPitch = ev.Pitch
		}
		if ev.Pitch > maxPitch {
			maxPitch = ev.Pitch
		}
		pitches[i] = float64(ev.Pitch)
	}
	f.PitchRange = float64(maxPitch) - float64(minPitch)
	f.PitchRangeNorm = f.PitchRange / 127.0
	f.MedianPitch = median(pitches)

	f.Syncopation = syncopation(song, events, e.gridStepsPerBar())
	f.Repetition = repetition(song, events)
	f.DrumLikeness = drumLikeness(events)
	f.OnsetIQR = onsetIQR(events)
	f.DownbeatRatio = downbeatRatio(song, events, e.gridStepsPerBar())
	f.MeanDurationBeats = meanDuration(events)
	f.BrokenChordRatio = brokenChordRatio(events)

	return f
}

func (e *Extractor) gridStepsPerBar() int {
	if e.GridStepsPerBar <= 0 {
		return GridStepsPerBar
	}
	return e.GridStepsPerBar
}

// polyphonyRatio is the time-weighted mean of max(0, voices-1) normalized
// by the maximum observed polyphony (spec.md §4.3).
func polyphonyRatio(events []model.NoteEvent) float64 {
	type edge struct {
		beat float64
		delta int
	}
	edges := make([]edge, 0, len(events)*2)
	for _, ev := range events {
		edges = append(edges, edge{beat: ev.StartBeat, delta: 1})
		edges = append(edges, edge{beat: ev.EndBeat(), delta: -1})
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].beat == edges[j].beat {
			return edges[i].delta > edges[j].delta // opens before closes at the same instant
		}
		return edges[i].beat < edges[j].beat
	})

	voices := 0
	maxVoices := 0
	weightedExcess := 0.0
	totalTime := 0.0
	prevBeat := edges[0].beat

	for _, e := range edges {
		dt := e.beat - prevBeat
		if dt > 0 {
			excess := voices - 1
			if excess < 0 {
				excess = 0
			}
			weightedExcess += float64(excess) * dt
			totalTime += dt
		}
		voices += e.delta
		if voices > maxVoices {
			maxVoices = voices
		}
		prevBeat = e.beat
	}

	if totalTime <= 0 || maxVoices <= 1 {
		return 0
	}
	meanExcess := weightedExcess / totalTime
	maxExcess := float64(maxVoices - 1)
	if maxExcess <= 0 {
		return 0
	}
	return clamp01(meanExcess / maxExcess)
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func syncopation(song *model.Song, events []model.NoteEvent, gridStepsPerBar int) float64 {
	if len(events) == 0 {
		return 0
	}
	total := 0.0
	for _, ev := range events {
		bar := song.BarAtBeat(ev.StartBeat)
		barStart := song.BarStartBeat(bar)
		sig := song.TimeSigAtBar(bar)
		beatsPerBar := float64(sig.Numerator) * (4.0 / float64(sig.Denominator))
		beatsPerStep := beatsPerBar / float64(gridStepsPerBar)
		if beatsPerStep <= 0 {
			continue
		}
		step := int((ev.StartBeat-barStart)/beatsPerStep + 0.5)
		w := metricWeight(step%gridStepsPerBar, gridStepsPerBar)
		if w < 0.5 { // only onsets on weak (sub-beat) steps count
			total += 1 - w
		}
	}
	return total / float64(len(events))
}

// repetition is the Jaccard similarity of each bar's onset-step set versus
// its immediate successor, averaged across adjacent pairs.
func repetition(song *model.Song, events []model.NoteEvent) float64 {
	const gridStepsPerBar = GridStepsPerBar
	if len(events) == 0 {
		return 0
	}

	lastBar := 0
	for _, ev := range events {
		if b := song.BarAtBeat(ev.StartBeat); b > lastBar {
			lastBar = b
		}
	}

	barSets := make(map[int]map[int]bool)
	for _, ev := range events {
		bar := song.BarAtBeat(ev.StartBeat)
		barStart := song.BarStartBeat(bar)
		sig := song.TimeSigAtBar(bar)
		beatsPerBar := float64(sig.Numerator) * (4.0 / float64(sig.Denominator))
		beatsPerStep := beatsPerBar / float64(gridStepsPerBar)
		if beatsPerStep <= 0 {
			continue
		}
		step := int((ev.StartBeat-barStart)/beatsPerStep + 0.5)
		if barSets[bar] == nil {
			barSets[bar] = make(map[int]bool)
		}
		barSets[bar][step] = true
	}

	var totalSim float64
	var pairs int
	for bar := 0; bar < lastBar; bar++ {
		a, aOK := barSets[bar]
		b, bOK := barSets[bar+1]
		if !aOK && !bOK {
			continue
		}
		totalSim += jaccard(a, b)
		pairs++
	}
	if pairs == 0 {
		return 0
	}
	return totalSim / float64(pairs)
}

func jaccard(a, b map[int]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	union := make(map[int]bool, len(a)+len(b))
	intersection := 0
	for k := range a {
		union[k] = true
		if b[k] {
			intersection++
		}
	}
	for k := range b {
		union[k] = true
	}
	if len(union) == 0 {
		return 1
	}
	return float64(intersection) / float64(len(union))
}

// drumLikeness blends channel-10 membership, short note duration, and low
// pitch-class entropy (spec.md §4.3).
func drumLikeness(events []model.NoteEvent) float64 {
	if len(events) == 0 {
		return 0
	}

	channelCount := 0
	durations := make([]float64, len(events))
	pitchClassCounts := make(map[int]int)
	for i, ev := range events {
		if ev.Channel == 9 { // GM percussion channel, 0-indexed
			channelCount++
		}
		durations[i] = ev.DurationBeats
		pitchClassCounts[int(ev.Pitch)%12]++
	}

	channelScore := float64(channelCount) / float64(len(events))
	medianDur := median(durations)
	durationScore := 0.0
	if medianDur < 0.25 {
		durationScore = 1.0
	}

	entropy := pitchClassEntropy(pitchClassCounts, len(events))
	entropyScore := 1 - entropy/math.Log2(12)

	return 0.5*channelScore + 0.25*durationScore + 0.25*entropyScore
}

func pitchClassEntropy(counts map[int]int, total int) float64 {
	if total == 0 {
		return 0
	}
	entropy := 0.0
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / float64(total)
		entropy -= p * math.Log2(p)
	}
	return entropy
}

// onsetIQR is the interquartile range of inter-onset intervals.
func onsetIQR(events []model.NoteEvent) float64 {
	if len(events) < 3 {
		return 0
	}
	sorted := append([]model.NoteEvent(nil), events...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StartBeat < sorted[j].StartBeat })

	iois := make([]float64, 0, len(sorted)-1)
	for i := 1; i < len(sorted); i++ {
		iois = append(iois, sorted[i].StartBeat-sorted[i-1].StartBeat)
	}
	sort.Float64s(iois)

	q1 := percentile(iois, 0.25)
	q3 := percentile(iois, 0.75)
	return q3 - q1
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	idx := p * float64(len(sorted)-1)
	lo := int(math.Floor(idx))
	hi := int(math.Ceil(idx))
	if lo == hi {
		return sorted[lo]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func downbeatRatio(song *model.Song, events []model.NoteEvent, gridStepsPerBar int) float64 {
	if len(events) == 0 {
		return 0
	}
	onDownbeat := 0
	for _, ev := range events {
		bar := song.BarAtBeat(ev.StartBeat)
		barStart := song.BarStartBeat(bar)
		if math.Abs(ev.StartBeat-barStart) < 1e-6 {
			onDownbeat++
		}
	}
	return float64(onDownbeat) / float64(len(events))
}

func meanDuration(events []model.NoteEvent) float64 {
	if len(events) == 0 {
		return 0
	}
	total := 0.0
	for _, ev := range events {
		total += ev.DurationBeats
	}
	return total / float64(len(events))
}

// brokenChordRatio estimates how much of a track's motion is arpeggiated:
// the fraction of onsets whose pitch differs from the previous onset by a
// chord-like leap (a minor third or larger) rather than stepwise or
// repeated motion.
func brokenChordRatio(events []model.NoteEvent) float64 {
	sorted := append([]model.NoteEvent(nil), events...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StartBeat < sorted[j].StartBeat })

	if len(sorted) < 2 {
		return 0
	}

	leaps := 0
	for i := 1; i < len(sorted); i++ {
		diff := int(sorted[i].Pitch) - int(sorted[i-1].Pitch)
		if diff < 0 {
			diff = -diff
		}
		if diff >= 3 {
			leaps++
		}
	}
	return float64(leaps) / float64(len(sorted)-1)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
