package chord

import (
	"sort"
	"strings"

	"github.com/leafo/patterncorpus/internal/model"
)

type rawEvent struct {
	window     window
	root       int
	quality    model.ChordQuality
	confidence float64
}

// qualityIndex returns model.AllQualities' fixed order index, used to
// build a sortable numeric id for median filtering.
func qualityIndex(q model.ChordQuality) int {
	for i, cand := range model.AllQualities {
		if cand == q {
			return i
		}
	}
	return 0
}

func candidateID(root int, quality model.ChordQuality) int {
	return root*len(model.AllQualities) + qualityIndex(quality)
}

func idToRootQuality(id int) (int, model.ChordQuality) {
	n := len(model.AllQualities)
	return id / n, model.AllQualities[id%n]
}

// Infer runs the full per-window scoring, 3-window median smoothing,
// adjacent-merge, and low-confidence merge passes, returning the song's
// inferred chord progression (spec.md §4.8).
func (ci *Inferer) Infer(song *model.Song, key model.KeyEstimate) []model.ChordEvent {
	wins := ci.windows(song)
	if len(wins) == 0 {
		return nil
	}

	raw := make([]rawEvent, len(wins))
	for i, w := range wins {
		weights := pitchClassWeights(song, w)
		best, conf := bestCandidate(weights, key)
		raw[i] = rawEvent{window: w, root: best.root, quality: best.quality, confidence: conf}
	}

	smoothed := medianFilter(raw)
	merged := mergeAdjacent(smoothed)
	merged = mergeLowConfidence(merged)

	events := make([]model.ChordEvent, len(merged))
	for i, e := range merged {
		events[i] = model.ChordEvent{
			StartBeat:  e.window.startBeat,
			EndBeat:    e.window.endBeat,
			Root:       e.root,
			Quality:    e.quality,
			Roman:      romanNumeral(e.root, e.quality, key),
			Confidence: e.confidence,
		}
	}
	return events
}

// medianFilter runs a 3-window median filter over the (root,quality)
// numeric id sequence (spec.md §4.8); the first and last windows, lacking
// a full neighborhood, pass through unchanged.
func medianFilter(raw []rawEvent) []rawEvent {
	if len(raw) < 3 {
		return raw
	}
	out := make([]rawEvent, len(raw))
	copy(out, raw)

	for i := 1; i < len(raw)-1; i++ {
		ids := []int{
			candidateID(raw[i-1].root, raw[i-1].quality),
			candidateID(raw[i].root, raw[i].quality),
			candidateID(raw[i+1].root, raw[i+1].quality),
		}
		sort.Ints(ids)
		root, quality := idToRootQuality(ids[1])
		out[i].root = root
		out[i].quality = quality
	}
	return out
}

// mergeAdjacent collapses consecutive windows sharing (root,quality) into
// one span, averaging their confidence.
func mergeAdjacent(events []rawEvent) []rawEvent {
	if len(events) == 0 {
		return nil
	}
	var out []rawEvent
	cur := events[0]
	count := 1.0

	for _, e := range events[1:] {
		if e.root == cur.root && e.quality == cur.quality {
			cur.window.endBeat = e.window.endBeat
			cur.confidence += e.confidence
			count++
			continue
		}
		cur.confidence /= count
		out = append(out, cur)
		cur = e
		count = 1
	}
	cur.confidence /= count
	out = append(out, cur)
	return out
}

// mergeLowConfidence folds any event below LowConfidenceMergeThreshold
// into whichever neighbor has higher confidence (spec.md §4.8).
func mergeLowConfidence(events []rawEvent) []rawEvent {
	changed := true
	for changed {
		changed = false
		for i, e := range events {
			if e.confidence >= LowConfidenceMergeThreshold || len(events) < 2 {
				continue
			}
			prevConf, nextConf := -1.0, -1.0
			if i > 0 {
				prevConf = events[i-1].confidence
			}
			if i < len(events)-1 {
				nextConf = events[i+1].confidence
			}

			if prevConf < 0 && nextConf < 0 {
				continue
			}

			if nextConf > prevConf {
				events[i+1].window.startBeat = e.window.startBeat
			} else {
				events[i-1].window.endBeat = e.window.endBeat
			}
			events = append(events[:i], events[i+1:]...)
			changed = true
			break
		}
	}
	return events
}

// chromaticRomanBase labels each semitone offset from the tonic using
// standard flat-accidental chromatic roman numerals.
var chromaticRomanBase = [12]string{
	"I", "bII", "II", "bIII", "III", "IV", "bV", "V", "bVI", "VI", "bVII", "VII",
}

// romanNumeral labels a chord's root/quality relative to the detected key.
func romanNumeral(root int, quality model.ChordQuality, key model.KeyEstimate) string {
	offset := ((root - key.Tonic) % 12 + 12) % 12
	base := chromaticRomanBase[offset]

	lower := quality == model.QualityMin || quality == model.QualityMin7 || quality == model.QualityDim
	if lower {
		base = strings.ToLower(base)
	}

	switch quality {
	case model.QualityDim:
		base += "°"
	case model.QualityAug:
		base += "+"
	case model.QualityMaj7, model.QualityMin7, model.QualityDom7:
		base += "7"
	case model.QualitySus4:
		base += "sus4"
	}
	return base
}
