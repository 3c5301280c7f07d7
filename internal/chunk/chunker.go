// Package chunk segments tracks into fixed-length bar windows and computes
// their deterministic fingerprints (spec.md §4.5).
package chunk

import (
	"sort"

	"github.com/leafo/patterncorpus/internal/model"
)

// LengthsBars are the three window sizes chunks are emitted at.
var LengthsBars = []int{1, 2, 4}

// DefaultGridStepsPerBar matches the normalizer's default quantization.
const DefaultGridStepsPerBar = 16

// Chunker segments a track into non-overlapping, bar-aligned windows.
type Chunker struct {
	GridStepsPerBar int
}

// New builds a Chunker with spec.md defaults.
func New() *Chunker {
	return &Chunker{GridStepsPerBar: DefaultGridStepsPerBar}
}

// Chunk emits all non-empty chunks for a track across the three bucketed
// lengths (spec.md §4.5: "for each length ... emit non-overlapping chunks
// starting on bar boundaries that contain >=1 onset").
func (c *Chunker) Chunk(song *model.Song, track *model.Track) []model.Chunk {
	if len(track.NoteEvents) == 0 {
		return nil
	}

	grid := c.gridStepsPerBar()
	lastBar := 0
	for _, ev := range track.NoteEvents {
		if b := song.BarAtBeat(ev.StartBeat); b > lastBar {
			lastBar = b
		}
	}

	var chunks []model.Chunk
	for _, length := range LengthsBars {
		for startBar := 0; startBar <= lastBar; startBar += length {
			windowStart := song.BarStartBeat(startBar)
			windowEnd := song.BarStartBeat(startBar + length)

			onsets := onsetsInWindow(track.NoteEvents, windowStart, windowEnd)
			if len(onsets) == 0 {
				continue
			}

			steps := make([]int, len(onsets))
			for i, ev := range onsets {
				steps[i] = relativeStep(song, startBar, length, grid, ev.StartBeat)
			}

			ch := model.Chunk{
				TrackID:         track.TrackID,
				StartBar:        startBar,
				LengthBars:      length,
				GridStepsPerBar: grid,
				Onsets:          onsets,
				OnsetSteps:      steps,
			}
			ch.ShapeDescriptor = buildShapeDescriptor(song, startBar, length, grid, onsets, steps)
			chunks = append(chunks, ch)
		}
	}

	return chunks
}

func (c *Chunker) gridStepsPerBar() int {
	if c.GridStepsPerBar <= 0 {
		return DefaultGridStepsPerBar
	}
	return c.GridStepsPerBar
}

// onsetsInWindow returns the note events starting in [windowStart,
// windowEnd), with StartBeat rebased to be relative to windowStart so
// fingerprints depend only on the chunk's internal shape.
func onsetsInWindow(events []model.NoteEvent, windowStart, windowEnd float64) []model.NoteEvent {
	var out []model.NoteEvent
	for _, ev := range events {
		if ev.StartBeat >= windowStart && ev.StartBeat < windowEnd {
			rebased := ev
			rebased.StartBeat = ev.StartBeat - windowStart
			out = append(out, rebased)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartBeat < out[j].StartBeat })
	return out
}

func buildShapeDescriptor(song *model.Song, startBar, lengthBars, grid int, onsets []model.NoteEvent, steps []int) model.ShapeDescriptor {
	gridLen := lengthBars * grid
	accent := make([]float64, gridLen)
	counts := make([]int, gridLen)

	for i, ev := range onsets {
		step := steps[i]
		if step < 0 || step >= gridLen {
			continue
		}
		accent[step] += float64(ev.Velocity)
		counts[step]++
	}
	for i := range accent {
		if counts[i] > 0 {
			accent[i] /= float64(counts[i])
		}
	}

	contour := make([]int, 0, len(onsets))
	for i := 1; i < len(onsets); i++ {
		contour = append(contour, int(onsets[i].Pitch)-int(onsets[i-1].Pitch))
	}

	return model.ShapeDescriptor{
		Density:       float64(len(onsets)) / float64(lengthBars),
		AccentProfile: accent,
		PitchContour:  contour,
		OnsetCount:    len(onsets),
	}
}

// relativeStep computes the chunk-relative grid step (0..lengthBars*grid-1)
// of an onset whose StartBeat is already relative to the chunk's start.
func relativeStep(song *model.Song, startBar, lengthBars, grid int, relBeat float64) int {
	// Onsets may span bars of different meters within the chunk (rare but
	// possible around a time-signature change); walk bar-by-bar to find
	// which sub-bar the onset lands in and its step within that bar.
	beatCursor := 0.0
	for barOffset := 0; barOffset < lengthBars; barOffset++ {
		bar := startBar + barOffset
		sig := song.TimeSigAtBar(bar)
		beatsPerBar := float64(sig.Numerator) * (4.0 / float64(sig.Denominator))
		beatsPerStep := beatsPerBar / float64(grid)

		if relBeat < beatCursor+beatsPerBar || barOffset == lengthBars-1 {
			withinBar := relBeat - beatCursor
			if beatsPerStep <= 0 {
				return barOffset * grid
			}
			step := int(withinBar/beatsPerStep + 0.5)
			if step < 0 {
				step = 0
			}
			if step >= grid {
				step = grid - 1
			}
			return barOffset*grid + step
		}
		beatCursor += beatsPerBar
	}
	return 0
}
