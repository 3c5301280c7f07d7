package normalize

import "github.com/leafo/patterncorpus/internal/model"

// StepIndex returns the quantized grid step of an onset at beat b within
// bar, for the given grid resolution (spec.md §4.1: "step index of an
// onset at beat b within bar B is round((b - bar_start_beat(B)) /
// beats_per_step)"). Raw timing is left untouched on the NoteEvent; this is
// purely a read-side view.
func StepIndex(song *model.Song, bar int, b float64, gridStepsPerBar int) int {
	beatsPerStep := beatsPerStep(song, bar, gridStepsPerBar)
	if beatsPerStep <= 0 {
		return 0
	}
	barStart := song.BarStartBeat(bar)
	step := int((b-barStart)/beatsPerStep + 0.5)
	if step < 0 {
		step = 0
	}
	if step >= gridStepsPerBar {
		step = gridStepsPerBar - 1
	}
	return step
}

func beatsPerStep(song *model.Song, bar int, gridStepsPerBar int) float64 {
	sig := song.TimeSigAtBar(bar)
	beatsPerBar := float64(sig.Numerator) * (4.0 / float64(sig.Denominator))
	if gridStepsPerBar <= 0 {
		return beatsPerBar
	}
	return beatsPerBar / float64(gridStepsPerBar)
}
