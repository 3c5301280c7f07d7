// Package normalize converts a parsed MIDI event stream (gomidi/midi/v2's
// smf.SMF, the external binary-format reader's output) into the
// beat-domain model.Song spec.md §4.1 describes: tempo map, time-signature
// map, and paired note events per track.
package normalize

import (
	"bytes"
	"fmt"
	"log"
	"sort"

	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/leafo/patterncorpus/internal/model"
)

// DefaultMicrosecondsPerQuarter is 120 BPM, the MIDI spec's default tempo
// when a file carries no set-tempo meta event (spec.md §4.1).
const DefaultMicrosecondsPerQuarter = 500000

// DefaultGridStepsPerBar is the quantization resolution used when no
// explicit grid resolution is requested.
const DefaultGridStepsPerBar = 16

// MinDurationBeats is the smallest duration a paired note event is allowed
// to round to. Percussive grace notes can legitimately pair note-on/off on
// the same tick; dropping them would silently shrink onset counts and
// break fingerprint reproducibility across re-exports with slightly
// different tick placement, so they're clamped instead (see SPEC_FULL.md's
// normalize supplement).
const MinDurationBeats = 1.0 / 128.0

// Normalizer converts raw MIDI bytes into a normalized Song.
type Normalizer struct {
	// GridStepsPerBar records the default quantization resolution. StepIndex
	// takes its grid resolution as an argument and does not read this field.
	GridStepsPerBar int
}

// New builds a Normalizer with spec.md defaults.
func New() *Normalizer {
	return &Normalizer{GridStepsPerBar: DefaultGridStepsPerBar}
}

// Normalize parses raw standard-MIDI-file bytes and returns the normalized
// Song. sourcePath is recorded on the Song but never read from.
func (n *Normalizer) Normalize(raw []byte, sourcePath string) (*model.Song, error) {
	smfData, err := smf.ReadFrom(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("normalize: parse midi: %w", err)
	}

	ticksPerQuarter, ok := smfData.TimeFormat.(smf.MetricTicks)
	if !ok {
		return nil, fmt.Errorf("normalize: unsupported time format %v", smfData.TimeFormat)
	}
	tpq := float64(ticksPerQuarter)
	if tpq <= 0 {
		tpq = 480
	}

	song := &model.Song{
		SongID:     model.SongIDFromContent(raw),
		SourcePath: sourcePath,
	}

	tempoMap := buildTempoMap(smfData, tpq)
	timeSigMap := buildTimeSigMap(smfData, tpq)
	song.TempoMap = tempoMap
	song.TimeSigMap = timeSigMap

	var endBeat float64
	for i, rawTrack := range smfData.Tracks {
		track, warnings := buildTrack(song.SongID, i, rawTrack, tpq)
		song.Tracks = append(song.Tracks, track)
		song.Warnings = append(song.Warnings, warnings...)

		for _, ev := range track.NoteEvents {
			if end := ev.EndBeat(); end > endBeat {
				endBeat = end
			}
		}
	}
	song.EndBeat = endBeat

	return song, nil
}

// buildTempoMap scans every track for set-tempo meta events (tempo changes
// can appear on any track, though convention places them on track 0) and
// returns a sorted, non-overlapping TempoSegment list in beat-domain
// coordinates, defaulting to 500000us/qn (120 BPM) when none are found.
func buildTempoMap(smfData *smf.SMF, tpq float64) []model.TempoSegment {
	type rawTempo struct {
		tick uint32
		usPerQuarter int
	}

	var events []rawTempo
	for _, track := range smfData.Tracks {
		var currentTick uint32
		for _, ev := range track {
			currentTick += ev.Delta
			var bpm float64
			if ev.Message.GetMetaTempo(&bpm) && bpm > 0 {
				events = append(events, rawTempo{tick: currentTick, usPerQuarter: int(60000000.0 / bpm)})
			}
		}
	}

	sort.SliceStable(events, func(i, j int) bool { return events[i].tick < events[j].tick })

	if len(events) == 0 {
		return []model.TempoSegment{{StartBeat: 0, MicrosecondsPerQuarter: DefaultMicrosecondsPerQuarter}}
	}

	segments := make([]model.TempoSegment, 0, len(events))
	for i, e := range events {
		startBeat := float64(e.tick) / tpq
		if i > 0 && startBeat == segments[len(segments)-1].StartBeat {
			// multiple tempo events at the same tick: last one wins
			segments[len(segments)-1].MicrosecondsPerQuarter = e.usPerQuarter
			continue
		}
		segments = append(segments, model.TempoSegment{StartBeat: startBeat, MicrosecondsPerQuarter: e.usPerQuarter})
	}

	if segments[0].StartBeat != 0 {
		segments = append([]model.TempoSegment{{StartBeat: 0, MicrosecondsPerQuarter: DefaultMicrosecondsPerQuarter}}, segments...)
	}

	return segments
}

// buildTimeSigMap scans every track for time-signature meta events and
// converts their tick positions into bar indices by walking the
// accumulated map so far, per spec.md §4.1's "bar index of beat b is
// computed by walking the time-signature map."
func buildTimeSigMap(smfData *smf.SMF, tpq float64) []model.TimeSigSegment {
	type rawSig struct {
		tick            uint32
		numerator       int
		denominator     int
	}

	var events []rawSig
	for _, track := range smfData.Tracks {
		var currentTick uint32
		for _, ev := range track {
			currentTick += ev.Delta
			var num, denomPow uint8
			if ev.Message.GetMetaTimeSig(&num, &denomPow, nil, nil) {
				denom := 1 << denomPow
				if num > 0 && isValidDenominator(denom) {
					events = append(events, rawSig{tick: currentTick, numerator: int(num), denominator: denom})
				}
			}
		}
	}

	sort.SliceStable(events, func(i, j int) bool { return events[i].tick < events[j].tick })

	if len(events) == 0 {
		return []model.TimeSigSegment{{StartBar: 0, Numerator: 4, Denominator: 4}}
	}

	segments := make([]model.TimeSigSegment, 0, len(events))
	var prevBeat float64
	var prevBar int
	var prevBeatsPerBar float64 = 4.0

	for i, e := range events {
		beat := float64(e.tick) / tpq

		var startBar int
		if i == 0 {
			startBar = 0
		} else {
			elapsedBeats := beat - prevBeat
			bars := 0
			if prevBeatsPerBar > 0 {
				bars = int(elapsedBeats/prevBeatsPerBar + 0.5)
			}
			startBar = prevBar + bars
		}

		if i > 0 && startBar == prevBar && beat == prevBeat {
			segments[len(segments)-1] = model.TimeSigSegment{StartBar: startBar, Numerator: e.numerator, Denominator: e.denominator}
		} else {
			segments = append(segments, model.TimeSigSegment{StartBar: startBar, Numerator: e.numerator, Denominator: e.denominator})
		}

		prevBeat = beat
		prevBar = startBar
		prevBeatsPerBar = float64(e.numerator) * (4.0 / float64(e.denominator))
	}

	if segments[0].StartBar != 0 {
		segments = append([]model.TimeSigSegment{{StartBar: 0, Numerator: 4, Denominator: 4}}, segments...)
	}

	return segments
}

func isValidDenominator(d int) bool {
	switch d {
	case 1, 2, 4, 8, 16, 32:
		return true
	default:
		return false
	}
}

// noteKey identifies a sounding note for on/off pairing.
type noteKey struct {
	channel uint8
	pitch   uint8
}

type pendingNote struct {
	startTick uint32
	velocity  uint8
}

// buildTrack pairs note-on/note-off events into NoteEvents and extracts the
// track's display name, returning any warnings produced by downgraded
// NormalizationErrors (spec.md §7: unmatched note-ons are discarded with a
// warning, not an abort).
func buildTrack(songID string, index int, rawTrack smf.Track, tpq float64) (model.Track, []string) {
	track := model.Track{
		TrackID: model.TrackID(songID, index, getTrackName(rawTrack)),
		SongID:  songID,
		Name:    getTrackName(rawTrack),
	}

	pending := make(map[noteKey]pendingNote)
	var warnings []string
	var currentTick uint32

	for _, ev := range rawTrack {
		currentTick += ev.Delta
		msg := ev.Message

		var ch, key, vel uint8
		if msg.GetNoteOn(&ch, &key, &vel) {
			k := noteKey{channel: ch, pitch: key}
			if vel == 0 {
				// note-on with velocity 0 is an implicit note-off
				closeNote(&track, pending, k, currentTick, tpq)
				continue
			}
			if _, exists := pending[k]; exists {
				// overlapping note-on for the same (channel,pitch): close
				// the previous one at this tick rather than losing it.
				closeNote(&track, pending, k, currentTick, tpq)
			}
			pending[k] = pendingNote{startTick: currentTick, velocity: vel}
			track.Channel = ch
		} else if msg.GetNoteOff(&ch, &key, &vel) {
			k := noteKey{channel: ch, pitch: key}
			closeNote(&track, pending, k, currentTick, tpq)
		}
	}

	if len(pending) > 0 {
		keys := make([]noteKey, 0, len(pending))
		for k := range pending {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool {
			if keys[i].channel != keys[j].channel {
				return keys[i].channel < keys[j].channel
			}
			return keys[i].pitch < keys[j].pitch
		})
		for _, k := range keys {
			warnings = append(warnings, fmt.Sprintf("track %s: unmatched note-on channel=%d pitch=%d discarded", track.TrackID, k.channel, k.pitch))
			log.Printf("normalize: track %s unmatched note-on channel=%d pitch=%d discarded", track.TrackID, k.channel, k.pitch)
		}
	}

	sort.SliceStable(track.NoteEvents, func(i, j int) bool {
		return track.NoteEvents[i].StartBeat < track.NoteEvents[j].StartBeat
	})

	return track, warnings
}

func closeNote(track *model.Track, pending map[noteKey]pendingNote, k noteKey, endTick uint32, tpq float64) {
	p, ok := pending[k]
	if !ok {
		return
	}
	delete(pending, k)

	startBeat := float64(p.startTick) / tpq
	durationBeats := float64(endTick-p.startTick) / tpq
	if durationBeats < MinDurationBeats {
		durationBeats = MinDurationBeats
	}

	track.NoteEvents = append(track.NoteEvents, model.NoteEvent{
		StartBeat:     startBeat,
		DurationBeats: durationBeats,
		Pitch:         k.pitch,
		Velocity:      p.velocity,
		Channel:       k.channel,
	})
}

func getTrackName(track smf.Track) string {
	for _, ev := range track {
		var name string
		if ev.Message.GetMetaTrackName(&name) {
			return name
		}
	}
	return ""
}
