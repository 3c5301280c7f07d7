package chunk

import (
	"crypto/sha256"

	"github.com/leafo/patterncorpus/internal/model"
)

// VelocityBucket classifies a MIDI velocity into one of three loudness
// tiers used by the weighted rhythm fingerprint variant.
type VelocityBucket uint8

const (
	BucketNone VelocityBucket = iota
	BucketSoft
	BucketMedium
	BucketLoud
)

func velocityBucket(v uint8) VelocityBucket {
	switch {
	case v == 0:
		return BucketNone
	case v < 64:
		return BucketSoft
	case v < 96:
		return BucketMedium
	default:
		return BucketLoud
	}
}

// pitchClampMin/Max bound the signed semitone interval encoded per step of
// the pitch fingerprint (spec.md §4.5: clamp to [-64,63]).
const (
	pitchClampMin = -64
	pitchClampMax = 63
)

// Fingerprinter computes the deterministic content hashes of a Chunk.
type Fingerprinter struct {
	// Weighted selects the velocity-bucket rhythm fingerprint variant
	// (2 bits/step) instead of the plain onset/no-onset bitset.
	Weighted bool
}

// NewFingerprinter builds a Fingerprinter in the default binary-onset mode.
func NewFingerprinter() *Fingerprinter {
	return &Fingerprinter{}
}

// Fingerprint computes RhythmFP, PitchFP and ComboFP for a chunk.
func (fp *Fingerprinter) Fingerprint(c model.Chunk) FingerprintResult {
	rhythm := fp.rhythmFingerprint(c)
	pitch := pitchFingerprint(c)
	combo := comboFingerprint(rhythm, pitch)
	return FingerprintResult{RhythmFP: rhythm, PitchFP: pitch, ComboFP: combo}
}

// FingerprintResult is the byte-slice form returned by Fingerprint; callers
// assemble it into model.Fingerprint alongside a derived PatternID.
type FingerprintResult struct {
	RhythmFP []byte
	PitchFP  []byte
	ComboFP  []byte
}

// rhythmFingerprint hashes a bitset over the chunk's grid steps, prefixed
// by (length_bars, grid_steps_per_bar) so chunks of different shapes never
// collide even if their onset bits happen to coincide.
func (fp *Fingerprinter) rhythmFingerprint(c model.Chunk) []byte {
	gridLen := c.GridLength()

	var bits []byte
	if fp.Weighted {
		bits = weightedBitset(c, gridLen)
	} else {
		bits = binaryBitset(c, gridLen)
	}

	prefix := []byte{byte(c.LengthBars), byte(c.GridStepsPerBar)}
	h := sha256.New()
	h.Write(prefix)
	h.Write(bits)
	return h.Sum(nil)
}

func binaryBitset(c model.Chunk, gridLen int) []byte {
	occupied := make([]bool, gridLen)
	for _, step := range c.OnsetSteps {
		if step >= 0 && step < gridLen {
			occupied[step] = true
		}
	}
	return packBits(occupied)
}

func packBits(occupied []bool) []byte {
	out := make([]byte, (len(occupied)+7)/8)
	for i, set := range occupied {
		if set {
			out[i/8] |= 1 << uint(7-i%8)
		}
	}
	return out
}

// weightedBitset packs 2 bits per step (a VelocityBucket) rather than 1.
func weightedBitset(c model.Chunk, gridLen int) []byte {
	buckets := make([]VelocityBucket, gridLen)
	for i, ev := range c.Onsets {
		step := c.OnsetSteps[i]
		if step < 0 || step >= gridLen {
			continue
		}
		b := velocityBucket(ev.Velocity)
		if b > buckets[step] {
			buckets[step] = b // loudest onset wins if a step holds more than one
		}
	}
	out := make([]byte, (gridLen*2+7)/8)
	for i, b := range buckets {
		bitPos := i * 2
		out[bitPos/8] |= byte(b) << uint(6-bitPos%8)
	}
	return out
}

// pitchFingerprint hashes the signed, clamped semitone-interval sequence
// of every onset relative to the chunk's first onset (spec.md §4.5).
func pitchFingerprint(c model.Chunk) []byte {
	seq := pitchIntervalBytes(c)
	h := sha256.Sum256(seq)
	return h[:]
}

func pitchIntervalBytes(c model.Chunk) []byte {
	seq := make([]byte, 0, len(c.Onsets))
	for _, diff := range PitchIntervals(c) {
		seq = append(seq, byte(int8(diff)))
	}
	return seq
}

// PitchIntervals returns the clamped semitone-interval sequence of every
// onset relative to the chunk's first onset (the first element is always
// 0). Exported for internal/pattern, which needs the raw sequence (not
// just its hash) to compute edit-distance similarity.
func PitchIntervals(c model.Chunk) []int {
	if len(c.Onsets) == 0 {
		return nil
	}
	root := int(c.Onsets[0].Pitch)
	out := make([]int, 0, len(c.Onsets))
	for _, onset := range c.Onsets {
		diff := int(onset.Pitch) - root
		if diff < pitchClampMin {
			diff = pitchClampMin
		}
		if diff > pitchClampMax {
			diff = pitchClampMax
		}
		out = append(out, diff)
	}
	return out
}

// RhythmBitset returns the pre-hash onset bitset for a chunk, for use by
// internal/pattern's Hamming-distance similarity gate (a cryptographic
// hash has no distance-preserving structure, so clustering needs the raw
// bits rather than rhythm_fp itself).
func RhythmBitset(c model.Chunk, weighted bool) []byte {
	gridLen := c.GridLength()
	if weighted {
		return weightedBitset(c, gridLen)
	}
	return binaryBitset(c, gridLen)
}

func comboFingerprint(rhythmFP, pitchFP []byte) []byte {
	h := sha256.New()
	h.Write(rhythmFP)
	h.Write(pitchFP)
	return h.Sum(nil)
}
