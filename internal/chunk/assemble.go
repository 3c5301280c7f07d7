package chunk

import "github.com/leafo/patterncorpus/internal/model"

// ChunkAndFingerprint runs the Chunker then the Fingerprinter over a track,
// returning each chunk paired with its model.Fingerprint. This is the
// entry point the analysis pipeline calls per track.
func ChunkAndFingerprint(song *model.Song, track *model.Track, weighted bool) []model.Chunk {
	chunks := New().Chunk(song, track)
	fp := &Fingerprinter{Weighted: weighted}

	out := make([]model.Chunk, len(chunks))
	for i, c := range chunks {
		result := fp.Fingerprint(c)
		c.Fingerprint = model.Fingerprint{
			RhythmFP: result.RhythmFP,
			PitchFP:  result.PitchFP,
			ComboFP:  result.ComboFP,
		}
		out[i] = c
	}
	return out
}
