package batch

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/leafo/patterncorpus/internal/pipeline"
)

// FileCheckpoint is a JSON-file-backed Checkpoint journal: simple enough
// that restarts are just "read the file back in", matching spec.md §5's
// "on restart, workers skip completed stages" without needing a database
// round trip for what is, in practice, a small per-batch file.
type FileCheckpoint struct {
	path string

	mu    sync.Mutex
	stage map[string]pipeline.Stage
}

// OpenFileCheckpoint loads an existing checkpoint journal from path, or
// starts a fresh one if the file doesn't exist yet.
func OpenFileCheckpoint(path string) (*FileCheckpoint, error) {
	fc := &FileCheckpoint{path: path, stage: make(map[string]pipeline.Stage)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return fc, nil
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return fc, nil
	}
	if err := json.Unmarshal(data, &fc.stage); err != nil {
		return nil, err
	}
	return fc, nil
}

// StageCompleted reports the last stage recorded for songID.
func (fc *FileCheckpoint) StageCompleted(songID string) (pipeline.Stage, bool) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	stage, ok := fc.stage[songID]
	return stage, ok
}

// RecordStage persists songID's stage and flushes the journal to disk
// immediately, so a crash mid-batch loses at most the in-flight song.
func (fc *FileCheckpoint) RecordStage(songID string, stage pipeline.Stage) error {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.stage[songID] = stage

	data, err := json.Marshal(fc.stage)
	if err != nil {
		return err
	}
	return os.WriteFile(fc.path, data, 0o644)
}
