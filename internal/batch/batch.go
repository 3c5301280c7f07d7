// Package batch runs Pipeline.Run across a corpus of songs with a
// worker-per-song pool, cooperative cancellation, and a per-song
// checkpoint journal (spec.md §5).
package batch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/leafo/patterncorpus/internal/corpuserr"
	"github.com/leafo/patterncorpus/internal/pattern"
	"github.com/leafo/patterncorpus/internal/pipeline"
)

// Source supplies one song's raw bytes and source path. internal/batch
// doesn't know about the filesystem or any particular storage layout.
type Source struct {
	SongID     string
	SourcePath string
	Raw        []byte
}

// Checkpoint records the last stage completed for a song, so a restarted
// batch can skip songs already finished (spec.md §5).
type Checkpoint interface {
	StageCompleted(songID string) (pipeline.Stage, bool)
	RecordStage(songID string, stage pipeline.Stage) error
}

// Sink persists a finished song's analysis. batch does not import
// internal/store: a caller adapts *store.DB to this interface (as
// cmd/corpusctl's storeSink does), keeping the dependency direction
// one-way (store has no knowledge of batch). Pattern
// mining is corpus-wide by nature (spec.md §4.6 dedups across the entire
// corpus, not just one song), so it is not part of this per-song
// interface: the caller runs internal/pattern.Miner once over every
// ChunkRecords batch.Run collected, after the batch finishes.
type Sink interface {
	PutSong(result pipeline.Result) error
}

// Progress is one unit of reporting sent on the batch's progress channel,
// mirroring the teacher's ScanProgress shape.
type Progress struct {
	SongID  string
	Status  string // processing, done, skipped, error
	Error   string
}

// Runner drives the worker pool.
type Runner struct {
	Pipeline    *pipeline.Pipeline
	Checkpoint  Checkpoint
	Sink        Sink
	Concurrency int
	Logger      *slog.Logger

	recordsMu sync.Mutex
	records   []pattern.ChunkRecord
}

// ChunkRecords returns every ChunkRecord collected by successfully
// processed songs since the Runner was created. Call after <-progress
// channel has closed so all workers have finished appending.
func (r *Runner) ChunkRecords() []pattern.ChunkRecord {
	r.recordsMu.Lock()
	defer r.recordsMu.Unlock()
	out := make([]pattern.ChunkRecord, len(r.records))
	copy(out, r.records)
	return out
}

// NewRunner builds a Runner with sane defaults.
func NewRunner(p *pipeline.Pipeline, cp Checkpoint, sink Sink, concurrency int, logger *slog.Logger) *Runner {
	if concurrency <= 0 {
		concurrency = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{Pipeline: p, Checkpoint: cp, Sink: sink, Concurrency: concurrency, Logger: logger}
}

// Run processes sources with Concurrency workers, reporting progress on
// the returned channel (closed when processing finishes or ctx is
// cancelled). Cancellation is cooperative: the feeder and each worker
// check ctx only between songs, so a song already handed to
// Pipeline.Run is analyzed to the end before the worker exits; ctx is
// not observed between the stages of one song.
func (r *Runner) Run(ctx context.Context, sources []Source) <-chan Progress {
	progress := make(chan Progress, len(sources))
	jobs := make(chan Source)

	var wg sync.WaitGroup
	for i := 0; i < r.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.worker(ctx, jobs, progress)
		}()
	}

	go func() {
		defer close(jobs)
		for _, src := range sources {
			select {
			case <-ctx.Done():
				return
			case jobs <- src:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(progress)
	}()

	return progress
}

func (r *Runner) worker(ctx context.Context, jobs <-chan Source, progress chan<- Progress) {
	for src := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		startAt := pipeline.StageNormalize
		if stage, ok := r.Checkpoint.StageCompleted(src.SongID); ok && stage == pipeline.StageDone {
			progress <- Progress{SongID: src.SongID, Status: "skipped"}
			continue
		} else if ok {
			startAt = stage
		}

		progress <- Progress{SongID: src.SongID, Status: "processing"}

		result, err := r.Pipeline.Run(src.Raw, src.SourcePath, startAt)
		if err != nil {
			r.handleStageError(src.SongID, err, progress)
			continue
		}

		if err := r.Sink.PutSong(result); err != nil {
			// checkpoint is left unadvanced regardless of error kind: the
			// song is retried on the next run (spec.md §7's StoreError
			// handling, applied uniformly since any persistence failure
			// here means the song row was not durably written).
			progress <- Progress{SongID: src.SongID, Status: "error", Error: err.Error()}
			continue
		}

		r.recordsMu.Lock()
		r.records = append(r.records, result.ChunkRecords...)
		r.recordsMu.Unlock()

		if err := r.Checkpoint.RecordStage(src.SongID, pipeline.StageDone); err != nil {
			r.Logger.Warn("failed to record checkpoint", "song_id", src.SongID, "error", err)
		}
		progress <- Progress{SongID: src.SongID, Status: "done"}
	}
}

func (r *Runner) handleStageError(songID string, err error, progress chan<- Progress) {
	if corpuserr.IsKind(err, corpuserr.InvariantViolation) {
		// spec.md §7: an InvariantViolation aborts the whole batch, not
		// just this song, since it indicates a bug rather than bad input.
		panic(corpuserr.Wrap(corpuserr.InvariantViolation, "aborting batch", err))
	}
	progress <- Progress{SongID: songID, Status: "error", Error: err.Error()}
}

// RetryConfig is the metadata-sink timeout/retry/backoff policy of
// spec.md §5/§7: 10s per-request timeout, exponential backoff, a
// 3-attempt budget.
type RetryConfig struct {
	Timeout     time.Duration
	MaxAttempts int
	BaseBackoff time.Duration
}

// DefaultRetryConfig matches spec.md's stated defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{Timeout: 10 * time.Second, MaxAttempts: 3, BaseBackoff: 500 * time.Millisecond}
}

// WithRetry runs fn up to cfg.MaxAttempts times with exponential backoff
// between attempts, each bounded by cfg.Timeout, returning the last error
// if every attempt fails (spec.md §7: ExternalServiceError after retry
// budget is non-fatal to the song; the caller is expected to cache the
// negative result and continue).
func WithRetry(ctx context.Context, cfg RetryConfig, fn func(context.Context) error) error {
	var lastErr error
	backoff := cfg.BaseBackoff
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		err := fn(attemptCtx)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == cfg.MaxAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return corpuserr.Wrap(corpuserr.ExternalService, "retry budget exhausted", lastErr)
}
