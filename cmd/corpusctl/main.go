// Command corpusctl replaces leafo-songtool's single-file main.go with the
// three operations SPEC_FULL.md's service needs: analyze a directory of
// MIDI files into the pattern corpus, serve the ClipQuery API, and run an
// ad hoc query from the command line.
package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/leafo/patterncorpus/internal/api"
	"github.com/leafo/patterncorpus/internal/batch"
	"github.com/leafo/patterncorpus/internal/config"
	"github.com/leafo/patterncorpus/internal/metadata"
	"github.com/leafo/patterncorpus/internal/model"
	"github.com/leafo/patterncorpus/internal/pattern"
	"github.com/leafo/patterncorpus/internal/pipeline"
	"github.com/leafo/patterncorpus/internal/store"
)

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#00AA00"))
	errStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5555")).Bold(true)
	skipStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	hdrStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF"))
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "analyze":
		runAnalyze(os.Args[2:])
	case "serve":
		runServe(os.Args[2:])
	case "query":
		runQuery(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: %s <command> [flags]

Commands:
  analyze   scan a directory of MIDI files into the pattern corpus
  serve     run the ClipQuery HTTP API
  query     run a one-off pattern query against the corpus

`, os.Args[0])
}

// runAnalyze walks a directory of .mid/.midi files through the pipeline
// and a batch.Runner, then mines patterns over the whole corpus once the
// batch completes (spec.md §4.6's corpus-wide dedup is not a per-song
// concern, so it happens after, not during, the batch).
func runAnalyze(args []string) {
	fset := flag.NewFlagSet("analyze", flag.ExitOnError)
	envFile := fset.String("env", "", "path to a .env file (default .env)")
	root := fset.String("dir", ".", "directory to scan recursively for .mid/.midi files")
	fset.Parse(args)

	cfg, err := config.Load(*envFile)
	if err != nil {
		fatal("config", err)
	}

	logger := slog.Default()

	db, err := store.Open(cfg.DatabasePath, logger)
	if err != nil {
		fatal("open store", err)
	}
	defer db.Close()

	var sink metadata.Sink
	if cfg.MetadataSinkURL != "" {
		sink = metadata.NewRestySink(cfg.MetadataSinkURL, 5, time.Second)
	}

	sources, err := discoverSources(*root)
	if err != nil {
		fatal("discover sources", err)
	}
	if len(sources) == 0 {
		fmt.Println(skipStyle.Render("no .mid/.midi files found under " + *root))
		return
	}

	cp, err := batch.OpenFileCheckpoint(cfg.CheckpointPath)
	if err != nil {
		fatal("open checkpoint", err)
	}

	runner := batch.NewRunner(pipeline.New(sink), cp, &storeSink{db: db}, cfg.Concurrency, logger)

	fmt.Println(hdrStyle.Render(fmt.Sprintf("analyzing %d song(s) with %d worker(s)", len(sources), cfg.Concurrency)))

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	var done, failed, skipped int
	for p := range runner.Run(ctx, sources) {
		switch p.Status {
		case "done":
			done++
			fmt.Println(okStyle.Render("ok   ") + p.SongID)
		case "skipped":
			skipped++
			fmt.Println(skipStyle.Render("skip ") + p.SongID)
		case "error":
			failed++
			fmt.Println(errStyle.Render("fail ") + p.SongID + ": " + p.Error)
		}
	}

	records := runner.ChunkRecords()
	fmt.Println(hdrStyle.Render(fmt.Sprintf("mining patterns over %d chunk(s)", len(records))))

	miner := pattern.New()
	patterns, instances := miner.Mine(records)

	for i := range patterns {
		if err := db.PutPattern(&patterns[i]); err != nil {
			fatal("persist pattern", err)
		}
	}
	for i := range instances {
		if err := db.PutPatternInstance(&instances[i]); err != nil {
			fatal("persist pattern instance", err)
		}
	}

	fmt.Println(hdrStyle.Render(fmt.Sprintf(
		"done: %d analyzed, %d skipped, %d failed, %d pattern(s) mined",
		done, skipped, failed, len(patterns))))
}

// storeSink adapts *store.DB's PutSong(song, status) to batch.Sink's
// PutSong(pipeline.Result) shape.
type storeSink struct {
	db *store.DB
}

func (s *storeSink) PutSong(result pipeline.Result) error {
	return s.db.PutSong(result.Song, result.Status)
}

func discoverSources(root string) ([]batch.Source, error) {
	var sources []batch.Source
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".mid" && ext != ".midi" {
			return nil
		}
		raw, readErr := os.ReadFile(path)
		if readErr != nil {
			return readErr
		}
		sources = append(sources, batch.Source{
			SongID:     model.SongIDFromContent(raw),
			SourcePath: path,
			Raw:        raw,
		})
		return nil
	})
	return sources, err
}

func runServe(args []string) {
	fset := flag.NewFlagSet("serve", flag.ExitOnError)
	envFile := fset.String("env", "", "path to a .env file (default .env)")
	fset.Parse(args)

	cfg, err := config.Load(*envFile)
	if err != nil {
		fatal("config", err)
	}

	db, err := store.Open(cfg.DatabasePath, slog.Default())
	if err != nil {
		fatal("open store", err)
	}
	defer db.Close()

	srv := api.New(db)
	fmt.Println(hdrStyle.Render("listening on " + cfg.ListenAddr))
	if err := srv.Run(cfg.ListenAddr); err != nil {
		fatal("serve", err)
	}
}

func runQuery(args []string) {
	fset := flag.NewFlagSet("query", flag.ExitOnError)
	envFile := fset.String("env", "", "path to a .env file (default .env)")
	role := fset.String("role", "", "filter by role")
	genre := fset.String("genre", "", "filter by genre")
	artist := fset.String("artist", "", "filter by artist")
	meter := fset.String("meter", "", "filter by meter, e.g. 4/4")
	minBars := fset.Int("min-bars", 0, "minimum length_bars")
	maxBars := fset.Int("max-bars", 0, "maximum length_bars")
	limit := fset.Int("limit", 20, "max results")
	offset := fset.Int("offset", 0, "result offset")
	fset.Parse(args)

	cfg, err := config.Load(*envFile)
	if err != nil {
		fatal("config", err)
	}

	db, err := store.Open(cfg.DatabasePath, slog.Default())
	if err != nil {
		fatal("open store", err)
	}
	defer db.Close()

	results, err := db.Query(store.ClipQuery{
		Role:          model.Role(*role),
		Genre:         *genre,
		Artist:        *artist,
		Meter:         *meter,
		MinLengthBars: *minBars,
		MaxLengthBars: *maxBars,
		Limit:         *limit,
		Offset:        *offset,
	})
	if err != nil {
		fatal("query", err)
	}

	for _, r := range results {
		fmt.Printf("%s  role=%-8s len=%dbar meter=%-5s instances=%d songs=%d\n",
			r.Pattern.PatternID, r.Pattern.Role, r.Pattern.LengthBars, r.Pattern.Meter,
			r.Pattern.Stats.InstanceCount, r.Pattern.Stats.SongCount)
	}
	fmt.Println(skipStyle.Render(fmt.Sprintf("%d result(s)", len(results))))
}

func fatal(context string, err error) {
	fmt.Fprintln(os.Stderr, errStyle.Render(context+": "+err.Error()))
	os.Exit(1)
}
