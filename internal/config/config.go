// Package config loads CORPUS_* environment configuration, optionally
// from a .env file (github.com/joho/godotenv, as the pack's own
// kirbs-btw-spotify-playlist-dataset loads Spotify credentials).
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds every environment-tunable setting the CLI and server need.
type Config struct {
	DatabasePath string // CORPUS_DB_PATH, default "corpus.db"
	ListenAddr   string // CORPUS_LISTEN_ADDR, default ":8080"
	Concurrency  int    // CORPUS_CONCURRENCY, default 4

	MetadataSinkURL string // CORPUS_METADATA_SINK_URL, empty disables enrichment
	MetadataCacheTTLDays int // CORPUS_METADATA_CACHE_TTL_DAYS, default 30

	CheckpointPath string // CORPUS_CHECKPOINT_PATH, default "checkpoint.json"
}

// Load reads a .env file if present (missing is not an error; godotenv's
// own Load returns one, which we swallow, matching environments where
// configuration comes entirely from the process environment) then layers
// CORPUS_* environment variables over the defaults.
func Load(envFile string) (Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	_ = godotenv.Load(envFile)

	cfg := Config{
		DatabasePath:         "corpus.db",
		ListenAddr:           ":8080",
		Concurrency:          4,
		MetadataCacheTTLDays: 30,
		CheckpointPath:       "checkpoint.json",
	}

	if v := os.Getenv("CORPUS_DB_PATH"); v != "" {
		cfg.DatabasePath = v
	}
	if v := os.Getenv("CORPUS_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("CORPUS_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: CORPUS_CONCURRENCY: %w", err)
		}
		cfg.Concurrency = n
	}
	if v := os.Getenv("CORPUS_METADATA_SINK_URL"); v != "" {
		cfg.MetadataSinkURL = v
	}
	if v := os.Getenv("CORPUS_METADATA_CACHE_TTL_DAYS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: CORPUS_METADATA_CACHE_TTL_DAYS: %w", err)
		}
		cfg.MetadataCacheTTLDays = n
	}
	if v := os.Getenv("CORPUS_CHECKPOINT_PATH"); v != "" {
		cfg.CheckpointPath = v
	}

	return cfg, nil
}
