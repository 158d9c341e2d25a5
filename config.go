package catsort

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the categorization engine.
type Config struct {
	// DBPath is the path to the SQLite catalog database.
	DBPath string `json:"db_path" yaml:"db_path"`

	// CheckpointPath is where batch progress is persisted between runs.
	CheckpointPath string `json:"checkpoint_path" yaml:"checkpoint_path"`

	// BodyWordCap limits how many leading body words contribute to the
	// search text. Long descriptions dilute the query otherwise.
	BodyWordCap int `json:"body_word_cap" yaml:"body_word_cap"`

	// MaxKeywords caps the extracted keyword list.
	MaxKeywords int `json:"max_keywords" yaml:"max_keywords"`

	// MinKeywordRunes drops tokens at or below this rune length.
	MinKeywordRunes int `json:"min_keyword_runes" yaml:"min_keyword_runes"`

	// CandidateLimit is how many ranked candidates the index returns
	// per query.
	CandidateLimit int `json:"candidate_limit" yaml:"candidate_limit"`

	// DirectWeight and OverlapWeight are the fusion multipliers applied
	// to the direct-match and keyword-overlap scores. DirectWeight must
	// be greater than OverlapWeight, and both greater than 1, so the
	// heuristics can override small relevance gaps without eclipsing a
	// high engine score.
	DirectWeight  float64 `json:"direct_weight" yaml:"direct_weight"`
	OverlapWeight float64 `json:"overlap_weight" yaml:"overlap_weight"`

	// CheckpointEvery persists progress after this many processed
	// products.
	CheckpointEvery int `json:"checkpoint_every" yaml:"checkpoint_every"`

	// QueryTimeoutSeconds bounds per-product index and store calls.
	// Zero disables the deadline.
	QueryTimeoutSeconds int `json:"query_timeout_seconds" yaml:"query_timeout_seconds"`

	// ThrottleMillis sleeps between products during a batch run.
	ThrottleMillis int `json:"throttle_millis" yaml:"throttle_millis"`
}

// DefaultConfig returns a Config with the defaults used in production.
func DefaultConfig() Config {
	return Config{
		DBPath:              "catsort.db",
		CheckpointPath:      "categorization_progress.json",
		BodyWordCap:         15,
		MaxKeywords:         10,
		MinKeywordRunes:     2,
		CandidateLimit:      20,
		DirectWeight:        10,
		OverlapWeight:       5,
		CheckpointEvery:     5,
		QueryTimeoutSeconds: 10,
	}
}

// LoadConfig reads a YAML config file and merges it over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration invariants.
func (c Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("%w: db_path is required", ErrInvalidConfig)
	}
	if c.BodyWordCap <= 0 {
		return fmt.Errorf("%w: body_word_cap must be positive", ErrInvalidConfig)
	}
	if c.MaxKeywords <= 0 {
		return fmt.Errorf("%w: max_keywords must be positive", ErrInvalidConfig)
	}
	if c.CandidateLimit <= 0 {
		return fmt.Errorf("%w: candidate_limit must be positive", ErrInvalidConfig)
	}
	if c.CheckpointEvery <= 0 {
		return fmt.Errorf("%w: checkpoint_every must be positive", ErrInvalidConfig)
	}
	if !(c.DirectWeight > c.OverlapWeight && c.OverlapWeight > 1) {
		return fmt.Errorf("%w: weights must satisfy direct > overlap > 1", ErrInvalidConfig)
	}
	return nil
}
