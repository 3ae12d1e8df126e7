package service

import (
	"os"
	"strconv"
)

// Config holds the tunable parameters of the case pipeline.
type Config struct {
	// MinSimilarity is the minimum policy-match score required for a
	// generated draft to be reviewable. Configurable because no single
	// threshold suits every organization's policy corpus.
	MinSimilarity float64

	// TopK is the number of policy matches retained per match run.
	TopK int

	// GenerateTemperature and RegenerateTemperature are passed through to
	// the language model; regeneration runs warmer so repeated calls can
	// legitimately produce different letters.
	GenerateTemperature   float32
	RegenerateTemperature float32
}

// DefaultConfig returns the pipeline defaults.
func DefaultConfig() Config {
	return Config{
		MinSimilarity:         0.35,
		TopK:                  5,
		GenerateTemperature:   0.3,
		RegenerateTemperature: 0.6,
	}
}

// ConfigFromEnv builds a Config from environment variables, falling back
// to defaults for anything unset or unparseable.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	if v := os.Getenv("REVIEWABLE_MIN_SIMILARITY"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 && f <= 1 {
			cfg.MinSimilarity = f
		}
	}
	if v := os.Getenv("POLICY_MATCH_TOP_K"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.TopK = n
		}
	}
	return cfg
}
