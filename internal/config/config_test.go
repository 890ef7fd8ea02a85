package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 200, cfg.Similarity.TopK)
	assert.Equal(t, 2, cfg.Similarity.MinOverlap)
	assert.InDelta(t, 0.5, cfg.Similarity.Shrinkage, 1e-9)
	assert.InDelta(t, 0.6, cfg.Scoring.SimilarityWeight, 1e-9)
	assert.Equal(t, 500, cfg.Scoring.MaxCandidates)
	assert.Equal(t, 100, cfg.DeckBuilder.TargetSize)
	assert.Equal(t, 38, cfg.Shape.Lands)
	assert.Equal(t, []int{5, 10, 20}, cfg.Validation.PrecisionK)
	assert.Equal(t, int64(42), cfg.Validation.RandomSeed)
	assert.InDelta(t, 0.1, cfg.Validation.HoldoutFraction, 1e-9)
	assert.Equal(t, 60, cfg.Validation.SeedSize)

	assert.NoError(t, cfg.Validate())
}

func TestLoadFromMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.toml")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := DefaultConfig()
	cfg.Dataset.CompactPath = "/data/compact.json.gz"
	cfg.Similarity.TopK = 64
	cfg.Scoring.SimilarityWeight = 0.8
	cfg.Constraints.Banned = []string{"braids-cabal-minion", "Sol Ring"}
	cfg.Validation.PrecisionK = []int{3}
	cfg.App.DebugMode = true

	require.NoError(t, cfg.SaveTo(path))

	loaded, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := "[similarity]\ntop_k = 50\n\n[shape]\nlands = 36\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.Similarity.TopK)
	assert.Equal(t, 36, cfg.Shape.Lands)
	// Untouched values keep their defaults.
	assert.InDelta(t, 0.5, cfg.Similarity.Shrinkage, 1e-9)
	assert.Equal(t, 10, cfg.Shape.Ramp)
	assert.InDelta(t, 0.6, cfg.Scoring.SimilarityWeight, 1e-9)
}

func TestLoadFromMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[similarity\ntop_k ="), 0o644))

	_, err := LoadFrom(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"holdout fraction above one", func(c *Config) { c.Validation.HoldoutFraction = 1.5 }, true},
		{"negative holdout fraction", func(c *Config) { c.Validation.HoldoutFraction = -0.1 }, true},
		{"negative seed size", func(c *Config) { c.Validation.SeedSize = -1 }, true},
		{"zero precision cutoff", func(c *Config) { c.Validation.PrecisionK = []int{5, 0} }, true},
		{"negative weight", func(c *Config) { c.Scoring.ShapeWeight = -0.2 }, true},
		{"negative shrinkage", func(c *Config) { c.Similarity.Shrinkage = -1 }, true},
		{"negative smoothing", func(c *Config) { c.Commander.Smoothing = -0.5 }, true},
		{"negative target size", func(c *Config) { c.DeckBuilder.TargetSize = -10 }, true},
		{"negative shape target", func(c *Config) { c.Shape.Draw = -1 }, true},
		{"negative fetch limit", func(c *Config) { c.Fetch.Limit = -5 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEngineConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Dataset.CompactPath = "/data/compact.json.gz"
	cfg.Dataset.DataDir = "/data/decks"
	cfg.Similarity.TopK = 99
	cfg.Similarity.CachePath = "/data/similarity.db"
	cfg.Shape.Lands = 40
	cfg.Constraints.Banned = []string{"123"}

	ec := cfg.EngineConfig(nil)

	assert.Equal(t, "/data/compact.json.gz", ec.CompactPath)
	assert.Equal(t, "/data/decks", ec.DataDir)
	assert.Equal(t, "/data/similarity.db", ec.SimilarityCache)
	assert.Equal(t, 99, ec.Similarity.TopK)
	assert.Equal(t, 40, ec.Shape.Lands)
	assert.InDelta(t, 0.3, ec.Scoring.CommanderPriorWeight, 1e-9)
	assert.Equal(t, 25, ec.DeckBuilder.RankedListSize)
	assert.Equal(t, []string{"123"}, ec.Banned)

	// The engine config holds its own copy of the ban entries.
	ec.Banned[0] = "456"
	assert.Equal(t, []string{"123"}, cfg.Constraints.Banned)
}

func TestValidationOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Validation.PrecisionK = []int{7}
	cfg.Validation.RandomSeed = 7

	opts := cfg.ValidationOptions()
	assert.Equal(t, []int{7}, opts.PrecisionK)
	assert.Equal(t, int64(7), opts.RandomSeed)

	// The options hold their own copy of the cutoffs.
	opts.PrecisionK[0] = 99
	assert.Equal(t, []int{7}, cfg.Validation.PrecisionK)
}

func TestResolvePaths(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg := DefaultConfig()
	require.NoError(t, cfg.ResolvePaths())

	base := filepath.Join(home, ".edh-recommender")
	assert.Equal(t, filepath.Join(base, "compact.json.gz"), cfg.Dataset.CompactPath)
	assert.Equal(t, filepath.Join(base, "decks"), cfg.Dataset.DataDir)
	assert.Equal(t, filepath.Join(base, "similarity.db"), cfg.Similarity.CachePath)
	assert.Equal(t, cfg.Dataset.DataDir, cfg.Fetch.OutputDir)

	// Explicit values are left alone.
	cfg2 := DefaultConfig()
	cfg2.Dataset.CompactPath = "/elsewhere/compact.json"
	require.NoError(t, cfg2.ResolvePaths())
	assert.Equal(t, "/elsewhere/compact.json", cfg2.Dataset.CompactPath)
}
