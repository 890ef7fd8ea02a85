// Package config loads and saves the application configuration from a TOML
// file under the user's home directory.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/ramonehamilton/EDH-Recommender/internal/commander"
	"github.com/ramonehamilton/EDH-Recommender/internal/constraints"
	"github.com/ramonehamilton/EDH-Recommender/internal/deckbuilder"
	"github.com/ramonehamilton/EDH-Recommender/internal/engine"
	"github.com/ramonehamilton/EDH-Recommender/internal/matrix"
	"github.com/ramonehamilton/EDH-Recommender/internal/scoring"
	"github.com/ramonehamilton/EDH-Recommender/internal/similarity"
	"github.com/ramonehamilton/EDH-Recommender/internal/validation"
)

// Config represents the application configuration.
type Config struct {
	// Dataset locations
	Dataset DatasetConfig `toml:"dataset"`

	// Deck-card matrix construction
	Matrix MatrixConfig `toml:"matrix"`

	// Co-occurrence similarity model
	Similarity SimilarityConfig `toml:"similarity"`

	// Commander prior configuration
	Commander CommanderConfig `toml:"commander"`

	// Candidate scoring weights
	Scoring ScoringConfig `toml:"scoring"`

	// Full deck assembly
	DeckBuilder DeckBuilderConfig `toml:"deck_builder"`

	// Deck shape targets
	Shape ShapeConfig `toml:"shape"`

	// Hard legality constraints
	Constraints ConstraintsConfig `toml:"constraints"`

	// Hold-out validation defaults
	Validation ValidationConfig `toml:"validation"`

	// Archidekt fetch configuration
	Fetch FetchConfig `toml:"fetch"`

	// Application configuration
	App AppConfig `toml:"app"`
}

// DatasetConfig contains dataset locations.
type DatasetConfig struct {
	CompactPath string `toml:"compact_path"` // Compact snapshot path
	DataDir     string `toml:"data_dir"`     // Raw deck export directory
}

// MatrixConfig contains deck-card matrix settings.
type MatrixConfig struct {
	MinCardFrequency int  `toml:"min_card_frequency"` // Drop cards seen fewer times than this
	NormalizeRows    bool `toml:"normalize_rows"`     // Divide deck rows by total weight
}

// SimilarityConfig contains co-occurrence model settings.
type SimilarityConfig struct {
	TopK       int     `toml:"top_k"`       // Neighbors kept per card (0 = all)
	MinOverlap int     `toml:"min_overlap"` // Minimum decks a card pair must share
	Shrinkage  float64 `toml:"shrinkage"`   // Damping for low-overlap pairs
	Workers    int     `toml:"workers"`     // Fit goroutines (0 = GOMAXPROCS)
	CachePath  string  `toml:"cache_path"`  // Fitted model cache location
}

// CommanderConfig contains commander prior settings.
type CommanderConfig struct {
	Smoothing     float64 `toml:"smoothing"`      // Additive smoothing for rare cards
	MaxCommanders int     `toml:"max_commanders"` // Commanders contributing to the prior
}

// ScoringConfig contains candidate scoring weights.
type ScoringConfig struct {
	SimilarityWeight     float64 `toml:"similarity_weight"`
	CommanderPriorWeight float64 `toml:"commander_prior_weight"`
	FrequencyPriorWeight float64 `toml:"frequency_prior_weight"`
	ShapeWeight          float64 `toml:"shape_weight"`
	MaxCandidates        int     `toml:"max_candidates"` // Ranked output bound (0 = all)
}

// DeckBuilderConfig contains full deck assembly settings.
type DeckBuilderConfig struct {
	TargetSize     int     `toml:"target_size"`      // Full deck size including commanders
	MinScoreDelta  float64 `toml:"min_score_delta"`  // Minimum improvement for a swap
	RankedListSize int     `toml:"ranked_list_size"` // Explained candidate list bound
	MaxSwaps       int     `toml:"max_swaps"`        // Swap suggestions for complete decks
}

// ShapeConfig contains deck shape targets.
type ShapeConfig struct {
	Lands   int `toml:"lands"`
	Ramp    int `toml:"ramp"`
	Draw    int `toml:"draw"`
	Removal int `toml:"removal"`
}

// ConstraintsConfig contains hard legality constraints.
type ConstraintsConfig struct {
	Banned []string `toml:"banned"` // Extra banned cards by oracle id, uid, or name
}

// ValidationConfig contains hold-out validation defaults.
type ValidationConfig struct {
	HoldoutFraction float64 `toml:"holdout_fraction"` // Fraction of decks withheld
	SeedSize        int     `toml:"seed_size"`        // Cards revealed per holdout deck
	PrecisionK      []int   `toml:"precision_k"`      // Cutoffs for precision/recall
	RandomSeed      int64   `toml:"random_seed"`      // Holdout sampling seed
}

// FetchConfig contains Archidekt fetch settings.
type FetchConfig struct {
	OutputDir string `toml:"output_dir"` // Where deck exports land
	Limit     int    `toml:"limit"`      // Decks per fetch run
}

// AppConfig contains general application settings.
type AppConfig struct {
	DebugMode bool `toml:"debug_mode"` // Enable debug logging
}

// DefaultConfig returns the default configuration. Values mirror the package
// defaults so the file and the code never disagree.
func DefaultConfig() *Config {
	mat := matrix.DefaultConfig()
	sim := similarity.DefaultConfig()
	cmd := commander.DefaultConfig()
	score := scoring.DefaultConfig()
	build := deckbuilder.DefaultConfig()
	shape := constraints.DefaultShapeTarget()
	val := validation.DefaultConfig()

	return &Config{
		Dataset: DatasetConfig{
			CompactPath: "",
			DataDir:     "",
		},
		Matrix: MatrixConfig{
			MinCardFrequency: mat.MinCardFrequency,
			NormalizeRows:    mat.NormalizeRows,
		},
		Similarity: SimilarityConfig{
			TopK:       sim.TopK,
			MinOverlap: sim.MinOverlap,
			Shrinkage:  sim.Shrinkage,
			Workers:    sim.Workers,
			CachePath:  "",
		},
		Commander: CommanderConfig{
			Smoothing:     cmd.Smoothing,
			MaxCommanders: cmd.MaxCommanders,
		},
		Scoring: ScoringConfig{
			SimilarityWeight:     score.SimilarityWeight,
			CommanderPriorWeight: score.CommanderPriorWeight,
			FrequencyPriorWeight: score.FrequencyPriorWeight,
			ShapeWeight:          score.ShapeWeight,
			MaxCandidates:        score.MaxCandidates,
		},
		DeckBuilder: DeckBuilderConfig{
			TargetSize:     build.TargetSize,
			MinScoreDelta:  build.MinScoreDelta,
			RankedListSize: build.RankedListSize,
			MaxSwaps:       build.MaxSwaps,
		},
		Shape: ShapeConfig{
			Lands:   shape.Lands,
			Ramp:    shape.Ramp,
			Draw:    shape.Draw,
			Removal: shape.Removal,
		},
		Constraints: ConstraintsConfig{
			Banned: []string{},
		},
		Validation: ValidationConfig{
			HoldoutFraction: val.HoldoutFraction,
			SeedSize:        val.SeedSize,
			PrecisionK:      append([]int(nil), val.PrecisionK...),
			RandomSeed:      val.RandomSeed,
		},
		Fetch: FetchConfig{
			OutputDir: "",
			Limit:     200,
		},
		App: AppConfig{
			DebugMode: false,
		},
	}
}

// DataDir returns the application data directory, creating it if needed.
func DataDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}

	dir := filepath.Join(homeDir, ".edh-recommender")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create data directory: %w", err)
	}

	return dir, nil
}

// configPath returns the path to the configuration file.
func configPath() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load loads the configuration from its default location. Returns default
// config if the file doesn't exist.
func Load() (*Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom loads the configuration from path. Values absent from the file
// keep their defaults.
func LoadFrom(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	return config, nil
}

// Save saves the configuration to its default location.
func (c *Config) Save() error {
	path, err := configPath()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// SaveTo saves the configuration to path.
func (c *Config) SaveTo(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// ResolvePaths fills empty path fields with their default locations under
// the application data directory.
func (c *Config) ResolvePaths() error {
	dir, err := DataDir()
	if err != nil {
		return err
	}

	if c.Dataset.CompactPath == "" {
		c.Dataset.CompactPath = filepath.Join(dir, "compact.json.gz")
	}
	if c.Dataset.DataDir == "" {
		c.Dataset.DataDir = filepath.Join(dir, "decks")
	}
	if c.Similarity.CachePath == "" {
		c.Similarity.CachePath = filepath.Join(dir, "similarity.db")
	}
	if c.Fetch.OutputDir == "" {
		c.Fetch.OutputDir = c.Dataset.DataDir
	}

	return nil
}

// Validate validates the configuration values.
func (c *Config) Validate() error {
	if c.Validation.HoldoutFraction < 0 || c.Validation.HoldoutFraction > 1 {
		return fmt.Errorf("holdout fraction must be between 0 and 1: %g", c.Validation.HoldoutFraction)
	}
	if c.Validation.SeedSize < 0 {
		return fmt.Errorf("seed size cannot be negative: %d", c.Validation.SeedSize)
	}
	for _, k := range c.Validation.PrecisionK {
		if k <= 0 {
			return fmt.Errorf("precision cutoffs must be positive: %d", k)
		}
	}

	for name, weight := range map[string]float64{
		"similarity_weight":      c.Scoring.SimilarityWeight,
		"commander_prior_weight": c.Scoring.CommanderPriorWeight,
		"frequency_prior_weight": c.Scoring.FrequencyPriorWeight,
		"shape_weight":           c.Scoring.ShapeWeight,
	} {
		if weight < 0 {
			return fmt.Errorf("%s cannot be negative: %g", name, weight)
		}
	}

	if c.Similarity.Shrinkage < 0 {
		return fmt.Errorf("shrinkage cannot be negative: %g", c.Similarity.Shrinkage)
	}
	if c.Commander.Smoothing < 0 {
		return fmt.Errorf("smoothing cannot be negative: %g", c.Commander.Smoothing)
	}
	if c.DeckBuilder.TargetSize < 0 {
		return fmt.Errorf("target size cannot be negative: %d", c.DeckBuilder.TargetSize)
	}

	for name, target := range map[string]int{
		"lands":   c.Shape.Lands,
		"ramp":    c.Shape.Ramp,
		"draw":    c.Shape.Draw,
		"removal": c.Shape.Removal,
	} {
		if target < 0 {
			return fmt.Errorf("shape target %s cannot be negative: %d", name, target)
		}
	}

	if c.Fetch.Limit < 0 {
		return fmt.Errorf("fetch limit cannot be negative: %d", c.Fetch.Limit)
	}

	return nil
}

// EngineConfig assembles the engine configuration from the file values.
func (c *Config) EngineConfig(logger *slog.Logger) engine.Config {
	return engine.Config{
		CompactPath:     c.Dataset.CompactPath,
		DataDir:         c.Dataset.DataDir,
		SimilarityCache: c.Similarity.CachePath,
		Banned:          append([]string(nil), c.Constraints.Banned...),
		Matrix: matrix.Config{
			MinCardFrequency: c.Matrix.MinCardFrequency,
			NormalizeRows:    c.Matrix.NormalizeRows,
		},
		Similarity: similarity.Config{
			TopK:       c.Similarity.TopK,
			MinOverlap: c.Similarity.MinOverlap,
			Shrinkage:  c.Similarity.Shrinkage,
			Workers:    c.Similarity.Workers,
		},
		Commander: commander.Config{
			Smoothing:     c.Commander.Smoothing,
			MaxCommanders: c.Commander.MaxCommanders,
		},
		Scoring: scoring.Config{
			SimilarityWeight:     c.Scoring.SimilarityWeight,
			CommanderPriorWeight: c.Scoring.CommanderPriorWeight,
			FrequencyPriorWeight: c.Scoring.FrequencyPriorWeight,
			ShapeWeight:          c.Scoring.ShapeWeight,
			MaxCandidates:        c.Scoring.MaxCandidates,
		},
		DeckBuilder: deckbuilder.Config{
			TargetSize:     c.DeckBuilder.TargetSize,
			MinScoreDelta:  c.DeckBuilder.MinScoreDelta,
			RankedListSize: c.DeckBuilder.RankedListSize,
			MaxSwaps:       c.DeckBuilder.MaxSwaps,
		},
		Shape: constraints.ShapeTarget{
			Lands:   c.Shape.Lands,
			Ramp:    c.Shape.Ramp,
			Draw:    c.Shape.Draw,
			Removal: c.Shape.Removal,
		},
		Logger: logger,
	}
}

// ValidationOptions assembles the hold-out harness configuration.
func (c *Config) ValidationOptions() validation.Config {
	return validation.Config{
		HoldoutFraction: c.Validation.HoldoutFraction,
		SeedSize:        c.Validation.SeedSize,
		PrecisionK:      append([]int(nil), c.Validation.PrecisionK...),
		RandomSeed:      c.Validation.RandomSeed,
	}
}
