// Package dataset loads deck data into the in-memory structures the
// recommendation pipeline consumes. Two sources are supported: a directory of
// raw per-deck Archidekt JSON exports, and a single pre-aggregated compact
// snapshot (optionally gzip-compressed). The package also writes compact
// snapshots so raw directories can be collapsed into a single artifact.
package dataset

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/ramonehamilton/EDH-Recommender/internal/deck"
)

// ErrDatasetNotFound indicates that no configured data source resolved to an
// existing file or directory.
var ErrDatasetNotFound = errors.New("dataset not found")

// Loader reads deck datasets from disk.
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a dataset loader. A nil logger falls back to slog.Default().
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// Load resolves the dataset from the preferred compact snapshot path, falling
// back to the raw deck directory. Either argument may be empty. Returns an
// error wrapping ErrDatasetNotFound when neither source exists.
func (l *Loader) Load(compactPath, dataDir string) (*deck.Dataset, error) {
	if compactPath != "" {
		if _, err := os.Stat(compactPath); err == nil {
			return l.LoadCompact(compactPath)
		}
		l.logger.Warn("compact snapshot not found, trying raw directory", "path", compactPath)
	}
	if dataDir != "" {
		if info, err := os.Stat(dataDir); err == nil && info.IsDir() {
			return l.LoadDir(dataDir)
		}
		return nil, fmt.Errorf("raw deck directory %s: %w", dataDir, ErrDatasetNotFound)
	}
	return nil, fmt.Errorf("no dataset source configured: %w", ErrDatasetNotFound)
}
