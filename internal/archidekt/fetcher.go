package archidekt

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"
)

// searchPageSize is how many deck summaries each search request asks for.
const searchPageSize = 50

// rawExport is the on-disk deck export format. The deck payload is stored
// verbatim under deck_data so later loader changes can pick up fields the
// fetcher never looked at.
type rawExport struct {
	DeckID   int64           `json:"deck_id"`
	DeckData json.RawMessage `json:"deck_data"`
}

// Fetcher downloads deck exports into a local directory.
type Fetcher struct {
	client *Client
	outDir string
	logger *slog.Logger
}

// NewFetcher creates a fetcher writing into outDir. A nil logger falls back
// to slog.Default().
func NewFetcher(client *Client, outDir string, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		client: client,
		outDir: outDir,
		logger: logger,
	}
}

// FetchDeck downloads one deck and writes it as <outDir>/<id>.json. It
// returns the path of the written file.
func (f *Fetcher) FetchDeck(ctx context.Context, deckID int64) (string, error) {
	raw, err := f.client.GetDeck(ctx, deckID)
	if err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(rawExport{DeckID: deckID, DeckData: raw}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode deck %d: %w", deckID, err)
	}

	if err := os.MkdirAll(f.outDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	path := filepath.Join(f.outDir, fmt.Sprintf("%d.json", deckID))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write deck export: %w", err)
	}

	f.logger.Debug("Deck export written", "deck_id", deckID, "path", path)
	return path, nil
}

// FetchDecks downloads the given decks, skipping ones that fail. It returns
// the paths of the files it wrote.
func (f *Fetcher) FetchDecks(ctx context.Context, deckIDs []int64) ([]string, error) {
	var paths []string
	for _, deckID := range deckIDs {
		select {
		case <-ctx.Done():
			return paths, ctx.Err()
		default:
		}

		path, err := f.FetchDeck(ctx, deckID)
		if err != nil {
			if ctx.Err() != nil {
				return paths, ctx.Err()
			}
			f.logger.Warn("Skipping deck", "deck_id", deckID, "error", err)
			continue
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// FetchRecent discovers the most recently updated Commander decks and
// downloads up to limit of them.
func (f *Fetcher) FetchRecent(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}

	var paths []string
	for page := 1; len(paths) < limit; page++ {
		result, err := f.client.SearchCommanderDecks(ctx, page, searchPageSize)
		if err != nil {
			return paths, fmt.Errorf("failed to list decks: %w", err)
		}
		if len(result.Results) == 0 {
			break
		}

		for _, summary := range result.Results {
			if len(paths) >= limit {
				break
			}
			select {
			case <-ctx.Done():
				return paths, ctx.Err()
			default:
			}

			path, err := f.FetchDeck(ctx, summary.ID)
			if err != nil {
				if ctx.Err() != nil {
					return paths, ctx.Err()
				}
				f.logger.Warn("Skipping deck", "deck_id", summary.ID, "error", err)
				continue
			}
			paths = append(paths, path)
		}

		if result.Next == "" {
			break
		}
	}

	f.logger.Info("Deck fetch complete", "decks", len(paths), "dir", f.outDir)
	return paths, nil
}
