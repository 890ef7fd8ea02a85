package similarity

import (
	"context"
	"errors"
	"fmt"
	"os"

	json "github.com/goccy/go-json"

	"github.com/ramonehamilton/EDH-Recommender/internal/storage"
)

// Cache misses come in three distinct flavors so callers can log and react
// to each one separately.
var (
	// ErrCacheAbsent means no cache file exists at the given path.
	ErrCacheAbsent = errors.New("similarity cache absent")
	// ErrCacheIncompatible means the cache loaded cleanly but was fitted on a
	// different card index than the current dataset.
	ErrCacheIncompatible = errors.New("similarity cache incompatible with dataset")
	// ErrCacheCorrupt means the cache file exists but its contents could not
	// be read back as a model.
	ErrCacheCorrupt = errors.New("similarity cache corrupt")
)

// cacheConfig is the JSON shape of the fitted hyperparameters stored in
// cache_info. Workers is deliberately not persisted; it never affects the
// fitted result.
type cacheConfig struct {
	TopK       int     `json:"top_k"`
	MinOverlap int     `json:"min_overlap"`
	Shrinkage  float64 `json:"shrinkage"`
}

// SaveCache persists a fitted model to the SQLite cache at path, replacing
// any previous contents.
func SaveCache(ctx context.Context, path string, model *Model, snapshotID string, deckCount int) error {
	if !model.fitted {
		return fmt.Errorf("cannot cache an unfitted model")
	}

	cfg := storage.DefaultConfig(path)
	cfg.AutoMigrate = true
	db, err := storage.Open(cfg)
	if err != nil {
		return fmt.Errorf("failed to open similarity cache: %w", err)
	}
	defer func() { _ = db.Close() }()

	configJSON, err := json.Marshal(cacheConfig{
		TopK:       model.cfg.TopK,
		MinOverlap: model.cfg.MinOverlap,
		Shrinkage:  model.cfg.Shrinkage,
	})
	if err != nil {
		return fmt.Errorf("failed to encode model config: %w", err)
	}

	cards := make([]storage.CardRow, len(model.indexCard))
	for idx, cid := range model.indexCard {
		cards[idx] = storage.CardRow{Idx: idx, OracleID: cid, Frequency: model.freq[cid]}
	}

	var neighborRows []storage.NeighborRow
	for idx, cid := range model.indexCard {
		for rank, n := range model.neighbors[cid] {
			neighborRows = append(neighborRows, storage.NeighborRow{
				CardIdx:     idx,
				Rank:        rank,
				NeighborIdx: model.cardIndex[n.OracleID],
				Similarity:  n.Score,
			})
		}
	}

	info := storage.ModelInfo{
		SnapshotID: snapshotID,
		CardCount:  len(cards),
		DeckCount:  deckCount,
		Config:     string(configJSON),
	}

	if err := storage.NewModelStore(db).Save(ctx, info, cards, neighborRows); err != nil {
		return fmt.Errorf("failed to save similarity cache: %w", err)
	}
	return nil
}

// LoadCache restores a fitted model from the SQLite cache at path. The
// returned model carries the configuration it was fitted with. When expect is
// non-nil the cached card index must match it exactly, otherwise
// ErrCacheIncompatible is returned.
func LoadCache(ctx context.Context, path string, expect map[string]int) (*Model, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("similarity cache %s: %w", path, ErrCacheAbsent)
		}
		return nil, fmt.Errorf("failed to stat similarity cache: %w", err)
	}

	cfg := storage.DefaultConfig(path)
	cfg.AutoMigrate = true
	db, err := storage.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open similarity cache: %w (%v)", ErrCacheCorrupt, err)
	}
	defer func() { _ = db.Close() }()

	store := storage.NewModelStore(db)
	info, err := store.Info(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read similarity cache: %w (%v)", ErrCacheCorrupt, err)
	}
	if info == nil {
		return nil, fmt.Errorf("similarity cache holds no model: %w", ErrCacheCorrupt)
	}

	var stored cacheConfig
	if err := json.Unmarshal([]byte(info.Config), &stored); err != nil {
		return nil, fmt.Errorf("failed to decode cached config: %w (%v)", ErrCacheCorrupt, err)
	}

	cards, err := store.Cards(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read cached cards: %w (%v)", ErrCacheCorrupt, err)
	}
	if len(cards) != info.CardCount {
		return nil, fmt.Errorf("cached card count %d does not match recorded %d: %w",
			len(cards), info.CardCount, ErrCacheCorrupt)
	}

	model := New(Config{TopK: stored.TopK, MinOverlap: stored.MinOverlap, Shrinkage: stored.Shrinkage})
	model.indexCard = make([]string, len(cards))
	model.cardIndex = make(map[string]int, len(cards))
	model.freq = make(map[string]int, len(cards))
	for _, card := range cards {
		if card.Idx < 0 || card.Idx >= len(cards) {
			return nil, fmt.Errorf("cached card index %d out of range: %w", card.Idx, ErrCacheCorrupt)
		}
		model.indexCard[card.Idx] = card.OracleID
		model.cardIndex[card.OracleID] = card.Idx
		model.freq[card.OracleID] = card.Frequency
	}

	rows, err := store.Neighbors(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read cached neighbors: %w (%v)", ErrCacheCorrupt, err)
	}
	model.neighbors = make(map[string][]Neighbor)
	for _, row := range rows {
		if row.CardIdx < 0 || row.CardIdx >= len(cards) || row.NeighborIdx < 0 || row.NeighborIdx >= len(cards) {
			return nil, fmt.Errorf("cached neighbor index out of range: %w", ErrCacheCorrupt)
		}
		cid := model.indexCard[row.CardIdx]
		model.neighbors[cid] = append(model.neighbors[cid], Neighbor{
			OracleID: model.indexCard[row.NeighborIdx],
			Score:    row.Similarity,
		})
	}
	model.fitted = true

	if expect != nil && !model.CompatibleWith(expect) {
		return nil, fmt.Errorf("similarity cache built for a different card index: %w", ErrCacheIncompatible)
	}

	return model, nil
}
