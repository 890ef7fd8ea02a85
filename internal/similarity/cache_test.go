package similarity

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/EDH-Recommender/internal/deck"
	"github.com/ramonehamilton/EDH-Recommender/internal/matrix"
	"github.com/ramonehamilton/EDH-Recommender/internal/storage"
)

func fittedTestModel(t *testing.T) (*Model, *matrix.Bundle) {
	t.Helper()

	decks := []deck.Deck{
		deckOf("d1", "arcane-signet", "sol-ring"),
		deckOf("d2", "arcane-signet", "sol-ring"),
		deckOf("d3", "arcane-signet", "island"),
		deckOf("d4", "sol-ring", "island"),
	}
	bundle := matrix.Build(&deck.Dataset{Decks: decks}, matrix.DefaultConfig())
	model := New(Config{TopK: 10, MinOverlap: 1, Shrinkage: 0.5, Workers: 1})
	model.Fit(bundle)
	return model, bundle
}

func TestCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "similarity.db")

	model, bundle := fittedTestModel(t)
	err := SaveCache(ctx, path, model, "snap-1", 4)
	require.NoError(t, err)

	loaded, err := LoadCache(ctx, path, bundle.CardIndex)
	require.NoError(t, err)
	require.NotNil(t, loaded)

	assert.True(t, loaded.Fitted())
	assert.Equal(t, 10, loaded.Config().TopK)
	assert.Equal(t, 1, loaded.Config().MinOverlap)
	assert.Equal(t, 0.5, loaded.Config().Shrinkage)

	for _, cid := range []string{"arcane-signet", "sol-ring", "island"} {
		want, err := model.Neighbors(cid)
		require.NoError(t, err)
		got, err := loaded.Neighbors(cid)
		require.NoError(t, err)
		assert.Equal(t, want, got, "neighbors for %s", cid)
	}
}

func TestCacheSaveUnfitted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "similarity.db")

	err := SaveCache(context.Background(), path, New(DefaultConfig()), "snap-1", 0)
	assert.Error(t, err)
}

func TestCacheAbsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.db")

	_, err := LoadCache(context.Background(), path, nil)
	assert.ErrorIs(t, err, ErrCacheAbsent)
}

func TestCacheIncompatible(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "similarity.db")

	model, _ := fittedTestModel(t)
	require.NoError(t, SaveCache(ctx, path, model, "snap-1", 4))

	other := map[string]int{"sol-ring": 0, "mana-crypt": 1}
	_, err := LoadCache(ctx, path, other)
	assert.ErrorIs(t, err, ErrCacheIncompatible)
}

func TestCacheCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "similarity.db")
	require.NoError(t, os.WriteFile(path, []byte("this is not a sqlite database"), 0o644))

	_, err := LoadCache(context.Background(), path, nil)
	assert.ErrorIs(t, err, ErrCacheCorrupt)
}

func TestCacheEmptyDatabaseIsCorrupt(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "similarity.db")

	// Save then wipe the info row, leaving a structurally valid but empty cache.
	model, _ := fittedTestModel(t)
	require.NoError(t, SaveCache(ctx, path, model, "snap-1", 4))

	db, err := storage.Open(storage.DefaultConfig(path))
	require.NoError(t, err)
	_, err = db.Conn().Exec("DELETE FROM cache_info")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = LoadCache(ctx, path, nil)
	assert.ErrorIs(t, err, ErrCacheCorrupt)
}
