// Package engine assembles the full recommendation pipeline behind a single
// facade: dataset loading, matrix construction, similarity fitting with its
// SQLite cache, and the scoring and deck building stages.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/ramonehamilton/EDH-Recommender/internal/commander"
	"github.com/ramonehamilton/EDH-Recommender/internal/constraints"
	"github.com/ramonehamilton/EDH-Recommender/internal/dataset"
	"github.com/ramonehamilton/EDH-Recommender/internal/deck"
	"github.com/ramonehamilton/EDH-Recommender/internal/deckbuilder"
	"github.com/ramonehamilton/EDH-Recommender/internal/matrix"
	"github.com/ramonehamilton/EDH-Recommender/internal/scoring"
	"github.com/ramonehamilton/EDH-Recommender/internal/similarity"
	"github.com/ramonehamilton/EDH-Recommender/internal/validation"
)

// ErrDeckNotFound indicates that no deck in the dataset matches the id.
var ErrDeckNotFound = errors.New("deck not found")

// ErrNoValidCards indicates that no input identifier resolved to a known card.
var ErrNoValidCards = errors.New("no valid cards provided")

// UnresolvedCardsError lists input identifiers that matched no known card by
// oracle id, uid, or name.
type UnresolvedCardsError struct {
	Identifiers []string
}

func (e *UnresolvedCardsError) Error() string {
	return "could not resolve card identifiers: " + strings.Join(e.Identifiers, ", ")
}

// Config wires the engine's data sources and component settings. Zero-valued
// sub-configs fall back to their package defaults.
type Config struct {
	// CompactPath is the preferred compact snapshot location.
	CompactPath string
	// DataDir is the fallback directory of raw deck exports.
	DataDir string
	// SimilarityCache is the neighbor cache database path. Empty disables
	// caching.
	SimilarityCache string
	// RefreshCache refits the similarity model even when a usable cache
	// exists.
	RefreshCache bool
	// Banned lists additional banned cards by oracle id, uid, or name. They
	// are resolved against the dataset and merged into its ban list.
	Banned []string

	Matrix      matrix.Config
	Similarity  similarity.Config
	Commander   commander.Config
	Scoring     scoring.Config
	DeckBuilder deckbuilder.Config
	Shape       constraints.ShapeTarget

	Logger *slog.Logger
}

// Engine is an immutable, fitted recommendation pipeline. Safe for concurrent
// use once constructed.
type Engine struct {
	cfg       Config
	logger    *slog.Logger
	dataset   *deck.Dataset
	bundle    *matrix.Bundle
	model     *similarity.Model
	scorer    *scoring.Scorer
	assembler *deckbuilder.Assembler

	cardsByUID  map[string]deck.Card
	cardsByName map[string]deck.Card
}

// RecommendationResult bundles the ranked additions, the assembled deck, and
// any input identifiers that could not be resolved.
type RecommendationResult struct {
	Deck       deck.Recommendation
	Ranked     []deck.RankedCandidate
	Unresolved []string
}

// New loads the dataset, fits (or loads) the similarity model, and wires the
// scoring and assembly stages.
func New(ctx context.Context, cfg Config) (*Engine, error) {
	applyDefaults(&cfg)

	loader := dataset.NewLoader(cfg.Logger)
	ds, err := loader.Load(cfg.CompactPath, cfg.DataDir)
	if err != nil {
		return nil, err
	}
	mergeBanned(ds, cfg.Banned, cfg.Logger)

	bundle := matrix.Build(ds, cfg.Matrix)
	cfg.Logger.Debug("Deck-card matrix built",
		"decks", len(ds.Decks), "cards", len(bundle.CardIndex))

	model, err := loadOrFitSimilarity(ctx, cfg, ds, bundle)
	if err != nil {
		return nil, err
	}

	shape := constraints.NewShapeEvaluator(cfg.Shape)
	checker := constraints.NewChecker(ds.Cards, ds.BanList)
	priors := commander.NewPriorStore(ds.CommanderProfiles, cfg.Commander)
	scorer := scoring.NewScorer(model, priors, shape, ds.Cards, bundle.CardTotals, cfg.Scoring)
	assembler := deckbuilder.NewAssembler(checker, shape, ds.Cards, bundle.CardTotals, cfg.DeckBuilder)

	e := &Engine{
		cfg:         cfg,
		logger:      cfg.Logger,
		dataset:     ds,
		bundle:      bundle,
		model:       model,
		scorer:      scorer,
		assembler:   assembler,
		cardsByUID:  make(map[string]deck.Card),
		cardsByName: make(map[string]deck.Card),
	}
	e.buildLookups()

	cfg.Logger.Info("Recommendation engine ready",
		"decks", len(ds.Decks), "cards", len(ds.Cards), "snapshot_id", ds.SnapshotID)
	return e, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Matrix == (matrix.Config{}) {
		cfg.Matrix = matrix.DefaultConfig()
	}
	if cfg.Similarity == (similarity.Config{}) {
		cfg.Similarity = similarity.DefaultConfig()
	}
	if cfg.Commander == (commander.Config{}) {
		cfg.Commander = commander.DefaultConfig()
	}
	if cfg.Scoring == (scoring.Config{}) {
		cfg.Scoring = scoring.DefaultConfig()
	}
	if cfg.DeckBuilder == (deckbuilder.Config{}) {
		cfg.DeckBuilder = deckbuilder.DefaultConfig()
		// Inference callers truncate per request, so keep a deeper ranked
		// list than the interactive default.
		if cfg.DeckBuilder.RankedListSize < 50 {
			cfg.DeckBuilder.RankedListSize = 50
		}
	}
	if cfg.Shape == (constraints.ShapeTarget{}) {
		cfg.Shape = constraints.DefaultShapeTarget()
	}
}

// mergeBanned resolves configured ban entries by oracle id, uid, or name and
// adds them to the dataset ban list. Entries that match no known card are kept
// verbatim as oracle ids.
func mergeBanned(ds *deck.Dataset, banned []string, logger *slog.Logger) {
	if len(banned) == 0 {
		return
	}
	if ds.BanList == nil {
		ds.BanList = make(map[string]struct{}, len(banned))
	}

	ids := make([]string, 0, len(ds.Cards))
	for oracleID := range ds.Cards {
		ids = append(ids, oracleID)
	}
	sort.Strings(ids)

	for _, entry := range banned {
		if _, ok := ds.Cards[entry]; ok {
			ds.BanList[entry] = struct{}{}
			continue
		}
		oracleID := entry
		lower := strings.ToLower(entry)
		for _, cid := range ids {
			card := ds.Cards[cid]
			if card.OracleUID == entry || strings.ToLower(card.Name) == lower {
				oracleID = cid
				break
			}
		}
		if oracleID == entry {
			logger.Warn("Banned entry matched no known card", "entry", entry)
		}
		ds.BanList[oracleID] = struct{}{}
	}
}

// loadOrFitSimilarity tries the cache first unless a refresh was requested,
// then falls back to fitting from the matrix bundle. Cache problems are never
// fatal; the model is refit and the cache rewritten.
func loadOrFitSimilarity(ctx context.Context, cfg Config, ds *deck.Dataset, bundle *matrix.Bundle) (*similarity.Model, error) {
	logger := cfg.Logger
	if cfg.SimilarityCache != "" && !cfg.RefreshCache {
		model, err := similarity.LoadCache(ctx, cfg.SimilarityCache, bundle.CardIndex)
		switch {
		case err == nil:
			logger.Info("Loaded similarity cache", "path", cfg.SimilarityCache)
			return model, nil
		case errors.Is(err, similarity.ErrCacheAbsent):
			logger.Debug("Similarity cache not found, fitting model", "path", cfg.SimilarityCache)
		case errors.Is(err, similarity.ErrCacheIncompatible):
			logger.Warn("Similarity cache incompatible with dataset, refitting", "path", cfg.SimilarityCache)
		default:
			logger.Warn("Similarity cache unreadable, refitting", "path", cfg.SimilarityCache, "error", err)
		}
	} else if cfg.SimilarityCache != "" {
		logger.Debug("Refreshing similarity cache", "path", cfg.SimilarityCache)
	}

	model := similarity.New(cfg.Similarity)
	model.Fit(bundle)
	logger.Debug("Similarity model fitted", "cards", len(bundle.CardIndex))

	if cfg.SimilarityCache != "" {
		if err := similarity.SaveCache(ctx, cfg.SimilarityCache, model, ds.SnapshotID, len(ds.Decks)); err != nil {
			logger.Warn("Failed to save similarity cache", "path", cfg.SimilarityCache, "error", err)
		} else {
			logger.Debug("Saved similarity cache", "path", cfg.SimilarityCache)
		}
	}
	return model, nil
}

// buildLookups indexes cards by uid and lowercased name. Oracle ids are
// visited in sorted order so name collisions resolve the same way every run.
func (e *Engine) buildLookups() {
	ids := make([]string, 0, len(e.dataset.Cards))
	for oracleID := range e.dataset.Cards {
		ids = append(ids, oracleID)
	}
	sort.Strings(ids)
	for _, oracleID := range ids {
		card := e.dataset.Cards[oracleID]
		if card.OracleUID != "" {
			e.cardsByUID[card.OracleUID] = card
		}
		if card.Name != "" {
			e.cardsByName[strings.ToLower(card.Name)] = card
		}
	}
}

// Recommend resolves the input identifiers into a synthetic seed deck and
// returns ranked additions plus a full deck recommendation. topN limits the
// ranked list; non-positive keeps everything the assembler produced.
func (e *Engine) Recommend(identifiers []string, topN int, allowUnresolved bool) (*RecommendationResult, error) {
	resolved, unresolved, err := e.resolveCards(identifiers, allowUnresolved)
	if err != nil {
		return nil, err
	}

	seed := deck.NewSeed("inference-seed", nil, resolved, nil, e.dataset.Cards)
	return e.recommendSeed(&seed, topN, unresolved)
}

// RecommendForDeck uses an existing dataset deck as the seed.
func (e *Engine) RecommendForDeck(deckID string, topN int) (*RecommendationResult, error) {
	d := e.findDeck(deckID)
	if d == nil {
		return nil, fmt.Errorf("deck %s: %w", deckID, ErrDeckNotFound)
	}
	return e.recommendSeed(d, topN, nil)
}

func (e *Engine) recommendSeed(seed *deck.Deck, topN int, unresolved []string) (*RecommendationResult, error) {
	scores, err := e.scorer.ScoreCandidates(seed)
	if err != nil {
		return nil, fmt.Errorf("failed to score candidates: %w", err)
	}

	ranked := e.assembler.BuildRankedList(scores)
	if topN > 0 && len(ranked) > topN {
		ranked = ranked[:topN]
	}

	rankedScores := make([]deck.CandidateScore, len(ranked))
	for i, rc := range ranked {
		rankedScores[i] = rc.Score
	}
	rec := e.assembler.BuildFullDeck(seed, rankedScores)

	return &RecommendationResult{Deck: rec, Ranked: ranked, Unresolved: unresolved}, nil
}

// Validate runs the hold-out harness against the engine's fitted scorer.
func (e *Engine) Validate(cfg validation.Config) (*validation.Result, error) {
	return validation.Run(e.dataset, e.scorer, cfg)
}

// resolveCards maps identifiers to oracle ids. Unresolved identifiers abort
// with an UnresolvedCardsError unless allowUnresolved is set; an input that
// resolves to nothing at all is an error either way.
func (e *Engine) resolveCards(identifiers []string, allowUnresolved bool) ([]string, []string, error) {
	var resolved, unresolved []string
	for _, identifier := range identifiers {
		card, ok := e.lookupCard(identifier)
		if !ok {
			unresolved = append(unresolved, identifier)
			continue
		}
		resolved = append(resolved, card.OracleID)
	}

	if len(unresolved) > 0 && !allowUnresolved {
		return nil, nil, &UnresolvedCardsError{Identifiers: unresolved}
	}
	if len(resolved) == 0 {
		return nil, nil, ErrNoValidCards
	}
	return resolved, unresolved, nil
}

// lookupCard resolves one identifier, trying oracle id, then uid, then
// case-insensitive name.
func (e *Engine) lookupCard(identifier string) (deck.Card, bool) {
	if card, ok := e.dataset.Cards[identifier]; ok {
		return card, true
	}
	if card, ok := e.cardsByUID[identifier]; ok {
		return card, true
	}
	card, ok := e.cardsByName[strings.ToLower(identifier)]
	return card, ok
}

func (e *Engine) findDeck(deckID string) *deck.Deck {
	for i := range e.dataset.Decks {
		if e.dataset.Decks[i].ID == deckID {
			return &e.dataset.Decks[i]
		}
	}
	return nil
}

// CardByOracleID returns the card metadata for an oracle id.
func (e *Engine) CardByOracleID(oracleID string) (deck.Card, bool) {
	card, ok := e.dataset.Cards[oracleID]
	return card, ok
}

// CardByUID returns the card metadata for an export-source uid.
func (e *Engine) CardByUID(uid string) (deck.Card, bool) {
	card, ok := e.cardsByUID[uid]
	return card, ok
}

// CardByName returns the card metadata for a case-insensitive name.
func (e *Engine) CardByName(name string) (deck.Card, bool) {
	card, ok := e.cardsByName[strings.ToLower(name)]
	return card, ok
}

// DeckCount returns the number of decks backing the engine.
func (e *Engine) DeckCount() int {
	return len(e.dataset.Decks)
}

// CardCount returns the number of unique cards known to the engine.
func (e *Engine) CardCount() int {
	return len(e.dataset.Cards)
}

// SnapshotID returns the id of the compact snapshot the engine was built
// from, or empty when loaded from raw exports.
func (e *Engine) SnapshotID() string {
	return e.dataset.SnapshotID
}
