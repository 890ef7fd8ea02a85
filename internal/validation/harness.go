// Package validation runs offline hold-out experiments against the
// recommendation pipeline and reports precision and recall at fixed ranking
// cutoffs.
package validation

import (
	"fmt"
	"math/rand"

	"github.com/ramonehamilton/EDH-Recommender/internal/deck"
)

// Scorer produces ranked candidate scores for a seed deck.
type Scorer interface {
	ScoreCandidates(seed *deck.Deck) ([]deck.CandidateScore, error)
}

// Config controls hold-out sampling and the metric cutoffs.
type Config struct {
	// HoldoutFraction is the share of decks withheld for evaluation. The
	// sample always contains at least one deck.
	HoldoutFraction float64
	// SeedSize is the number of cards revealed to the scorer per held-out
	// deck, commanders included.
	SeedSize int
	// PrecisionK lists the ranking cutoffs to evaluate. Non-positive
	// cutoffs are reported as zero.
	PrecisionK []int
	// RandomSeed fixes both the deck sample and the per-deck seed shuffle
	// so runs are reproducible.
	RandomSeed int64
}

// DefaultConfig returns the standard validation parameters.
func DefaultConfig() Config {
	return Config{
		HoldoutFraction: 0.1,
		SeedSize:        60,
		PrecisionK:      []int{5, 10, 20},
		RandomSeed:      42,
	}
}

// Metadata describes the experiment a Result came from.
type Metadata struct {
	EvaluatedDecks  int
	HoldoutFraction float64
	SeedSize        int
	PrecisionK      []int
}

// Result holds the aggregated metrics per cutoff.
type Result struct {
	Precision map[int]float64
	Recall    map[int]float64
	Metadata  Metadata
}

// Run withholds a deterministic sample of decks, reveals a partial seed from
// each to the scorer, and measures how many of the hidden cards the top
// recommendations recover. Precision and recall aggregate hit and slot totals
// across all evaluated decks rather than averaging per-deck ratios, so large
// decks weigh proportionally more.
func Run(ds *deck.Dataset, scorer Scorer, cfg Config) (*Result, error) {
	if ds == nil || len(ds.Decks) == 0 {
		return &Result{
			Precision: map[int]float64{},
			Recall:    map[int]float64{},
		}, nil
	}

	rng := rand.New(rand.NewSource(cfg.RandomSeed))
	holdoutSize := int(float64(len(ds.Decks)) * cfg.HoldoutFraction)
	if holdoutSize < 1 {
		holdoutSize = 1
	}
	if holdoutSize > len(ds.Decks) {
		holdoutSize = len(ds.Decks)
	}
	holdout := make(map[int]struct{}, holdoutSize)
	for _, idx := range rng.Perm(len(ds.Decks))[:holdoutSize] {
		holdout[idx] = struct{}{}
	}

	precisionHits := make(map[int]int)
	precisionTotal := make(map[int]int)
	recallHits := make(map[int]int)
	recallTotal := make(map[int]int)
	evaluated := 0

	for idx := range ds.Decks {
		if _, ok := holdout[idx]; !ok {
			continue
		}
		d := &ds.Decks[idx]

		withheld := make(map[string]struct{}, len(d.CardCounts))
		for _, cid := range d.Cards {
			withheld[cid] = struct{}{}
		}
		if len(withheld) == 0 {
			continue
		}

		seedCards := buildSeedCards(d, cfg.SeedSize, rng)
		for _, cid := range seedCards {
			delete(withheld, cid)
		}
		if len(withheld) == 0 {
			continue
		}

		seed := deck.NewSeed(d.ID+"-seed", d.Commanders, seedCards, d.ColorIdentity, ds.Cards)
		scores, err := scorer.ScoreCandidates(&seed)
		if err != nil {
			return nil, fmt.Errorf("failed to score holdout deck %s: %w", d.ID, err)
		}
		if len(scores) == 0 {
			continue
		}

		evaluated++
		for _, k := range cfg.PrecisionK {
			if k <= 0 {
				continue
			}
			top := scores
			if k < len(top) {
				top = top[:k]
			}
			hits := 0
			for _, score := range top {
				if _, ok := withheld[score.OracleID]; ok {
					hits++
				}
			}
			precisionHits[k] += hits
			precisionTotal[k] += len(top)
			recallHits[k] += hits
			recallTotal[k] += len(withheld)
		}
	}

	precision := make(map[int]float64, len(cfg.PrecisionK))
	recall := make(map[int]float64, len(cfg.PrecisionK))
	for _, k := range cfg.PrecisionK {
		precision[k] = ratio(precisionHits[k], precisionTotal[k])
		recall[k] = ratio(recallHits[k], recallTotal[k])
	}

	return &Result{
		Precision: precision,
		Recall:    recall,
		Metadata: Metadata{
			EvaluatedDecks:  evaluated,
			HoldoutFraction: cfg.HoldoutFraction,
			SeedSize:        cfg.SeedSize,
			PrecisionK:      append([]int(nil), cfg.PrecisionK...),
		},
	}, nil
}

// buildSeedCards reveals the deck's commanders plus a shuffled sample of the
// remaining copies, capped at targetSize entries in total.
func buildSeedCards(d *deck.Deck, targetSize int, rng *rand.Rand) []string {
	remaining := make([]string, 0, len(d.Cards))
	for _, cid := range d.Cards {
		if !containsString(d.Commanders, cid) {
			remaining = append(remaining, cid)
		}
	}
	rng.Shuffle(len(remaining), func(i, j int) {
		remaining[i], remaining[j] = remaining[j], remaining[i]
	})

	needed := targetSize - len(d.Commanders)
	if needed < 0 {
		needed = 0
	}
	if needed > len(remaining) {
		needed = len(remaining)
	}

	seed := make([]string, 0, len(d.Commanders)+needed)
	seed = append(seed, d.Commanders...)
	seed = append(seed, remaining[:needed]...)
	return seed
}

func ratio(hits, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
