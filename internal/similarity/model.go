// Package similarity computes item-item cosine similarities over the
// deck-card matrix and caches per-card neighbor lists for scoring.
package similarity

import (
	"errors"
	"math"
	"runtime"
	"sort"
	"sync"

	"github.com/ramonehamilton/EDH-Recommender/internal/matrix"
)

// ErrNotFitted is returned when a model is queried before Fit.
var ErrNotFitted = errors.New("similarity model is not fitted")

// Config holds the hyperparameters controlling similarity computation.
type Config struct {
	// TopK bounds the neighbor list kept per card. Zero or negative keeps
	// every neighbor.
	TopK int
	// MinOverlap drops card pairs seen together in fewer decks than this.
	MinOverlap int
	// Shrinkage damps scores for low-overlap pairs.
	Shrinkage float64
	// Workers is the number of goroutines used during Fit. Zero means
	// GOMAXPROCS. The worker count never changes the fitted result.
	Workers int
}

// DefaultConfig returns the default similarity configuration.
func DefaultConfig() Config {
	return Config{TopK: 200, MinOverlap: 2, Shrinkage: 0.5}
}

// Neighbor is one entry in a card's similarity list.
type Neighbor struct {
	OracleID string
	Score    float64
}

// Model caches nearest-neighbor similarities for candidate scoring. A fitted
// model is never mutated again, so concurrent readers need no locking.
type Model struct {
	cfg       Config
	neighbors map[string][]Neighbor
	cardIndex map[string]int
	indexCard []string
	freq      map[string]int
	fitted    bool
}

// New creates an unfitted model with the given configuration.
func New(cfg Config) *Model {
	return &Model{cfg: cfg}
}

// Config returns the model's configuration. For a cache-loaded model this is
// the configuration the model was fitted with, not the caller's.
func (m *Model) Config() Config {
	return m.cfg
}

// Fitted reports whether Fit has completed.
func (m *Model) Fitted() bool {
	return m.fitted
}

// colEntry is one nonzero cell of a card's matrix column.
type colEntry struct {
	row    int
	weight float64
}

// Fit computes similarity scores and builds the neighbor cache. Fitting an
// empty bundle yields a fitted model with no neighbors.
func (m *Model) Fit(bundle *matrix.Bundle) {
	m.resetState()
	if len(bundle.CardIndex) == 0 {
		m.fitted = true
		return
	}

	m.cardIndex = make(map[string]int, len(bundle.CardIndex))
	for cid, idx := range bundle.CardIndex {
		m.cardIndex[cid] = idx
	}
	m.indexCard = append([]string(nil), bundle.IndexCard...)
	m.freq = make(map[string]int, len(bundle.CardTotals))
	for cid, total := range bundle.CardTotals {
		m.freq[cid] = total
	}

	n := len(m.indexCard)
	cols := make([][]colEntry, n)
	for rowIdx, row := range bundle.Rows {
		for col, weight := range row {
			cols[col] = append(cols[col], colEntry{row: rowIdx, weight: weight})
		}
	}

	workers := m.cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > n {
		workers = n
	}

	// Each worker owns a disjoint index range and writes only its own slots,
	// so the result is identical for any worker count.
	results := make([][]Neighbor, n)
	chunkSize := (n + workers - 1) / workers
	var wg sync.WaitGroup
	for start := 0; start < n; start += chunkSize {
		end := start + chunkSize
		if end > n {
			end = n
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for idx := start; idx < end; idx++ {
				results[idx] = m.neighborsFor(idx, cols, bundle)
			}
		}(start, end)
	}
	wg.Wait()

	m.neighbors = make(map[string][]Neighbor, n)
	for idx, list := range results {
		if len(list) == 0 {
			continue
		}
		m.neighbors[m.indexCard[idx]] = list
	}
	m.fitted = true
}

// Neighbors returns the cached neighbor list for a card, best first. Unknown
// cards yield an empty list. Querying an unfitted model is an error.
func (m *Model) Neighbors(oracleID string) ([]Neighbor, error) {
	if !m.fitted {
		return nil, ErrNotFitted
	}
	return m.neighbors[oracleID], nil
}

// CompatibleWith reports whether the model was fitted on exactly the given
// card index mapping.
func (m *Model) CompatibleWith(cardIndex map[string]int) bool {
	if len(m.cardIndex) != len(cardIndex) {
		return false
	}
	for cid, idx := range cardIndex {
		if got, ok := m.cardIndex[cid]; !ok || got != idx {
			return false
		}
	}
	return true
}

func (m *Model) neighborsFor(idx int, cols [][]colEntry, bundle *matrix.Bundle) []Neighbor {
	denomCard := m.denominator(m.indexCard[idx])
	if denomCard == 0 {
		return nil
	}
	entries := cols[idx]
	if len(entries) == 0 {
		return nil
	}

	dots := make(map[int]float64)
	overlaps := make(map[int]int)
	for _, e := range entries {
		for other, weight := range bundle.Rows[e.row] {
			if other == idx {
				continue
			}
			dots[other] += e.weight * weight
			overlaps[other]++
		}
	}

	scored := make([]Neighbor, 0, len(dots))
	for other, dot := range dots {
		overlap := overlaps[other]
		if overlap < m.cfg.MinOverlap {
			continue
		}
		denomOther := m.denominator(m.indexCard[other])
		if denomOther == 0 {
			continue
		}
		similarity := dot / (denomCard * denomOther)
		similarity *= m.shrink(overlap)
		if similarity <= 0 {
			continue
		}
		scored = append(scored, Neighbor{OracleID: m.indexCard[other], Score: similarity})
	}
	return m.topK(scored)
}

func (m *Model) denominator(oracleID string) float64 {
	freq := float64(m.freq[oracleID])
	if freq <= 0 {
		return 0
	}
	return math.Sqrt(freq)
}

func (m *Model) shrink(overlap int) float64 {
	if overlap <= 0 {
		return 0
	}
	return float64(overlap) / (float64(overlap) + m.cfg.Shrinkage)
}

func (m *Model) topK(scores []Neighbor) []Neighbor {
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].OracleID < scores[j].OracleID
	})
	if m.cfg.TopK > 0 && len(scores) > m.cfg.TopK {
		scores = scores[:m.cfg.TopK]
	}
	return scores
}

func (m *Model) resetState() {
	m.neighbors = nil
	m.cardIndex = nil
	m.indexCard = nil
	m.freq = nil
	m.fitted = false
}
