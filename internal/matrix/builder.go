// Package matrix builds the sparse deck-card incidence structure and the
// global per-card frequency totals the similarity model is fitted on.
package matrix

import (
	"sort"

	"github.com/ramonehamilton/EDH-Recommender/internal/deck"
)

// Config controls matrix construction.
type Config struct {
	// MinCardFrequency drops cards below this global quantity from the matrix
	// columns. Raising it to 3-5 shrinks the matrix and speeds up fitting.
	MinCardFrequency int
	// NormalizeRows divides each deck row by its total weight.
	NormalizeRows bool
}

// DefaultConfig returns the default matrix configuration.
func DefaultConfig() Config {
	return Config{MinCardFrequency: 1, NormalizeRows: false}
}

// Bundle is the derived matrix artifact. Rows holds one sparse row per deck
// (column index -> weight) in dataset deck order.
type Bundle struct {
	Rows       []map[int]float64
	CardIndex  map[string]int
	IndexCard  []string
	DeckIndex  map[string]int
	CardTotals map[string]int
}

// Build converts the dataset into a Bundle. An empty dataset yields an empty
// bundle rather than an error.
func Build(ds *deck.Dataset, cfg Config) *Bundle {
	bundle := &Bundle{
		CardIndex:  make(map[string]int),
		DeckIndex:  make(map[string]int),
		CardTotals: make(map[string]int),
	}
	if len(ds.Decks) == 0 {
		return bundle
	}

	totals := make(map[string]int)
	for _, d := range ds.Decks {
		for cid, quantity := range d.CardCounts {
			totals[cid] += quantity
		}
	}

	eligible := make([]string, 0, len(totals))
	for cid, total := range totals {
		if total >= cfg.MinCardFrequency {
			eligible = append(eligible, cid)
		}
	}
	sort.Strings(eligible)

	for idx, cid := range eligible {
		bundle.CardIndex[cid] = idx
	}
	bundle.IndexCard = eligible
	for idx, d := range ds.Decks {
		bundle.DeckIndex[d.ID] = idx
	}

	if len(bundle.CardIndex) == 0 {
		return bundle
	}

	bundle.Rows = make([]map[int]float64, len(ds.Decks))
	for idx, d := range ds.Decks {
		row := make(map[int]float64)
		rowTotal := 0.0
		for cid, quantity := range d.CardCounts {
			if _, ok := bundle.CardIndex[cid]; ok {
				rowTotal += float64(quantity)
			}
		}
		for cid, quantity := range d.CardCounts {
			col, ok := bundle.CardIndex[cid]
			if !ok {
				continue
			}
			value := float64(quantity)
			if cfg.NormalizeRows && rowTotal > 0 {
				value = value / rowTotal
			}
			row[col] = value
		}
		bundle.Rows[idx] = row
	}

	for _, cid := range eligible {
		bundle.CardTotals[cid] = totals[cid]
	}
	return bundle
}
