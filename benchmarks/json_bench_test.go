// Snapshot codec benchmarks comparing the standard library encoder against
// goccy/go-json, which the dataset package uses.
//
// To run:
//
//	go test -bench=BenchmarkSnapshot -benchmem ./benchmarks/...
package benchmarks

import (
	"runtime"
	"strconv"
	"testing"

	stdjson "encoding/json"

	goccy "github.com/goccy/go-json"
)

// benchCard mirrors the compact snapshot card shape.
type benchCard struct {
	OracleUID      string   `json:"oracle_uid,omitempty"`
	Name           string   `json:"name"`
	ColorIdentity  []string `json:"color_identity,omitempty"`
	Types          []string `json:"types,omitempty"`
	ManaValue      float64  `json:"mana_value,omitempty"`
	CommanderLegal bool     `json:"commander_legal"`
	Roles          []string `json:"roles,omitempty"`
}

// benchDeck mirrors the compact snapshot deck shape.
type benchDeck struct {
	DeckID        string         `json:"deck_id"`
	Commanders    []string       `json:"commanders,omitempty"`
	CardCounts    map[string]int `json:"card_counts"`
	ColorIdentity []string       `json:"color_identity,omitempty"`
	RoleCounts    map[string]int `json:"role_counts,omitempty"`
}

type benchSnapshot struct {
	SnapshotID string               `json:"snapshot_id"`
	DeckCount  int                  `json:"deck_count"`
	Cards      map[string]benchCard `json:"cards"`
	Decks      []benchDeck          `json:"decks"`
}

func makeSnapshot(deckCount int) benchSnapshot {
	cards := make(map[string]benchCard, cardPool)
	for i := 0; i < cardPool; i++ {
		cards[strconv.Itoa(i)] = benchCard{
			OracleUID:      "uid-" + strconv.Itoa(i),
			Name:           "Benchmark Card With A Plausible Name " + strconv.Itoa(i),
			ColorIdentity:  []string{"G", "U"},
			Types:          []string{"Creature", "Elf", "Druid"},
			ManaValue:      float64(i % 8),
			CommanderLegal: true,
			Roles:          []string{"Ramp"},
		}
	}

	decks := make([]benchDeck, deckCount)
	for i := range decks {
		d := makeDeck(i)
		decks[i] = benchDeck{
			DeckID:        d.ID,
			Commanders:    d.Commanders,
			CardCounts:    d.CardCounts,
			ColorIdentity: []string{"G", "U"},
			RoleCounts:    map[string]int{"Ramp": 12, "Land": 38},
		}
	}

	return benchSnapshot{
		SnapshotID: "bench-snapshot",
		DeckCount:  deckCount,
		Cards:      cards,
		Decks:      decks,
	}
}

func BenchmarkSnapshotMarshal(b *testing.B) {
	snapshot := makeSnapshot(200)

	b.Run("encoding-json", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			data, err := stdjson.Marshal(snapshot)
			if err != nil {
				b.Fatal(err)
			}
			runtime.KeepAlive(data)
		}
	})

	b.Run("goccy", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			data, err := goccy.Marshal(snapshot)
			if err != nil {
				b.Fatal(err)
			}
			runtime.KeepAlive(data)
		}
	})
}

func BenchmarkSnapshotUnmarshal(b *testing.B) {
	data, err := stdjson.Marshal(makeSnapshot(200))
	if err != nil {
		b.Fatal(err)
	}

	b.Run("encoding-json", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			var snapshot benchSnapshot
			if err := stdjson.Unmarshal(data, &snapshot); err != nil {
				b.Fatal(err)
			}
		}
	})

	b.Run("goccy", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			var snapshot benchSnapshot
			if err := goccy.Unmarshal(data, &snapshot); err != nil {
				b.Fatal(err)
			}
		}
	})
}
