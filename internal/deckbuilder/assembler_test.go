package deckbuilder

import (
	"testing"

	"github.com/ramonehamilton/EDH-Recommender/internal/constraints"
	"github.com/ramonehamilton/EDH-Recommender/internal/deck"
)

func fixtureCards() map[string]deck.Card {
	legal := map[string]string{"commander": "legal"}
	return map[string]deck.Card{
		"commander-1": {OracleID: "commander-1", Name: "Ghave, Guru of Spores", ColorIdentity: []string{"G"}, Legalities: legal},
		"staple-1":    {OracleID: "staple-1", Name: "Sol Ring", Legalities: legal},
		"staple-2":    {OracleID: "staple-2", Name: "Arcane Signet", Roles: []string{"Ramp"}, Legalities: legal},
		"staple-3":    {OracleID: "staple-3", Name: "Beast Within", Roles: []string{"Removal"}, Legalities: legal},
		"staple-4":    {OracleID: "staple-4", Name: "Harmonize", Roles: []string{"Draw"}, Legalities: legal},
		"weak-1":      {OracleID: "weak-1", Name: "Fortitude", Legalities: legal},
		"forest":      {OracleID: "forest", Name: "Forest", Types: []string{"Basic", "Land"}, Roles: []string{"Land"}, Legalities: legal},
		"offcolor-1":  {OracleID: "offcolor-1", Name: "Lightning Bolt", ColorIdentity: []string{"R"}, Legalities: legal},
		"banned-1":    {OracleID: "banned-1", Name: "Paradox Engine", Legalities: legal},
	}
}

func fixtureFrequencies() map[string]int {
	return map[string]int{
		"commander-1": 50,
		"staple-1":    100,
		"staple-2":    90,
		"staple-3":    80,
		"staple-4":    70,
		"weak-1":      1,
		"forest":      200,
	}
}

func fixtureAssembler(cfg Config) *Assembler {
	cards := fixtureCards()
	checker := constraints.NewChecker(cards, map[string]struct{}{"banned-1": {}})
	shape := constraints.NewShapeEvaluator(constraints.DefaultShapeTarget())
	return NewAssembler(checker, shape, cards, fixtureFrequencies(), cfg)
}

func fixtureSeed() *deck.Deck {
	return &deck.Deck{
		ID:            "seed",
		Commanders:    []string{"commander-1"},
		Cards:         []string{"commander-1", "weak-1", "staple-1"},
		CardCounts:    map[string]int{"commander-1": 1, "weak-1": 1, "staple-1": 1},
		ColorIdentity: []string{"G"},
		RoleCounts:    map[string]int{},
	}
}

func score(oracleID string, total float64) deck.CandidateScore {
	return deck.CandidateScore{
		OracleID:    oracleID,
		Total:       total,
		ByComponent: map[string]float64{},
		Evidence:    map[string][]string{},
	}
}

func TestBuildRankedListTruncates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RankedListSize = 2
	assembler := fixtureAssembler(cfg)

	ranked := assembler.BuildRankedList([]deck.CandidateScore{
		score("staple-2", 1.0),
		score("staple-3", 0.9),
		score("staple-4", 0.8),
	})

	if len(ranked) != 2 {
		t.Fatalf("expected 2 ranked candidates, got %d", len(ranked))
	}
	if ranked[0].Score.OracleID != "staple-2" {
		t.Errorf("expected staple-2 first, got %s", ranked[0].Score.OracleID)
	}
	if ranked[0].Reason.Summary == "" {
		t.Error("expected every ranked candidate to carry a reason")
	}
}

func TestReasonSummaryComposition(t *testing.T) {
	assembler := fixtureAssembler(DefaultConfig())

	candidate := deck.CandidateScore{
		OracleID: "staple-2",
		Total:    1.0,
		ByComponent: map[string]float64{
			"similarity": 0.5,
			"commander":  0.4,
			"frequency":  1.2,
			"shape":      0.1,
		},
		Evidence: map[string][]string{
			"similarity": {"staple-1", "staple-3", "staple-4"},
			"commander":  {"commander-1"},
			"shape":      {"Ramp"},
		},
	}

	ranked := assembler.BuildRankedList([]deck.CandidateScore{candidate})
	reason := ranked[0].Reason

	want := "Frequently seen with Sol Ring, Beast Within; " +
		"Commander synergy: Ghave, Guru of Spores; " +
		"Popular across observed decks; " +
		"Supports Ramp role"
	if reason.Summary != want {
		t.Errorf("unexpected summary:\n got: %s\nwant: %s", reason.Summary, want)
	}

	wantSupport := []string{"staple-1", "staple-3", "staple-4", "commander-1"}
	if len(reason.SupportingCards) != len(wantSupport) {
		t.Fatalf("expected %d supporting cards, got %d", len(wantSupport), len(reason.SupportingCards))
	}
	for i, cid := range wantSupport {
		if reason.SupportingCards[i] != cid {
			t.Errorf("supporting card %d: expected %s, got %s", i, cid, reason.SupportingCards[i])
		}
	}
	if len(reason.Roles) != 1 || reason.Roles[0] != "Ramp" {
		t.Errorf("expected roles [Ramp], got %v", reason.Roles)
	}
}

func TestReasonFallback(t *testing.T) {
	assembler := fixtureAssembler(DefaultConfig())

	ranked := assembler.BuildRankedList([]deck.CandidateScore{score("staple-2", 0.1)})
	if got := ranked[0].Reason.Summary; got != "Promising upgrade candidate" {
		t.Errorf("expected fallback summary, got %q", got)
	}
}

func TestBuildFullDeckCompletion(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TargetSize = 5
	assembler := fixtureAssembler(cfg)

	rec := assembler.BuildFullDeck(fixtureSeed(), []deck.CandidateScore{
		score("staple-2", 1.0),
		score("staple-3", 0.9),
		score("staple-4", 0.8),
	})

	if len(rec.Cards) != 5 {
		t.Fatalf("expected completed deck of 5 cards, got %d", len(rec.Cards))
	}
	wantAdditions := []string{"staple-2", "staple-3"}
	if len(rec.Additions) != len(wantAdditions) {
		t.Fatalf("expected %d additions, got %d", len(wantAdditions), len(rec.Additions))
	}
	for i, cid := range wantAdditions {
		if rec.Additions[i] != cid {
			t.Errorf("addition %d: expected %s, got %s", i, cid, rec.Additions[i])
		}
	}
	if len(rec.Removals) != 0 || len(rec.Swaps) != 0 {
		t.Error("expected no removals or swaps in completion mode")
	}
	if rec.RoleSummary["Ramp"] != 1 || rec.RoleSummary["Removal"] != 1 {
		t.Errorf("expected role summary to track additions, got %v", rec.RoleSummary)
	}
	if len(rec.Notes) != 0 {
		t.Errorf("expected no notes for an on-target deck, got %v", rec.Notes)
	}
}

func TestBuildFullDeckShortfallNote(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TargetSize = 10
	assembler := fixtureAssembler(cfg)

	rec := assembler.BuildFullDeck(fixtureSeed(), []deck.CandidateScore{score("staple-2", 1.0)})

	if len(rec.Cards) != 4 {
		t.Fatalf("expected 4 cards after exhausting candidates, got %d", len(rec.Cards))
	}
	if len(rec.Notes) != 1 || rec.Notes[0] != "Deck has 4 cards; target is 10." {
		t.Errorf("expected shortfall note, got %v", rec.Notes)
	}
}

func TestBuildFullDeckFiltersIllegalCandidates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TargetSize = 4
	assembler := fixtureAssembler(cfg)

	rec := assembler.BuildFullDeck(fixtureSeed(), []deck.CandidateScore{
		score("banned-1", 2.0),
		score("offcolor-1", 1.5),
		score("staple-2", 1.0),
	})

	if len(rec.Additions) != 1 || rec.Additions[0] != "staple-2" {
		t.Fatalf("expected only staple-2 to be added, got %v", rec.Additions)
	}
}

func TestBuildFullDeckSwapMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TargetSize = 3
	assembler := fixtureAssembler(cfg)

	rec := assembler.BuildFullDeck(fixtureSeed(), []deck.CandidateScore{score("staple-2", 1.0)})

	if len(rec.Swaps) != 1 {
		t.Fatalf("expected 1 swap, got %d", len(rec.Swaps))
	}
	swap := rec.Swaps[0]
	// weak-1 is the least played non-commander card in the deck.
	if swap.Outgoing != "weak-1" {
		t.Errorf("expected weak-1 to be cut, got %s", swap.Outgoing)
	}
	if swap.Incoming != "staple-2" {
		t.Errorf("expected staple-2 to come in, got %s", swap.Incoming)
	}
	if swap.Reason.Summary == "" {
		t.Error("expected swap to carry a reason")
	}
	if len(rec.Cards) != 3 {
		t.Errorf("expected deck to stay at target size, got %d", len(rec.Cards))
	}
	for _, cid := range rec.Cards {
		if cid == "weak-1" {
			t.Error("expected weak-1 to leave the deck list")
		}
	}
	if rec.Removals[0] != "weak-1" || rec.Additions[0] != "staple-2" {
		t.Errorf("expected removal/addition bookkeeping, got %v / %v", rec.Removals, rec.Additions)
	}
}

func TestBuildFullDeckSwapNeverCutsCommander(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TargetSize = 3
	assembler := fixtureAssembler(cfg)

	// The commander has the lowest frequency here, but stays untouchable.
	frequencies := fixtureFrequencies()
	frequencies["commander-1"] = 0
	cards := fixtureCards()
	checker := constraints.NewChecker(cards, nil)
	shape := constraints.NewShapeEvaluator(constraints.DefaultShapeTarget())
	assembler = NewAssembler(checker, shape, cards, frequencies, cfg)

	rec := assembler.BuildFullDeck(fixtureSeed(), []deck.CandidateScore{score("staple-2", 1.0)})

	if len(rec.Swaps) != 1 {
		t.Fatalf("expected 1 swap, got %d", len(rec.Swaps))
	}
	if rec.Swaps[0].Outgoing == "commander-1" {
		t.Error("expected the commander to be exempt from removal")
	}
}

func TestBuildFullDeckSwapProtectsScarceRoles(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TargetSize = 3
	cards := fixtureCards()
	checker := constraints.NewChecker(cards, nil)
	shape := constraints.NewShapeEvaluator(constraints.DefaultShapeTarget())
	// Equal popularity; only the role penalty separates forest from weak-1.
	frequencies := map[string]int{"forest": 5, "weak-1": 5, "commander-1": 50}
	assembler := NewAssembler(checker, shape, cards, frequencies, cfg)

	seed := &deck.Deck{
		ID:            "seed",
		Commanders:    []string{"commander-1"},
		Cards:         []string{"commander-1", "forest", "weak-1"},
		CardCounts:    map[string]int{"commander-1": 1, "forest": 1, "weak-1": 1},
		ColorIdentity: []string{"G"},
		RoleCounts:    map[string]int{"Land": 1},
	}

	rec := assembler.BuildFullDeck(seed, []deck.CandidateScore{score("staple-2", 1.0)})

	if len(rec.Swaps) != 1 {
		t.Fatalf("expected 1 swap, got %d", len(rec.Swaps))
	}
	if rec.Swaps[0].Outgoing != "weak-1" {
		t.Errorf("expected the roleless card to be cut over a scarce land, got %s", rec.Swaps[0].Outgoing)
	}
}

func TestBuildFullDeckSwapSkipsCardsAlreadyPresent(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TargetSize = 3
	assembler := fixtureAssembler(cfg)

	rec := assembler.BuildFullDeck(fixtureSeed(), []deck.CandidateScore{score("forest", 1.0)})
	if len(rec.Swaps) != 1 {
		t.Errorf("expected new card to swap in, got %d swaps", len(rec.Swaps))
	}

	// A basic land already in the deck passes the legality filter (duplicates
	// allowed) but still must not swap in a second copy.
	seed := &deck.Deck{
		ID:            "seed",
		Commanders:    []string{"commander-1"},
		Cards:         []string{"commander-1", "forest", "weak-1"},
		CardCounts:    map[string]int{"commander-1": 1, "forest": 1, "weak-1": 1},
		ColorIdentity: []string{"G"},
		RoleCounts:    map[string]int{"Land": 1},
	}
	rec2 := assembler.BuildFullDeck(seed, []deck.CandidateScore{score("forest", 1.0)})
	if len(rec2.Swaps) != 0 {
		t.Errorf("expected card already in deck to be skipped, got %d swaps", len(rec2.Swaps))
	}
}

func TestBuildFullDeckSwapAbortsWithoutRemovalCandidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TargetSize = 1
	assembler := fixtureAssembler(cfg)

	seed := &deck.Deck{
		ID:            "seed",
		Commanders:    []string{"commander-1"},
		Cards:         []string{"commander-1"},
		CardCounts:    map[string]int{"commander-1": 1},
		ColorIdentity: []string{"G"},
		RoleCounts:    map[string]int{},
	}

	rec := assembler.BuildFullDeck(seed, []deck.CandidateScore{score("staple-2", 1.0)})

	if len(rec.Swaps) != 0 {
		t.Errorf("expected no swaps when only the commander remains, got %d", len(rec.Swaps))
	}
	if len(rec.Cards) != 1 || rec.Cards[0] != "commander-1" {
		t.Errorf("expected deck to be untouched, got %v", rec.Cards)
	}
}

func TestBuildFullDeckMaxSwaps(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TargetSize = 3
	cfg.MaxSwaps = 1
	assembler := fixtureAssembler(cfg)

	rec := assembler.BuildFullDeck(fixtureSeed(), []deck.CandidateScore{
		score("staple-2", 1.0),
		score("staple-3", 0.9),
	})

	if len(rec.Swaps) != 1 {
		t.Errorf("expected swap cap of 1, got %d", len(rec.Swaps))
	}
}
