// Package deckbuilder assembles ranked recommendation lists and full deck
// completions from scored candidates.
package deckbuilder

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ramonehamilton/EDH-Recommender/internal/constraints"
	"github.com/ramonehamilton/EDH-Recommender/internal/deck"
)

// Config holds deck completion and swap thresholds.
type Config struct {
	// TargetSize is the full deck size including commanders.
	TargetSize int
	// MinScoreDelta is the minimum score improvement a swap should represent.
	MinScoreDelta float64
	// RankedListSize bounds the explained candidate list.
	RankedListSize int
	// MaxSwaps bounds swap suggestions for complete decks.
	MaxSwaps int
}

// DefaultConfig returns the default builder configuration.
func DefaultConfig() Config {
	return Config{TargetSize: 100, MinScoreDelta: 0.1, RankedListSize: 25, MaxSwaps: 5}
}

// Assembler produces the human-facing recommendation artifacts.
type Assembler struct {
	checker     *constraints.Checker
	shape       *constraints.ShapeEvaluator
	cards       map[string]deck.Card
	frequencies map[string]int
	cfg         Config
}

// NewAssembler wires the assembler's dependencies together.
func NewAssembler(
	checker *constraints.Checker,
	shape *constraints.ShapeEvaluator,
	cards map[string]deck.Card,
	frequencies map[string]int,
	cfg Config,
) *Assembler {
	return &Assembler{
		checker:     checker,
		shape:       shape,
		cards:       cards,
		frequencies: frequencies,
		cfg:         cfg,
	}
}

// BuildRankedList pairs the top candidate scores with explanations.
func (a *Assembler) BuildRankedList(scores []deck.CandidateScore) []deck.RankedCandidate {
	top := scores
	if a.cfg.RankedListSize >= 0 && len(top) > a.cfg.RankedListSize {
		top = top[:a.cfg.RankedListSize]
	}
	results := make([]deck.RankedCandidate, 0, len(top))
	for _, score := range top {
		results = append(results, deck.RankedCandidate{Score: score, Reason: a.reasonFromScore(score)})
	}
	return results
}

// BuildFullDeck completes a partial deck up to the target size, or proposes
// swaps when the deck is already full. Candidates are checked against the
// seed once up front; the running counts only gate duplicates after that.
func (a *Assembler) BuildFullDeck(seed *deck.Deck, rankedScores []deck.CandidateScore) deck.Recommendation {
	target := a.cfg.TargetSize
	currentCards := append([]string(nil), seed.Cards...)
	currentCounts := make(map[string]int, len(seed.CardCounts))
	for cid, count := range seed.CardCounts {
		currentCounts[cid] = count
	}
	roleCounts := make(map[string]int, len(seed.RoleCounts))
	for role, count := range seed.RoleCounts {
		roleCounts[role] = count
	}

	var additions []string
	var removals []string
	var swaps []deck.SwapSuggestion

	legalCandidates := make([]deck.CandidateScore, 0, len(rankedScores))
	for _, score := range rankedScores {
		if a.checker.IsLegalAddition(seed, score.OracleID, currentCounts) {
			legalCandidates = append(legalCandidates, score)
		}
	}

	if len(currentCards) < target {
		for _, score := range legalCandidates {
			if len(currentCards) >= target {
				break
			}
			card, ok := a.cards[score.OracleID]
			if !ok {
				continue
			}
			currentCards = append(currentCards, score.OracleID)
			currentCounts[score.OracleID]++
			updateRoleCounts(roleCounts, card, 1)
			additions = append(additions, score.OracleID)
		}
	} else {
		for _, score := range legalCandidates {
			if len(swaps) >= a.cfg.MaxSwaps {
				break
			}
			cardID := score.OracleID
			if currentCounts[cardID] > 0 {
				continue
			}
			card, ok := a.cards[cardID]
			if !ok {
				continue
			}
			// No removable card is not fatal; later candidates may still
			// find one after counts shift.
			removalID, found := a.selectRemovalCandidate(seed, currentCounts, roleCounts)
			if !found {
				continue
			}
			removalCard, ok := a.cards[removalID]
			if !ok {
				continue
			}
			currentCounts[removalID]--
			currentCards = removeFirst(currentCards, removalID)
			updateRoleCounts(roleCounts, removalCard, -1)
			removals = append(removals, removalID)

			currentCards = append(currentCards, cardID)
			currentCounts[cardID]++
			updateRoleCounts(roleCounts, card, 1)
			additions = append(additions, cardID)

			swaps = append(swaps, deck.SwapSuggestion{
				Outgoing: removalID,
				Incoming: cardID,
				Reason:   a.reasonFromScore(score),
			})
		}
	}

	var notes []string
	if len(currentCards) != target {
		notes = append(notes, fmt.Sprintf("Deck has %d cards; target is %d.", len(currentCards), target))
	}

	return deck.Recommendation{
		Cards:       currentCards,
		Additions:   additions,
		Removals:    removals,
		Swaps:       swaps,
		RoleSummary: roleCounts,
		Notes:       notes,
	}
}

func (a *Assembler) reasonFromScore(score deck.CandidateScore) deck.Reason {
	var summaries []string
	var supporting []string
	roles := score.Evidence["shape"]

	if simCards := score.Evidence["similarity"]; len(simCards) > 0 {
		summaries = append(summaries, "Frequently seen with "+a.joinNames(simCards, 2))
		supporting = append(supporting, simCards...)
	}
	if commanderCards := score.Evidence["commander"]; len(commanderCards) > 0 {
		summaries = append(summaries, "Commander synergy: "+a.joinNames(commanderCards, 2))
		supporting = append(supporting, commanderCards...)
	}
	if score.ByComponent["frequency"] != 0 {
		summaries = append(summaries, "Popular across observed decks")
	}
	if len(roles) > 0 {
		limit := len(roles)
		if limit > 3 {
			limit = 3
		}
		summaries = append(summaries, "Supports "+strings.Join(roles[:limit], ", ")+" role")
	}
	if len(summaries) == 0 {
		summaries = append(summaries, "Promising upgrade candidate")
	}

	return deck.Reason{
		Summary:         strings.Join(summaries, "; "),
		SupportingCards: dedupeFirstSeen(supporting),
		Roles:           roles,
	}
}

// selectRemovalCandidate picks the weakest non-commander card in the deck:
// lowest global popularity, plus a penalty for cutting roles the deck still
// needs. Card ids are scanned in sorted order so ties resolve the same way
// every run.
func (a *Assembler) selectRemovalCandidate(seed *deck.Deck, currentCounts map[string]int, roleCounts map[string]int) (string, bool) {
	commanders := make(map[string]struct{}, len(seed.Commanders))
	for _, cid := range seed.Commanders {
		commanders[cid] = struct{}{}
	}

	ids := make([]string, 0, len(currentCounts))
	for cid := range currentCounts {
		ids = append(ids, cid)
	}
	sort.Strings(ids)

	worstCard := ""
	worstScore := math.Inf(1)
	found := false
	for _, cid := range ids {
		if currentCounts[cid] <= 0 {
			continue
		}
		if _, isCommander := commanders[cid]; isCommander {
			continue
		}
		card, ok := a.cards[cid]
		if !ok {
			continue
		}
		freqScore := math.Log1p(float64(a.frequencies[cid]))
		shapeEffect := -a.shape.ScoreRoleAdjustment(roleCounts, card, -1)
		totalScore := freqScore + math.Max(shapeEffect, 0)
		if totalScore < worstScore {
			worstScore = totalScore
			worstCard = cid
			found = true
		}
	}
	return worstCard, found
}

func (a *Assembler) joinNames(ids []string, limit int) string {
	if len(ids) > limit {
		ids = ids[:limit]
	}
	names := make([]string, len(ids))
	for i, cid := range ids {
		names[i] = a.cardName(cid)
	}
	return strings.Join(names, ", ")
}

func (a *Assembler) cardName(oracleID string) string {
	if card, ok := a.cards[oracleID]; ok && card.Name != "" {
		return card.Name
	}
	return oracleID
}

func updateRoleCounts(roleCounts map[string]int, card deck.Card, delta int) {
	for _, role := range card.Roles {
		roleCounts[role] += delta
		if roleCounts[role] <= 0 {
			delete(roleCounts, role)
		}
	}
}

func removeFirst(cards []string, oracleID string) []string {
	for i, cid := range cards {
		if cid == oracleID {
			return append(cards[:i], cards[i+1:]...)
		}
	}
	return cards
}

func dedupeFirstSeen(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
