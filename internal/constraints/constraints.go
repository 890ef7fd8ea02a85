// Package constraints applies Commander format legality rules and deck shape
// heuristics to candidate cards.
package constraints

import "github.com/ramonehamilton/EDH-Recommender/internal/deck"

// ShapeTarget holds desired counts for functional roles within a deck.
type ShapeTarget struct {
	Lands   int
	Ramp    int
	Draw    int
	Removal int
}

// DefaultShapeTarget returns the conventional 100-card Commander shape.
func DefaultShapeTarget() ShapeTarget {
	return ShapeTarget{Lands: 38, Ramp: 10, Draw: 10, Removal: 10}
}

// Checker validates candidate cards against hard Commander format rules.
type Checker struct {
	cards   map[string]deck.Card
	banList map[string]struct{}
}

// NewChecker creates a checker over the dataset card pool and ban list.
func NewChecker(cards map[string]deck.Card, banList map[string]struct{}) *Checker {
	bans := make(map[string]struct{}, len(banList))
	for id := range banList {
		bans[id] = struct{}{}
	}
	return &Checker{cards: cards, banList: bans}
}

// IsLegalAddition reports whether the candidate satisfies hard constraints
// for the seed deck. existingCounts overrides the seed's card counts when
// non-nil, which lets the deck builder track a deck as it grows.
func (c *Checker) IsLegalAddition(seed *deck.Deck, candidate string, existingCounts map[string]int) bool {
	if _, banned := c.banList[candidate]; banned {
		return false
	}

	card, ok := c.cards[candidate]
	if !ok {
		return false
	}

	if card.Legalities["commander"] != "legal" {
		return false
	}

	if len(seed.ColorIdentity) > 0 && !withinIdentity(card.ColorIdentity, seed.ColorIdentity) {
		return false
	}

	counts := existingCounts
	if counts == nil {
		counts = seed.CardCounts
	}
	if counts[candidate] > 0 && !isBasicLand(card) {
		return false
	}

	return true
}

// ShapeEvaluator scores how a deck aligns with target role distributions.
type ShapeEvaluator struct {
	target ShapeTarget
}

// NewShapeEvaluator creates an evaluator for the given targets.
func NewShapeEvaluator(target ShapeTarget) *ShapeEvaluator {
	return &ShapeEvaluator{target: target}
}

// ScoreRoleAdjustment evaluates the impact of adding (delta > 0) or removing
// (delta < 0) a card on role balance. Moves that close a gap score positive,
// overshoots score negative.
func (e *ShapeEvaluator) ScoreRoleAdjustment(roleCounts map[string]int, card deck.Card, delta int) float64 {
	score := 0.0
	if hasRole(card, "Land") {
		score += roleDelta(roleCounts["Land"], e.target.Lands, delta)
	}
	if hasRole(card, "Ramp") {
		score += roleDelta(roleCounts["Ramp"], e.target.Ramp, delta)
	}
	if hasRole(card, "Draw") {
		score += roleDelta(roleCounts["Draw"], e.target.Draw, delta)
	}
	if hasRole(card, "Removal") {
		score += roleDelta(roleCounts["Removal"], e.target.Removal, delta)
	}
	return score
}

func roleDelta(current, target, delta int) float64 {
	beforeGap := intAbs(current - target)
	afterGap := intAbs(current + delta - target)
	divisor := target
	if divisor < 1 {
		divisor = 1
	}
	return float64(beforeGap-afterGap) / float64(divisor)
}

func withinIdentity(cardColors, allowed []string) bool {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, color := range allowed {
		allowedSet[color] = struct{}{}
	}
	for _, color := range cardColors {
		if _, ok := allowedSet[color]; !ok {
			return false
		}
	}
	return true
}

func hasRole(card deck.Card, role string) bool {
	for _, r := range card.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func isBasicLand(card deck.Card) bool {
	hasLand := false
	hasBasic := false
	for _, t := range card.Types {
		switch t {
		case "Land":
			hasLand = true
		case "Basic":
			hasBasic = true
		}
	}
	return hasLand && hasBasic
}

func intAbs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
