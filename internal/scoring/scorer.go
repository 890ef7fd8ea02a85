// Package scoring combines similarity, commander priors, and heuristics into
// ranked candidate scores.
package scoring

import (
	"math"
	"sort"

	"github.com/ramonehamilton/EDH-Recommender/internal/commander"
	"github.com/ramonehamilton/EDH-Recommender/internal/constraints"
	"github.com/ramonehamilton/EDH-Recommender/internal/deck"
	"github.com/ramonehamilton/EDH-Recommender/internal/similarity"
)

// Config holds the weights for the scoring components.
type Config struct {
	SimilarityWeight     float64
	CommanderPriorWeight float64
	FrequencyPriorWeight float64
	ShapeWeight          float64
	// MaxCandidates truncates the ranked output. Zero or negative keeps all.
	MaxCandidates int
}

// DefaultConfig returns the default scoring weights.
func DefaultConfig() Config {
	return Config{
		SimilarityWeight:     0.6,
		CommanderPriorWeight: 0.3,
		FrequencyPriorWeight: 0.1,
		ShapeWeight:          0.05,
		MaxCandidates:        500,
	}
}

// Scorer produces ranked candidate scores for a given seed deck.
type Scorer struct {
	similarity  *similarity.Model
	priors      *commander.PriorStore
	shape       *constraints.ShapeEvaluator
	cards       map[string]deck.Card
	frequencies map[string]int
	cfg         Config
}

// NewScorer wires the scoring components together.
func NewScorer(
	model *similarity.Model,
	priors *commander.PriorStore,
	shape *constraints.ShapeEvaluator,
	cards map[string]deck.Card,
	frequencies map[string]int,
	cfg Config,
) *Scorer {
	return &Scorer{
		similarity:  model,
		priors:      priors,
		shape:       shape,
		cards:       cards,
		frequencies: frequencies,
		cfg:         cfg,
	}
}

// simSource tracks which seed card produced a similarity contribution.
type simSource struct {
	oracleID string
	score    float64
}

// ScoreCandidates returns scored candidates for the supplied seed deck,
// strongest first. Cards already in the seed are never candidates.
func (s *Scorer) ScoreCandidates(seed *deck.Deck) ([]deck.CandidateScore, error) {
	components := make(map[string]map[string]float64)
	simSources := make(map[string][]simSource)
	commanderSources := make(map[string][]string)
	shapeRoles := make(map[string][]string)

	seedCards := make(map[string]struct{}, len(seed.CardCounts))
	seedIDs := make([]string, 0, len(seed.CardCounts))
	for cid := range seed.CardCounts {
		seedCards[cid] = struct{}{}
		seedIDs = append(seedIDs, cid)
	}
	sort.Strings(seedIDs)

	for _, cid := range seedIDs {
		neighbors, err := s.similarity.Neighbors(cid)
		if err != nil {
			return nil, err
		}
		for _, n := range neighbors {
			if _, inSeed := seedCards[n.OracleID]; inSeed {
				continue
			}
			comp := ensureComponents(components, n.OracleID)
			comp["similarity"] += n.Score
			simSources[n.OracleID] = append(simSources[n.OracleID], simSource{oracleID: cid, score: n.Score})
		}
	}

	priorScores, priorSources := s.priors.ScoreWithSources(seed.Commanders)
	for cid, value := range priorScores {
		if _, inSeed := seedCards[cid]; inSeed {
			continue
		}
		comp := ensureComponents(components, cid)
		comp["commander"] += value
		for _, attribution := range priorSources[cid] {
			commanderSources[cid] = append(commanderSources[cid], attribution.OracleID)
		}
	}

	for cid, comp := range components {
		if freq := float64(s.frequencies[cid]); freq > 0 {
			comp["frequency"] = math.Log1p(freq)
		}
	}

	for cid, comp := range components {
		card, ok := s.cards[cid]
		if !ok {
			// Candidates without metadata cannot be explained or checked, so
			// they are dropped outright.
			delete(components, cid)
			delete(simSources, cid)
			delete(commanderSources, cid)
			continue
		}
		shapeDelta := s.shape.ScoreRoleAdjustment(seed.RoleCounts, card, 1)
		if shapeDelta != 0 {
			comp["shape"] = shapeDelta
			if len(card.Roles) > 0 {
				roles := append([]string(nil), card.Roles...)
				sort.Strings(roles)
				shapeRoles[cid] = roles
			}
		}
	}

	scored := make([]deck.CandidateScore, 0, len(components))
	for cid, comp := range components {
		evidence := make(map[string][]string)
		if sources := simSources[cid]; len(sources) > 0 {
			evidence["similarity"] = topSimilaritySources(sources, 3)
		}
		if sources := commanderSources[cid]; len(sources) > 0 {
			evidence["commander"] = dedupeFirstSeen(sources)
		}
		if roles, ok := shapeRoles[cid]; ok {
			evidence["shape"] = roles
		}
		scored = append(scored, s.combine(cid, comp, evidence))
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Total != scored[j].Total {
			return scored[i].Total > scored[j].Total
		}
		return scored[i].OracleID < scored[j].OracleID
	})
	if s.cfg.MaxCandidates > 0 && len(scored) > s.cfg.MaxCandidates {
		scored = scored[:s.cfg.MaxCandidates]
	}
	return scored, nil
}

func (s *Scorer) combine(oracleID string, components map[string]float64, evidence map[string][]string) deck.CandidateScore {
	total := components["similarity"]*s.cfg.SimilarityWeight +
		components["commander"]*s.cfg.CommanderPriorWeight +
		components["frequency"]*s.cfg.FrequencyPriorWeight +
		components["shape"]*s.cfg.ShapeWeight
	return deck.CandidateScore{
		OracleID:    oracleID,
		Total:       total,
		ByComponent: components,
		Evidence:    evidence,
	}
}

func ensureComponents(components map[string]map[string]float64, oracleID string) map[string]float64 {
	comp, ok := components[oracleID]
	if !ok {
		comp = make(map[string]float64)
		components[oracleID] = comp
	}
	return comp
}

func topSimilaritySources(sources []simSource, limit int) []string {
	sorted := append([]simSource(nil), sources...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].score != sorted[j].score {
			return sorted[i].score > sorted[j].score
		}
		return sorted[i].oracleID < sorted[j].oracleID
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	ids := make([]string, len(sorted))
	for i, source := range sorted {
		ids[i] = source.oracleID
	}
	return ids
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
