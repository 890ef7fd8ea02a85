// Package commander blends per-commander card frequency profiles into prior
// scores for candidate ranking.
package commander

import (
	"sort"

	"github.com/ramonehamilton/EDH-Recommender/internal/deck"
)

// Config holds settings for building and applying commander priors.
type Config struct {
	// Smoothing is added to numerator and denominator so rare cards keep a
	// small nonzero prior.
	Smoothing float64
	// MaxCommanders bounds how many supplied commanders contribute. Partner
	// decks have two.
	MaxCommanders int
}

// DefaultConfig returns the default prior configuration.
func DefaultConfig() Config {
	return Config{Smoothing: 0.01, MaxCommanders: 2}
}

// Attribution records how much one commander contributed to a card's blended
// prior, as a share of the card's total contribution.
type Attribution struct {
	OracleID string
	Share    float64
}

// PriorStore is a lookup helper for commander-conditioned card priors.
type PriorStore struct {
	profiles map[string]deck.CommanderProfile
	cfg      Config
}

// NewPriorStore creates a store over precomputed commander profiles.
func NewPriorStore(profiles map[string]deck.CommanderProfile, cfg Config) *PriorStore {
	copied := make(map[string]deck.CommanderProfile, len(profiles))
	for id, profile := range profiles {
		copied[id] = profile
	}
	return &PriorStore{profiles: copied, cfg: cfg}
}

// Profile returns the stored profile for a commander, if any.
func (s *PriorStore) Profile(oracleID string) (deck.CommanderProfile, bool) {
	profile, ok := s.profiles[oracleID]
	return profile, ok
}

// Score blends priors for the supplied commanders into a single score map.
// Unknown commanders and zero-weight profiles contribute nothing; with no
// usable commanders the result is empty.
func (s *PriorStore) Score(commanders []string) map[string]float64 {
	scores, _ := s.blend(commanders, false)
	return scores
}

// ScoreWithSources is Score plus a per-card attribution of which commanders
// drove the prior, ordered by descending share.
func (s *PriorStore) ScoreWithSources(commanders []string) (map[string]float64, map[string][]Attribution) {
	return s.blend(commanders, true)
}

func (s *PriorStore) blend(commanders []string, withSources bool) (map[string]float64, map[string][]Attribution) {
	selected := dedupeFirstSeen(commanders)
	if s.cfg.MaxCommanders > 0 && len(selected) > s.cfg.MaxCommanders {
		selected = selected[:s.cfg.MaxCommanders]
	}
	if len(selected) == 0 {
		return map[string]float64{}, map[string][]Attribution{}
	}

	blended := make(map[string]float64)
	contributions := make(map[string]map[string]float64)
	totalWeight := 0.0
	for _, commanderID := range selected {
		profile, ok := s.profiles[commanderID]
		if !ok || len(profile.CardFrequency) == 0 {
			continue
		}
		weight := float64(profile.SampleSize)
		if weight <= 0 {
			continue
		}
		totalWeight += weight
		for cardID, freq := range profile.CardFrequency {
			contribution := weight * freq
			blended[cardID] += contribution
			if withSources {
				perCard, ok := contributions[cardID]
				if !ok {
					perCard = make(map[string]float64)
					contributions[cardID] = perCard
				}
				perCard[commanderID] += contribution
			}
		}
	}

	if totalWeight == 0 {
		return map[string]float64{}, map[string][]Attribution{}
	}

	denominator := totalWeight + s.cfg.Smoothing
	scores := make(map[string]float64, len(blended))
	for cardID, value := range blended {
		scores[cardID] = (value + s.cfg.Smoothing) / denominator
	}

	if !withSources {
		return scores, nil
	}

	sources := make(map[string][]Attribution, len(contributions))
	for cardID, perCard := range contributions {
		total := 0.0
		for _, amount := range perCard {
			total += amount
		}
		if total <= 0 {
			continue
		}
		ordered := make([]Attribution, 0, len(perCard))
		for commanderID, amount := range perCard {
			ordered = append(ordered, Attribution{OracleID: commanderID, Share: amount / total})
		}
		sort.Slice(ordered, func(i, j int) bool {
			if ordered[i].Share != ordered[j].Share {
				return ordered[i].Share > ordered[j].Share
			}
			return ordered[i].OracleID < ordered[j].OracleID
		})
		sources[cardID] = ordered
	}

	return scores, sources
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
