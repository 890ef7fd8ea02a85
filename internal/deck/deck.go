package deck

import "sort"

// Deck is the normalized representation of a single deck list.
type Deck struct {
	ID            string
	Commanders    []string       // ordered oracle ids, 0-2 in practice
	Cards         []string       // one entry per physical copy
	CardCounts    map[string]int // card -> quantity, consistent with Cards
	ColorIdentity []string       // sorted color symbols
	RoleCounts    map[string]int // role tag -> aggregate quantity
}

// Dataset is the aggregate root produced by the loader. It is built once and
// read-only afterward, so concurrent readers need no synchronization.
type Dataset struct {
	// SnapshotID identifies the compact snapshot the dataset was loaded from.
	// Empty when the dataset came from raw deck exports.
	SnapshotID        string
	Decks             []Deck
	Cards             map[string]Card
	CommanderProfiles map[string]CommanderProfile
	BanList           map[string]struct{}
}

// Banned reports whether the oracle id is on the dataset ban list.
func (d *Dataset) Banned(oracleID string) bool {
	_, ok := d.BanList[oracleID]
	return ok
}

// NewSeed builds a synthetic deck from a flat list of resolved card ids.
// Card counts and role counts are derived from the list; when colorIdentity is
// nil the union of the member cards' color identities is used instead.
func NewSeed(id string, commanders []string, cardIDs []string, colorIdentity []string, cards map[string]Card) Deck {
	counts := make(map[string]int, len(cardIDs))
	roleCounts := make(map[string]int)
	for _, cid := range cardIDs {
		counts[cid]++
	}
	for cid, quantity := range counts {
		card, ok := cards[cid]
		if !ok {
			continue
		}
		for _, role := range card.Roles {
			roleCounts[role] += quantity
		}
	}

	if colorIdentity == nil {
		colorSet := make(map[string]struct{})
		for cid := range counts {
			card, ok := cards[cid]
			if !ok {
				continue
			}
			for _, color := range card.ColorIdentity {
				colorSet[color] = struct{}{}
			}
		}
		colorIdentity = make([]string, 0, len(colorSet))
		for color := range colorSet {
			colorIdentity = append(colorIdentity, color)
		}
		sort.Strings(colorIdentity)
	}

	return Deck{
		ID:            id,
		Commanders:    append([]string(nil), commanders...),
		Cards:         append([]string(nil), cardIDs...),
		CardCounts:    counts,
		ColorIdentity: colorIdentity,
		RoleCounts:    roleCounts,
	}
}
