package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/ramonehamilton/EDH-Recommender/internal/deck"
)

// Archidekt export wire format. Only the fields the pipeline needs are
// decoded; everything else in the export is ignored.
type rawExport struct {
	DeckID   json.Number `json:"deck_id"`
	DeckData rawDeckData `json:"deck_data"`
}

type rawDeckData struct {
	ID    json.Number `json:"id"`
	Cards []rawEntry  `json:"cards"`
}

type rawEntry struct {
	Quantity   json.Number `json:"quantity"`
	Categories []string    `json:"categories"`
	Card       rawCard     `json:"card"`
}

type rawCard struct {
	Name       string    `json:"name"`
	OracleCard rawOracle `json:"oracleCard"`
}

type rawOracle struct {
	ID            json.Number       `json:"id"`
	UID           string            `json:"uid"`
	Name          string            `json:"name"`
	ColorIdentity []string          `json:"colorIdentity"`
	SuperTypes    []string          `json:"superTypes"`
	Types         []string          `json:"types"`
	SubTypes      []string          `json:"subTypes"`
	CMC           json.Number       `json:"cmc"`
	Legalities    map[string]string `json:"legalities"`
}

// LoadDir reads every *.json deck export in dir (sorted for deterministic
// processing) and assembles the aggregated dataset. Malformed files are
// skipped with a warning rather than aborting the load.
func (l *Loader) LoadDir(dir string) (*deck.Dataset, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("raw deck directory %s: %w", dir, ErrDatasetNotFound)
		}
		return nil, fmt.Errorf("read deck directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)

	decks := make([]deck.Deck, 0, len(files))
	cards := make(map[string]deck.Card)
	for _, path := range files {
		record, metadata, err := parseDeckFile(path)
		if err != nil {
			l.logger.Warn("skipping malformed deck export", "path", path, "error", err)
			continue
		}
		decks = append(decks, record)
		for oracleID, card := range metadata {
			if _, ok := cards[oracleID]; !ok {
				cards[oracleID] = card
			}
		}
	}
	l.logger.Debug("loaded raw deck exports", "dir", dir, "decks", len(decks), "cards", len(cards))

	return &deck.Dataset{
		Decks:             decks,
		Cards:             cards,
		CommanderProfiles: BuildCommanderProfiles(decks, cards),
		BanList:           make(map[string]struct{}),
	}, nil
}

// parseDeckFile parses one Archidekt export into a deck record plus the card
// metadata observed in it.
func parseDeckFile(path string) (deck.Deck, map[string]deck.Card, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return deck.Deck{}, nil, fmt.Errorf("read deck file: %w", err)
	}

	var raw rawExport
	if err := json.Unmarshal(data, &raw); err != nil {
		return deck.Deck{}, nil, fmt.Errorf("decode deck file: %w", err)
	}

	cardCounts := make(map[string]int)
	roleCounts := make(map[string]int)
	metadata := make(map[string]deck.Card)
	var commanders []string
	var cardIDs []string
	var mainboardOrder []string

	for _, entry := range raw.DeckData.Cards {
		oracle := entry.Card.OracleCard
		oracleID := oracle.ID.String()
		if oracleID == "" {
			continue
		}

		quantity := toInt(entry.Quantity)
		if quantity <= 0 {
			continue
		}

		isMaybeboard := containsString(entry.Categories, "Maybeboard")
		isCommander := containsString(entry.Categories, "Commander")

		if _, ok := metadata[oracleID]; !ok {
			name := oracle.Name
			if name == "" {
				name = entry.Card.Name
			}
			metadata[oracleID] = deck.Card{
				OracleID:      oracleID,
				OracleUID:     oracle.UID,
				Name:          name,
				ColorIdentity: append([]string(nil), oracle.ColorIdentity...),
				Types:         combineTypes(oracle.SuperTypes, oracle.Types, oracle.SubTypes),
				ManaValue:     toFloat(oracle.CMC),
				Legalities:    copyStringMap(oracle.Legalities),
				Roles:         roleTags(entry.Categories),
			}
		}

		if isCommander && !isMaybeboard && !containsString(commanders, oracleID) {
			commanders = append(commanders, oracleID)
		}

		if isMaybeboard {
			continue
		}

		if cardCounts[oracleID] == 0 {
			mainboardOrder = append(mainboardOrder, oracleID)
		}
		cardCounts[oracleID] += quantity
		for i := 0; i < quantity; i++ {
			cardIDs = append(cardIDs, oracleID)
		}

		for _, category := range entry.Categories {
			if category == "Commander" || category == "Maybeboard" {
				continue
			}
			roleCounts[category] += quantity
		}
	}

	// Fallback: the first legendary creature seen in the mainboard.
	if len(commanders) == 0 {
		for _, oracleID := range mainboardOrder {
			card, ok := metadata[oracleID]
			if !ok {
				continue
			}
			if containsString(card.Types, "Legendary") && containsString(card.Types, "Creature") {
				commanders = append(commanders, oracleID)
				break
			}
		}
	}

	deckID := raw.DeckData.ID.String()
	if deckID == "" {
		deckID = raw.DeckID.String()
	}
	if deckID == "" {
		deckID = strings.TrimSuffix(filepath.Base(path), ".json")
	}

	record := deck.Deck{
		ID:            deckID,
		Commanders:    commanders,
		Cards:         cardIDs,
		CardCounts:    cardCounts,
		ColorIdentity: deriveColorIdentity(commanders, mainboardOrder, metadata),
		RoleCounts:    roleCounts,
	}
	return record, metadata, nil
}

// BuildCommanderProfiles aggregates, per commander, the card counts of every
// deck that commander anchored, normalized by the commander's total observed
// card mass.
func BuildCommanderProfiles(decks []deck.Deck, cards map[string]deck.Card) map[string]deck.CommanderProfile {
	commanderCounts := make(map[string]map[string]int)
	commanderSamples := make(map[string]int)

	for _, d := range decks {
		for _, commander := range d.Commanders {
			commanderSamples[commander]++
			counts, ok := commanderCounts[commander]
			if !ok {
				counts = make(map[string]int)
				commanderCounts[commander] = counts
			}
			for cid, quantity := range d.CardCounts {
				counts[cid] += quantity
			}
		}
	}

	profiles := make(map[string]deck.CommanderProfile, len(commanderCounts))
	for commander, counts := range commanderCounts {
		sampleSize := commanderSamples[commander]
		if sampleSize == 0 {
			continue
		}
		total := 0
		for _, quantity := range counts {
			total += quantity
		}
		frequencies := make(map[string]float64, len(counts))
		if total > 0 {
			for cid, quantity := range counts {
				frequencies[cid] = float64(quantity) / float64(total)
			}
		}
		var colorIdentity []string
		if card, ok := cards[commander]; ok {
			colorIdentity = card.ColorIdentity
		}
		profiles[commander] = deck.CommanderProfile{
			OracleID:      commander,
			ColorIdentity: colorIdentity,
			CardFrequency: frequencies,
			SampleSize:    sampleSize,
		}
	}
	return profiles
}

// deriveColorIdentity computes deck colors from the commanders, falling back
// to the union of the mainboard when no commander contributes any.
func deriveColorIdentity(commanders, mainboardOrder []string, metadata map[string]deck.Card) []string {
	colorSet := make(map[string]struct{})
	for _, commander := range commanders {
		if card, ok := metadata[commander]; ok {
			for _, color := range card.ColorIdentity {
				colorSet[color] = struct{}{}
			}
		}
	}
	if len(colorSet) == 0 {
		for _, oracleID := range mainboardOrder {
			if card, ok := metadata[oracleID]; ok {
				for _, color := range card.ColorIdentity {
					colorSet[color] = struct{}{}
				}
			}
		}
	}
	colors := make([]string, 0, len(colorSet))
	for color := range colorSet {
		colors = append(colors, color)
	}
	sort.Strings(colors)
	return colors
}

func roleTags(categories []string) []string {
	set := make(map[string]struct{})
	for _, category := range categories {
		if category == "Commander" || category == "Maybeboard" || category == "" {
			continue
		}
		set[category] = struct{}{}
	}
	tags := make([]string, 0, len(set))
	for tag := range set {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

func combineTypes(superTypes, cardTypes, subTypes []string) []string {
	types := make([]string, 0, len(superTypes)+len(cardTypes)+len(subTypes))
	for _, group := range [][]string{superTypes, cardTypes, subTypes} {
		for _, t := range group {
			if t != "" {
				types = append(types, t)
			}
		}
	}
	return types
}

func copyStringMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

func toInt(n json.Number) int {
	v, err := n.Int64()
	if err != nil {
		return 0
	}
	return int(v)
}

func toFloat(n json.Number) float64 {
	v, err := n.Float64()
	if err != nil {
		return 0
	}
	return v
}
