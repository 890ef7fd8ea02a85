package dataset

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/ramonehamilton/EDH-Recommender/internal/deck"
)

// Compact snapshot wire format. Card counts are stored instead of expanded
// card lists, and the legality map collapses to a single commander flag.
type compactPayload struct {
	SnapshotID        string                    `json:"snapshot_id,omitempty"`
	BuiltAt           string                    `json:"built_at,omitempty"`
	DeckCount         int                       `json:"deck_count,omitempty"`
	Cards             map[string]compactCard    `json:"cards"`
	Decks             []compactDeck             `json:"decks"`
	CommanderProfiles map[string]compactProfile `json:"commander_profiles"`
	BanList           []string                  `json:"ban_list,omitempty"`
}

type compactCard struct {
	OracleUID      string   `json:"oracle_uid,omitempty"`
	Name           string   `json:"name"`
	ColorIdentity  []string `json:"color_identity,omitempty"`
	Types          []string `json:"types,omitempty"`
	ManaValue      float64  `json:"mana_value,omitempty"`
	CommanderLegal bool     `json:"commander_legal"`
	Roles          []string `json:"roles,omitempty"`
}

type compactDeck struct {
	DeckID        string         `json:"deck_id"`
	Commanders    []string       `json:"commanders,omitempty"`
	CardCounts    map[string]int `json:"card_counts"`
	ColorIdentity []string       `json:"color_identity,omitempty"`
	RoleCounts    map[string]int `json:"role_counts,omitempty"`
}

type compactProfile struct {
	ColorIdentity []string           `json:"color_identity,omitempty"`
	CardFrequency map[string]float64 `json:"card_frequency"`
	SampleSize    int                `json:"sample_size"`
}

// LoadCompact rehydrates a compact snapshot into a dataset. Paths ending in
// .gz are transparently decompressed.
func (l *Loader) LoadCompact(path string) (*deck.Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("compact snapshot %s: %w", path, ErrDatasetNotFound)
		}
		return nil, fmt.Errorf("open compact snapshot: %w", err)
	}
	defer func() { _ = file.Close() }()

	var reader io.Reader = file
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(file)
		if err != nil {
			return nil, fmt.Errorf("open gzip snapshot: %w", err)
		}
		defer func() { _ = gz.Close() }()
		reader = gz
	}

	var payload compactPayload
	if err := json.NewDecoder(reader).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode compact snapshot: %w", err)
	}

	cards := make(map[string]deck.Card, len(payload.Cards))
	for oracleID, c := range payload.Cards {
		status := "not_legal"
		if c.CommanderLegal {
			status = "legal"
		}
		cards[oracleID] = deck.Card{
			OracleID:      oracleID,
			OracleUID:     c.OracleUID,
			Name:          c.Name,
			ColorIdentity: c.ColorIdentity,
			Types:         c.Types,
			ManaValue:     c.ManaValue,
			Legalities:    map[string]string{"commander": status},
			Roles:         c.Roles,
		}
	}

	decks := make([]deck.Deck, 0, len(payload.Decks))
	for _, entry := range payload.Decks {
		counts := make(map[string]int, len(entry.CardCounts))
		ids := make([]string, 0, len(entry.CardCounts))
		for cid := range entry.CardCounts {
			ids = append(ids, cid)
		}
		sort.Strings(ids)
		var expanded []string
		for _, cid := range ids {
			quantity := entry.CardCounts[cid]
			if quantity <= 0 {
				continue
			}
			counts[cid] = quantity
			for i := 0; i < quantity; i++ {
				expanded = append(expanded, cid)
			}
		}
		roleCounts := make(map[string]int, len(entry.RoleCounts))
		for role, quantity := range entry.RoleCounts {
			roleCounts[role] = quantity
		}
		decks = append(decks, deck.Deck{
			ID:            entry.DeckID,
			Commanders:    entry.Commanders,
			Cards:         expanded,
			CardCounts:    counts,
			ColorIdentity: entry.ColorIdentity,
			RoleCounts:    roleCounts,
		})
	}

	profiles := make(map[string]deck.CommanderProfile, len(payload.CommanderProfiles))
	for oracleID, p := range payload.CommanderProfiles {
		frequency := make(map[string]float64, len(p.CardFrequency))
		for cid, f := range p.CardFrequency {
			frequency[cid] = f
		}
		profiles[oracleID] = deck.CommanderProfile{
			OracleID:      oracleID,
			ColorIdentity: p.ColorIdentity,
			CardFrequency: frequency,
			SampleSize:    p.SampleSize,
		}
	}

	banList := make(map[string]struct{}, len(payload.BanList))
	for _, oracleID := range payload.BanList {
		banList[oracleID] = struct{}{}
	}

	l.logger.Debug("loaded compact snapshot",
		"path", path, "snapshot_id", payload.SnapshotID, "decks", len(decks), "cards", len(cards))

	return &deck.Dataset{
		SnapshotID:        payload.SnapshotID,
		Decks:             decks,
		Cards:             cards,
		CommanderProfiles: profiles,
		BanList:           banList,
	}, nil
}

// WriteSnapshot serializes the dataset into the compact snapshot format at
// path, creating parent directories as needed. Paths ending in .gz are
// gzip-compressed. Returns the generated snapshot id.
func WriteSnapshot(ds *deck.Dataset, path string) (string, error) {
	payload := compactPayload{
		SnapshotID:        uuid.NewString(),
		BuiltAt:           time.Now().UTC().Format(time.RFC3339),
		DeckCount:         len(ds.Decks),
		Cards:             make(map[string]compactCard, len(ds.Cards)),
		Decks:             make([]compactDeck, 0, len(ds.Decks)),
		CommanderProfiles: make(map[string]compactProfile, len(ds.CommanderProfiles)),
	}

	for oracleID, card := range ds.Cards {
		payload.Cards[oracleID] = compactCard{
			OracleUID:      card.OracleUID,
			Name:           card.Name,
			ColorIdentity:  card.ColorIdentity,
			Types:          card.Types,
			ManaValue:      card.ManaValue,
			CommanderLegal: card.Legalities["commander"] == "legal",
			Roles:          card.Roles,
		}
	}

	for _, d := range ds.Decks {
		payload.Decks = append(payload.Decks, compactDeck{
			DeckID:        d.ID,
			Commanders:    d.Commanders,
			CardCounts:    d.CardCounts,
			ColorIdentity: d.ColorIdentity,
			RoleCounts:    d.RoleCounts,
		})
	}

	for oracleID, profile := range ds.CommanderProfiles {
		payload.CommanderProfiles[oracleID] = compactProfile{
			ColorIdentity: profile.ColorIdentity,
			CardFrequency: profile.CardFrequency,
			SampleSize:    profile.SampleSize,
		}
	}

	for oracleID := range ds.BanList {
		payload.BanList = append(payload.BanList, oracleID)
	}
	sort.Strings(payload.BanList)

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create snapshot directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create snapshot file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var writer io.Writer = file
	var gz *gzip.Writer
	if strings.HasSuffix(path, ".gz") {
		gz = gzip.NewWriter(file)
		writer = gz
	}

	if err := json.NewEncoder(writer).Encode(payload); err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return "", fmt.Errorf("flush gzip snapshot: %w", err)
		}
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("close snapshot file: %w", err)
	}
	return payload.SnapshotID, nil
}
