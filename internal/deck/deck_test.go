package deck

import "testing"

func seedCards() map[string]Card {
	return map[string]Card{
		"100": {OracleID: "100", Name: "Ghave, Guru of Spores", ColorIdentity: []string{"B", "G", "W"}, Roles: []string{"Commander"}},
		"200": {OracleID: "200", Name: "Sol Ring", Roles: []string{"Ramp"}},
		"300": {OracleID: "300", Name: "Forest", ColorIdentity: []string{"G"}, Roles: []string{"Land"}},
	}
}

func TestNewSeedCountsAndRoles(t *testing.T) {
	seed := NewSeed("s1", []string{"100"}, []string{"100", "200", "300", "300"}, nil, seedCards())

	if seed.ID != "s1" {
		t.Errorf("ID = %q", seed.ID)
	}
	if seed.CardCounts["300"] != 2 {
		t.Errorf("Forest count = %d, want 2", seed.CardCounts["300"])
	}
	if len(seed.Cards) != 4 {
		t.Errorf("expanded cards = %d, want 4", len(seed.Cards))
	}
	if seed.RoleCounts["Land"] != 2 || seed.RoleCounts["Ramp"] != 1 {
		t.Errorf("role counts = %v", seed.RoleCounts)
	}
}

func TestNewSeedDerivesColorIdentity(t *testing.T) {
	seed := NewSeed("s1", nil, []string{"200", "300"}, nil, seedCards())

	if len(seed.ColorIdentity) != 1 || seed.ColorIdentity[0] != "G" {
		t.Errorf("color identity = %v, want [G]", seed.ColorIdentity)
	}

	// An explicit identity wins over derivation.
	seed = NewSeed("s2", nil, []string{"300"}, []string{"B", "G"}, seedCards())
	if len(seed.ColorIdentity) != 2 {
		t.Errorf("color identity = %v, want [B G]", seed.ColorIdentity)
	}
}

func TestNewSeedCopiesInputs(t *testing.T) {
	commanders := []string{"100"}
	cardIDs := []string{"100", "200"}
	seed := NewSeed("s1", commanders, cardIDs, nil, seedCards())

	commanders[0] = "mutated"
	cardIDs[0] = "mutated"
	if seed.Commanders[0] != "100" || seed.Cards[0] != "100" {
		t.Error("seed deck shares memory with caller slices")
	}
}

func TestNewSeedUnknownCardsIgnoredForMetadata(t *testing.T) {
	seed := NewSeed("s1", nil, []string{"999", "300"}, nil, seedCards())

	// The unknown card still counts as a deck slot.
	if seed.CardCounts["999"] != 1 {
		t.Errorf("unknown card count = %d, want 1", seed.CardCounts["999"])
	}
	// But contributes no colors or roles.
	if len(seed.ColorIdentity) != 1 || seed.ColorIdentity[0] != "G" {
		t.Errorf("color identity = %v, want [G]", seed.ColorIdentity)
	}
	if len(seed.RoleCounts) != 1 {
		t.Errorf("role counts = %v", seed.RoleCounts)
	}
}

func TestDatasetBanned(t *testing.T) {
	ds := &Dataset{BanList: map[string]struct{}{"100": {}}}
	if !ds.Banned("100") {
		t.Error("expected 100 to be banned")
	}
	if ds.Banned("200") {
		t.Error("expected 200 to be legal")
	}
}
