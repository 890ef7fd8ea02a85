// Package deck defines the immutable value types shared across the
// recommendation pipeline: card metadata, deck records, commander profiles,
// and the scored output types returned to callers.
package deck

// Card holds the metadata for a single card, keyed by its oracle id.
// Instances are built once during dataset loading and treated as immutable.
type Card struct {
	OracleID      string            // canonical identifier shared across reprints
	OracleUID     string            // external uid from the export source, may be empty
	Name          string            // display name
	ColorIdentity []string          // color symbols the card contributes
	Types         []string          // ordered super, card, and sub types
	ManaValue     float64           // converted mana cost
	Legalities    map[string]string // format -> status (e.g. "commander" -> "legal")
	Roles         []string          // functional tags such as Land, Ramp, Draw, Removal
}

// CommanderProfile aggregates the observed card usage for one commander.
type CommanderProfile struct {
	OracleID      string
	ColorIdentity []string
	CardFrequency map[string]float64 // card -> fraction of this commander's observed card mass
	SampleSize    int                // number of decks the commander anchored
}
