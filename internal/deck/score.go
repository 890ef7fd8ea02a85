package deck

// CandidateScore is the weighted score for one candidate card together with
// the per-component breakdown and supporting evidence used for explanations.
type CandidateScore struct {
	OracleID    string
	Total       float64
	ByComponent map[string]float64 // component name -> raw contribution
	Evidence    map[string][]string
}

// Reason is a human-readable explanation for a recommendation.
type Reason struct {
	Summary         string
	SupportingCards []string
	Roles           []string
}

// SwapSuggestion proposes replacing an existing card with a candidate.
type SwapSuggestion struct {
	Outgoing string
	Incoming string
	Reason   Reason
}

// Recommendation is the full deck output including swap suggestions and
// diagnostic notes.
type Recommendation struct {
	Cards       []string
	Additions   []string
	Removals    []string
	Swaps       []SwapSuggestion
	RoleSummary map[string]int
	Notes       []string
}

// RankedCandidate pairs a candidate score with its explanation.
type RankedCandidate struct {
	Score  CandidateScore
	Reason Reason
}
