package model

// Product is an immutable catalog entry. Stock is the one mutable field and
// is only ever written by the stock ledger.
type Product struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Seasons     []string `json:"seasons,omitempty"`
	Price       float64  `json:"price"`
	Stock       int      `json:"stock"`
	Promotion   string   `json:"promotion,omitempty"`
}

// InSeason reports whether the product lists the given season.
func (p *Product) InSeason(season string) bool {
	for _, s := range p.Seasons {
		if s == season {
			return true
		}
	}
	return false
}

// ResolutionMethod identifies which tier of the resolver cascade produced a
// candidate.
type ResolutionMethod string

const (
	MethodExactID        ResolutionMethod = "exact_id"
	MethodFuzzyName      ResolutionMethod = "fuzzy_name"
	MethodSemanticSearch ResolutionMethod = "semantic_search"
)

// Candidate is a catalog product proposed as a match for a mention.
type Candidate struct {
	Product    *Product         `json:"product"`
	Confidence float64          `json:"confidence"`
	Method     ResolutionMethod `json:"method"`
	Mention    Mention          `json:"mention"`
}

// ResolvedMention pairs a mention with its ranked candidates
// (non-increasing confidence).
type ResolvedMention struct {
	Mention    Mention     `json:"mention"`
	Candidates []Candidate `json:"candidates"`
}

// Best returns the highest-confidence candidate, or nil if none.
func (r ResolvedMention) Best() *Candidate {
	if len(r.Candidates) == 0 {
		return nil
	}
	return &r.Candidates[0]
}

// ResolutionSet is the resolver's output for one request: mentions that
// produced at least one candidate, and those that produced none.
type ResolutionSet struct {
	Resolved   []ResolvedMention `json:"resolved"`
	Unresolved []Mention         `json:"unresolved"`
}

// Candidates flattens every candidate across all resolved mentions. The
// advise branch reads this as its product context snapshot.
func (rs ResolutionSet) Candidates() []Candidate {
	var out []Candidate
	for _, rm := range rs.Resolved {
		out = append(out, rm.Candidates...)
	}
	return out
}
