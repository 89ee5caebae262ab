package model

// ScopeKind identifies the region a set of totals was computed over.
type ScopeKind string

const (
	ScopeState  ScopeKind = "state"
	ScopeCounty ScopeKind = "county"
	ScopeZip    ScopeKind = "zip"
)

// Totals holds employee and revenue sums for a scope.
type Totals struct {
	Employees int64   `json:"employees"`
	Revenue   float64 `json:"revenue"`
}

// Selection is the hierarchical drill-down state. Empty strings mean
// "nothing selected" at that level.
type Selection struct {
	BusinessID string `json:"business_id,omitempty"`
	Zip        string `json:"zip,omitempty"`
	County     string `json:"county,omitempty"`
}

// Level returns the deepest populated level of the selection.
func (s Selection) Level() ScopeKind {
	switch {
	case s.Zip != "":
		return ScopeZip
	case s.County != "":
		return ScopeCounty
	default:
		return ScopeState
	}
}
