package estimate

import (
	"github.com/sells-group/bizmap/internal/model"
)

// Scope selects the subset of records a total is computed over.
type Scope struct {
	Kind  model.ScopeKind `json:"kind"`
	Value string          `json:"value,omitempty"`
}

// StateScope covers every record.
func StateScope() Scope { return Scope{Kind: model.ScopeState} }

// CountyScope covers records in the named county (case-insensitive).
func CountyScope(name string) Scope { return Scope{Kind: model.ScopeCounty, Value: name} }

// ZipScope covers records with exactly this zip.
func ZipScope(zip string) Scope { return Scope{Kind: model.ScopeZip, Value: zip} }

// Select returns the records inside the scope. An unknown kind selects
// nothing.
func (s Scope) Select(records []model.Business) []model.Business {
	switch s.Kind {
	case model.ScopeState, "":
		return records
	case model.ScopeCounty:
		return InCounty(records, s.Value)
	case model.ScopeZip:
		return InZip(records, s.Value)
	default:
		return nil
	}
}

// Aggregate sums employees and parsed revenue over records. It holds no
// state; callers recompute whenever the subset changes.
func Aggregate(records []model.Business) model.Totals {
	var t model.Totals
	for _, b := range records {
		if b.Employees > 0 {
			t.Employees += int64(b.Employees)
		}
		t.Revenue += ParseAmount(b.Revenue)
	}
	return t
}

// InCounty returns records whose county equals name, ignoring case.
func InCounty(records []model.Business, name string) []model.Business {
	if name == "" {
		return nil
	}
	want := model.Fold(name)
	var out []model.Business
	for _, b := range records {
		if model.Fold(b.County) == want {
			out = append(out, b)
		}
	}
	return out
}

// InZip returns records whose zip equals zip exactly.
func InZip(records []model.Business, zip string) []model.Business {
	if zip == "" {
		return nil
	}
	var out []model.Business
	for _, b := range records {
		if b.Zip == zip {
			out = append(out, b)
		}
	}
	return out
}
