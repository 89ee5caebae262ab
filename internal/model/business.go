// Package model defines the canonical business record and derived totals.
package model

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Business is the canonical record shape stored in the explorer snapshot.
// JSON names match the persisted blob so existing snapshots keep loading.
type Business struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
	City    string `json:"city"`
	County  string `json:"county"`
	State   string `json:"state"`
	Zip     string `json:"zip"`

	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`

	NAICSCode        string `json:"naicsCode"`
	NAICSDescription string `json:"naicsDescription"`
	SICCode          string `json:"sicCode,omitempty"`

	Employees int    `json:"employees"`
	Revenue   string `json:"revenue,omitempty"` // free-form, parsed at aggregation time

	Phone           string `json:"phone,omitempty"`
	Website         string `json:"website,omitempty"`
	ContactName     string `json:"contactName,omitempty"`
	ContactTitle    string `json:"contactTitle,omitempty"`
	YearEstablished string `json:"yearEstablished,omitempty"`
	SourceURL       string `json:"sourceUrl,omitempty"`
	RawDetails      string `json:"rawDetails,omitempty"`

	Tags []string `json:"tags"`
}

// Key returns the identity key used for duplicate detection: the
// lower-cased name joined with the zip. Two distinct businesses sharing a
// name and zip collapse to one key.
func (b Business) Key() string {
	return Fold(b.Name) + "|" + b.Zip
}

// HasTag reports whether tag is present (exact match).
func (b Business) HasTag(tag string) bool {
	for _, t := range b.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Clone returns a copy with its own tag slice.
func (b Business) Clone() Business {
	c := b
	if b.Tags != nil {
		c.Tags = make([]string, len(b.Tags))
		copy(c.Tags, b.Tags)
	}
	return c
}

// Fold lower-cases s for case-insensitive comparisons.
func Fold(s string) string {
	return cases.Lower(language.Und).String(s)
}
