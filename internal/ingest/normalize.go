// Package ingest turns uploaded files into canonical business records and
// merges them into an existing record set.
package ingest

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/sells-group/bizmap/internal/estimate"
	"github.com/sells-group/bizmap/internal/geo"
	"github.com/sells-group/bizmap/internal/model"
)

// Candidate source keys per canonical field, first non-empty wins.
var (
	latKeys              = []string{"latitude", "lat"}
	lngKeys              = []string{"longitude", "lng"}
	naicsCodeKeys        = []string{"naics_code", "naicsCode"}
	naicsDescriptionKeys = []string{"naics_description", "naicsDescription"}
	employeeKeys         = []string{"actual_employee_count", "employees"}
	revenueKeys          = []string{"actual_sales_volume", "revenue"}
	contactNameKeys      = []string{"contact_name", "contactName"}
	contactTitleKeys     = []string{"contact_title", "contactTitle"}
	yearEstablishedKeys  = []string{"year_established", "yearEstablished"}
	sicCodeKeys          = []string{"sic_code", "sicCode"}
	sourceURLKeys        = []string{"source_url", "sourceUrl"}
	rawDetailsKeys       = []string{"raw_details", "rawDetails"}
)

// Defaults applied when a field is absent.
const (
	DefaultName             = "Unknown Business"
	DefaultState            = "NC"
	DefaultNAICSCode        = "0000"
	DefaultNAICSDescription = "Unknown"
	DefaultTag              = "Business"
	UnknownCounty           = "Unknown"
)

// Outcome describes how a record was normalized.
type Outcome struct {
	// Geocoded is set when the county came from the boundary lookup.
	Geocoded bool
}

// Stats summarizes a normalized batch.
type Stats struct {
	Total    int
	Geocoded int
	Rejected int
}

// Normalize maps every raw object to a canonical record. Objects without
// finite coordinates are dropped and counted as rejected.
func Normalize(raw []map[string]any, loc geo.Locator, now time.Time) ([]model.Business, Stats) {
	stats := Stats{Total: len(raw)}
	out := make([]model.Business, 0, len(raw))
	for i, item := range raw {
		b, outcome, ok := NormalizeRecord(item, i, loc, now)
		if !ok {
			stats.Rejected++
			continue
		}
		if outcome.Geocoded {
			stats.Geocoded++
		}
		out = append(out, b)
	}
	return out, stats
}

// NormalizeRecord maps one raw object to a canonical record. It reports
// false only when latitude or longitude is missing or not a finite number.
// loc may be nil, in which case a missing county becomes "Unknown".
func NormalizeRecord(item map[string]any, index int, loc geo.Locator, now time.Time) (model.Business, Outcome, bool) {
	var outcome Outcome

	lat, ok := parseCoord(first(item, latKeys))
	if !ok {
		return model.Business{}, outcome, false
	}
	lng, ok := parseCoord(first(item, lngKeys))
	if !ok {
		return model.Business{}, outcome, false
	}

	county := CleanCountyName(text(item["county"]))
	if county == "" && loc != nil {
		if name, found := loc.Locate(lng, lat); found {
			if county = CleanCountyName(name); county != "" {
				outcome.Geocoded = true
			}
		}
	}
	if county == "" {
		county = UnknownCounty
	}

	b := model.Business{
		ID:               or(text(item["id"]), fmt.Sprintf("uploaded-%d-%d", now.UnixMilli(), index)),
		Name:             or(text(item["name"]), DefaultName),
		Address:          text(item["address"]),
		City:             text(item["city"]),
		County:           county,
		State:            or(text(item["state"]), DefaultState),
		Zip:              text(item["zip"]),
		Lat:              lat,
		Lng:              lng,
		NAICSCode:        or(firstText(item, naicsCodeKeys), DefaultNAICSCode),
		NAICSDescription: or(firstText(item, naicsDescriptionKeys), DefaultNAICSDescription),
		SICCode:          firstText(item, sicCodeKeys),
		Employees:        parseEmployees(first(item, employeeKeys)),
		Revenue:          firstText(item, revenueKeys),
		Phone:            text(item["phone"]),
		Website:          text(item["website"]),
		ContactName:      firstText(item, contactNameKeys),
		ContactTitle:     firstText(item, contactTitleKeys),
		YearEstablished:  firstText(item, yearEstablishedKeys),
		SourceURL:        firstText(item, sourceURLKeys),
		RawDetails:       firstText(item, rawDetailsKeys),
		Tags:             parseTags(item["tags"]),
	}
	if len(b.Tags) == 0 {
		b.Tags = []string{or(firstText(item, naicsDescriptionKeys), DefaultTag)}
	}

	return b, outcome, true
}

// CleanCountyName trims s, drops a trailing " County" (any case), and
// upper-cases the first letter of each word. The rest of each word is left
// as is.
func CleanCountyName(s string) string {
	clean := strings.TrimSpace(s)
	if strings.HasSuffix(strings.ToLower(clean), " county") {
		clean = strings.TrimSpace(clean[:len(clean)-len(" county")])
	}

	var sb strings.Builder
	sb.Grow(len(clean))
	inWord := false
	for _, r := range clean {
		switch {
		case unicode.IsSpace(r):
			inWord = false
		case !inWord && isWordRune(r):
			r = unicode.ToUpper(r)
			inWord = true
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func isWordRune(r rune) bool {
	return r == '_' || (r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)))
}

// first returns the first value among keys that is not absent or "".
func first(item map[string]any, keys []string) any {
	for _, k := range keys {
		v, ok := item[k]
		if !ok || v == nil {
			continue
		}
		if s, isStr := v.(string); isStr && s == "" {
			continue
		}
		return v
	}
	return nil
}

func firstText(item map[string]any, keys []string) string {
	return text(first(item, keys))
}

// text renders scalar values as strings. Numbers keep their source text.
func text(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

func or(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func parseCoord(v any) (float64, bool) {
	var (
		n  float64
		ok bool
	)
	switch t := v.(type) {
	case float64:
		n, ok = t, true
	case json.Number:
		n, ok = estimate.LeadingFloat(t.String())
	case string:
		n, ok = estimate.LeadingFloat(t)
	}
	if !ok || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

// parseEmployees reads a leading integer; numbers are truncated. Anything
// unparseable or negative is 0.
func parseEmployees(v any) int {
	var n float64
	switch t := v.(type) {
	case float64:
		n = t
	case int:
		n = float64(t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0
		}
		n = f
	case string:
		n = float64(leadingInt(t))
	default:
		return 0
	}
	if math.IsNaN(n) || n <= 0 || n > math.MaxInt32 {
		return 0
	}
	return int(n)
}

func leadingInt(s string) int64 {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	start := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == start {
		return 0
	}
	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// parseTags accepts a JSON array or a ";"/","-separated string. Blank
// entries are dropped.
func parseTags(v any) []string {
	var parts []string
	switch t := v.(type) {
	case []any:
		for _, e := range t {
			parts = append(parts, text(e))
		}
	case []string:
		parts = t
	case string:
		parts = strings.FieldsFunc(t, func(r rune) bool { return r == ';' || r == ',' })
	}

	var tags []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			tags = append(tags, p)
		}
	}
	return tags
}
