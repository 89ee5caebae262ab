package explorer

import (
	"strings"

	"github.com/sells-group/bizmap/internal/model"
)

// TagMarker at the start of a query restricts matching to tags.
const TagMarker = "#"

// Filter returns the records matching query. An empty query matches
// everything. "#term" matches records with a tag containing term; any other
// query is matched as a case-insensitive substring against name, city,
// county, state, zip, NAICS code and tags.
func Filter(records []model.Business, query string) []model.Business {
	q := model.Fold(strings.TrimSpace(query))
	if q == "" {
		return records
	}

	tagOnly := strings.HasPrefix(q, TagMarker)
	term := q
	if tagOnly {
		term = strings.TrimPrefix(q, TagMarker)
	}

	out := make([]model.Business, 0, len(records))
	for _, b := range records {
		if matches(b, q, term, tagOnly) {
			out = append(out, b)
		}
	}
	return out
}

func matches(b model.Business, q, term string, tagOnly bool) bool {
	if tagMatch(b.Tags, term) {
		return true
	}
	if tagOnly {
		return false
	}
	return strings.Contains(model.Fold(b.Name), q) ||
		strings.Contains(model.Fold(b.City), q) ||
		strings.Contains(model.Fold(b.County), q) ||
		strings.Contains(model.Fold(b.State), q) ||
		strings.Contains(b.Zip, q) ||
		strings.Contains(b.NAICSCode, q)
}

func tagMatch(tags []string, term string) bool {
	for _, t := range tags {
		if strings.Contains(model.Fold(t), term) {
			return true
		}
	}
	return false
}
