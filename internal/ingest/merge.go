package ingest

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/bizmap/internal/model"
)

// Mode selects how an imported batch combines with the current records.
type Mode string

const (
	// ModeAppend keeps existing records and adds incoming ones whose
	// identity key is not already present.
	ModeAppend Mode = "append"
	// ModeReplace discards existing records; the incoming batch is
	// deduplicated against itself.
	ModeReplace Mode = "replace"
)

// ParseMode parses "append" or "replace" (case-insensitive). Empty means
// replace.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeAppend:
		return ModeAppend, nil
	case ModeReplace, "":
		return ModeReplace, nil
	}
	return "", eris.Errorf("ingest: unknown import mode %q", s)
}

// MergeResult is the outcome of a merge.
type MergeResult struct {
	Records    []model.Business
	Kept       int
	Duplicates int
}

// Merge combines incoming with existing by identity key (lower-cased name
// plus zip). Existing records are never removed or reordered in append
// mode. Kept records whose id collides with one already in the result are
// given a suffixed id so ids stay unique.
func Merge(existing, incoming []model.Business, mode Mode) MergeResult {
	var (
		res  MergeResult
		seen = make(map[string]struct{})
		ids  = make(map[string]struct{})
	)

	if mode == ModeAppend {
		res.Records = make([]model.Business, 0, len(existing)+len(incoming))
		for _, b := range existing {
			seen[b.Key()] = struct{}{}
			ids[b.ID] = struct{}{}
			res.Records = append(res.Records, b)
		}
	} else {
		res.Records = make([]model.Business, 0, len(incoming))
	}

	for _, b := range incoming {
		key := b.Key()
		if _, dup := seen[key]; dup {
			res.Duplicates++
			continue
		}
		// Append checks only against the existing set, so repeats inside
		// the batch are all kept.
		if mode != ModeAppend {
			seen[key] = struct{}{}
		}

		b.ID = uniqueID(b.ID, ids)
		ids[b.ID] = struct{}{}

		res.Records = append(res.Records, b)
		res.Kept++
	}

	return res
}

func uniqueID(id string, taken map[string]struct{}) string {
	if _, clash := taken[id]; !clash {
		return id
	}
	for n := 2; ; n++ {
		candidate := id + "-" + strconv.Itoa(n)
		if _, clash := taken[candidate]; !clash {
			return candidate
		}
	}
}
