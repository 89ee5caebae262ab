package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/bizmap/internal/fetcher"
	"github.com/sells-group/bizmap/internal/geo"
	"github.com/sells-group/bizmap/internal/model"
)

// ErrNotArray is returned when a JSON upload is not an array of records.
var ErrNotArray = fetcher.ErrNotArray

// Report summarizes one imported file.
type Report struct {
	BatchID    string `json:"batch_id"`
	Source     string `json:"source"`
	Mode       Mode   `json:"mode"`
	Total      int    `json:"total"`
	Kept       int    `json:"kept"`
	Duplicates int    `json:"duplicates"`
	Geocoded   int    `json:"geocoded"`
	Rejected   int    `json:"rejected"`
}

// Message renders the user-facing summary line.
func (r Report) Message() string {
	msg := fmt.Sprintf("Loaded %d records.", r.Kept)
	if r.Duplicates > 0 {
		msg += fmt.Sprintf(" Skipped %d duplicates.", r.Duplicates)
	}
	if r.Geocoded > 0 {
		msg += fmt.Sprintf(" Auto-detected county for %d records.", r.Geocoded)
	}
	return msg
}

// StorageFullMessage replaces Message when the snapshot could not be saved.
func (r Report) StorageFullMessage() string {
	return fmt.Sprintf("Loaded %d records (Storage Full).", r.Kept)
}

// DecodeFile reads an uploaded file into raw objects. The format follows the
// file extension: .csv and .xlsx carry a header row; anything else must be
// a JSON array. Non-object array elements become empty objects so that they
// are rejected during normalization.
func DecodeFile(ctx context.Context, name string, r io.Reader) ([]map[string]any, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: read file")
	}

	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return fromStrings(fetcher.ParseCSV(string(data))), nil
	case ".xlsx":
		rows, err := fetcher.ReadXLSXRecords(data, fetcher.XLSXOptions{})
		if err != nil {
			return nil, eris.Wrap(err, "ingest: read spreadsheet")
		}
		return fromStrings(rows), nil
	}

	items, err := fetcher.DecodeJSONArray[any](ctx, bytes.NewReader(data))
	if err != nil {
		if eris.Is(err, fetcher.ErrNotArray) {
			return nil, ErrNotArray
		}
		return nil, eris.Wrap(err, "ingest: parse json")
	}
	out := make([]map[string]any, len(items))
	for i, item := range items {
		if m, ok := item.(map[string]any); ok {
			out[i] = m
		} else {
			out[i] = map[string]any{}
		}
	}
	return out, nil
}

func fromStrings(rows []map[string]string) []map[string]any {
	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		m := make(map[string]any, len(row))
		for k, v := range row {
			m[k] = v
		}
		out[i] = m
	}
	return out
}

// Import decodes, normalizes, and merges one file against existing. It has
// no side effects: on error existing is untouched and nothing is returned.
func Import(ctx context.Context, existing []model.Business, name string, r io.Reader, mode Mode, loc geo.Locator, now time.Time) ([]model.Business, Report, error) {
	raw, err := DecodeFile(ctx, name, r)
	if err != nil {
		return nil, Report{}, err
	}
	records, report := Build(existing, name, raw, mode, loc, now)
	return records, report, nil
}

// Build normalizes already decoded rows and merges them into existing.
func Build(existing []model.Business, name string, raw []map[string]any, mode Mode, loc geo.Locator, now time.Time) ([]model.Business, Report) {
	records, stats := Normalize(raw, loc, now)
	merged := Merge(existing, records, mode)

	return merged.Records, Report{
		BatchID:    uuid.NewString(),
		Source:     filepath.Base(name),
		Mode:       mode,
		Total:      stats.Total,
		Kept:       merged.Kept,
		Duplicates: merged.Duplicates,
		Geocoded:   stats.Geocoded,
		Rejected:   stats.Rejected,
	}
}
