// Package explorer owns the in-memory business records, the drill-down
// selection and the filter query. Every operation runs to completion under
// one mutex, and mutations are written through to the snapshot store.
// Import files are read and decoded before the mutex is taken.
package explorer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bizmap/internal/estimate"
	"github.com/sells-group/bizmap/internal/geo"
	"github.com/sells-group/bizmap/internal/ingest"
	"github.com/sells-group/bizmap/internal/model"
	"github.com/sells-group/bizmap/internal/store"
)

// ErrBusinessNotFound is returned for operations on an unknown id.
var ErrBusinessNotFound = eris.New("explorer: business not found")

// ErrInvalidBusiness is returned when an edit would leave a record with
// non-finite coordinates or a negative employee count.
var ErrInvalidBusiness = eris.New("explorer: invalid business")

// PersistError reports a failed snapshot write. The in-memory change it
// accompanies has already been applied.
type PersistError struct {
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("explorer: persist snapshot: %v", e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// IsPersistError reports whether err is a snapshot write warning.
func IsPersistError(err error) bool {
	var pe *PersistError
	return errors.As(err, &pe)
}

// Explorer is the single owner of the explorer state.
type Explorer struct {
	mu sync.Mutex

	store store.Store // nil disables persistence
	key   string
	seed  []model.Business

	records []model.Business
	sel     model.Selection
	query   string
	loc     geo.Locator
	now     func() time.Time
}

// Open loads the snapshot stored under key. A missing or undecodable
// snapshot falls back to seed.
func Open(ctx context.Context, st store.Store, key string, seed []model.Business) *Explorer {
	e := &Explorer{
		store: st,
		key:   key,
		seed:  cloneAll(seed),
		now:   time.Now,
	}
	e.records = e.loadSnapshot(ctx)
	return e
}

func (e *Explorer) loadSnapshot(ctx context.Context) []model.Business {
	log := zap.L().With(zap.String("key", e.key))
	if e.store == nil {
		return cloneAll(e.seed)
	}

	data, err := e.store.Load(ctx, e.key)
	if err != nil {
		if eris.Is(err, store.ErrNotFound) {
			log.Info("explorer: no snapshot, using seed", zap.Int("seed", len(e.seed)))
		} else {
			log.Warn("explorer: load snapshot failed, using seed", zap.Error(err))
		}
		return cloneAll(e.seed)
	}

	var records []model.Business
	if err := json.Unmarshal(data, &records); err != nil {
		log.Warn("explorer: decode snapshot failed, using seed", zap.Error(err))
		return cloneAll(e.seed)
	}
	if records == nil {
		records = []model.Business{}
	}
	log.Info("explorer: snapshot loaded", zap.Int("records", len(records)))
	return records
}

// SetLocator enables reverse geocoding for later imports.
func (e *Explorer) SetLocator(loc geo.Locator) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loc = loc
}

// Records returns a copy of all records.
func (e *Explorer) Records() []model.Business {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneAll(e.records)
}

// Len returns the number of records.
func (e *Explorer) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.records)
}

// Get returns the record with id.
func (e *Explorer) Get(id string) (model.Business, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	i := e.indexOf(id)
	if i < 0 {
		return model.Business{}, false
	}
	return e.records[i].Clone(), true
}

func (e *Explorer) indexOf(id string) int {
	for i := range e.records {
		if e.records[i].ID == id {
			return i
		}
	}
	return -1
}

// SetFilter stores query and returns the matching records.
func (e *Explorer) SetFilter(query string) []model.Business {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.query = query
	return cloneAll(Filter(e.records, query))
}

// Query returns the current filter query.
func (e *Explorer) Query() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.query
}

// Filtered returns the records matching the current query.
func (e *Explorer) Filtered() []model.Business {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneAll(Filter(e.records, e.query))
}

// Selection returns the current drill-down selection.
func (e *Explorer) Selection() model.Selection {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sel
}

// SelectedBusiness returns the selected record, if any.
func (e *Explorer) SelectedBusiness() (model.Business, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sel.BusinessID == "" {
		return model.Business{}, false
	}
	i := e.indexOf(e.sel.BusinessID)
	if i < 0 {
		return model.Business{}, false
	}
	return e.records[i].Clone(), true
}

// SelectBusiness selects a record. Its zip and county are adopted only
// where nothing is selected yet, so browsing inside a region keeps that
// region.
func (e *Explorer) SelectBusiness(id string) (model.Selection, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	i := e.indexOf(id)
	if i < 0 {
		return e.sel, ErrBusinessNotFound
	}
	b := e.records[i]
	e.sel.BusinessID = b.ID
	if e.sel.Zip == "" {
		e.sel.Zip = b.Zip
	}
	if e.sel.County == "" {
		e.sel.County = b.County
	}
	return e.sel, nil
}

// SelectCounty selects a county and clears the business and zip.
func (e *Explorer) SelectCounty(name string) model.Selection {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sel = model.Selection{County: name}
	return e.sel
}

// SelectZip selects a zip and clears the business. The county follows the
// first record with that zip, when there is one.
func (e *Explorer) SelectZip(zip string) model.Selection {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sel.BusinessID = ""
	e.sel.Zip = zip
	for _, b := range e.records {
		if b.Zip == zip {
			e.sel.County = b.County
			break
		}
	}
	return e.sel
}

// CloseAll returns to the state-wide view.
func (e *Explorer) CloseAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sel = model.Selection{}
}

// CountyRecords returns the records in the selected county.
func (e *Explorer) CountyRecords() []model.Business {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneAll(estimate.InCounty(e.records, e.sel.County))
}

// ZipRecords returns the records in the selected zip.
func (e *Explorer) ZipRecords() []model.Business {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneAll(estimate.InZip(e.records, e.sel.Zip))
}

// Totals aggregates the records inside scope.
func (e *Explorer) Totals(scope estimate.Scope) model.Totals {
	e.mu.Lock()
	defer e.mu.Unlock()
	return estimate.Aggregate(scope.Select(e.records))
}

// Import decodes and merges one file. Decode failures leave the state
// untouched. A *PersistError is returned with a valid report when the
// merged records could not be saved.
func (e *Explorer) Import(ctx context.Context, name string, r io.Reader, mode ingest.Mode) (ingest.Report, error) {
	// Read and decode outside mu.
	raw, err := ingest.DecodeFile(ctx, name, r)
	if err != nil {
		return ingest.Report{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	records, report := ingest.Build(e.records, name, raw, mode, e.loc, e.now())
	e.records = records

	zap.L().Info("explorer: import",
		zap.String("batch_id", report.BatchID),
		zap.String("source", report.Source),
		zap.String("mode", string(report.Mode)),
		zap.Int("total", report.Total),
		zap.Int("kept", report.Kept),
		zap.Int("duplicates", report.Duplicates),
		zap.Int("geocoded", report.Geocoded),
		zap.Int("rejected", report.Rejected),
	)

	return report, e.persist(ctx)
}

// Update replaces the record with b.ID and refreshes it as the selected
// business.
func (e *Explorer) Update(ctx context.Context, b model.Business) error {
	_, err := e.Edit(ctx, b.ID, func(cur *model.Business) error {
		*cur = b.Clone()
		return nil
	})
	return err
}

// Edit applies edit to a copy of the record with id and stores the result
// as the selected business. The id cannot change. When edit fails or the
// result is invalid nothing is stored. An empty county becomes "Unknown".
func (e *Explorer) Edit(ctx context.Context, id string, edit func(*model.Business) error) (model.Business, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	i := e.indexOf(id)
	if i < 0 {
		return model.Business{}, ErrBusinessNotFound
	}
	b := e.records[i].Clone()
	if err := edit(&b); err != nil {
		return model.Business{}, err
	}
	b.ID = id
	if err := checkRecord(&b); err != nil {
		return model.Business{}, err
	}

	e.records[i] = b
	e.sel.BusinessID = id
	return b.Clone(), e.persist(ctx)
}

func checkRecord(b *model.Business) error {
	if !finite(b.Lat) || !finite(b.Lng) {
		return eris.Wrapf(ErrInvalidBusiness, "coordinates %v,%v are not finite", b.Lat, b.Lng)
	}
	if b.Employees < 0 {
		return eris.Wrapf(ErrInvalidBusiness, "employees %d is negative", b.Employees)
	}
	if b.County = ingest.CleanCountyName(b.County); b.County == "" {
		b.County = ingest.UnknownCounty
	}
	if b.Tags == nil {
		b.Tags = []string{}
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// AddTag adds a trimmed tag unless it is blank or already present.
func (e *Explorer) AddTag(ctx context.Context, id, tag string) (model.Business, error) {
	return e.editTags(ctx, id, func(b *model.Business) bool {
		tag = strings.TrimSpace(tag)
		if tag == "" || b.HasTag(tag) {
			return false
		}
		b.Tags = append(b.Tags, tag)
		return true
	})
}

// RemoveTag removes every occurrence of tag.
func (e *Explorer) RemoveTag(ctx context.Context, id, tag string) (model.Business, error) {
	return e.editTags(ctx, id, func(b *model.Business) bool {
		tag = strings.TrimSpace(tag)
		kept := make([]string, 0, len(b.Tags))
		for _, t := range b.Tags {
			if t != tag {
				kept = append(kept, t)
			}
		}
		changed := len(kept) != len(b.Tags)
		b.Tags = kept
		return changed
	})
}

func (e *Explorer) editTags(ctx context.Context, id string, edit func(*model.Business) bool) (model.Business, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	i := e.indexOf(id)
	if i < 0 {
		return model.Business{}, ErrBusinessNotFound
	}
	b := e.records[i].Clone()
	if !edit(&b) {
		return b, nil
	}
	e.records[i] = b
	return b.Clone(), e.persist(ctx)
}

// Clear restores the seed, deletes the snapshot and closes every
// selection.
func (e *Explorer) Clear(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.records = cloneAll(e.seed)
	e.sel = model.Selection{}

	if e.store == nil {
		return nil
	}
	if err := e.store.Delete(ctx, e.key); err != nil {
		zap.L().Error("explorer: delete snapshot failed", zap.String("key", e.key), zap.Error(err))
		return &PersistError{Err: err}
	}
	return nil
}

// persist writes the current records. Callers hold mu.
func (e *Explorer) persist(ctx context.Context) error {
	if e.store == nil {
		return nil
	}
	data, err := json.Marshal(e.records)
	if err != nil {
		return &PersistError{Err: err}
	}
	if err := e.store.Save(ctx, e.key, data); err != nil {
		zap.L().Error("explorer: save snapshot failed",
			zap.String("key", e.key),
			zap.Int("records", len(e.records)),
			zap.Error(err),
		)
		return &PersistError{Err: err}
	}
	return nil
}

func cloneAll(records []model.Business) []model.Business {
	out := make([]model.Business, len(records))
	for i, b := range records {
		out[i] = b.Clone()
	}
	return out
}
