package explorer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bizmap/internal/estimate"
	"github.com/sells-group/bizmap/internal/ingest"
	"github.com/sells-group/bizmap/internal/model"
	"github.com/sells-group/bizmap/internal/store"
)

const testKey = "nc_business_data_v1"

// memStore is an in-memory store.Store with failure injection.
type memStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	saveErr error
	loadErr error
	deletes int
}

func newMemStore() *memStore { return &memStore{data: map[string][]byte{}} }

func (m *memStore) Load(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	d, ok := m.data[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return d, nil
}

func (m *memStore) Save(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.data[key] = append([]byte(nil), data...)
	return nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes++
	delete(m.data, key)
	return nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) snapshot(t *testing.T) []model.Business {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Business
	require.NoError(t, json.Unmarshal(m.data[testKey], &out))
	return out
}

// stubLocator answers every lookup with one county name.
type stubLocator struct{ name string }

func (s stubLocator) Locate(_, _ float64) (string, bool) { return s.name, s.name != "" }

func seedRecords() []model.Business {
	return []model.Business{
		{ID: "s1", Name: "Seed One", County: "Wake", Zip: "27601", Employees: 10, Revenue: "$1M", Tags: []string{"Seed"}},
		{ID: "s2", Name: "Seed Two", County: "Durham", Zip: "27701", Employees: 5, Revenue: "500K", Tags: []string{"Seed"}},
	}
}

func newTestExplorer(t *testing.T, st store.Store) *Explorer {
	t.Helper()
	e := Open(context.Background(), st, testKey, seedRecords())
	e.now = func() time.Time { return time.UnixMilli(1_700_000_000_000) }
	return e
}

const importCSV = "name,lat,lng,county,zip,employees,revenue,tags\n" +
	"Acme Farms,35.77,-78.63,Wake County,27601,12,$5M,Agriculture\n" +
	"Durham Labs,35.99,-78.90,,27701,3,250K,Tech\n" +
	"Broken,abc,-78.0,Wake,27603,1,,\n"

func TestOpen_NoSnapshotUsesSeed(t *testing.T) {
	e := newTestExplorer(t, newMemStore())
	assert.Equal(t, seedRecords(), e.Records())
}

func TestOpen_LoadsSnapshot(t *testing.T) {
	st := newMemStore()
	st.data[testKey] = []byte(`[{"id":"x","name":"Saved","county":"Wake","zip":"27601","tags":[]}]`)

	e := newTestExplorer(t, st)
	require.Equal(t, 1, e.Len())
	assert.Equal(t, "Saved", e.Records()[0].Name)
}

func TestOpen_CorruptSnapshotUsesSeed(t *testing.T) {
	st := newMemStore()
	st.data[testKey] = []byte(`{not json`)
	assert.Equal(t, seedRecords(), newTestExplorer(t, st).Records())

	st = newMemStore()
	st.loadErr = errors.New("disk on fire")
	assert.Equal(t, seedRecords(), newTestExplorer(t, st).Records())
}

func TestOpen_NilStore(t *testing.T) {
	e := Open(context.Background(), nil, testKey, seedRecords())
	require.NoError(t, e.Clear(context.Background()))
	_, err := e.Import(context.Background(), "x.csv", strings.NewReader(importCSV), ingest.ModeAppend)
	assert.NoError(t, err)
}

func TestImport_ReplacePersists(t *testing.T) {
	st := newMemStore()
	e := newTestExplorer(t, st)
	e.SetLocator(stubLocator{name: "Durham"})

	report, err := e.Import(context.Background(), "upload.csv", strings.NewReader(importCSV), ingest.ModeReplace)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Kept)
	assert.Equal(t, 1, report.Geocoded)
	assert.Equal(t, 1, report.Rejected)
	assert.Equal(t, "Loaded 2 records. Auto-detected county for 1 records.", report.Message())

	recs := e.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, "Wake", recs[0].County)
	assert.Equal(t, "Durham", recs[1].County)
	assert.Equal(t, recs, st.snapshot(t))
}

func TestImport_AppendSkipsDuplicates(t *testing.T) {
	st := newMemStore()
	e := newTestExplorer(t, st)

	csv := "name,lat,lng,zip\nseed one,35.7,-78.6,27601\nNew Co,35.7,-78.6,27605\n"
	report, err := e.Import(context.Background(), "more.csv", strings.NewReader(csv), ingest.ModeAppend)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Kept)
	assert.Equal(t, 1, report.Duplicates)
	assert.Equal(t, 3, e.Len())
	assert.Equal(t, "s1", e.Records()[0].ID)
	assert.Equal(t, "Unknown", e.Records()[2].County)
}

func TestImport_DecodeFailureNoChange(t *testing.T) {
	st := newMemStore()
	e := newTestExplorer(t, st)

	_, err := e.Import(context.Background(), "bad.json", strings.NewReader(`{"name":"x"}`), ingest.ModeReplace)
	require.Error(t, err)
	assert.ErrorIs(t, err, ingest.ErrNotArray)
	assert.Equal(t, seedRecords(), e.Records())
	assert.Empty(t, st.data)
}

func TestImport_PersistFailureKeepsMutation(t *testing.T) {
	st := newMemStore()
	st.saveErr = errors.New("quota exceeded")
	e := newTestExplorer(t, st)

	report, err := e.Import(context.Background(), "upload.csv", strings.NewReader(importCSV), ingest.ModeReplace)
	require.Error(t, err)
	assert.True(t, IsPersistError(err))
	assert.Contains(t, err.Error(), "quota exceeded")
	assert.Equal(t, "Loaded 2 records (Storage Full).", report.StorageFullMessage())
	assert.Equal(t, 2, e.Len())
}

func TestUpdate(t *testing.T) {
	st := newMemStore()
	e := newTestExplorer(t, st)

	b, ok := e.Get("s2")
	require.True(t, ok)
	b.Name = "Seed Two Renamed"
	b.Revenue = "$2M"

	require.NoError(t, e.Update(context.Background(), b))
	got, _ := e.Get("s2")
	assert.Equal(t, "Seed Two Renamed", got.Name)

	sel, ok := e.SelectedBusiness()
	require.True(t, ok)
	assert.Equal(t, "Seed Two Renamed", sel.Name)
	assert.Equal(t, "Seed Two Renamed", st.snapshot(t)[1].Name)

	err := e.Update(context.Background(), model.Business{ID: "missing"})
	assert.ErrorIs(t, err, ErrBusinessNotFound)
}

func TestUpdate_RejectsInvalidRecords(t *testing.T) {
	st := newMemStore()
	e := newTestExplorer(t, st)
	ctx := context.Background()

	tests := []struct {
		name string
		edit func(*model.Business)
	}{
		{"nan latitude", func(b *model.Business) { b.Lat = math.NaN() }},
		{"infinite longitude", func(b *model.Business) { b.Lng = math.Inf(-1) }},
		{"negative employees", func(b *model.Business) { b.Employees = -3 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, _ := e.Get("s1")
			tt.edit(&b)
			err := e.Update(ctx, b)
			require.Error(t, err)
			assert.True(t, eris.Is(err, ErrInvalidBusiness))

			got, _ := e.Get("s1")
			assert.Equal(t, seedRecords()[0], got)
		})
	}
	assert.Empty(t, st.data, "rejected edits are not persisted")
}

func TestUpdate_NormalizesCountyAndTags(t *testing.T) {
	st := newMemStore()
	e := newTestExplorer(t, st)

	require.NoError(t, e.Update(context.Background(), model.Business{ID: "s1", Name: "Renamed"}))
	got, _ := e.Get("s1")
	assert.Equal(t, ingest.UnknownCounty, got.County)
	require.NotNil(t, got.Tags)
	assert.Empty(t, got.Tags)

	saved := st.snapshot(t)[0]
	assert.Equal(t, ingest.UnknownCounty, saved.County)
	assert.NotNil(t, saved.Tags)

	require.NoError(t, e.Update(context.Background(), model.Business{ID: "s1", Name: "Renamed", County: "  orange county "}))
	got, _ = e.Get("s1")
	assert.Equal(t, "Orange", got.County)
}

func TestEdit_MergesOntoExisting(t *testing.T) {
	st := newMemStore()
	e := newTestExplorer(t, st)
	ctx := context.Background()

	b, err := e.Edit(ctx, "s2", func(b *model.Business) error {
		b.Name = "Seed Two Renamed"
		b.ID = "hijacked"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "s2", b.ID)
	assert.Equal(t, "Durham", b.County)
	assert.Equal(t, "27701", b.Zip)
	assert.Equal(t, 5, b.Employees)

	_, ok := e.Get("hijacked")
	assert.False(t, ok)
	assert.Equal(t, "s2", e.Selection().BusinessID)

	editErr := errors.New("bad input")
	_, err = e.Edit(ctx, "s2", func(b *model.Business) error {
		b.Name = "Half Applied"
		return editErr
	})
	assert.ErrorIs(t, err, editErr)
	got, _ := e.Get("s2")
	assert.Equal(t, "Seed Two Renamed", got.Name)

	_, err = e.Edit(ctx, "missing", func(*model.Business) error { return nil })
	assert.ErrorIs(t, err, ErrBusinessNotFound)
}

func TestImport_StalledReaderDoesNotBlockState(t *testing.T) {
	e := newTestExplorer(t, newMemStore())
	pr, pw := io.Pipe()

	done := make(chan error, 1)
	go func() {
		_, err := e.Import(context.Background(), "slow.csv", pr, ingest.ModeAppend)
		done <- err
	}()

	_, err := pw.Write([]byte("name,lat,lng,county,zip\nSlow Co,35.1,-79.1,Lee,27330\n"))
	require.NoError(t, err)

	read := make(chan int, 1)
	go func() { read <- e.Len() }()
	select {
	case n := <-read:
		assert.Equal(t, 2, n)
	case <-time.After(time.Second):
		t.Fatal("state lock held while the import reader is open")
	}

	require.NoError(t, pw.Close())
	require.NoError(t, <-done)
	assert.Equal(t, 3, e.Len())
}

func TestTags(t *testing.T) {
	st := newMemStore()
	e := newTestExplorer(t, st)
	ctx := context.Background()

	b, err := e.AddTag(ctx, "s1", "  Family Owned ")
	require.NoError(t, err)
	assert.Equal(t, []string{"Seed", "Family Owned"}, b.Tags)

	b, err = e.AddTag(ctx, "s1", "Family Owned")
	require.NoError(t, err)
	assert.Len(t, b.Tags, 2)

	b, err = e.AddTag(ctx, "s1", "   ")
	require.NoError(t, err)
	assert.Len(t, b.Tags, 2)

	b, err = e.RemoveTag(ctx, "s1", "Seed")
	require.NoError(t, err)
	assert.Equal(t, []string{"Family Owned"}, b.Tags)
	assert.Equal(t, []string{"Family Owned"}, st.snapshot(t)[0].Tags)

	_, err = e.AddTag(ctx, "nope", "x")
	assert.ErrorIs(t, err, ErrBusinessNotFound)
}

func TestClear(t *testing.T) {
	st := newMemStore()
	e := newTestExplorer(t, st)
	ctx := context.Background()

	_, err := e.Import(ctx, "upload.csv", strings.NewReader(importCSV), ingest.ModeReplace)
	require.NoError(t, err)
	e.SelectCounty("Wake")

	require.NoError(t, e.Clear(ctx))
	assert.Equal(t, seedRecords(), e.Records())
	assert.Equal(t, model.Selection{}, e.Selection())
	assert.NotContains(t, st.data, testKey)
	assert.Equal(t, 1, st.deletes)
}

func TestSelectBusiness_AdoptsRegionOnlyWhenUnset(t *testing.T) {
	e := newTestExplorer(t, nil)

	sel, err := e.SelectBusiness("s1")
	require.NoError(t, err)
	assert.Equal(t, model.Selection{BusinessID: "s1", Zip: "27601", County: "Wake"}, sel)

	// Existing drill-down is kept.
	sel, err = e.SelectBusiness("s2")
	require.NoError(t, err)
	assert.Equal(t, model.Selection{BusinessID: "s2", Zip: "27601", County: "Wake"}, sel)

	_, err = e.SelectBusiness("missing")
	assert.ErrorIs(t, err, ErrBusinessNotFound)
}

func TestSelectCounty_ClearsBusinessAndZip(t *testing.T) {
	e := newTestExplorer(t, nil)
	_, err := e.SelectBusiness("s1")
	require.NoError(t, err)

	assert.Equal(t, model.Selection{County: "Durham"}, e.SelectCounty("Durham"))
}

func TestSelectZip_AdoptsCounty(t *testing.T) {
	e := newTestExplorer(t, nil)

	sel := e.SelectZip("27601")
	assert.Equal(t, "Wake", sel.County)
	assert.Equal(t, "27601", sel.Zip)
	assert.Equal(t, model.ScopeZip, sel.Level())

	// Unknown zip leaves the county alone.
	sel = e.SelectZip("99999")
	assert.Equal(t, "Wake", sel.County)
	assert.Equal(t, "99999", sel.Zip)

	e.CloseAll()
	assert.Equal(t, model.Selection{}, e.Selection())
}

func TestDerivedRecordsAndTotals(t *testing.T) {
	e := newTestExplorer(t, nil)

	assert.Empty(t, e.CountyRecords())
	e.SelectZip("27701")
	assert.Equal(t, []string{"s2"}, ids(e.CountyRecords()))
	assert.Equal(t, []string{"s2"}, ids(e.ZipRecords()))

	state := e.Totals(estimate.StateScope())
	assert.Equal(t, int64(15), state.Employees)
	assert.InDelta(t, 1_500_000, state.Revenue, 1e-6)
	assert.Equal(t, "$1.5M", estimate.FormatAmount(state.Revenue))

	county := e.Totals(estimate.CountyScope("WAKE"))
	assert.Equal(t, int64(10), county.Employees)

	assert.Equal(t, model.Totals{}, e.Totals(estimate.ZipScope("00000")))
}

func TestFilterState(t *testing.T) {
	e := newTestExplorer(t, nil)

	assert.Len(t, e.Filtered(), 2)
	got := e.SetFilter("durham")
	assert.Equal(t, []string{"s2"}, ids(got))
	assert.Equal(t, "durham", e.Query())
	assert.Equal(t, []string{"s2"}, ids(e.Filtered()))
}

func TestRecordsAreCopies(t *testing.T) {
	e := newTestExplorer(t, nil)
	recs := e.Records()
	recs[0].Tags[0] = "mutated"
	recs[0].Name = "mutated"

	again := e.Records()
	assert.Equal(t, "Seed", again[0].Tags[0])
	assert.Equal(t, "Seed One", again[0].Name)
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "explorer.db")

	st, err := store.NewSQLite(path)
	require.NoError(t, err)
	require.NoError(t, st.Migrate(ctx))
	defer st.Close() //nolint:errcheck

	e := newTestExplorer(t, st)
	_, err = e.Import(ctx, "upload.csv", strings.NewReader(importCSV), ingest.ModeReplace)
	require.NoError(t, err)

	reopened := Open(ctx, st, testKey, nil)
	assert.Equal(t, e.Records(), reopened.Records())
}

func TestConcurrentImports(t *testing.T) {
	e := newTestExplorer(t, newMemStore())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			csv := "name,lat,lng,zip\nCo,35.7,-78.6,2760" + string(rune('0'+i)) + "\n"
			_, err := e.Import(context.Background(), "c.csv", strings.NewReader(csv), ingest.ModeAppend)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 10, e.Len())
}
