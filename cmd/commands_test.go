package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bizmap/internal/config"
	"github.com/sells-group/bizmap/internal/estimate"
	"github.com/sells-group/bizmap/internal/explorer"
	"github.com/sells-group/bizmap/internal/ingest"
	"github.com/sells-group/bizmap/internal/model"
	"github.com/sells-group/bizmap/internal/summary"
)

const recordsJSON = `[
  {"id":"acme","name":"Acme Farms","lat":35.77,"lng":-78.63,"county":"Wake","zip":"27601","employees":12,"revenue":"$5M","naicsDescription":"Crop Production","tags":["Agriculture"]},
  {"id":"bull","name":"Bull City Legal","lat":35.99,"lng":-78.90,"county":"Durham","zip":"27701","employees":3,"revenue":"250K","tags":["Legal"]}
]`

// testConfig points the commands at a fresh SQLite file and skips all
// network access.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Store: config.StoreConfig{
			Driver:      "sqlite",
			DatabaseURL: filepath.Join(dir, "bizmap.db"),
			Key:         config.DefaultSnapshotKey,
		},
		Summary: config.SummaryConfig{Provider: "anthropic"},
		Server:  config.ServerConfig{Port: 8080},
		Watch:   config.WatchConfig{Dir: dir, Pattern: "*.{csv,json,xlsx}", Mode: "append"},
	}
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func execute(t *testing.T, c *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	c.SetOut(&buf)
	c.SetContext(context.Background())
	defer c.SetOut(nil)
	defer c.SetContext(context.TODO())

	err := c.RunE(c, args)
	return buf.String(), err
}

func importFixture(t *testing.T) {
	t.Helper()
	importMode = "replace"
	importNoLocate = true
	t.Cleanup(func() {
		importMode = "append"
		importNoLocate = false
	})

	out, err := execute(t, importCmd, writeFile(t, "records.json", recordsJSON))
	require.NoError(t, err)
	assert.Contains(t, out, "records.json: Loaded 2 records.")
	assert.Contains(t, out, "2 records in snapshot")
}

// snapshot reopens the store the commands wrote to.
func snapshot(t *testing.T) []model.Business {
	t.Helper()
	env, err := initExplorer(context.Background(), "cli")
	require.NoError(t, err)
	defer env.Close()
	return env.Explorer.Records()
}

func TestImportCmd_ReplaceThenAppend(t *testing.T) {
	cfg = testConfig(t)
	importFixture(t)

	importMode = "append"
	csv := writeFile(t, "more.csv", "name,lat,lng,county,zip,employees\n"+
		"Acme Farms,35.77,-78.63,Wake,27601,12\n"+
		"Pine Mill,35.60,-79.00,Chatham,27312,40\n")
	out, err := execute(t, importCmd, csv)
	require.NoError(t, err)
	assert.Contains(t, out, "Loaded 1 records. Skipped 1 duplicates.")

	assert.Len(t, snapshot(t), 3)
}

func TestImportCmd_Glob(t *testing.T) {
	cfg = testConfig(t)
	importNoLocate = true
	t.Cleanup(func() { importGlob = ""; importNoLocate = false })

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"), []byte(recordsJSON), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.csv"), []byte("name,lat,lng,zip\nNew Co,35.1,-79.1,28001\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore"), 0o644))
	importGlob = filepath.Join(dir, "*.{json,csv}")

	out, err := execute(t, importCmd)
	require.NoError(t, err)
	assert.Contains(t, out, "3 records in snapshot")
}

func TestImportCmd_Errors(t *testing.T) {
	cfg = testConfig(t)

	_, err := execute(t, importCmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no input files")

	importMode = "merge"
	_, err = execute(t, importCmd, "x.csv")
	importMode = "append"
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown import mode")

	importNoLocate = true
	defer func() { importNoLocate = false }()
	_, err = execute(t, importCmd, filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)

	_, err = execute(t, importCmd, writeFile(t, "bad.json", `{"name":"not an array"}`))
	require.Error(t, err)
	assert.True(t, eris.Is(err, ingest.ErrNotArray))
}

func TestImportPaths(t *testing.T) {
	paths, err := importPaths([]string{"b.csv", "a.csv"}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"b.csv", "a.csv"}, paths)

	_, err = importPaths(nil, "[")
	require.Error(t, err)
}

func TestListCmd(t *testing.T) {
	cfg = testConfig(t)
	importFixture(t)
	t.Cleanup(func() { listQuery = ""; listJSON = false })

	out, err := execute(t, listCmd)
	require.NoError(t, err)
	assert.Contains(t, out, "Acme Farms")
	assert.Contains(t, out, "Bull City Legal")
	assert.Contains(t, out, "2 records")

	listQuery = "#legal"
	out, err = execute(t, listCmd)
	require.NoError(t, err)
	assert.NotContains(t, out, "Acme Farms")
	assert.Contains(t, out, "1 records")

	listQuery = "crop"
	listJSON = true
	out, err = execute(t, listCmd)
	require.NoError(t, err)
	assert.Contains(t, out, `"id": "acme"`)
	assert.NotContains(t, out, "bull")
}

func TestTotalsCmd(t *testing.T) {
	cfg = testConfig(t)
	importFixture(t)
	t.Cleanup(func() { totalsCounty = ""; totalsZip = "" })

	out, err := execute(t, totalsCmd)
	require.NoError(t, err)
	assert.Equal(t, "North Carolina: 15 employees, $5.3M revenue\n", out)

	totalsCounty = "wake"
	out, err = execute(t, totalsCmd)
	require.NoError(t, err)
	assert.Equal(t, "county wake: 12 employees, $5.0M revenue\n", out)

	totalsCounty = ""
	totalsZip = "27701"
	out, err = execute(t, totalsCmd)
	require.NoError(t, err)
	assert.Equal(t, "zip 27701: 3 employees, $250k revenue\n", out)
}

func TestTotalsScope(t *testing.T) {
	s, err := totalsScope("", "")
	require.NoError(t, err)
	assert.Equal(t, estimate.StateScope(), s)

	_, err = totalsScope("Wake", "27601")
	require.Error(t, err)
}

func TestEditCmd(t *testing.T) {
	cfg = testConfig(t)
	importFixture(t)
	t.Cleanup(func() { editSet = nil; editAddTag = nil; editRemoveTag = nil })

	editSet = []string{"employees=20", "revenue=$6M"}
	editAddTag = []string{"Priority"}
	editRemoveTag = []string{"Agriculture"}
	out, err := execute(t, editCmd, "acme")
	require.NoError(t, err)
	assert.Equal(t, "acme Acme Farms [Priority]\n", out)

	var acme model.Business
	for _, b := range snapshot(t) {
		if b.ID == "acme" {
			acme = b
		}
	}
	assert.Equal(t, 20, acme.Employees)
	assert.Equal(t, "$6M", acme.Revenue)
	assert.Equal(t, []string{"Priority"}, acme.Tags)

	_, err = execute(t, editCmd, "nope")
	require.Error(t, err)
	assert.True(t, eris.Is(err, explorer.ErrBusinessNotFound))
}

func TestApplyField(t *testing.T) {
	var b model.Business

	require.NoError(t, applyField(&b, "name=Acme = Sons"))
	assert.Equal(t, "Acme = Sons", b.Name)

	require.NoError(t, applyField(&b, "lat=35.5"))
	require.NoError(t, applyField(&b, "lng=-78.25"))
	assert.InDelta(t, 35.5, b.Lat, 1e-9)
	assert.InDelta(t, -78.25, b.Lng, 1e-9)

	require.NoError(t, applyField(&b, "naicsDescription=Crop Production"))
	assert.Equal(t, "Crop Production", b.NAICSDescription)

	assert.Error(t, applyField(&b, "employees=many"))
	assert.Error(t, applyField(&b, "lat=north"))
	assert.Error(t, applyField(&b, "color=red"))
	assert.Error(t, applyField(&b, "name"))
	assert.Error(t, applyField(&b, "lat=NaN"))
	assert.Error(t, applyField(&b, "lng=Inf"))
	assert.Error(t, applyField(&b, "employees=-3"))
	assert.InDelta(t, 35.5, b.Lat, 1e-9)
	assert.Zero(t, b.Employees)
}

func TestEditCmd_InvalidSetLeavesRecord(t *testing.T) {
	cfg = testConfig(t)
	importFixture(t)
	t.Cleanup(func() { editSet = nil })

	editSet = []string{"revenue=$9M", "employees=-3"}
	_, err := execute(t, editCmd, "acme")
	require.Error(t, err)

	for _, b := range snapshot(t) {
		if b.ID == "acme" {
			assert.NotEqual(t, "$9M", b.Revenue)
			assert.GreaterOrEqual(t, b.Employees, 0)
		}
	}
}

func TestClearCmd(t *testing.T) {
	cfg = testConfig(t)
	importFixture(t)

	out, err := execute(t, clearCmd)
	require.NoError(t, err)
	assert.Contains(t, out, "0 seed records remain")
	assert.Empty(t, snapshot(t))
}

func TestSummarizeCmd_NoKey(t *testing.T) {
	cfg = testConfig(t)
	importFixture(t)

	out, err := execute(t, summarizeCmd, "bull")
	require.NoError(t, err)
	assert.Equal(t, summary.FallbackMessage+"\n", out)

	_, err = execute(t, summarizeCmd, "nope")
	assert.True(t, eris.Is(err, explorer.ErrBusinessNotFound))
}

func TestServeCmd_InvalidPort(t *testing.T) {
	cfg = testConfig(t)
	cfg.Server.Port = 0

	_, err := execute(t, serveCmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
}

func TestWatchCmd_MissingDir(t *testing.T) {
	cfg = testConfig(t)
	watchDir = filepath.Join(t.TempDir(), "absent")
	defer func() { watchDir = "" }()

	_, err := execute(t, watchCmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "watch: add")
}

func TestCommands_InvalidStore(t *testing.T) {
	cfg = testConfig(t)
	cfg.Store.Driver = "mongo"

	_, err := execute(t, listCmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver")
}
