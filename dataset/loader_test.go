package dataset_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/roundabout-sim-oss/dataset"
	"github.com/tsinghua-fib-lab/roundabout-sim-oss/utils/config"
)

func writeScenario(t *testing.T, dir string, scenario int, rows []dataset.Row) {
	t.Helper()
	require.NoError(t, dataset.WriteFile(dataset.ScenarioFile(dir, scenario), dataset.Table{Schema: dataset.SchemaRaw, Rows: rows}))
}

func TestLoadScenarios(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, 0, track(0, 1, 3, 1, 10))
	writeScenario(t, dir, 2, append(track(0, 1, 2, 1, 10), track(0, 2, 2, 1, 10)...))

	table, err := dataset.LoadScenarios(context.Background(), dir, 4)
	require.NoError(t, err)
	assert.Equal(t, dataset.SchemaMerged, table.Schema)
	require.Len(t, table.Rows, 7)
	assert.Equal(t, []int{0, 0, 0, 2, 2, 2, 2}, scenarioIDs(table))
	assert.Equal(t, []dataset.TrackKey{
		{Scenario: 0, Track: 1}, {Scenario: 2, Track: 1}, {Scenario: 2, Track: 2},
	}, table.Tracks())
}

func scenarioIDs(t dataset.Table) []int {
	out := make([]int, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.ScenarioID
	}
	return out
}

func TestLoadScenariosNoInput(t *testing.T) {
	_, err := dataset.LoadScenarios(context.Background(), t.TempDir(), 3)
	assert.ErrorIs(t, err, dataset.ErrNoInput)
}

func TestLoadScenariosCorruptFile(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, 0, track(0, 1, 3, 1, 10))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scenario_001.csv"), []byte("tick\n1\n"), 0o644))
	_, err := dataset.LoadScenarios(context.Background(), dir, 2)
	assert.ErrorContains(t, err, "scenario_001.csv")
}

func testConfig(t *testing.T) config.Config {
	c := config.Default()
	c.Output.RawDir = filepath.Join(t.TempDir(), "raw")
	c.Output.ProcessedDir = filepath.Join(t.TempDir(), "processed")
	return c
}

func TestRunCleanAndSplit(t *testing.T) {
	c := testConfig(t)
	c.Output.SQLite = filepath.Join(t.TempDir(), "dataset.db")
	ctx := context.Background()

	for s := range 3 {
		var rows []dataset.Row
		for id := range 10 {
			rows = append(rows, track(0, int64(id), 25, 3, 20)...)
		}
		rows = append(rows, track(0, 99, 5, 3, 20)...)
		writeScenario(t, c.Output.RawDir, s, rows)
	}

	cleaned, err := dataset.RunClean(ctx, c, 3)
	require.NoError(t, err)
	assert.Equal(t, 30, cleaned.NumTracks())
	assert.FileExists(t, filepath.Join(c.Output.ProcessedDir, dataset.FlowReportFile))
	assert.FileExists(t, filepath.Join(c.Output.ProcessedDir, dataset.MergedFile))

	s, err := dataset.RunSplit(ctx, c)
	require.NoError(t, err)
	assert.Len(t, s.Tracks[dataset.SplitTrain], 21)
	assert.Len(t, s.Tracks[dataset.SplitVal], 4)
	assert.Len(t, s.Tracks[dataset.SplitTest], 5)
	for _, name := range dataset.SplitNames {
		got, err := dataset.ReadFile(dataset.SplitFile(c.Output.ProcessedDir, name))
		require.NoError(t, err)
		assert.Len(t, got.Rows, len(s.Tables[name].Rows))
	}

	db, err := dataset.OpenDB(c.Output.SQLite)
	require.NoError(t, err)
	defer db.Close()
	counts, err := db.CountBySplit(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[dataset.SplitName]int{
		dataset.SplitTrain: 21 * 25,
		dataset.SplitVal:   4 * 25,
		dataset.SplitTest:  5 * 25,
	}, counts)
}

func TestRunSplitWithoutCleanedData(t *testing.T) {
	_, err := dataset.RunSplit(context.Background(), testConfig(t))
	assert.ErrorIs(t, err, dataset.ErrNoInput)
}
