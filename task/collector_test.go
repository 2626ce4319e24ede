package task

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/roundabout-sim-oss/dataset"
	"github.com/tsinghua-fib-lab/roundabout-sim-oss/engine/local"
	"github.com/tsinghua-fib-lab/roundabout-sim-oss/recorder"
	"github.com/tsinghua-fib-lab/roundabout-sim-oss/utils/config"
)

// weatherFailEngine 在指定天气下无法获取生成点
type weatherFailEngine struct {
	*mockEngine
	failOn string
}

func (e *weatherFailEngine) SetWeather(ctx context.Context, name string) error {
	e.candidatesErr = nil
	if name == e.failOn {
		e.candidatesErr = errors.New("map not loaded")
	}
	return e.mockEngine.SetWeather(ctx, name)
}

func collectorConfig(t *testing.T) config.Config {
	c := testConfig()
	c.Output.RawDir = filepath.Join(t.TempDir(), "raw")
	c.Weathers = []config.Weather{{Name: "ClearNoon"}, {Name: "HardRainNoon", SpeedAdjustment: 20}, {Name: "WetNoon", SpeedAdjustment: 8}}
	return c
}

func TestCollectorContinuesAfterFailedScenario(t *testing.T) {
	c := collectorConfig(t)
	e := &weatherFailEngine{mockEngine: newMockEngine(), failOn: "HardRainNoon"}
	col := NewCollector("test", e, c, recorder.NewCSVSink(c.Output.RawDir))

	m, err := col.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, m.Successful)
	assert.Equal(t, 1, m.Failed)
	require.Len(t, m.Scenarios, 3)
	assert.Equal(t, recorder.StatusOK, m.Scenarios[0].Status)
	assert.Equal(t, recorder.StatusFailed, m.Scenarios[1].Status)
	assert.Contains(t, m.Scenarios[1].Error, "map not loaded")
	assert.Equal(t, recorder.StatusOK, m.Scenarios[2].Status)
	assert.Equal(t, 200, m.Scenarios[2].Rows)
	assert.Equal(t, 0, m.Scenarios[2].CoreTracks)
	assert.False(t, e.syncMode)

	assert.FileExists(t, dataset.ScenarioFile(c.Output.RawDir, 0))
	assert.NoFileExists(t, dataset.ScenarioFile(c.Output.RawDir, 1))
	written, err := recorder.ReadManifest(c.Output.RawDir)
	require.NoError(t, err)
	assert.Equal(t, col.RunID(), written.RunID)
	assert.Len(t, written.Scenarios, 3)
}

func TestCollectorStopsWhenInterrupted(t *testing.T) {
	c := collectorConfig(t)
	e := newMockEngine()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// 第一个场景观测期间中断
	e.onTick = func(tick int) {
		if tick == 30 {
			cancel()
		}
	}
	col := NewCollector("test", e, c, recorder.NewCSVSink(c.Output.RawDir))
	m, err := col.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, m.Scenarios, 1)
	assert.Equal(t, recorder.StatusFailed, m.Scenarios[0].Status)
	assert.Empty(t, e.actors)
	assert.False(t, e.syncMode)
}

func TestCollectorWithLocalEngine(t *testing.T) {
	c := config.Default()
	c.Output.RawDir = filepath.Join(t.TempDir(), "raw")
	c.Output.ProcessedDir = filepath.Join(t.TempDir(), "processed")
	c.Control.Warmup = 1
	c.Control.Duration = 40
	c.Weathers = c.Weathers[:2]
	c.Densities = []config.Density{
		{Name: "sparse", TargetFlow: 500, TargetPassages: 8, SpawnTotal: 8, SpawnPerBatch: 4, BatchInterval: 6},
	}
	opts := local.DefaultOptions()
	opts.Center = c.Roundabout.Center
	engine := local.New(opts)

	m, err := NewCollector("local", engine, c, recorder.NewCSVSink(c.Output.RawDir)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, m.Successful)
	assert.Equal(t, 0, engine.NumActors())
	for _, s := range m.Scenarios {
		assert.Positive(t, s.Rows)
		assert.Positive(t, s.Spawned)
		assert.LessOrEqual(t, s.Spawned, 8)
	}

	// 采集结果可以直接进入清洗与划分
	cleaned, err := dataset.RunClean(context.Background(), c, len(Scenarios(c)))
	require.NoError(t, err)
	assert.Positive(t, cleaned.NumTracks())
	for _, r := range cleaned.Rows {
		assert.LessOrEqual(t, r.Radius, c.Roundabout.CollectionRadius)
	}
	_, err = dataset.RunSplit(context.Background(), c)
	require.NoError(t, err)
}
