package dataset_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/roundabout-sim-oss/dataset"
	"github.com/tsinghua-fib-lab/roundabout-sim-oss/utils/config"
)

// scenarioWithCoreTracks 场景中core条轨迹进入核心区，另有3条只在外圈
func scenarioWithCoreTracks(scenario, core int) [][]dataset.Row {
	var out [][]dataset.Row
	for i := range core {
		rows := append(track(scenario, int64(i), 3, 5, 40), track(scenario, int64(i), 2, 5, 20)...)
		out = append(out, rows)
	}
	for i := range 3 {
		out = append(out, track(scenario, int64(1000+i), 5, 5, 40))
	}
	return out
}

func TestVerifyFlow(t *testing.T) {
	tables := append(scenarioWithCoreTracks(0, 55), scenarioWithCoreTracks(1, 30)...)
	report := dataset.VerifyFlow(merged(tables...), dataset.FlowOptions{
		CoreRadius: 25,
		Tolerance:  20,
		Densities:  config.Default().Densities,
	})
	require.Len(t, report.Scenarios, 2)

	s0 := report.Scenarios[0]
	assert.Equal(t, 0, s0.ScenarioID)
	assert.Equal(t, 50, s0.Target)
	assert.Equal(t, 55, s0.Actual)
	assert.InDelta(t, 10.0, s0.Deviation, 1e-9)
	assert.True(t, s0.Pass)

	s1 := report.Scenarios[1]
	assert.Equal(t, 30, s1.Actual)
	assert.InDelta(t, -40.0, s1.Deviation, 1e-9)
	assert.False(t, s1.Pass)

	assert.Equal(t, 1, report.Passed())
	require.Len(t, report.Densities, 1)
	d := report.Densities[0]
	assert.Equal(t, "medium", d.Density)
	assert.Equal(t, 1000, d.TargetFlow)
	assert.InDelta(t, 42.5, d.MeanActual, 1e-9)
	assert.Equal(t, 1, d.Qualified)
	assert.Equal(t, 2, d.Total)

	var buf bytes.Buffer
	require.NoError(t, dataset.WriteFlowReport(&buf, report))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, []string{
		"scenario_id,weather,density,target,actual,deviation,status",
		"0,ClearNoon,medium,50,55,10.00,pass",
		"1,ClearNoon,medium,50,30,-40.00,fail",
	}, lines)
}

func TestDeviation(t *testing.T) {
	assert.Equal(t, 0.0, dataset.Deviation(10, 0))
	assert.InDelta(t, 20.0, dataset.Deviation(60, 50), 1e-9)
	assert.InDelta(t, -100.0, dataset.Deviation(0, 15), 1e-9)
}

func TestVerifyFlowUnknownDensity(t *testing.T) {
	rows := track(4, 1, 5, 5, 10)
	for i := range rows {
		rows[i].TrafficDensity = "gridlock"
	}
	report := dataset.VerifyFlow(merged(rows), dataset.FlowOptions{CoreRadius: 25, Tolerance: 20})
	require.Len(t, report.Scenarios, 1)
	assert.Equal(t, 0, report.Scenarios[0].Target)
	assert.Equal(t, 1, report.Scenarios[0].Actual)
	assert.Empty(t, report.Densities)
}
