package behavior_test

import (
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/roundabout-sim-oss/entity/behavior"
	"github.com/tsinghua-fib-lab/roundabout-sim-oss/utils/config"
	"github.com/tsinghua-fib-lab/roundabout-sim-oss/utils/randengine"
)

func TestAssignCounts(t *testing.T) {
	rng := randengine.New(42)
	for n := 0; n <= 101; n++ {
		labels := behavior.Assign(n, rng)
		require.Len(t, labels, n)
		counts := lo.CountValues(labels)
		assert.Equal(t, n/4, counts[behavior.Aggressive], "n=%d", n)
		assert.Equal(t, n/2, counts[behavior.Normal], "n=%d", n)
		assert.Equal(t, n-n/4-n/2, counts[behavior.Cautious], "n=%d", n)
	}
}

func TestAssignTen(t *testing.T) {
	a, n, c := behavior.Counts(10)
	assert.Equal(t, []int{2, 5, 3}, []int{a, n, c})
	a, n, c = behavior.Counts(-3)
	assert.Equal(t, []int{0, 0, 0}, []int{a, n, c})
}

func TestAssignReproducible(t *testing.T) {
	a := behavior.Assign(40, randengine.New(7))
	b := behavior.Assign(40, randengine.New(7))
	assert.Equal(t, a, b)
}

func TestParamsFor(t *testing.T) {
	table := behavior.NewTable(config.Default())

	p := table.ParamsFor(behavior.Aggressive, "ClearNoon")
	assert.Equal(t, -20.0, p.SpeedBias)
	assert.Equal(t, 1.5, p.FollowingGap)
	assert.Equal(t, 10.0, p.LightViolationRate)

	p = table.ParamsFor(behavior.Cautious, "HardRainNoon")
	assert.Equal(t, 50.0, p.SpeedBias)
	assert.Equal(t, 4.5, p.FollowingGap)

	// WetNoon不含Rain，不增加跟车距离
	p = table.ParamsFor(behavior.Normal, "WetNoon")
	assert.Equal(t, 8.0, p.SpeedBias)
	assert.Equal(t, 2.5, p.FollowingGap)

	for _, c := range []behavior.Class{behavior.Aggressive, behavior.Normal, behavior.Cautious, behavior.Unknown} {
		assert.Equal(t, behavior.LightViolationRate, table.ParamsFor(c, "SoftRainNoon").LightViolationRate)
	}
	assert.Equal(t, table.ParamsFor(behavior.Normal, "Foggy"), table.ParamsFor(behavior.Unknown, "Foggy"))
}

func TestParse(t *testing.T) {
	for _, c := range []behavior.Class{behavior.Aggressive, behavior.Normal, behavior.Cautious} {
		got, err := behavior.Parse(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}
	_, err := behavior.Parse("reckless")
	assert.Error(t, err)
	assert.Equal(t, "Class(9)", behavior.Class(9).String())
}
