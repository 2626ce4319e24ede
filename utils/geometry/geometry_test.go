package geometry_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/roundabout-sim-oss/entity"
	"github.com/tsinghua-fib-lab/roundabout-sim-oss/utils/geometry"
)

func pose(x, y, yaw float64) entity.Pose {
	return entity.Pose{Location: entity.Vector3{X: x, Y: y}, Yaw: yaw}
}

func TestRelativePolar(t *testing.T) {
	center := entity.Vector3{X: 1, Y: 1}
	r, a := geometry.RelativePolar(entity.Vector3{X: 4, Y: 5}, center)
	assert.InDelta(t, 5, r, 1e-9)
	assert.InDelta(t, math.Atan2(4, 3), a, 1e-9)

	// 负x轴上的点取π而不是−π
	_, a = geometry.RelativePolar(entity.Vector3{X: -3, Y: math.Copysign(0, -1)}, entity.Vector3{})
	assert.Equal(t, math.Pi, a)

	r, a = geometry.RelativePolar(center, center)
	assert.Equal(t, 0.0, r)
	assert.Equal(t, 0.0, a)
}

func TestAngleDiffWraps(t *testing.T) {
	assert.InDelta(t, 0, geometry.AngleDiff(math.Pi, -math.Pi), 1e-9)
	assert.InDelta(t, math.Pi/2, geometry.AngleDiff(0, 3*math.Pi/2), 1e-9)
	assert.InDelta(t, math.Pi/2, geometry.AngleDiff(0, 5*math.Pi/2), 1e-9)
	for _, d := range []float64{-7, -3.5, 0, 1, 4, 9, 13} {
		v := geometry.AngleDiff(0, d)
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, math.Pi)
	}
}

func TestRankSpawnPoints(t *testing.T) {
	center := entity.Vector3{}
	candidates := []entity.Pose{
		pose(50, 0, 180),  // 正对中心，priority 100
		pose(0, 50, 0),    // 偏差90度
		pose(-50, 0, 180), // 背对中心，priority -80
		pose(10, 0, 180),  // 太近
		pose(80, 0, 180),  // 太远
		pose(0, -47, 120), // 偏差30度
		pose(45, 0, 180),  // 边界上，保留
	}
	ranked := geometry.RankSpawnPoints(candidates, center, 45, 55)
	assert.Len(t, ranked, 5)
	for i, p := range ranked {
		assert.GreaterOrEqual(t, p.Distance, 45.0)
		assert.LessOrEqual(t, p.Distance, 55.0)
		if i > 0 {
			assert.LessOrEqual(t, p.Priority, ranked[i-1].Priority)
		}
	}
	assert.InDelta(t, 100, ranked[0].Priority, 1e-9)
	assert.Equal(t, 50.0, ranked[0].Pose.Location.X)
	// 同优先级保持输入顺序
	assert.Equal(t, 45.0, ranked[1].Pose.Location.X)
	assert.InDelta(t, 70, ranked[2].Priority, 1e-9)
	assert.InDelta(t, 10, ranked[3].Priority, 1e-9)
	assert.InDelta(t, -80, ranked[4].Priority, 1e-9)

	// 确定性
	assert.Equal(t, ranked, geometry.RankSpawnPoints(candidates, center, 45, 55))
	assert.Empty(t, geometry.RankSpawnPoints(nil, center, 45, 55))
}

func TestWithinHeadingTolerance(t *testing.T) {
	ranked := geometry.RankSpawnPoints([]entity.Pose{
		pose(50, 0, 180),
		pose(0, -47, 120),
		pose(0, 50, 0),
	}, entity.Vector3{}, 45, 55)
	assert.Len(t, geometry.WithinHeadingTolerance(ranked, 0), 3)
	kept := geometry.WithinHeadingTolerance(ranked, 60)
	assert.Len(t, kept, 2)
	assert.Equal(t, 50.0, kept[0].Pose.Location.X)
}
