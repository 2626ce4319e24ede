// 环岛相对几何：极坐标转换与生成点排序
package geometry

import (
	"math"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/roundabout-sim-oss/entity"
	"github.com/tsinghua-fib-lab/roundabout-sim-oss/utils/container"
)

// RelativePolar 计算相对环岛中心的极坐标
// 功能：radius为平面欧氏距离，angle = atan2(dy, dx)，取值范围(−π, π]
func RelativePolar(position, center entity.Vector3) (radius, angle float64) {
	dx := position.X - center.X
	dy := position.Y - center.Y
	radius = math.Hypot(dx, dy)
	angle = math.Atan2(dy, dx)
	if angle == -math.Pi {
		angle = math.Pi
	}
	return
}

// Magnitude2D 平面向量长度（速度、加速度大小）
func Magnitude2D(v entity.Vector3) float64 {
	return math.Hypot(v.X, v.Y)
}

// AngleDiff 两个方向角（弧度）之间的绝对差，折算到[0, π]
func AngleDiff(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), 2*math.Pi)
	if d > math.Pi {
		d = 2*math.Pi - d
	}
	return d
}

// HeadingOffset 生成点朝向与指向中心方向之间的偏差（弧度，[0, π]）
func HeadingOffset(pose entity.Pose, center entity.Vector3) float64 {
	toCenter := math.Atan2(center.Y-pose.Location.Y, center.X-pose.Location.X)
	return AngleDiff(toCenter, pose.Yaw*math.Pi/180)
}

// RankSpawnPoints 筛选并排序环形区域内的生成点
// 功能：保留到中心距离在[radiusMin, radiusMax]内的候选点，按优先级从高到低返回
// 参数：candidates-引擎给出的全部候选点，center-环岛中心，radiusMin/radiusMax-生成环带
// 返回：排好序的生成点
// 算法说明：
// 1. 计算候选点到中心的距离，过滤环带外的点
// 2. 计算朝向偏差angle_diff（度），priority = 100 - angle_diff
// 3. 放入优先队列，依次弹出得到非递增的优先级序列（相同优先级保持输入顺序）
func RankSpawnPoints(candidates []entity.Pose, center entity.Vector3, radiusMin, radiusMax float64) []entity.SpawnPoint {
	q := container.NewPriorityQueue[entity.SpawnPoint]()
	for _, pose := range candidates {
		dist, _ := RelativePolar(pose.Location, center)
		if dist < radiusMin || dist > radiusMax {
			continue
		}
		priority := 100 - HeadingOffset(pose, center)*180/math.Pi
		q.Push(entity.SpawnPoint{
			Pose:     pose,
			Distance: dist,
			Priority: priority,
		}, priority)
	}
	q.Heapify()
	return q.Drain()
}

// WithinHeadingTolerance 只保留朝向偏差不超过tolerance（度）的生成点
// 说明：tolerance<=0时不筛选；输入顺序保持不变
func WithinHeadingTolerance(points []entity.SpawnPoint, tolerance float64) []entity.SpawnPoint {
	if tolerance <= 0 {
		return points
	}
	return lo.Filter(points, func(p entity.SpawnPoint, _ int) bool {
		return 100-p.Priority <= tolerance
	})
}
