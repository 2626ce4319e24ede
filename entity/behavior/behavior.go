package behavior

import (
	"fmt"
	"strings"

	"github.com/tsinghua-fib-lab/roundabout-sim-oss/entity"
	"github.com/tsinghua-fib-lab/roundabout-sim-oss/utils/config"
	"github.com/tsinghua-fib-lab/roundabout-sim-oss/utils/randengine"
)

// Class 驾驶行为类型
type Class int

const (
	Unknown Class = iota
	Aggressive
	Normal
	Cautious
)

// 行为比例：Aggressive 25%, Normal 50%, Cautious 25%（Cautious吸收取整余数）
const (
	aggressiveQuarters = 1 // 25%
	normalQuarters     = 2 // 50%
)

// LightViolationRate 闯红灯概率（百分比）
// 说明：所有行为类型相同，是固定策略而不是按行为区分
const LightViolationRate = 10.0

var classNames = map[Class]string{
	Unknown:    "unknown",
	Aggressive: "aggressive",
	Normal:     "normal",
	Cautious:   "cautious",
}

func (c Class) String() string {
	if n, ok := classNames[c]; ok {
		return n
	}
	return fmt.Sprintf("Class(%d)", int(c))
}

// Parse 由名称解析行为类型
func Parse(name string) (Class, error) {
	for c, n := range classNames {
		if n == name {
			return c, nil
		}
	}
	return Unknown, fmt.Errorf("unknown behavior %q", name)
}

// Counts 各行为类型的数量
func Counts(n int) (aggressive, normal, cautious int) {
	if n <= 0 {
		return 0, 0, 0
	}
	aggressive = n * aggressiveQuarters / 4
	normal = n * normalQuarters / 4
	cautious = n - aggressive - normal
	return
}

// Assign 为n辆车分配行为类型
// 功能：按25/50/25的比例生成n个行为标签，再用注入的随机源打乱顺序
// 参数：n-车辆数，rng-随机数引擎
// 返回：长度恰为n的行为标签序列
// 算法说明：
// 1. aggressive = ⌊0.25n⌋，normal = ⌊0.5n⌋，cautious = n - aggressive - normal
// 2. 依次放入三类标签
// 3. 均匀打乱
func Assign(n int, rng *randengine.Engine) []Class {
	aggressive, normal, cautious := Counts(n)
	labels := make([]Class, 0, max(n, 0))
	for range aggressive {
		labels = append(labels, Aggressive)
	}
	for range normal {
		labels = append(labels, Normal)
	}
	for range cautious {
		labels = append(labels, Cautious)
	}
	rng.Shuffle(len(labels), func(i, j int) {
		labels[i], labels[j] = labels[j], labels[i]
	})
	log.Debugf("assigned behaviors: aggressive %d, normal %d, cautious %d", aggressive, normal, cautious)
	return labels
}

// Table 行为参数表
// 功能：由配置构建的查表结构，ParamsFor为纯函数
type Table struct {
	classes  map[Class]config.Behavior
	weathers map[string]float64
	rainGap  float64
	fallback config.Behavior
}

// NewTable 根据配置创建参数表
func NewTable(c config.Config) *Table {
	t := &Table{
		classes: map[Class]config.Behavior{
			Aggressive: c.Behaviors.Aggressive,
			Normal:     c.Behaviors.Normal,
			Cautious:   c.Behaviors.Cautious,
		},
		weathers: make(map[string]float64, len(c.Weathers)),
		rainGap:  c.Behaviors.RainGap,
		fallback: c.Behaviors.Normal,
	}
	for _, w := range c.Weathers {
		t.weathers[w.Name] = w.SpeedAdjustment
	}
	return t
}

// ParamsFor 查询驾驶行为参数
// 功能：speed_bias = 行为偏差 + 天气偏差；following_gap = 行为跟车距离，雨天（天气名含"Rain"）额外增加；
// light_violation_rate 固定为LightViolationRate
// 说明：未知行为使用normal的参数，未知天气偏差为0
func (t *Table) ParamsFor(class Class, weather string) entity.BehaviorParams {
	b, ok := t.classes[class]
	if !ok {
		b = t.fallback
	}
	gap := b.FollowingDistance
	if IsRain(weather) {
		gap += t.rainGap
	}
	return entity.BehaviorParams{
		SpeedBias:          b.SpeedAdjustment + t.weathers[weather],
		FollowingGap:       gap,
		LightViolationRate: LightViolationRate,
	}
}

// IsRain 天气是否为雨天
func IsRain(weather string) bool {
	return strings.Contains(weather, "Rain")
}
