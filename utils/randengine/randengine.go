// 随机数引擎，包装了golang.org/x/exp/rand，所有随机行为（车辆蓝图、生成点、行为打乱、数据集划分）都从这里取数，保证给定种子可复现
package randengine

import (
	"flag"

	"github.com/samber/lo"
	"golang.org/x/exp/rand"
)

var (
	seedOffset = flag.Uint64("rand.seed_offset", 0, "seed offset") // 种子偏移量，用于调整随机数生成
)

// Engine 随机数引擎
// 功能：提供可注入种子的随机数生成
// 说明：整个系统运行在单一仿真时间线上，不做并发保护
type Engine struct {
	*rand.Rand // 底层随机数生成器
}

// New 创建随机数引擎
// 功能：以seed + rand.seed_offset初始化随机数生成器
func New(seed uint64) *Engine {
	return &Engine{Rand: rand.New(rand.NewSource(seed + *seedOffset))}
}

// Fork 派生子引擎
// 功能：从当前引擎派生一个独立的随机序列，用于让每个场景拥有互不干扰的随机源
func (e *Engine) Fork() *Engine {
	return &Engine{Rand: rand.New(rand.NewSource(e.Uint64()))}
}

// Choice 从切片中均匀随机选择一个元素（有放回）
// 说明：空切片时panic，调用者需保证非空
func Choice[T any](e *Engine, items []T) T {
	if len(items) == 0 {
		panic("randengine: Choice from empty slice")
	}
	return items[e.Intn(len(items))]
}

// Shuffled 返回打乱后的副本，不修改输入
func Shuffled[T any](e *Engine, items []T) []T {
	out := lo.Map(items, func(item T, _ int) T { return item })
	e.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}

// PTrue 以指定概率返回true
func (e *Engine) PTrue(p float64) bool {
	return e.Float64() < p
}
