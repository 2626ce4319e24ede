package spawn

import (
	"context"
	"fmt"

	"github.com/tsinghua-fib-lab/roundabout-sim-oss/entity"
	"github.com/tsinghua-fib-lab/roundabout-sim-oss/entity/behavior"
)

// Plan 分批生成计划
type Plan struct {
	Total    int     // 总目标车辆数
	PerBatch int     // 每批车辆数
	Interval float64 // 批次间隔（秒）
}

// NumBatches 批次数 = ceil(Total / PerBatch)
func (p Plan) NumBatches() int {
	if p.Total <= 0 || p.PerBatch <= 0 {
		return 0
	}
	return (p.Total + p.PerBatch - 1) / p.PerBatch
}

// BatchResult 分批生成的总结果
type BatchResult struct {
	Batches  int
	Spawned  []TrackedActor
	Attempts int // 所有批次失败尝试之和
	Labels   []behavior.Class
}

// Shortfall 未达成的车辆数
func (r BatchResult) Shortfall(total int) int {
	return max(total-len(r.Spawned), 0)
}

// RunBatches 分批生成车辆
// 功能：按固定批次大小分批生成，批次之间推进仿真时间，控制车辆到达节奏，避免压垮引擎的生成有效性检查
// 参数：ctx-上下文，plan-分批计划，points-生成点，blueprints-车辆蓝图，weather-当前天气
// 返回：生成结果
// 算法说明：
// 1. 按总数一次性分配行为标签（25/50/25），各批次共享同一个标签游标
// 2. num_batches = ceil(Total / PerBatch)
// 3. 每批大小 = min(PerBatch, 剩余数量)，调用Run
// 4. 除最后一批外，每批之后推进 Interval × 帧率 步
// 说明：单批未达成目标只记录日志，不中断后续批次
func (s *Scheduler) RunBatches(
	ctx context.Context,
	plan Plan,
	points []entity.SpawnPoint,
	blueprints []string,
	weather string,
) (BatchResult, error) {
	numBatches := plan.NumBatches()
	res := BatchResult{
		Labels:  behavior.Assign(plan.Total, s.rng),
		Spawned: make([]TrackedActor, 0, max(plan.Total, 0)),
	}
	aggressive, normal, cautious := behavior.Counts(plan.Total)
	log.Infof("spawn plan: total %d, per batch %d, %d batches, interval %.0fs (aggressive %d, normal %d, cautious %d)",
		plan.Total, plan.PerBatch, numBatches, plan.Interval, aggressive, normal, cautious)

	cursor := 0
	for batchID := range numBatches {
		remaining := plan.Total - len(res.Spawned)
		batchSize := min(plan.PerBatch, remaining)
		r, err := s.Run(ctx, Request{
			Target:     batchSize,
			Points:     points,
			Blueprints: blueprints,
			Labels:     res.Labels,
			Cursor:     cursor,
			Weather:    weather,
		})
		res.Batches++
		res.Spawned = append(res.Spawned, r.Spawned...)
		res.Attempts += r.Attempts
		cursor = r.Cursor
		if err != nil {
			return res, fmt.Errorf("batch %d/%d: %w", batchID+1, numBatches, err)
		}
		if short := r.Shortfall(batchSize); short > 0 {
			log.Warnf("batch %d/%d: spawned %d/%d after %d failed attempts",
				batchID+1, numBatches, len(r.Spawned), batchSize, r.Attempts)
		} else {
			log.Debugf("batch %d/%d: spawned %d (total %d/%d)",
				batchID+1, numBatches, len(r.Spawned), len(res.Spawned), plan.Total)
		}
		if batchID < numBatches-1 {
			if err := s.clock.Advance(ctx, s.clock.Ticks(plan.Interval)); err != nil {
				return res, fmt.Errorf("wait after batch %d/%d: %w", batchID+1, numBatches, err)
			}
		}
	}
	if short := res.Shortfall(plan.Total); short > 0 {
		log.Warnf("spawned %d/%d actors, %d short", len(res.Spawned), plan.Total, short)
	} else {
		log.Infof("spawned %d/%d actors", len(res.Spawned), plan.Total)
	}
	return res, nil
}
