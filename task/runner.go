package task

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/tsinghua-fib-lab/roundabout-sim-oss/clock"
	"github.com/tsinghua-fib-lab/roundabout-sim-oss/dataset"
	"github.com/tsinghua-fib-lab/roundabout-sim-oss/entity"
	"github.com/tsinghua-fib-lab/roundabout-sim-oss/entity/behavior"
	"github.com/tsinghua-fib-lab/roundabout-sim-oss/entity/spawn"
	"github.com/tsinghua-fib-lab/roundabout-sim-oss/utils/config"
	"github.com/tsinghua-fib-lab/roundabout-sim-oss/utils/geometry"
	"github.com/tsinghua-fib-lab/roundabout-sim-oss/utils/randengine"
)

// Runner 场景运行器
// 功能：在唯一的仿真时间线上依次执行 Idle → Warmup → Spawning → Observing → Cleanup → Done
// 说明：同一时刻只运行一个场景，世界与时钟归当前场景独占
type Runner struct {
	engine entity.IEngine
	clock  *clock.Clock
	config config.Config
	params *behavior.Table
}

// NewRunner 创建场景运行器
func NewRunner(engine entity.IEngine, clk *clock.Clock, c config.Config) *Runner {
	return &Runner{
		engine: engine,
		clock:  clk,
		config: c,
		params: behavior.NewTable(c),
	}
}

// ScenarioResult 场景运行结果
type ScenarioResult struct {
	Table      dataset.Table
	Spawn      spawn.BatchResult
	ReadErrors int
}

// Run 运行一个场景
// 参数：ctx-上下文（取消即中断），scenario-场景，rng-本场景的随机源
// 返回：场景原始数据；未采集到任何行时返回ErrEmptyScenario
// 算法说明：
// 1. Idle：设置天气
// 2. Warmup：推进 warmup × 帧率 步，不采集
// 3. Spawning：生成点排序筛选后分批生成车辆
// 4. Observing：推进 duration × 帧率 步，每步读取所有被跟踪车辆的状态并生成一行，读取失败的车辆本步跳过
// 5. Cleanup：销毁所有被跟踪车辆（忽略销毁错误），释放场景状态
// 说明：任一阶段出错或ctx被取消都会直接进入Cleanup，Cleanup不受ctx取消影响
func (r *Runner) Run(ctx context.Context, scenario Scenario, rng *randengine.Engine) (ScenarioResult, error) {
	c := newContext(scenario, rng)
	var runErr error
	for c.state != StateDone {
		var err error
		switch c.state {
		case StateIdle:
			if err = r.engine.SetWeather(ctx, scenario.Weather.Name); err == nil {
				c.enter(StateWarmup)
			}
		case StateWarmup:
			if err = r.clock.Advance(ctx, r.clock.Ticks(float64(r.config.Control.Warmup))); err == nil {
				c.enter(StateSpawning)
			}
		case StateSpawning:
			if err = r.spawn(ctx, c); err == nil {
				c.enter(StateObserving)
			}
		case StateObserving:
			if err = r.observe(ctx, c); err == nil {
				c.enter(StateCleanup)
			}
		case StateCleanup:
			r.cleanup(ctx, c)
			c.enter(StateDone)
		}
		if err != nil {
			runErr = fmt.Errorf("%s: %s: %w", scenario, c.state, err)
			c.enter(StateCleanup)
		}
	}

	res := ScenarioResult{Table: c.table(), Spawn: c.spawnResult, ReadErrors: c.readErrors}
	if runErr != nil {
		return res, runErr
	}
	if len(res.Table.Rows) == 0 {
		return res, fmt.Errorf("%s: %w", scenario, ErrEmptyScenario)
	}
	return res, nil
}

// spawnPoints 本场景的候选生成点
// 说明：候选点集合可能随场景加载变化，因此每个场景重新计算
func (r *Runner) spawnPoints(ctx context.Context) ([]entity.SpawnPoint, error) {
	candidates, err := r.engine.SpawnCandidates(ctx)
	if err != nil {
		return nil, err
	}
	g := r.config.Roundabout
	points := geometry.RankSpawnPoints(candidates, g.Center, g.SpawnRadiusMin, g.SpawnRadiusMax)
	filtered := geometry.WithinHeadingTolerance(points, g.HeadingTolerance)
	log.Infof("spawn points: %d candidates, %d in [%.0f, %.0f] m, %d within heading tolerance",
		len(candidates), len(points), g.SpawnRadiusMin, g.SpawnRadiusMax, len(filtered))
	return filtered, nil
}

func (r *Runner) spawn(ctx context.Context, c *Context) error {
	points, err := r.spawnPoints(ctx)
	if err != nil {
		return err
	}
	blueprints, err := r.engine.Blueprints(ctx, r.config.Engine.BlueprintFilter)
	if err != nil {
		return err
	}
	scheduler := spawn.NewScheduler(r.engine, r.clock, r.params, c.rng, r.config.Control.SpawnRetries)
	d := c.scenario.Density
	res, err := scheduler.RunBatches(ctx, spawn.Plan{
		Total:    d.SpawnTotal,
		PerBatch: d.SpawnPerBatch,
		Interval: float64(d.BatchInterval),
	}, points, blueprints, c.scenario.Weather.Name)
	// 出错时已生成的车辆同样需要在Cleanup中销毁
	c.track(res.Spawned)
	c.spawnResult = res
	return err
}

func (r *Runner) observe(ctx context.Context, c *Context) error {
	ticks := r.clock.Ticks(float64(r.config.Control.Duration))
	progressEvery := r.clock.Ticks(30)
	for tick := range ticks {
		if err := r.clock.Advance(ctx, 1); err != nil {
			return err
		}
		for _, a := range c.tracked {
			state, err := r.engine.ReadState(ctx, a.ID)
			if err != nil {
				// 车辆可能已离开仿真区域或被引擎回收，仅跳过本步
				c.readErrors++
				if !errors.Is(err, entity.ErrActorGone) {
					log.Debugf("read actor %d: %v", a.ID, err)
				}
				continue
			}
			c.rows = append(c.rows, r.row(c, int64(tick), a.ID, state))
		}
		if progressEvery > 0 && (tick+1)%progressEvery == 0 {
			log.Infof("%s: observed %d/%d ticks, %d rows", c.scenario, tick+1, ticks, len(c.rows))
		}
	}
	return nil
}

func (r *Runner) row(c *Context, tick int64, id entity.ActorID, s entity.ActorState) dataset.Row {
	radius, angle := geometry.RelativePolar(s.Pose.Location, r.config.Roundabout.Center)
	return dataset.Row{
		Tick:           tick,
		TrackID:        int64(id),
		X:              s.Pose.Location.X,
		Y:              s.Pose.Location.Y,
		Z:              s.Pose.Location.Z,
		VX:             s.Velocity.X,
		VY:             s.Velocity.Y,
		Speed:          geometry.Magnitude2D(s.Velocity),
		AX:             s.Acceleration.X,
		AY:             s.Acceleration.Y,
		Accel:          geometry.Magnitude2D(s.Acceleration),
		Heading:        s.Pose.Yaw * math.Pi / 180,
		Radius:         radius,
		Angle:          angle,
		Weather:        c.scenario.Weather.Name,
		TrafficDensity: c.scenario.Density.Name,
		BehaviorType:   c.behaviorOf(id).String(),
	}
}

// cleanup 销毁所有被跟踪车辆并释放场景状态
// 说明：使用不可取消的ctx，保证中断时仍尽力清理；销毁失败（车辆可能已不存在）被忽略
func (r *Runner) cleanup(ctx context.Context, c *Context) {
	ctx = context.WithoutCancel(ctx)
	failed := 0
	for _, a := range c.tracked {
		if err := r.engine.Destroy(ctx, a.ID); err != nil {
			failed++
		}
	}
	log.Debugf("%s: destroyed %d actors (%d already gone)", c.scenario, len(c.tracked)-failed, failed)
	c.release()
}
