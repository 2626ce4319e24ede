package task

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/roundabout-sim-oss/clock"
	"github.com/tsinghua-fib-lab/roundabout-sim-oss/dataset"
	"github.com/tsinghua-fib-lab/roundabout-sim-oss/entity"
	"github.com/tsinghua-fib-lab/roundabout-sim-oss/recorder"
	"github.com/tsinghua-fib-lab/roundabout-sim-oss/utils/config"
	"github.com/tsinghua-fib-lab/roundabout-sim-oss/utils/randengine"
)

// Collector 采集任务
// 功能：包含一次采集运行的所有组件（引擎、时钟、运行器、输出），依次运行全部场景
type Collector struct {
	job    string
	runID  string
	engine entity.IEngine
	clock  *clock.Clock
	runner *Runner
	rc     *config.RuntimeConfig
	sink   recorder.Sink
}

// Option 采集任务选项
type Option func(*Collector)

// WithRunID 使用指定的运行编号（默认随机生成），用于与其他输出共享同一编号
func WithRunID(id string) Option {
	return func(c *Collector) { c.runID = id }
}

// NewCollector 创建采集任务
// 参数：job-任务名，engine-仿真引擎，c-配置，sink-原始数据输出
func NewCollector(job string, engine entity.IEngine, c config.Config, sink recorder.Sink, opts ...Option) *Collector {
	clk := clock.New(c.Control.FrameRate, engine)
	col := &Collector{
		job:    job,
		runID:  recorder.NewRunID(),
		engine: engine,
		clock:  clk,
		runner: NewRunner(engine, clk, c),
		rc:     config.NewRuntimeConfig(c),
		sink:   sink,
	}
	for _, o := range opts {
		o(col)
	}
	return col
}

// RunID 本次运行的编号
func (c *Collector) RunID() string {
	return c.runID
}

// Clock 仿真时钟
func (c *Collector) Clock() *clock.Clock {
	return c.clock
}

// setup 加载地图并开启同步模式
func (c *Collector) setup(ctx context.Context) error {
	e := c.rc.All.Engine
	if err := c.engine.LoadWorld(ctx, e.World); err != nil {
		return fmt.Errorf("load world %s: %w", e.World, err)
	}
	if err := c.engine.SetSyncMode(ctx, true, c.clock.DT); err != nil {
		return fmt.Errorf("enable sync mode: %w", err)
	}
	log.Infof("world %s ready, synchronous mode at %d fps", e.World, c.clock.FrameRate)
	return nil
}

// teardown 关闭同步模式，引擎恢复自由运行
func (c *Collector) teardown(ctx context.Context) {
	if err := c.engine.SetSyncMode(context.WithoutCancel(ctx), false, 0); err != nil {
		log.Warnf("disable sync mode: %v", err)
	}
}

// Run 运行全部场景
// 功能：场景依次执行，单个场景失败（无数据、引擎错误）计入失败数后继续下一个，ctx取消时停止
// 返回：采集清单；世界初始化失败或被中断时同时返回错误
// 说明：每个场景结束后都会写出一次清单，中断时已完成的场景不会丢失
func (c *Collector) Run(ctx context.Context) (recorder.Manifest, error) {
	scenarios := Scenarios(c.rc.All)
	m := recorder.Manifest{
		RunID:     c.runID,
		World:     c.rc.All.Engine.World,
		StartedAt: time.Now(),
	}
	log.Infof("job %s run %s: %d weathers × %d densities = %d scenarios, %ds each",
		c.job, c.runID, len(c.rc.All.Weathers), len(c.rc.All.Densities), c.rc.TotalScenarios(), c.rc.C.Duration)

	if err := c.setup(ctx); err != nil {
		return m, err
	}
	defer c.teardown(ctx)

	master := randengine.New(c.rc.C.Seed)
	var interrupted error
	for _, s := range scenarios {
		// 每个场景独立的随机序列，与前面场景的失败次数无关
		rng := master.Fork()
		if err := ctx.Err(); err != nil {
			interrupted = err
			break
		}
		log.Infof("%s [%d/%d] target flow %d veh/h, %d passages",
			s, s.ID+1, len(scenarios), s.Density.TargetFlow, s.Density.TargetPassages)
		entry := c.runScenario(ctx, s, rng)
		m.Scenarios = append(m.Scenarios, entry)
		if entry.Status == recorder.StatusOK {
			m.Successful++
		} else {
			m.Failed++
		}
		m.FinishedAt = time.Now()
		if err := recorder.WriteManifest(c.rc.All.Output.RawDir, m); err != nil {
			log.Errorf("write manifest: %v", err)
		}
		if err := ctx.Err(); err != nil {
			interrupted = err
			break
		}
	}

	c.summary(m, len(scenarios))
	if interrupted != nil {
		return m, fmt.Errorf("collection interrupted after %d/%d scenarios: %w", len(m.Scenarios), len(scenarios), interrupted)
	}
	return m, nil
}

func (c *Collector) runScenario(ctx context.Context, s Scenario, rng *randengine.Engine) recorder.ScenarioEntry {
	start := time.Now()
	entry := recorder.ScenarioEntry{
		ID:             s.ID,
		Weather:        s.Weather.Name,
		Density:        s.Density.Name,
		SpawnTotal:     s.Density.SpawnTotal,
		TargetPassages: s.Density.TargetPassages,
	}
	res, err := c.runner.Run(ctx, s, rng)
	entry.Spawned = len(res.Spawn.Spawned)
	switch {
	case errors.Is(err, ErrEmptyScenario):
		log.Warnf("%s: no data captured", s)
		entry.Status = recorder.StatusEmpty
		return entry
	case err != nil:
		log.Errorf("%s failed: %v", s, err)
		entry.Status = recorder.StatusFailed
		entry.Error = err.Error()
		return entry
	}

	if err := c.sink.Write(ctx, s.ID, res.Table); err != nil {
		log.Errorf("%s: save: %v", s, err)
		entry.Status = recorder.StatusFailed
		entry.Error = err.Error()
		return entry
	}
	entry.Status = recorder.StatusOK
	entry.Rows = len(res.Table.Rows)
	entry.Tracks = res.Table.NumTracks()
	entry.CoreTracks = c.coreTracks(s, res.Table)
	c.logStats(s, res, entry, time.Since(start))
	return entry
}

// coreTracks 进入核心区的轨迹数
func (c *Collector) coreTracks(s Scenario, t dataset.Table) int {
	flow := dataset.VerifyFlow(t, dataset.FlowOptions{
		CoreRadius: c.rc.All.Roundabout.CoreRadius,
		Densities:  []config.Density{s.Density},
	})
	return lo.SumBy(flow.Scenarios, func(f dataset.ScenarioFlow) int { return f.Actual })
}

func (c *Collector) logStats(s Scenario, res ScenarioResult, entry recorder.ScenarioEntry, elapsed time.Duration) {
	a := dataset.Analyze(res.Table, nil)
	mix := lo.Map(a.Behavior, func(g dataset.GroupStat, _ int) string {
		return fmt.Sprintf("%s %d", g.Name, g.Tracks)
	})
	log.Infof("%s done in %s: %d rows, %d tracks (%v), core tracks %d (target %d), mean speed %.2f m/s (%.1f km/h)",
		s, elapsed.Round(time.Millisecond), entry.Rows, entry.Tracks, mix,
		entry.CoreTracks, entry.TargetPassages, a.MeanSpeed, a.MeanSpeed*3.6)
	if res.ReadErrors > 0 {
		log.Debugf("%s: %d skipped state reads", s, res.ReadErrors)
	}
}

// summary 输出采集汇总：成功/失败场景数、核心区轨迹总数与目标总数、达成率
func (c *Collector) summary(m recorder.Manifest, total int) {
	ok := lo.Filter(m.Scenarios, func(e recorder.ScenarioEntry, _ int) bool { return e.Status == recorder.StatusOK })
	core := lo.SumBy(ok, func(e recorder.ScenarioEntry) int { return e.CoreTracks })
	target := lo.SumBy(ok, func(e recorder.ScenarioEntry) int { return e.TargetPassages })
	rate := 0.0
	if target > 0 {
		rate = float64(core) / float64(target) * 100
	}
	log.Infof("collection finished: successful %d/%d, failed %d/%d, core tracks %d / target %d (%.1f%%), simulated %s",
		m.Successful, total, m.Failed, total, core, target, rate, c.clock)
}
