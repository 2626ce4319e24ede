package dataset

import (
	"encoding/csv"
	"io"
	"math"
	"sort"
	"strconv"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/roundabout-sim-oss/utils/config"
)

// FlowOptions 流量验证参数
type FlowOptions struct {
	CoreRadius float64          // 核心区半径，轨迹曾进入该半径即视为通过环岛
	Tolerance  float64          // 允许的偏差百分比（±）
	Densities  []config.Density // 各密度的目标值，顺序决定汇总顺序
}

// ScenarioFlow 单个场景的流量验证结果
type ScenarioFlow struct {
	ScenarioID int
	Weather    string
	Density    string
	Target     int
	Actual     int
	Deviation  float64 // 百分比
	Pass       bool
}

// DensityFlow 按密度汇总
type DensityFlow struct {
	Density    string
	TargetFlow int
	Target     int
	MeanActual float64
	Qualified  int
	Total      int
}

// FlowReport 流量验证报告
type FlowReport struct {
	Scenarios []ScenarioFlow
	Densities []DensityFlow
}

// Deviation 实际值相对目标值的偏差百分比，目标为0时定义为0
func Deviation(actual, target int) float64 {
	if target <= 0 {
		return 0
	}
	return float64(actual-target) / float64(target) * 100
}

// VerifyFlow 验证各场景的通过车辆数
// 功能：统计每个场景中半径曾不超过核心区半径的不同轨迹数，与该场景密度的目标通过数比较
// 参数：t-合并后的数据表，opts-验证参数
// 返回：按场景编号排序的结果与按密度的汇总
// 说明：纯函数，不修改输入
func VerifyFlow(t Table, opts FlowOptions) FlowReport {
	targets := lo.SliceToMap(opts.Densities, func(d config.Density) (string, config.Density) {
		return d.Name, d
	})
	type acc struct {
		first Row
		core  map[int64]struct{}
	}
	byScenario := make(map[int]*acc)
	for _, r := range t.Rows {
		a, ok := byScenario[r.ScenarioID]
		if !ok {
			a = &acc{first: r, core: make(map[int64]struct{})}
			byScenario[r.ScenarioID] = a
		}
		if r.Radius <= opts.CoreRadius {
			a.core[r.TrackID] = struct{}{}
		}
	}
	ids := lo.Keys(byScenario)
	sort.Ints(ids)

	report := FlowReport{}
	for _, id := range ids {
		a := byScenario[id]
		d, ok := targets[a.first.TrafficDensity]
		if !ok {
			log.Warnf("scenario %d: unknown traffic density %q, no target", id, a.first.TrafficDensity)
		}
		f := ScenarioFlow{
			ScenarioID: id,
			Weather:    a.first.Weather,
			Density:    a.first.TrafficDensity,
			Target:     d.TargetPassages,
			Actual:     len(a.core),
		}
		f.Deviation = Deviation(f.Actual, f.Target)
		f.Pass = math.Abs(f.Deviation) <= opts.Tolerance
		report.Scenarios = append(report.Scenarios, f)
	}

	for _, d := range opts.Densities {
		flows := lo.Filter(report.Scenarios, func(f ScenarioFlow, _ int) bool { return f.Density == d.Name })
		if len(flows) == 0 {
			continue
		}
		report.Densities = append(report.Densities, DensityFlow{
			Density:    d.Name,
			TargetFlow: d.TargetFlow,
			Target:     d.TargetPassages,
			MeanActual: lo.MeanBy(flows, func(f ScenarioFlow) float64 { return float64(f.Actual) }),
			Qualified:  lo.CountBy(flows, func(f ScenarioFlow) bool { return f.Pass }),
			Total:      len(flows),
		})
	}
	return report
}

// Passed 合格场景数
func (r FlowReport) Passed() int {
	return lo.CountBy(r.Scenarios, func(f ScenarioFlow) bool { return f.Pass })
}

// Log 输出验证报告
func (r FlowReport) Log() {
	for _, f := range r.Scenarios {
		status := "pass"
		if !f.Pass {
			status = "FAIL"
		}
		log.Infof("scenario %3d %-12s %-16s target=%4d actual=%4d deviation=%+6.1f%% %s",
			f.ScenarioID, f.Density, f.Weather, f.Target, f.Actual, f.Deviation, status)
	}
	for _, d := range r.Densities {
		log.Infof("density %s: target flow %d veh/h, target %d/scenario, mean actual %.1f, qualified %d/%d (%.1f%%)",
			d.Density, d.TargetFlow, d.Target, d.MeanActual, d.Qualified, d.Total,
			float64(d.Qualified)/float64(d.Total)*100)
	}
}

// WriteFlowReport 以CSV写出场景级验证结果
func WriteFlowReport(w io.Writer, r FlowReport) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"scenario_id", "weather", "density", "target", "actual", "deviation", "status"}); err != nil {
		return err
	}
	for _, f := range r.Scenarios {
		status := "pass"
		if !f.Pass {
			status = "fail"
		}
		if err := cw.Write([]string{
			strconv.Itoa(f.ScenarioID), f.Weather, f.Density,
			strconv.Itoa(f.Target), strconv.Itoa(f.Actual),
			strconv.FormatFloat(f.Deviation, 'f', 2, 64), status,
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
