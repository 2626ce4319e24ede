package dataset

import (
	"sort"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/stat"
)

// GroupStat 按某一标签分组的统计
type GroupStat struct {
	Name      string
	Rows      int
	Tracks    int
	MeanSpeed float64
}

// Analysis 数据表概况
type Analysis struct {
	Rows       int
	Tracks     int
	Scenarios  int
	MeanSpeed  float64
	MeanRadius float64
	Weather    []GroupStat
	Density    []GroupStat
	Behavior   []GroupStat
}

func meanOf(rows []Row, f func(Row) float64) float64 {
	if len(rows) == 0 {
		return 0
	}
	return stat.Mean(lo.Map(rows, func(r Row, _ int) float64 { return f(r) }), nil)
}

func groupStats(rows []Row, label func(Row) string, order []string) []GroupStat {
	groups := lo.GroupBy(rows, label)
	names := lo.Keys(groups)
	sort.Strings(names)
	if len(order) > 0 {
		// 按给定顺序排列，未列出的名称按字母序追加在后
		listed := lo.Filter(order, func(n string, _ int) bool {
			_, ok := groups[n]
			return ok
		})
		names = append(listed, lo.Without(names, order...)...)
	}
	return lo.Map(names, func(name string, _ int) GroupStat {
		g := groups[name]
		return GroupStat{
			Name:      name,
			Rows:      len(g),
			Tracks:    Table{Rows: g}.NumTracks(),
			MeanSpeed: meanOf(g, func(r Row) float64 { return r.Speed }),
		}
	})
}

// Analyze 统计数据表概况
// 参数：densityOrder-密度的展示顺序（通常为配置顺序），为空时按字母序
func Analyze(t Table, densityOrder []string) Analysis {
	return Analysis{
		Rows:       len(t.Rows),
		Tracks:     t.NumTracks(),
		Scenarios:  len(lo.Uniq(lo.Map(t.Rows, func(r Row, _ int) int { return r.ScenarioID }))),
		MeanSpeed:  meanOf(t.Rows, func(r Row) float64 { return r.Speed }),
		MeanRadius: meanOf(t.Rows, func(r Row) float64 { return r.Radius }),
		Weather:    groupStats(t.Rows, func(r Row) string { return r.Weather }, nil),
		Density:    groupStats(t.Rows, func(r Row) string { return r.TrafficDensity }, densityOrder),
		Behavior:   groupStats(t.Rows, func(r Row) string { return r.BehaviorType }, nil),
	}
}

// Log 输出概况
func (a Analysis) Log(title string) {
	log.Infof("%s: %d rows, %d tracks, %d scenarios, mean speed %.2f m/s (%.1f km/h), mean radius %.2f m",
		title, a.Rows, a.Tracks, a.Scenarios, a.MeanSpeed, a.MeanSpeed*3.6, a.MeanRadius)
	for _, g := range a.Weather {
		log.Infof("  weather %-20s %7d rows %4d tracks", g.Name, g.Rows, g.Tracks)
	}
	for _, g := range a.Density {
		log.Infof("  density %-12s %7d rows %4d tracks", g.Name, g.Rows, g.Tracks)
	}
	for _, g := range a.Behavior {
		log.Infof("  behavior %-10s %7d rows %4d tracks %.2f m/s", g.Name, g.Rows, g.Tracks, g.MeanSpeed)
	}
}
