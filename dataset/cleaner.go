package dataset

import (
	"fmt"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/stat"
)

// CleanOptions 清洗阈值
type CleanOptions struct {
	CollectionRadius float64 // 超出该半径的行被丢弃
	MinTrackRows     int     // 行数少于该值的轨迹被整条丢弃
	MinMeanSpeed     float64 // 平均速度低于该值的轨迹被整条丢弃
}

// PassReport 单个清洗步骤的统计
type PassReport struct {
	Name         string
	RowsBefore   int
	RowsAfter    int
	TracksBefore int
	TracksAfter  int
}

func (p PassReport) RowsRemoved() int   { return p.RowsBefore - p.RowsAfter }
func (p PassReport) TracksRemoved() int { return p.TracksBefore - p.TracksAfter }

func (p PassReport) String() string {
	return fmt.Sprintf("%s: rows %d -> %d (-%d), tracks %d -> %d (-%d)",
		p.Name, p.RowsBefore, p.RowsAfter, p.RowsRemoved(), p.TracksBefore, p.TracksAfter, p.TracksRemoved())
}

// CleanReport 清洗统计，按执行顺序
type CleanReport struct {
	Passes []PassReport
}

// Removed 全部步骤合计移除的行数与轨迹数
func (r CleanReport) Removed() (rows, tracks int) {
	for _, p := range r.Passes {
		rows += p.RowsRemoved()
		tracks += p.TracksRemoved()
	}
	return
}

type cleanPass struct {
	name  string
	apply func(rows []Row) []Row
}

// Clean 清洗数据表
// 功能：依次执行以下步骤，每一步只在上一步的输出上收窄，不会重新接纳已丢弃的行或轨迹
//  1. 丢弃半径超出采集范围的行
//  2. 丢弃行数不足的轨迹
//  3. 丢弃平均速度过低（静止/停放）的轨迹
//  4. 按(scenario_id, track_id)首次出现顺序重新编号，原始编号保存在original_track_id
//
// 返回：清洗后的表（SchemaCleaned）与逐步统计
// 算法说明：对已清洗的表再次执行结果不变。输入已带有original_track_id时保留原值，
// 而已清洗表的编号本身就是按首次出现顺序的稠密编号，重新编号得到相同结果
func Clean(t Table, opts CleanOptions) (Table, CleanReport) {
	passes := []cleanPass{
		{name: "collection radius", apply: func(rows []Row) []Row {
			return lo.Filter(rows, func(r Row, _ int) bool { return r.Radius <= opts.CollectionRadius })
		}},
		{name: "short tracks", apply: func(rows []Row) []Row {
			counts := lo.CountValuesBy(rows, Row.Key)
			return lo.Filter(rows, func(r Row, _ int) bool { return counts[r.Key()] >= opts.MinTrackRows })
		}},
		{name: "stationary tracks", apply: func(rows []Row) []Row {
			speeds := make(map[TrackKey][]float64)
			for _, r := range rows {
				speeds[r.Key()] = append(speeds[r.Key()], r.Speed)
			}
			means := lo.MapValues(speeds, func(s []float64, _ TrackKey) float64 { return stat.Mean(s, nil) })
			return lo.Filter(rows, func(r Row, _ int) bool { return means[r.Key()] >= opts.MinMeanSpeed })
		}},
		{name: "reassign track id", apply: func(rows []Row) []Row {
			return reassign(rows, t.Schema >= SchemaCleaned)
		}},
	}

	report := CleanReport{}
	rows := t.Rows
	for _, p := range passes {
		before := Table{Rows: rows}
		rows = p.apply(rows)
		after := Table{Rows: rows}
		pr := PassReport{
			Name:         p.name,
			RowsBefore:   len(before.Rows),
			RowsAfter:    len(after.Rows),
			TracksBefore: before.NumTracks(),
			TracksAfter:  after.NumTracks(),
		}
		log.Debug(pr.String())
		report.Passes = append(report.Passes, pr)
	}
	return Table{Schema: SchemaCleaned, Rows: rows}, report
}

// reassign 全局稠密编号
// 说明：编号键为(scenario_id, track_id)，原始编号只在场景内唯一
func reassign(rows []Row, keepOriginal bool) []Row {
	ids := make(map[TrackKey]int64)
	out := make([]Row, len(rows))
	for i, r := range rows {
		k := r.Key()
		id, ok := ids[k]
		if !ok {
			id = int64(len(ids))
			ids[k] = id
		}
		if !keepOriginal {
			r.OriginalTrackID = r.TrackID
		}
		r.TrackID = id
		out[i] = r
	}
	return out
}
