// 轨迹数据表：采集、合并、清洗、划分四个阶段共用的行结构与CSV读写
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/samber/lo"
)

// Schema 数据表所处的阶段，决定CSV包含哪些列
type Schema int

const (
	SchemaRaw     Schema = iota // 单场景原始数据
	SchemaMerged                // 合并后，增加scenario_id
	SchemaCleaned               // 清洗后，再增加original_track_id
)

var rawColumns = []string{
	"tick", "track_id", "x", "y", "z", "vx", "vy", "speed", "ax", "ay", "accel",
	"heading", "radius", "angle", "weather", "traffic_density", "behavior_type",
}

// Columns 该阶段CSV的列名（顺序即写出顺序）
func (s Schema) Columns() []string {
	cols := append([]string{}, rawColumns...)
	if s >= SchemaMerged {
		cols = append(cols, "scenario_id")
	}
	if s >= SchemaCleaned {
		cols = append(cols, "original_track_id")
	}
	return cols
}

func (s Schema) String() string {
	switch s {
	case SchemaRaw:
		return "raw"
	case SchemaMerged:
		return "merged"
	case SchemaCleaned:
		return "cleaned"
	}
	return fmt.Sprintf("Schema(%d)", int(s))
}

// Row 一个tick内一辆车的观测
type Row struct {
	Tick    int64
	TrackID int64

	X, Y, Z float64
	VX, VY  float64
	Speed   float64
	AX, AY  float64
	Accel   float64
	Heading float64 // 弧度
	Radius  float64 // 到环岛中心的距离
	Angle   float64 // 相对环岛中心的方位角，弧度，(−π, π]

	Weather        string
	TrafficDensity string
	BehaviorType   string

	ScenarioID      int
	OriginalTrackID int64
}

// TrackKey 轨迹身份：原始track_id只在场景内唯一，跨场景必须带上scenario_id
type TrackKey struct {
	Scenario int
	Track    int64
}

func (k TrackKey) String() string {
	return fmt.Sprintf("%d_%d", k.Scenario, k.Track)
}

// Key 行所属的轨迹
func (r Row) Key() TrackKey {
	return TrackKey{Scenario: r.ScenarioID, Track: r.TrackID}
}

// Table 带阶段信息的数据表
type Table struct {
	Schema Schema
	Rows   []Row
}

// Tracks 按首次出现顺序返回表中的轨迹
func (t Table) Tracks() []TrackKey {
	return lo.Uniq(lo.Map(t.Rows, func(r Row, _ int) TrackKey { return r.Key() }))
}

// NumTracks 轨迹数
func (t Table) NumTracks() int {
	return len(t.Tracks())
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (r Row) record(s Schema) []string {
	rec := []string{
		strconv.FormatInt(r.Tick, 10),
		strconv.FormatInt(r.TrackID, 10),
		formatFloat(r.X), formatFloat(r.Y), formatFloat(r.Z),
		formatFloat(r.VX), formatFloat(r.VY), formatFloat(r.Speed),
		formatFloat(r.AX), formatFloat(r.AY), formatFloat(r.Accel),
		formatFloat(r.Heading), formatFloat(r.Radius), formatFloat(r.Angle),
		r.Weather, r.TrafficDensity, r.BehaviorType,
	}
	if s >= SchemaMerged {
		rec = append(rec, strconv.Itoa(r.ScenarioID))
	}
	if s >= SchemaCleaned {
		rec = append(rec, strconv.FormatInt(r.OriginalTrackID, 10))
	}
	return rec
}

// WriteCSV 以表头+逐行的形式写出数据表
func WriteCSV(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Schema.Columns()); err != nil {
		return err
	}
	for _, r := range t.Rows {
		if err := cw.Write(r.record(t.Schema)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile 写出数据表到文件，自动创建目录
func WriteFile(path string, t Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteCSV(f, t); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// ReadCSV 读取数据表
// 功能：按表头列名解析（列顺序无关），根据是否存在scenario_id/original_track_id判断阶段
// 返回：缺少原始列或数值无法解析时返回错误
func ReadCSV(r io.Reader) (Table, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Table{}, errors.New("empty csv: missing header")
		}
		return Table{}, err
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[name] = i
	}
	for _, col := range rawColumns {
		if _, ok := index[col]; !ok {
			return Table{}, fmt.Errorf("missing column %q", col)
		}
	}
	t := Table{Schema: SchemaRaw}
	if _, ok := index["scenario_id"]; ok {
		t.Schema = SchemaMerged
		if _, ok := index["original_track_id"]; ok {
			t.Schema = SchemaCleaned
		}
	}
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Table{}, err
		}
		line++
		row, err := parseRow(rec, index, t.Schema)
		if err != nil {
			return Table{}, fmt.Errorf("line %d: %w", line, err)
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// ReadFile 从文件读取数据表
func ReadFile(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return Table{}, err
	}
	defer f.Close()
	t, err := ReadCSV(f)
	if err != nil {
		return Table{}, fmt.Errorf("read %s: %w", path, err)
	}
	return t, nil
}

type rowParser struct {
	rec   []string
	index map[string]int
	err   error
}

func (p *rowParser) float(col string) float64 {
	if p.err != nil {
		return 0
	}
	v, err := strconv.ParseFloat(p.rec[p.index[col]], 64)
	if err != nil {
		p.err = fmt.Errorf("column %s: %w", col, err)
	}
	return v
}

func (p *rowParser) integer(col string) int64 {
	if p.err != nil {
		return 0
	}
	s := p.rec[p.index[col]]
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		// 兼容写成浮点的整数列，如"12.0"
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || f != float64(int64(f)) {
			p.err = fmt.Errorf("column %s: %w", col, err)
			return 0
		}
		v = int64(f)
	}
	return v
}

func (p *rowParser) str(col string) string {
	return p.rec[p.index[col]]
}

func parseRow(rec []string, index map[string]int, s Schema) (Row, error) {
	p := &rowParser{rec: rec, index: index}
	r := Row{
		Tick:           p.integer("tick"),
		TrackID:        p.integer("track_id"),
		X:              p.float("x"),
		Y:              p.float("y"),
		Z:              p.float("z"),
		VX:             p.float("vx"),
		VY:             p.float("vy"),
		Speed:          p.float("speed"),
		AX:             p.float("ax"),
		AY:             p.float("ay"),
		Accel:          p.float("accel"),
		Heading:        p.float("heading"),
		Radius:         p.float("radius"),
		Angle:          p.float("angle"),
		Weather:        p.str("weather"),
		TrafficDensity: p.str("traffic_density"),
		BehaviorType:   p.str("behavior_type"),
	}
	if s >= SchemaMerged {
		r.ScenarioID = int(p.integer("scenario_id"))
	}
	if s >= SchemaCleaned {
		r.OriginalTrackID = p.integer("original_track_id")
	}
	return r, p.err
}
