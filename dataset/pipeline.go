package dataset

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/roundabout-sim-oss/utils/config"
)

// 处理后数据的文件名
const (
	MergedFile     = "carla_round_all.csv"
	FlowReportFile = "flow_validation_report.csv"
)

// SplitFile 划分文件路径
func SplitFile(dir string, name SplitName) string {
	return filepath.Join(dir, string(name)+".csv")
}

// RunClean 合并、验证、清洗
// 功能：读取全部场景原始文件 → 流量验证（写出报告） → 清洗 → 写出合并表
// 返回：清洗后的表；没有任何输入文件时返回ErrNoInput
func RunClean(ctx context.Context, c config.Config, scenarios int) (Table, error) {
	merged, err := LoadScenarios(ctx, c.Output.RawDir, scenarios)
	if err != nil {
		return Table{}, err
	}

	flow := VerifyFlow(merged, FlowOptions{
		CoreRadius: c.Roundabout.CoreRadius,
		Tolerance:  c.Dataset.FlowTolerance,
		Densities:  c.Densities,
	})
	flow.Log()
	if err := writeFlowReport(filepath.Join(c.Output.ProcessedDir, FlowReportFile), flow); err != nil {
		return Table{}, err
	}

	cleaned, report := Clean(merged, CleanOptions{
		CollectionRadius: c.Roundabout.CollectionRadius,
		MinTrackRows:     c.Dataset.MinTrackRows,
		MinMeanSpeed:     c.Dataset.MinMeanSpeed,
	})
	for i, p := range report.Passes {
		log.Infof("[%d/%d] %s", i+1, len(report.Passes), p)
	}
	log.Infof("rows %d -> %d, tracks %d -> %d",
		len(merged.Rows), len(cleaned.Rows), merged.NumTracks(), cleaned.NumTracks())

	Analyze(cleaned, lo.Map(c.Densities, func(d config.Density, _ int) string { return d.Name })).Log("cleaned")

	out := filepath.Join(c.Output.ProcessedDir, MergedFile)
	if err := WriteFile(out, cleaned); err != nil {
		return Table{}, err
	}
	log.Infof("saved %s", out)
	return cleaned, nil
}

func writeFlowReport(path string, r FlowReport) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteFlowReport(f, r); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// RunSplit 划分数据集
// 功能：读取清洗后的合并表 → 按轨迹划分 → 写出train/val/test，配置了SQLite路径时同时导出
func RunSplit(ctx context.Context, c config.Config) (Splits, error) {
	in := filepath.Join(c.Output.ProcessedDir, MergedFile)
	t, err := ReadFile(in)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Splits{}, fmt.Errorf("%w: %s (run the clean stage first)", ErrNoInput, in)
		}
		return Splits{}, err
	}
	log.Infof("loaded %s: %d rows, %d tracks", in, len(t.Rows), t.NumTracks())

	s, err := Split(t, c.Dataset.Split)
	if err != nil {
		return Splits{}, err
	}
	for _, name := range SplitNames {
		Analyze(s.Tables[name], nil).Log(string(name))
		path := SplitFile(c.Output.ProcessedDir, name)
		if err := WriteFile(path, s.Tables[name]); err != nil {
			return Splits{}, err
		}
		log.Infof("saved %s", path)
	}

	if c.Output.SQLite != "" {
		db, err := OpenDB(c.Output.SQLite)
		if err != nil {
			return Splits{}, fmt.Errorf("open %s: %w", c.Output.SQLite, err)
		}
		defer db.Close()
		if err := db.ReplaceSplits(ctx, s); err != nil {
			return Splits{}, fmt.Errorf("export %s: %w", c.Output.SQLite, err)
		}
		counts, err := db.CountBySplit(ctx)
		if err != nil {
			return Splits{}, err
		}
		log.Infof("exported splits to %s: %v", c.Output.SQLite, counts)
	}
	return s, nil
}
