package dataset

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ScenarioFile 场景原始数据文件名
func ScenarioFile(dir string, scenario int) string {
	return filepath.Join(dir, fmt.Sprintf("scenario_%03d.csv", scenario))
}

// LoadScenarios 并发读取全部场景文件并按场景编号顺序合并
// 功能：读取dir下scenario_000.csv ~ scenario_{n-1}.csv，为每行打上scenario_id
// 返回：合并表（SchemaMerged）；缺失的文件记录日志后跳过，全部缺失时返回ErrNoInput，
// 任一文件解析失败则整体失败
func LoadScenarios(ctx context.Context, dir string, n int) (Table, error) {
	tables := make([]*Table, n)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i := range n {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			path := ScenarioFile(dir, i)
			t, err := ReadFile(path)
			if errors.Is(err, fs.ErrNotExist) {
				log.Warnf("%s: not found", path)
				return nil
			}
			if err != nil {
				return err
			}
			tables[i] = &t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Table{}, err
	}

	merged := Table{Schema: SchemaMerged}
	for i, t := range tables {
		if t == nil {
			continue
		}
		log.Infof("scenario_%03d.csv: %d rows, %d tracks", i, len(t.Rows), t.NumTracks())
		for _, r := range t.Rows {
			r.ScenarioID = i
			merged.Rows = append(merged.Rows, r)
		}
	}
	if len(merged.Rows) == 0 {
		return Table{}, fmt.Errorf("%w: no scenario files under %s", ErrNoInput, dir)
	}
	log.Infof("loaded %d rows from %s", len(merged.Rows), dir)
	return merged, nil
}
