// 原始数据输出：每个场景采集结束后写出一次，写出后不再修改
package recorder

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/roundabout-sim-oss/dataset"
)

var log = logrus.WithField("module", "recorder")

// Sink 场景数据的输出目标
type Sink interface {
	// Write 写出一个场景的全部行
	Write(ctx context.Context, scenario int, t dataset.Table) error
	// Close 释放资源
	Close(ctx context.Context) error
}

// CSVSink 每个场景一个CSV文件：dir/scenario_%03d.csv
type CSVSink struct {
	Dir string
}

func NewCSVSink(dir string) *CSVSink {
	return &CSVSink{Dir: dir}
}

func (s *CSVSink) Write(_ context.Context, scenario int, t dataset.Table) error {
	path := dataset.ScenarioFile(s.Dir, scenario)
	if err := dataset.WriteFile(path, t); err != nil {
		return err
	}
	log.Infof("saved %s: %d rows", path, len(t.Rows))
	return nil
}

func (s *CSVSink) Close(context.Context) error {
	return nil
}

// MultiSink 依次写入多个输出目标
// 说明：某个目标失败不影响其余目标，错误合并后返回
type MultiSink []Sink

func (m MultiSink) Write(ctx context.Context, scenario int, t dataset.Table) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, scenario, t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiSink) Close(ctx context.Context) error {
	var errs []error
	for _, s := range m {
		if err := s.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
