package dataset

import (
	"errors"
	"fmt"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/roundabout-sim-oss/utils/config"
	"github.com/tsinghua-fib-lab/roundabout-sim-oss/utils/randengine"
)

var (
	ErrInvalidRatios = errors.New("invalid split ratios")
	ErrNoInput       = errors.New("no input data")
)

// SplitName 划分名称
type SplitName string

const (
	SplitTrain SplitName = "train"
	SplitVal   SplitName = "val"
	SplitTest  SplitName = "test"
)

// SplitNames 写出顺序
var SplitNames = []SplitName{SplitTrain, SplitVal, SplitTest}

// Splits 划分结果
type Splits struct {
	Tables map[SplitName]Table
	Tracks map[SplitName][]TrackKey
}

// Of 轨迹所属的划分
func (s Splits) Of(k TrackKey) (SplitName, bool) {
	for _, name := range SplitNames {
		if lo.Contains(s.Tracks[name], k) {
			return name, true
		}
	}
	return "", false
}

// Split 按轨迹划分训练/验证/测试集
// 功能：将表中按首次出现顺序得到的轨迹集合在给定种子下打乱，再按累计比例切分，同一轨迹的所有行落入同一划分
// 参数：t-清洗后的数据表，ratios-三个比例与种子
// 返回：比例为负或之和偏离1超过1e-6时返回ErrInvalidRatios
// 算法说明：train_end = ⌊n·train⌋，val_end = train_end + ⌊n·val⌋，其余归入测试集
func Split(t Table, ratios config.Split) (Splits, error) {
	if err := ratios.Check(); err != nil {
		return Splits{}, fmt.Errorf("%w: %v", ErrInvalidRatios, err)
	}
	tracks := randengine.Shuffled(randengine.New(ratios.Seed), t.Tracks())
	n := len(tracks)
	trainEnd := int(float64(n) * ratios.Train)
	valEnd := trainEnd + int(float64(n)*ratios.Val)
	valEnd = min(valEnd, n)

	s := Splits{
		Tables: make(map[SplitName]Table, len(SplitNames)),
		Tracks: map[SplitName][]TrackKey{
			SplitTrain: tracks[:trainEnd],
			SplitVal:   tracks[trainEnd:valEnd],
			SplitTest:  tracks[valEnd:],
		},
	}
	assigned := make(map[TrackKey]SplitName, n)
	for _, name := range SplitNames {
		for _, k := range s.Tracks[name] {
			assigned[k] = name
		}
	}
	grouped := lo.GroupBy(t.Rows, func(r Row) SplitName { return assigned[r.Key()] })
	for _, name := range SplitNames {
		s.Tables[name] = Table{Schema: t.Schema, Rows: grouped[name]}
	}
	for _, name := range SplitNames {
		log.Infof("%s: %d tracks (%.1f%%), %d rows", name, len(s.Tracks[name]),
			percent(len(s.Tracks[name]), n), len(s.Tables[name].Rows))
	}
	return s, nil
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}
