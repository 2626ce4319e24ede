package config

import (
	"errors"
	"fmt"
	"math"

	"github.com/samber/lo"
	"gopkg.in/yaml.v2"
)

// Default 默认配置
// 功能：返回Town03环岛5天气×5密度（LOS A-E）的采集配置
// 说明：YAML中给出的字段覆盖默认值，列表字段整体替换
func Default() Config {
	return Config{
		Engine: Engine{
			World:           "Town03",
			BlueprintFilter: "vehicle.*",
			Timeout:         10,
		},
		Control: Control{
			FrameRate:    10,
			Duration:     180,
			Warmup:       10,
			SpawnRetries: 30,
			Seed:         42,
		},
		Roundabout: Roundabout{
			OuterRingRadius:  24.8,
			InnerRingRadius:  12.0,
			CollectionRadius: 50.0,
			CoreRadius:       25.0,
			SpawnRadiusMin:   45.0,
			SpawnRadiusMax:   55.0,
		},
		Weathers: []Weather{
			{Name: "ClearNoon", SpeedAdjustment: 0},
			{Name: "WetNoon", SpeedAdjustment: 8},
			{Name: "SoftRainNoon", SpeedAdjustment: 12},
			{Name: "HardRainNoon", SpeedAdjustment: 20},
			{Name: "ClearSunset", SpeedAdjustment: 5},
		},
		Densities: []Density{
			{Name: "very_sparse", LOS: "A", TargetFlow: 300, TargetPassages: 15, SpawnTotal: 18, SpawnPerBatch: 2, BatchInterval: 20},
			{Name: "sparse", LOS: "B", TargetFlow: 500, TargetPassages: 25, SpawnTotal: 30, SpawnPerBatch: 3, BatchInterval: 18},
			{Name: "medium", LOS: "C", TargetFlow: 1000, TargetPassages: 50, SpawnTotal: 55, SpawnPerBatch: 4, BatchInterval: 15},
			{Name: "dense", LOS: "D", TargetFlow: 1300, TargetPassages: 65, SpawnTotal: 65, SpawnPerBatch: 5, BatchInterval: 13},
			{Name: "very_dense", LOS: "E", TargetFlow: 1500, TargetPassages: 75, SpawnTotal: 75, SpawnPerBatch: 6, BatchInterval: 11},
		},
		Behaviors: Behaviors{
			Aggressive: Behavior{SpeedAdjustment: -20, FollowingDistance: 1.5},
			Normal:     Behavior{SpeedAdjustment: 0, FollowingDistance: 2.5},
			Cautious:   Behavior{SpeedAdjustment: 30, FollowingDistance: 4.0},
			RainGap:    0.5,
		},
		Output: Output{
			RawDir:       "data/raw",
			ProcessedDir: "data/processed",
		},
		Dataset: Dataset{
			MinTrackRows:  20,
			MinMeanSpeed:  0.5,
			FlowTolerance: 20,
			Split:         Split{Train: 0.7, Val: 0.15, Test: 0.15, Seed: 42},
		},
	}
}

// Load 解析YAML配置
// 功能：在默认配置的基础上严格解析YAML（未知字段报错），并校验
func Load(data []byte) (Config, error) {
	c := Default()
	if err := yaml.UnmarshalStrict(data, &c); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate 检查配置一致性
func (c Config) Validate() error {
	var errs []error
	if c.Control.FrameRate <= 0 {
		errs = append(errs, fmt.Errorf("control.frame_rate must be positive, got %d", c.Control.FrameRate))
	}
	if c.Control.Duration <= 0 {
		errs = append(errs, fmt.Errorf("control.duration must be positive, got %d", c.Control.Duration))
	}
	if c.Control.Warmup < 0 {
		errs = append(errs, fmt.Errorf("control.warmup must not be negative, got %d", c.Control.Warmup))
	}
	if c.Control.SpawnRetries <= 0 {
		errs = append(errs, fmt.Errorf("control.spawn_retries must be positive, got %d", c.Control.SpawnRetries))
	}
	r := c.Roundabout
	if r.SpawnRadiusMin < 0 || r.SpawnRadiusMin > r.SpawnRadiusMax {
		errs = append(errs, fmt.Errorf("roundabout spawn band [%v, %v] is invalid", r.SpawnRadiusMin, r.SpawnRadiusMax))
	}
	if r.CollectionRadius <= 0 || r.CoreRadius <= 0 {
		errs = append(errs, errors.New("roundabout.collection_radius and roundabout.core_radius must be positive"))
	}
	if len(c.Weathers) == 0 {
		errs = append(errs, errors.New("at least one weather is required"))
	}
	if dup := lo.FindDuplicatesBy(c.Weathers, func(w Weather) string { return w.Name }); len(dup) > 0 {
		errs = append(errs, fmt.Errorf("duplicated weather %q", dup[0].Name))
	}
	if len(c.Densities) == 0 {
		errs = append(errs, errors.New("at least one density is required"))
	}
	if dup := lo.FindDuplicatesBy(c.Densities, func(d Density) string { return d.Name }); len(dup) > 0 {
		errs = append(errs, fmt.Errorf("duplicated density %q", dup[0].Name))
	}
	for _, d := range c.Densities {
		if d.SpawnTotal < 0 || d.SpawnPerBatch <= 0 || d.BatchInterval < 0 {
			errs = append(errs, fmt.Errorf("density %q: spawn_total/spawn_per_batch/batch_interval invalid", d.Name))
		}
	}
	if err := c.Dataset.Split.Check(); err != nil {
		errs = append(errs, err)
	}
	if c.Output.Mongo != nil && (c.Output.Mongo.URI == "" || c.Output.Mongo.DB == "" || c.Output.Mongo.Col == "") {
		errs = append(errs, errors.New("output.mongo requires uri, db and col"))
	}
	return errors.Join(errs...)
}

// Check 检查划分比例之和是否为1
func (s Split) Check() error {
	if s.Train < 0 || s.Val < 0 || s.Test < 0 {
		return fmt.Errorf("split ratios must not be negative: %v/%v/%v", s.Train, s.Val, s.Test)
	}
	if math.Abs(s.Train+s.Val+s.Test-1) >= 1e-6 {
		return fmt.Errorf("split ratios must sum to 1, got %v", s.Train+s.Val+s.Test)
	}
	return nil
}
