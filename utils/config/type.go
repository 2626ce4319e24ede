package config

import "github.com/tsinghua-fib-lab/roundabout-sim-oss/entity"

// Engine 仿真引擎连接配置
type Engine struct {
	Addr            string  `yaml:"addr,omitempty"`             // RPC桥接地址，为空则使用进程内引擎
	World           string  `yaml:"world"`                      // 地图名
	BlueprintFilter string  `yaml:"blueprint_filter,omitempty"` // 车辆蓝图过滤
	Timeout         float64 `yaml:"timeout,omitempty"`          // 单次RPC超时（秒）
}

// Control 采集过程控制
type Control struct {
	FrameRate    int    `yaml:"frame_rate"`    // 每秒步数
	Duration     int    `yaml:"duration"`      // 观测时长（秒）
	Warmup       int    `yaml:"warmup"`        // 预热时长（秒）
	SpawnRetries int    `yaml:"spawn_retries"` // 每辆车的最大尝试次数
	Seed         uint64 `yaml:"seed"`          // 随机种子
}

// Roundabout 环岛几何参数（米）
type Roundabout struct {
	Center           entity.Vector3 `yaml:"center"`
	OuterRingRadius  float64        `yaml:"outer_ring_radius"`
	InnerRingRadius  float64        `yaml:"inner_ring_radius"`
	CollectionRadius float64        `yaml:"collection_radius"` // 数据采集边界
	CoreRadius       float64        `yaml:"core_radius"`       // 核心区，用于统计通过数
	SpawnRadiusMin   float64        `yaml:"spawn_radius_min"`
	SpawnRadiusMax   float64        `yaml:"spawn_radius_max"`
	HeadingTolerance float64        `yaml:"heading_tolerance,omitempty"` // 生成点朝向容差（度），0表示不筛选
}

// Weather 天气预设
type Weather struct {
	Name            string  `yaml:"name"`
	SpeedAdjustment float64 `yaml:"speed_adjustment"` // 速度偏差百分比，叠加到驾驶行为上
}

// Density 交通密度配置，对应一个LOS等级
type Density struct {
	Name           string `yaml:"name"`
	LOS            string `yaml:"los,omitempty"`
	TargetFlow     int    `yaml:"target_flow"`     // veh/h
	TargetPassages int    `yaml:"target_passages"` // 观测期内目标通过核心区车辆数
	SpawnTotal     int    `yaml:"spawn_total"`
	SpawnPerBatch  int    `yaml:"spawn_per_batch"`
	BatchInterval  int    `yaml:"batch_interval"` // 批次间隔（秒）
}

// Behavior 单个驾驶行为类型的参数
type Behavior struct {
	SpeedAdjustment   float64 `yaml:"speed_adjustment"`
	FollowingDistance float64 `yaml:"following_distance"`
}

// Behaviors 混合驾驶行为配置
type Behaviors struct {
	Aggressive Behavior `yaml:"aggressive"`
	Normal     Behavior `yaml:"normal"`
	Cautious   Behavior `yaml:"cautious"`
	RainGap    float64  `yaml:"rain_gap"` // 雨天额外跟车距离
}

// Mongo 原始数据的MongoDB输出
type Mongo struct {
	URI string `yaml:"uri"`
	DB  string `yaml:"db"`
	Col string `yaml:"col"`
}

// Output 输出路径
type Output struct {
	RawDir       string `yaml:"raw_dir"`
	ProcessedDir string `yaml:"processed_dir"`
	SQLite       string `yaml:"sqlite,omitempty"` // 划分结果的SQLite导出路径，为空则不导出
	Mongo        *Mongo `yaml:"mongo,omitempty"`
}

// Split 数据集划分比例
type Split struct {
	Train float64 `yaml:"train"`
	Val   float64 `yaml:"val"`
	Test  float64 `yaml:"test"`
	Seed  uint64  `yaml:"seed"`
}

// Dataset 清洗与划分参数
type Dataset struct {
	MinTrackRows  int     `yaml:"min_track_rows"`
	MinMeanSpeed  float64 `yaml:"min_mean_speed"`
	FlowTolerance float64 `yaml:"flow_tolerance"` // 百分比
	Split         Split   `yaml:"split"`
}

// Config YAML配置文件的根结构
type Config struct {
	Engine     Engine     `yaml:"engine"`
	Control    Control    `yaml:"control"`
	Roundabout Roundabout `yaml:"roundabout"`
	Weathers   []Weather  `yaml:"weathers"`
	Densities  []Density  `yaml:"densities"`
	Behaviors  Behaviors  `yaml:"behaviors"`
	Output     Output     `yaml:"output"`
	Dataset    Dataset    `yaml:"dataset"`
}
