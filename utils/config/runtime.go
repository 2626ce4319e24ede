package config

// RuntimeConfig 运行时配置
// 说明：只读，整个运行期间共享
type RuntimeConfig struct {
	All Config
	C   Control
}

// NewRuntimeConfig 根据配置构建运行时配置
func NewRuntimeConfig(config Config) *RuntimeConfig {
	return &RuntimeConfig{
		All: config,
		C:   config.Control,
	}
}

// TotalScenarios 场景总数 = 天气数 × 密度数
func (rc *RuntimeConfig) TotalScenarios() int {
	return len(rc.All.Weathers) * len(rc.All.Densities)
}
