package recorder

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v2"
)

// 场景状态
const (
	StatusOK     = "ok"
	StatusEmpty  = "empty"
	StatusFailed = "failed"
)

// ManifestFile 采集清单文件名
const ManifestFile = "manifest.yaml"

// ScenarioEntry 单个场景的采集结果
type ScenarioEntry struct {
	ID             int    `yaml:"id"`
	Weather        string `yaml:"weather"`
	Density        string `yaml:"density"`
	Status         string `yaml:"status"`
	Spawned        int    `yaml:"spawned"`
	SpawnTotal     int    `yaml:"spawn_total"`
	Rows           int    `yaml:"rows"`
	Tracks         int    `yaml:"tracks"`
	CoreTracks     int    `yaml:"core_tracks"`
	TargetPassages int    `yaml:"target_passages"`
	Error          string `yaml:"error,omitempty"`
}

// Manifest 一次采集运行的清单
type Manifest struct {
	RunID      string          `yaml:"run_id"`
	World      string          `yaml:"world"`
	StartedAt  time.Time       `yaml:"started_at"`
	FinishedAt time.Time       `yaml:"finished_at"`
	Successful int             `yaml:"successful"`
	Failed     int             `yaml:"failed"`
	Scenarios  []ScenarioEntry `yaml:"scenarios"`
}

// NewRunID 生成运行编号
func NewRunID() string {
	return uuid.NewString()
}

// WriteManifest 写出清单到dir/manifest.yaml
func WriteManifest(dir string, m Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(dir, ManifestFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// ReadManifest 读取清单
func ReadManifest(dir string) (Manifest, error) {
	var m Manifest
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return m, err
	}
	err = yaml.UnmarshalStrict(data, &m)
	return m, err
}
