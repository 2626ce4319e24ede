package task

import (
	"errors"
	"fmt"

	"github.com/tsinghua-fib-lab/roundabout-sim-oss/dataset"
	"github.com/tsinghua-fib-lab/roundabout-sim-oss/entity"
	"github.com/tsinghua-fib-lab/roundabout-sim-oss/entity/behavior"
	"github.com/tsinghua-fib-lab/roundabout-sim-oss/entity/spawn"
	"github.com/tsinghua-fib-lab/roundabout-sim-oss/utils/config"
	"github.com/tsinghua-fib-lab/roundabout-sim-oss/utils/randengine"
)

// ErrEmptyScenario 场景没有采集到任何数据
var ErrEmptyScenario = errors.New("scenario captured no rows")

// State 场景状态
type State int

const (
	StateIdle State = iota
	StateWarmup
	StateSpawning
	StateObserving
	StateCleanup
	StateDone
)

var stateNames = [...]string{"idle", "warmup", "spawning", "observing", "cleanup", "done"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Scenario 一个采集场景：天气 × 密度
type Scenario struct {
	ID      int
	Weather config.Weather
	Density config.Density
}

func (s Scenario) String() string {
	return fmt.Sprintf("scenario %03d (%s, %s)", s.ID, s.Weather.Name, s.Density.Name)
}

// Scenarios 按配置顺序展开全部场景，天气在外层、密度在内层，编号从0开始
func Scenarios(c config.Config) []Scenario {
	out := make([]Scenario, 0, len(c.Weathers)*len(c.Densities))
	for _, w := range c.Weathers {
		for _, d := range c.Densities {
			out = append(out, Scenario{ID: len(out), Weather: w, Density: d})
		}
	}
	return out
}

// Context 场景上下文
// 功能：保存一个场景运行期间的全部可变状态（被跟踪车辆、车辆→行为映射、已采集的行）
// 说明：每个场景新建一个Context，场景之间不共享任何状态；车辆编号只在本场景内有效
type Context struct {
	scenario Scenario
	state    State
	rng      *randengine.Engine

	tracked   []spawn.TrackedActor
	behaviors map[entity.ActorID]behavior.Class
	rows      []dataset.Row

	spawnResult spawn.BatchResult
	readErrors  int // 观测期读取失败（已跳过）的次数
}

func newContext(scenario Scenario, rng *randengine.Engine) *Context {
	return &Context{
		scenario:  scenario,
		state:     StateIdle,
		rng:       rng,
		behaviors: make(map[entity.ActorID]behavior.Class),
	}
}

// track 记录生成成功的车辆
func (c *Context) track(actors []spawn.TrackedActor) {
	for _, a := range actors {
		c.tracked = append(c.tracked, a)
		c.behaviors[a.ID] = a.Behavior
	}
}

// behaviorOf 车辆的行为类型，未记录的车辆为Unknown
func (c *Context) behaviorOf(id entity.ActorID) behavior.Class {
	return c.behaviors[id]
}

// release 释放场景状态，无论场景是否产生数据都执行
func (c *Context) release() {
	c.tracked = nil
	c.behaviors = make(map[entity.ActorID]behavior.Class)
}

func (c *Context) enter(s State) {
	log.Debugf("%s: %s -> %s", c.scenario, c.state, s)
	c.state = s
}

// table 场景的原始数据表
func (c *Context) table() dataset.Table {
	return dataset.Table{Schema: dataset.SchemaRaw, Rows: c.rows}
}
