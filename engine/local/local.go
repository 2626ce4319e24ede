// 进程内的环岛运动学引擎，替代外部仿真器用于试运行与端到端测试
package local

import (
	"context"
	"fmt"
	"math"
	"path"
	"sort"
	"sync"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/roundabout-sim-oss/entity"
	"github.com/tsinghua-fib-lab/roundabout-sim-oss/utils/geometry"
	"github.com/tsinghua-fib-lab/roundabout-sim-oss/utils/randengine"
)

var log = logrus.WithField("module", "local-engine")

// Options 引擎参数
type Options struct {
	Center      entity.Vector3
	RingRadius  float64 // 环道行驶半径
	EntryRadius float64 // 入口生成点半径
	ExitRadius  float64 // 超过该半径的车辆离开仿真区域
	NumEntries  int     // 入口数量
	BaseSpeed   float64 // 基准速度（m/s）
	MaxAccel    float64 // 最大加/减速度（m/s^2）
	MinSpawnGap float64 // 生成点被占用判定距离
	RejectRate  float64 // 生成随机失败的概率
	Blueprints  []string
	Seed        uint64
}

// DefaultOptions 与Town03环岛尺寸相当的默认参数
func DefaultOptions() Options {
	return Options{
		RingRadius:  18,
		EntryRadius: 50,
		ExitRadius:  70,
		NumEntries:  4,
		BaseSpeed:   8,
		MaxAccel:    2,
		MinSpawnGap: 6,
		RejectRate:  0.1,
		Blueprints: []string{
			"vehicle.audi.a2",
			"vehicle.audi.tt",
			"vehicle.lincoln.mkz_2020",
			"vehicle.nissan.micra",
			"vehicle.tesla.model3",
			"vehicle.toyota.prius",
		},
		Seed: 1,
	}
}

type phase int

const (
	approaching phase = iota
	circulating
	exiting
)

type actor struct {
	id        entity.ActorID
	blueprint string
	pos       entity.Vector3
	yaw       float64 // 弧度
	speed     float64
	vel       entity.Vector3
	acc       entity.Vector3
	autopilot bool
	params    entity.BehaviorParams

	phase     phase
	ringAngle float64 // 环道上的当前角度
	travelled float64 // 在环道上已转过的角度
	exitAfter float64 // 转过该角度后驶出
}

// Engine 进程内引擎
// 说明：实现entity.IEngine，并发安全（可通过remote.NewHandler对外提供服务）
type Engine struct {
	mu   sync.Mutex
	opts Options
	rng  *randengine.Engine

	world      string
	weather    string
	sync       bool
	dt         float64
	step       int64
	nextID     entity.ActorID
	actors     map[entity.ActorID]*actor
	candidates []entity.Pose
}

// New 创建进程内引擎
func New(opts Options) *Engine {
	e := &Engine{
		opts:   opts,
		rng:    randengine.New(opts.Seed),
		dt:     0.1,
		nextID: 1,
		actors: make(map[entity.ActorID]*actor),
	}
	e.candidates = e.buildCandidates()
	return e
}

// buildCandidates 生成候选点：每个入口一个驶入点、一个驶出点，以及仿真区域外的远端点
func (e *Engine) buildCandidates() []entity.Pose {
	o := e.opts
	out := make([]entity.Pose, 0, o.NumEntries*3)
	for k := range o.NumEntries {
		theta := 2 * math.Pi * float64(k) / float64(o.NumEntries)
		deg := theta * 180 / math.Pi
		cos, sin := math.Cos(theta), math.Sin(theta)
		// 驶入：朝向中心
		out = append(out, entity.Pose{
			Location: entity.Vector3{X: o.Center.X + o.EntryRadius*cos, Y: o.Center.Y + o.EntryRadius*sin},
			Yaw:      math.Mod(deg+180, 360),
		})
		// 驶出车道：右侧偏移3.5米，朝外
		out = append(out, entity.Pose{
			Location: entity.Vector3{X: o.Center.X + o.EntryRadius*cos + 3.5*sin, Y: o.Center.Y + o.EntryRadius*sin - 3.5*cos},
			Yaw:      deg,
		})
		// 远端
		out = append(out, entity.Pose{
			Location: entity.Vector3{X: o.Center.X + 2*o.ExitRadius*cos, Y: o.Center.Y + 2*o.ExitRadius*sin},
			Yaw:      math.Mod(deg+180, 360),
		})
	}
	return out
}

func (e *Engine) LoadWorld(_ context.Context, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.world = name
	e.actors = make(map[entity.ActorID]*actor)
	e.step = 0
	log.Infof("world %s loaded with %d spawn candidates", name, len(e.candidates))
	return nil
}

func (e *Engine) SetSyncMode(_ context.Context, enabled bool, fixedDelta float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sync = enabled
	if enabled {
		if fixedDelta <= 0 {
			return fmt.Errorf("fixed delta must be positive, got %v", fixedDelta)
		}
		e.dt = fixedDelta
	}
	return nil
}

func (e *Engine) SetWeather(_ context.Context, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.weather = name
	return nil
}

// Weather 当前天气
func (e *Engine) Weather() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.weather
}

// Step 已推进的步数
func (e *Engine) Step() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.step
}

// NumActors 当前存活的车辆数
func (e *Engine) NumActors() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.actors)
}

func (e *Engine) SpawnCandidates(context.Context) ([]entity.Pose, error) {
	return lo.Map(e.candidates, func(p entity.Pose, _ int) entity.Pose { return p }), nil
}

func (e *Engine) Blueprints(_ context.Context, filter string) ([]string, error) {
	if filter == "" {
		filter = "*"
	}
	var out []string
	for _, bp := range e.opts.Blueprints {
		ok, err := path.Match(filter, bp)
		if err != nil {
			return nil, fmt.Errorf("bad blueprint filter %q: %w", filter, err)
		}
		if ok {
			out = append(out, bp)
		}
	}
	return out, nil
}

func (e *Engine) Spawn(_ context.Context, blueprint string, pose entity.Pose) (entity.ActorID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !lo.Contains(e.opts.Blueprints, blueprint) {
		return 0, fmt.Errorf("unknown blueprint %q", blueprint)
	}
	for _, a := range e.actors {
		if math.Hypot(a.pos.X-pose.Location.X, a.pos.Y-pose.Location.Y) < e.opts.MinSpawnGap {
			return 0, fmt.Errorf("%w: spawn point occupied by actor %d", entity.ErrSpawnRejected, a.id)
		}
	}
	if e.rng.PTrue(e.opts.RejectRate) {
		return 0, fmt.Errorf("%w: collision at spawn point", entity.ErrSpawnRejected)
	}
	a := &actor{
		id:        e.nextID,
		blueprint: blueprint,
		pos:       pose.Location,
		yaw:       pose.Yaw * math.Pi / 180,
		exitAfter: math.Pi/2 + e.rng.Float64()*math.Pi,
	}
	// 朝外的车辆直接驶离
	if geometry.HeadingOffset(pose, e.opts.Center) > math.Pi/2 {
		a.phase = exiting
	}
	e.nextID++
	e.actors[a.id] = a
	return a.id, nil
}

func (e *Engine) get(id entity.ActorID) (*actor, error) {
	a, ok := e.actors[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", entity.ErrActorGone, id)
	}
	return a, nil
}

func (e *Engine) SetAutopilot(_ context.Context, id entity.ActorID, enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	a, err := e.get(id)
	if err != nil {
		return err
	}
	a.autopilot = enabled
	return nil
}

func (e *Engine) SetBehaviorParams(_ context.Context, id entity.ActorID, params entity.BehaviorParams) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	a, err := e.get(id)
	if err != nil {
		return err
	}
	a.params = params
	return nil
}

func (e *Engine) Destroy(_ context.Context, id entity.ActorID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.get(id); err != nil {
		return err
	}
	delete(e.actors, id)
	return nil
}

func (e *Engine) ReadState(_ context.Context, id entity.ActorID) (entity.ActorState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	a, err := e.get(id)
	if err != nil {
		return entity.ActorState{}, err
	}
	return entity.ActorState{
		Pose:         entity.Pose{Location: a.pos, Yaw: a.yaw * 180 / math.Pi},
		Velocity:     a.vel,
		Acceleration: a.acc,
	}, nil
}

// AdvanceTick 推进一步
// 算法说明：
// 1. 按ID顺序更新所有自动驾驶车辆，保证结果确定
// 2. 目标速度 = 基准速度 × (1 - speed_bias/100)，前方跟车距离不足时目标速度为0
// 3. 按阶段移动：驶入（朝中心直行）→ 环行（逆时针）→ 驶出（背离中心直行）
// 4. 超出ExitRadius的车辆被移除
func (e *Engine) AdvanceTick(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.step++
	ids := lo.Keys(e.actors)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		a := e.actors[id]
		if !a.autopilot {
			continue
		}
		e.move(a)
		if r, _ := geometry.RelativePolar(a.pos, e.opts.Center); r > e.opts.ExitRadius {
			delete(e.actors, id)
		}
	}
	return nil
}

func (e *Engine) move(a *actor) {
	o := e.opts
	target := max(o.BaseSpeed*(1-a.params.SpeedBias/100), 0.5)
	if e.blocked(a) {
		target = 0
	}
	oldVel := a.vel
	dv := math.Max(-o.MaxAccel*e.dt, math.Min(o.MaxAccel*e.dt, target-a.speed))
	a.speed = math.Max(a.speed+dv, 0)
	ds := a.speed * e.dt

	switch a.phase {
	case approaching:
		a.pos.X += ds * math.Cos(a.yaw)
		a.pos.Y += ds * math.Sin(a.yaw)
		if r, angle := geometry.RelativePolar(a.pos, o.Center); r <= o.RingRadius {
			a.phase = circulating
			a.ringAngle = angle
		}
	case circulating:
		dTheta := ds / o.RingRadius
		a.ringAngle += dTheta
		a.travelled += dTheta
		a.pos.X = o.Center.X + o.RingRadius*math.Cos(a.ringAngle)
		a.pos.Y = o.Center.Y + o.RingRadius*math.Sin(a.ringAngle)
		a.yaw = a.ringAngle + math.Pi/2
		if a.travelled >= a.exitAfter {
			a.phase = exiting
			a.yaw = a.ringAngle
		}
	case exiting:
		a.pos.X += ds * math.Cos(a.yaw)
		a.pos.Y += ds * math.Sin(a.yaw)
	}
	a.vel = entity.Vector3{X: a.speed * math.Cos(a.yaw), Y: a.speed * math.Sin(a.yaw)}
	a.acc = entity.Vector3{X: (a.vel.X - oldVel.X) / e.dt, Y: (a.vel.Y - oldVel.Y) / e.dt}
}

// blocked 前方（朝向±30度内）跟车距离内是否有同向行驶的其他车辆
func (e *Engine) blocked(a *actor) bool {
	gap := a.params.FollowingGap + 4
	for _, b := range e.actors {
		if b == a || geometry.AngleDiff(a.yaw, b.yaw) >= math.Pi/2 {
			continue
		}
		dx, dy := b.pos.X-a.pos.X, b.pos.Y-a.pos.Y
		d := math.Hypot(dx, dy)
		if d == 0 || d > gap {
			continue
		}
		if geometry.AngleDiff(math.Atan2(dy, dx), a.yaw) < math.Pi/6 {
			return true
		}
	}
	return false
}
