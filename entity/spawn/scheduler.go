package spawn

import (
	"context"
	"errors"
	"fmt"

	"github.com/tsinghua-fib-lab/roundabout-sim-oss/entity"
	"github.com/tsinghua-fib-lab/roundabout-sim-oss/entity/behavior"
	"github.com/tsinghua-fib-lab/roundabout-sim-oss/utils/randengine"
)

var (
	ErrNoSpawnPoints = errors.New("no spawn points available")
	ErrNoBlueprints  = errors.New("no vehicle blueprints available")
	ErrNoLabels      = errors.New("empty behavior label stream")
)

// ISpawner 生成车辆所需的引擎能力
type ISpawner interface {
	Spawn(ctx context.Context, blueprint string, pose entity.Pose) (entity.ActorID, error)
	SetAutopilot(ctx context.Context, id entity.ActorID, enabled bool) error
	SetBehaviorParams(ctx context.Context, id entity.ActorID, params entity.BehaviorParams) error
	Destroy(ctx context.Context, id entity.ActorID) error
}

// IParamsTable 行为参数查询
type IParamsTable interface {
	ParamsFor(class behavior.Class, weather string) entity.BehaviorParams
}

// TrackedActor 已生成并被跟踪的车辆
// 说明：ID只在当前场景内有效
type TrackedActor struct {
	ID        entity.ActorID
	Behavior  behavior.Class
	Blueprint string
	Spawn     entity.SpawnPoint
}

// Request 单批生成请求
type Request struct {
	Target     int                 // 目标车辆数
	Points     []entity.SpawnPoint // 候选生成点（非空）
	Blueprints []string            // 车辆蓝图（非空）
	Labels     []behavior.Class    // 行为标签流
	Cursor     int                 // 行为标签游标的起始位置
	Weather    string
}

// Result 单批生成结果
type Result struct {
	Spawned     []TrackedActor
	Attempts    int // 失败的尝试次数
	MaxAttempts int
	Cursor      int // 下一个行为标签的位置
}

// Shortfall 未达成的车辆数
func (r Result) Shortfall(target int) int {
	return max(target-len(r.Spawned), 0)
}

// Scheduler 分批生成调度器
// 功能：对不可靠的生成操作做有界重试，直到达到目标车辆数或用尽尝试次数
type Scheduler struct {
	engine          ISpawner
	clock           entity.ITicker
	params          IParamsTable
	rng             *randengine.Engine
	retriesPerActor int

	Settle  SettlePolicy // 成功后的稳定策略
	Backoff SettlePolicy // 失败后的退避策略
}

// NewScheduler 创建调度器
// 参数：engine-引擎，clock-仿真时钟，params-行为参数表，rng-随机源，retriesPerActor-每辆车的尝试预算
func NewScheduler(engine ISpawner, clock entity.ITicker, params IParamsTable, rng *randengine.Engine, retriesPerActor int) *Scheduler {
	return &Scheduler{
		engine:          engine,
		clock:           clock,
		params:          params,
		rng:             rng,
		retriesPerActor: retriesPerActor,
		Settle:          SuccessSettle,
		Backoff:         FailureBackoff,
	}
}

type state int

const (
	stateAttempt state = iota // 尝试生成一辆车
	stateSettle               // 推进时钟让场景稳定
	stateDone
)

// Run 执行单批生成
// 功能：生成req.Target辆车，并为每辆车设置自动驾驶与行为参数
// 参数：ctx-上下文，req-生成请求
// 返回：生成结果；只有引擎的非重试类错误（断连、时钟推进失败、ctx取消）才返回error
// 算法说明：
// 1. 尝试预算max_attempts = Target × retriesPerActor
// 2. Attempt状态：均匀随机（有放回）选择蓝图和生成点，尝试生成
//   - 成功：取第Cursor个行为标签（对标签流长度取模循环使用），设置行为，记录车辆，Cursor前进；
//     按Settle策略决定是否推进时钟
//   - 失败：Attempts加1，按Backoff策略决定是否推进时钟
//
// 3. Settle状态：推进时钟后回到Attempt
// 4. 达到目标或用尽预算时结束；未达到目标不是错误，由调用者比较数量
// 说明：状态机的步数有上界2×(Target+max_attempts)+1，超过即为内部错误
func (s *Scheduler) Run(ctx context.Context, req Request) (Result, error) {
	res := Result{
		MaxAttempts: req.Target * s.retriesPerActor,
		Cursor:      req.Cursor,
	}
	if req.Target <= 0 {
		return res, nil
	}
	switch {
	case len(req.Points) == 0:
		return res, ErrNoSpawnPoints
	case len(req.Blueprints) == 0:
		return res, ErrNoBlueprints
	case len(req.Labels) == 0:
		return res, ErrNoLabels
	}
	res.Spawned = make([]TrackedActor, 0, req.Target)

	st := stateAttempt
	settle := 0
	limit := 2*(req.Target+res.MaxAttempts) + 1
	for step := 0; st != stateDone; step++ {
		if step > limit {
			return res, fmt.Errorf("spawn scheduler exceeded %d steps", limit)
		}
		switch st {
		case stateAttempt:
			if len(res.Spawned) >= req.Target || res.Attempts >= res.MaxAttempts {
				st = stateDone
				continue
			}
			actor, err := s.attempt(ctx, req, res.Cursor)
			switch {
			case errors.Is(err, entity.ErrSpawnRejected):
				res.Attempts++
				settle = s.Backoff.TicksAfter(res.Attempts)
			case err != nil:
				return res, err
			default:
				res.Spawned = append(res.Spawned, actor)
				res.Cursor++
				settle = s.Settle.TicksAfter(len(res.Spawned))
			}
			if settle > 0 {
				st = stateSettle
			}
		case stateSettle:
			if err := s.clock.Advance(ctx, settle); err != nil {
				return res, err
			}
			settle = 0
			st = stateAttempt
		}
	}
	return res, nil
}

// attempt 尝试生成一辆车并完成配置
// 说明：车辆生成后若配置失败（车辆立即消失），尽力销毁并视为一次被拒绝的尝试
func (s *Scheduler) attempt(ctx context.Context, req Request, cursor int) (TrackedActor, error) {
	blueprint := randengine.Choice(s.rng, req.Blueprints)
	point := randengine.Choice(s.rng, req.Points)
	label := req.Labels[cursor%len(req.Labels)]

	id, err := s.engine.Spawn(ctx, blueprint, point.Pose)
	if err != nil {
		return TrackedActor{}, err
	}
	if err := s.configure(ctx, id, label, req.Weather); err != nil {
		if derr := s.engine.Destroy(context.WithoutCancel(ctx), id); derr != nil {
			log.Debugf("destroy unconfigured actor %d: %v", id, derr)
		}
		if errors.Is(err, entity.ErrActorGone) {
			return TrackedActor{}, fmt.Errorf("%w: %w", entity.ErrSpawnRejected, err)
		}
		return TrackedActor{}, err
	}
	return TrackedActor{
		ID:        id,
		Behavior:  label,
		Blueprint: blueprint,
		Spawn:     point,
	}, nil
}

func (s *Scheduler) configure(ctx context.Context, id entity.ActorID, label behavior.Class, weather string) error {
	if err := s.engine.SetAutopilot(ctx, id, true); err != nil {
		return fmt.Errorf("set autopilot of actor %d: %w", id, err)
	}
	if err := s.engine.SetBehaviorParams(ctx, id, s.params.ParamsFor(label, weather)); err != nil {
		return fmt.Errorf("set behavior of actor %d: %w", id, err)
	}
	return nil
}
