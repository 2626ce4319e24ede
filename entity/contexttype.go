package entity

import "context"

// IEngine 外部仿真引擎的依赖倒置
// 功能：描述本系统对仿真引擎（世界推进、车辆生命周期、天气）所需的全部能力
// 说明：引擎本身不在本仓库内建模，engine/remote通过RPC桥接真实引擎，engine/local为进程内替身
type IEngine interface {
	LoadWorld(ctx context.Context, name string) error
	// 同步模式下每次AdvanceTick推进fixedDelta秒
	SetSyncMode(ctx context.Context, enabled bool, fixedDelta float64) error
	AdvanceTick(ctx context.Context) error
	SetWeather(ctx context.Context, name string) error

	SpawnCandidates(ctx context.Context) ([]Pose, error)
	Blueprints(ctx context.Context, filter string) ([]string, error)

	// 生成失败且可重试时返回ErrSpawnRejected
	Spawn(ctx context.Context, blueprint string, pose Pose) (ActorID, error)
	SetAutopilot(ctx context.Context, id ActorID, enabled bool) error
	SetBehaviorParams(ctx context.Context, id ActorID, params BehaviorParams) error
	Destroy(ctx context.Context, id ActorID) error
	// 车辆不存在时返回ErrActorGone
	ReadState(ctx context.Context, id ActorID) (ActorState, error)
}

// ITicker 时钟推进接口
type ITicker interface {
	Advance(ctx context.Context, n int) error
	Ticks(seconds float64) int
}
