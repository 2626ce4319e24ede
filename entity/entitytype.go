package entity

import (
	"errors"
	"fmt"
)

var (
	// 引擎拒绝生成车辆（位置被占用、碰撞检测未通过等），属于可重试的失败
	ErrSpawnRejected = errors.New("spawn rejected by engine")
	// 车辆已被引擎销毁或驶离仿真区域
	ErrActorGone = errors.New("actor is gone")
)

// ActorID 引擎分配的车辆ID，仅在单个场景内唯一，引擎可能在场景之间复用
type ActorID int64

// Vector3 三维向量（位置、速度、加速度）
type Vector3 struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z"`
}

func (v Vector3) String() string {
	return fmt.Sprintf("(%.2f, %.2f, %.2f)", v.X, v.Y, v.Z)
}

// Pose 位置与朝向
// 说明：Yaw为角度制（与仿真引擎一致），输出时转换为弧度
type Pose struct {
	Location Vector3
	Yaw      float64
}

func (p Pose) String() string {
	return fmt.Sprintf("Pose{Location=%v, Yaw=%.1f}", p.Location, p.Yaw)
}

// SpawnPoint 候选生成点及其优先级
// 说明：Priority越高，车辆朝向越对准环岛中心，越可能驶入环岛而不是离开仿真区域
type SpawnPoint struct {
	Pose     Pose
	Distance float64 // 到环岛中心的距离
	Priority float64 // 100 - 朝向偏差（度）
}

// ActorState 车辆在某一步的运动状态
type ActorState struct {
	Pose         Pose
	Velocity     Vector3
	Acceleration Vector3
}

// BehaviorParams 交给引擎的驾驶行为参数
type BehaviorParams struct {
	SpeedBias          float64 // 相对限速的百分比偏差，负数表示更快
	FollowingGap       float64 // 跟车距离（米）
	LightViolationRate float64 // 闯红灯概率（百分比）
}

func (p BehaviorParams) String() string {
	return fmt.Sprintf("BehaviorParams{SpeedBias=%.1f, FollowingGap=%.1f, LightViolationRate=%.0f}",
		p.SpeedBias, p.FollowingGap, p.LightViolationRate)
}
