package remote

import (
	"fmt"

	"github.com/tsinghua-fib-lab/roundabout-sim-oss/entity"
	"google.golang.org/protobuf/types/known/structpb"
)

// 消息统一使用google.protobuf.Struct，字段名与下列辅助函数一一对应

func vectorFields(v entity.Vector3) map[string]any {
	return map[string]any{"x": v.X, "y": v.Y, "z": v.Z}
}

func poseFields(p entity.Pose) map[string]any {
	return map[string]any{"location": vectorFields(p.Location), "yaw": p.Yaw}
}

func paramsFields(p entity.BehaviorParams) map[string]any {
	return map[string]any{
		"speed_bias":           p.SpeedBias,
		"following_gap":        p.FollowingGap,
		"light_violation_rate": p.LightViolationRate,
	}
}

func stateFields(s entity.ActorState) map[string]any {
	return map[string]any{
		"pose":         poseFields(s.Pose),
		"velocity":     vectorFields(s.Velocity),
		"acceleration": vectorFields(s.Acceleration),
	}
}

func num(s *structpb.Struct, key string) float64 {
	return s.GetFields()[key].GetNumberValue()
}

func str(s *structpb.Struct, key string) string {
	return s.GetFields()[key].GetStringValue()
}

func boolean(s *structpb.Struct, key string) bool {
	return s.GetFields()[key].GetBoolValue()
}

func sub(s *structpb.Struct, key string) *structpb.Struct {
	return s.GetFields()[key].GetStructValue()
}

func actorID(s *structpb.Struct) entity.ActorID {
	return entity.ActorID(num(s, "actor_id"))
}

func toVector(s *structpb.Struct) entity.Vector3 {
	return entity.Vector3{X: num(s, "x"), Y: num(s, "y"), Z: num(s, "z")}
}

func toPose(s *structpb.Struct) entity.Pose {
	return entity.Pose{Location: toVector(sub(s, "location")), Yaw: num(s, "yaw")}
}

func toParams(s *structpb.Struct) entity.BehaviorParams {
	return entity.BehaviorParams{
		SpeedBias:          num(s, "speed_bias"),
		FollowingGap:       num(s, "following_gap"),
		LightViolationRate: num(s, "light_violation_rate"),
	}
}

func toState(s *structpb.Struct) entity.ActorState {
	return entity.ActorState{
		Pose:         toPose(sub(s, "pose")),
		Velocity:     toVector(sub(s, "velocity")),
		Acceleration: toVector(sub(s, "acceleration")),
	}
}

func toPoses(s *structpb.Struct) []entity.Pose {
	values := s.GetFields()["poses"].GetListValue().GetValues()
	out := make([]entity.Pose, 0, len(values))
	for _, v := range values {
		out = append(out, toPose(v.GetStructValue()))
	}
	return out
}

func toStrings(s *structpb.Struct, key string) []string {
	values := s.GetFields()[key].GetListValue().GetValues()
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, v.GetStringValue())
	}
	return out
}

func newStruct(fields map[string]any) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return s, nil
}
