package remote

import (
	"context"
	"errors"
	"net/http"

	"connectrpc.com/connect"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/roundabout-sim-oss/entity"
	"google.golang.org/protobuf/types/known/structpb"
)

type unaryFunc func(ctx context.Context, req *structpb.Struct) (map[string]any, error)

// NewHandler 把任意entity.IEngine暴露为桥接服务
// 返回：服务路径前缀与对应的http.Handler
func NewHandler(engine entity.IEngine, opts ...connect.HandlerOption) (string, http.Handler) {
	funcs := map[string]unaryFunc{
		MethodLoadWorld: func(ctx context.Context, req *structpb.Struct) (map[string]any, error) {
			return nil, engine.LoadWorld(ctx, str(req, "name"))
		},
		MethodSetSyncMode: func(ctx context.Context, req *structpb.Struct) (map[string]any, error) {
			return nil, engine.SetSyncMode(ctx, boolean(req, "enabled"), num(req, "fixed_delta"))
		},
		MethodAdvanceTick: func(ctx context.Context, _ *structpb.Struct) (map[string]any, error) {
			return nil, engine.AdvanceTick(ctx)
		},
		MethodSetWeather: func(ctx context.Context, req *structpb.Struct) (map[string]any, error) {
			return nil, engine.SetWeather(ctx, str(req, "name"))
		},
		MethodSpawnCandidates: func(ctx context.Context, _ *structpb.Struct) (map[string]any, error) {
			poses, err := engine.SpawnCandidates(ctx)
			if err != nil {
				return nil, err
			}
			return map[string]any{"poses": lo.Map(poses, func(p entity.Pose, _ int) any {
				return poseFields(p)
			})}, nil
		},
		MethodBlueprints: func(ctx context.Context, req *structpb.Struct) (map[string]any, error) {
			names, err := engine.Blueprints(ctx, str(req, "filter"))
			if err != nil {
				return nil, err
			}
			return map[string]any{"blueprints": lo.ToAnySlice(names)}, nil
		},
		MethodSpawn: func(ctx context.Context, req *structpb.Struct) (map[string]any, error) {
			id, err := engine.Spawn(ctx, str(req, "blueprint"), toPose(sub(req, "pose")))
			if err != nil {
				return nil, err
			}
			return map[string]any{"actor_id": float64(id)}, nil
		},
		MethodSetAutopilot: func(ctx context.Context, req *structpb.Struct) (map[string]any, error) {
			return nil, engine.SetAutopilot(ctx, actorID(req), boolean(req, "enabled"))
		},
		MethodSetBehaviorParams: func(ctx context.Context, req *structpb.Struct) (map[string]any, error) {
			return nil, engine.SetBehaviorParams(ctx, actorID(req), toParams(sub(req, "params")))
		},
		MethodDestroy: func(ctx context.Context, req *structpb.Struct) (map[string]any, error) {
			return nil, engine.Destroy(ctx, actorID(req))
		},
		MethodReadState: func(ctx context.Context, req *structpb.Struct) (map[string]any, error) {
			s, err := engine.ReadState(ctx, actorID(req))
			if err != nil {
				return nil, err
			}
			return stateFields(s), nil
		},
	}

	mux := http.NewServeMux()
	for _, m := range methods {
		mux.Handle(Procedure(m), connect.NewUnaryHandler(Procedure(m), wrap(funcs[m]), opts...))
	}
	return "/" + ServiceName + "/", mux
}

func wrap(f unaryFunc) func(context.Context, *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	return func(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
		fields, err := f(ctx, req.Msg)
		if err != nil {
			return nil, toConnectError(err)
		}
		res, err := newStruct(fields)
		if err != nil {
			return nil, connect.NewError(connect.CodeInternal, err)
		}
		return connect.NewResponse(res), nil
	}
}

func toConnectError(err error) error {
	switch {
	case errors.Is(err, entity.ErrSpawnRejected):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, entity.ErrActorGone):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	}
	log.Warnf("engine error: %v", err)
	return connect.NewError(connect.CodeInternal, err)
}
