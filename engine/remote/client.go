// 通过connect RPC桥接外部仿真引擎
package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"connectrpc.com/connect"
	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/roundabout-sim-oss/entity"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName 桥接服务名
const ServiceName = "roundabout.engine.v1.EngineService"

// 桥接服务的方法
const (
	MethodLoadWorld         = "LoadWorld"
	MethodSetSyncMode       = "SetSyncMode"
	MethodAdvanceTick       = "AdvanceTick"
	MethodSetWeather        = "SetWeather"
	MethodSpawnCandidates   = "SpawnCandidates"
	MethodBlueprints        = "Blueprints"
	MethodSpawn             = "Spawn"
	MethodSetAutopilot      = "SetAutopilot"
	MethodSetBehaviorParams = "SetBehaviorParams"
	MethodDestroy           = "Destroy"
	MethodReadState         = "ReadState"
)

var methods = []string{
	MethodLoadWorld, MethodSetSyncMode, MethodAdvanceTick, MethodSetWeather,
	MethodSpawnCandidates, MethodBlueprints, MethodSpawn, MethodSetAutopilot,
	MethodSetBehaviorParams, MethodDestroy, MethodReadState,
}

var log = logrus.WithField("module", "remote-engine")

// Procedure 方法的RPC路径
func Procedure(method string) string {
	return "/" + ServiceName + "/" + method
}

// Client 桥接服务客户端，实现entity.IEngine
type Client struct {
	clients map[string]*connect.Client[structpb.Struct, structpb.Struct]
	timeout time.Duration
}

// NewClient 创建客户端
// 参数：httpClient-HTTP客户端（nil则使用http.DefaultClient），baseURL-桥接服务地址，timeout-单次调用超时（0表示不限）
func NewClient(httpClient connect.HTTPClient, baseURL string, timeout time.Duration, opts ...connect.ClientOption) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	baseURL = strings.TrimRight(baseURL, "/")
	c := &Client{
		clients: make(map[string]*connect.Client[structpb.Struct, structpb.Struct], len(methods)),
		timeout: timeout,
	}
	for _, m := range methods {
		c.clients[m] = connect.NewClient[structpb.Struct, structpb.Struct](httpClient, baseURL+Procedure(m), opts...)
	}
	log.Infof("engine bridge at %s", baseURL)
	return c
}

// call 发起一次调用，并把桥接服务的错误码映射回领域错误
func (c *Client) call(ctx context.Context, method string, fields map[string]any) (*structpb.Struct, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	req, err := newStruct(fields)
	if err != nil {
		return nil, err
	}
	res, err := c.clients[method].CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, fromConnectError(method, err)
	}
	return res.Msg, nil
}

func fromConnectError(method string, err error) error {
	var ce *connect.Error
	if !errors.As(err, &ce) {
		return fmt.Errorf("%s: %w", method, err)
	}
	switch ce.Code() {
	case connect.CodeFailedPrecondition:
		return fmt.Errorf("%w: %s", entity.ErrSpawnRejected, ce.Message())
	case connect.CodeNotFound:
		return fmt.Errorf("%w: %s", entity.ErrActorGone, ce.Message())
	}
	return fmt.Errorf("%s: %w", method, err)
}

func (c *Client) LoadWorld(ctx context.Context, name string) error {
	_, err := c.call(ctx, MethodLoadWorld, map[string]any{"name": name})
	return err
}

func (c *Client) SetSyncMode(ctx context.Context, enabled bool, fixedDelta float64) error {
	_, err := c.call(ctx, MethodSetSyncMode, map[string]any{"enabled": enabled, "fixed_delta": fixedDelta})
	return err
}

func (c *Client) AdvanceTick(ctx context.Context) error {
	_, err := c.call(ctx, MethodAdvanceTick, nil)
	return err
}

func (c *Client) SetWeather(ctx context.Context, name string) error {
	_, err := c.call(ctx, MethodSetWeather, map[string]any{"name": name})
	return err
}

func (c *Client) SpawnCandidates(ctx context.Context) ([]entity.Pose, error) {
	res, err := c.call(ctx, MethodSpawnCandidates, nil)
	if err != nil {
		return nil, err
	}
	return toPoses(res), nil
}

func (c *Client) Blueprints(ctx context.Context, filter string) ([]string, error) {
	res, err := c.call(ctx, MethodBlueprints, map[string]any{"filter": filter})
	if err != nil {
		return nil, err
	}
	return toStrings(res, "blueprints"), nil
}

func (c *Client) Spawn(ctx context.Context, blueprint string, pose entity.Pose) (entity.ActorID, error) {
	res, err := c.call(ctx, MethodSpawn, map[string]any{"blueprint": blueprint, "pose": poseFields(pose)})
	if err != nil {
		return 0, err
	}
	return actorID(res), nil
}

func (c *Client) SetAutopilot(ctx context.Context, id entity.ActorID, enabled bool) error {
	_, err := c.call(ctx, MethodSetAutopilot, map[string]any{"actor_id": float64(id), "enabled": enabled})
	return err
}

func (c *Client) SetBehaviorParams(ctx context.Context, id entity.ActorID, params entity.BehaviorParams) error {
	_, err := c.call(ctx, MethodSetBehaviorParams, map[string]any{"actor_id": float64(id), "params": paramsFields(params)})
	return err
}

func (c *Client) Destroy(ctx context.Context, id entity.ActorID) error {
	_, err := c.call(ctx, MethodDestroy, map[string]any{"actor_id": float64(id)})
	return err
}

func (c *Client) ReadState(ctx context.Context, id entity.ActorID) (entity.ActorState, error) {
	res, err := c.call(ctx, MethodReadState, map[string]any{"actor_id": float64(id)})
	if err != nil {
		return entity.ActorState{}, err
	}
	return toState(res), nil
}
