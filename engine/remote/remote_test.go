package remote_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/roundabout-sim-oss/engine/local"
	"github.com/tsinghua-fib-lab/roundabout-sim-oss/engine/remote"
	"github.com/tsinghua-fib-lab/roundabout-sim-oss/entity"
)

func newBridge(t *testing.T) (*remote.Client, *local.Engine) {
	t.Helper()
	opts := local.DefaultOptions()
	opts.RejectRate = 0
	engine := local.New(opts)
	path, handler := remote.NewHandler(engine)
	mux := http.NewServeMux()
	mux.Handle(path, handler)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return remote.NewClient(server.Client(), server.URL, 5*time.Second), engine
}

func TestBridgeRoundTrip(t *testing.T) {
	client, engine := newBridge(t)
	ctx := context.Background()

	require.NoError(t, client.LoadWorld(ctx, "Town03"))
	require.NoError(t, client.SetSyncMode(ctx, true, 0.1))
	require.NoError(t, client.SetWeather(ctx, "HardRainNoon"))
	assert.Equal(t, "HardRainNoon", engine.Weather())

	candidates, err := client.SpawnCandidates(ctx)
	require.NoError(t, err)
	want, err := engine.SpawnCandidates(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, candidates)

	bps, err := client.Blueprints(ctx, "vehicle.audi.*")
	require.NoError(t, err)
	assert.Equal(t, []string{"vehicle.audi.a2", "vehicle.audi.tt"}, bps)

	pose := entity.Pose{Location: entity.Vector3{X: 50}, Yaw: 180}
	id, err := client.Spawn(ctx, "vehicle.audi.tt", pose)
	require.NoError(t, err)
	require.NoError(t, client.SetAutopilot(ctx, id, true))
	require.NoError(t, client.SetBehaviorParams(ctx, id, entity.BehaviorParams{SpeedBias: 30, FollowingGap: 4}))
	require.NoError(t, client.AdvanceTick(ctx))
	assert.Equal(t, int64(1), engine.Step())

	got, err := client.ReadState(ctx, id)
	require.NoError(t, err)
	direct, err := engine.ReadState(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, direct, got)
}

func TestBridgeErrorMapping(t *testing.T) {
	client, _ := newBridge(t)
	ctx := context.Background()
	require.NoError(t, client.LoadWorld(ctx, "Town03"))

	pose := entity.Pose{Location: entity.Vector3{X: 50}, Yaw: 180}
	id, err := client.Spawn(ctx, "vehicle.audi.tt", pose)
	require.NoError(t, err)

	_, err = client.Spawn(ctx, "vehicle.audi.tt", pose)
	assert.ErrorIs(t, err, entity.ErrSpawnRejected)

	_, err = client.Spawn(ctx, "vehicle.unknown", entity.Pose{Location: entity.Vector3{Y: 50}})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, entity.ErrSpawnRejected)

	require.NoError(t, client.Destroy(ctx, id))
	assert.ErrorIs(t, client.Destroy(ctx, id), entity.ErrActorGone)
	_, err = client.ReadState(ctx, id)
	assert.ErrorIs(t, err, entity.ErrActorGone)
}

func TestBridgeUnreachable(t *testing.T) {
	client := remote.NewClient(nil, "http://127.0.0.1:1", time.Second)
	err := client.AdvanceTick(context.Background())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, entity.ErrSpawnRejected)
}
