package recorder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/roundabout-sim-oss/dataset"
	"go.mongodb.org/mongo-driver/bson"
)

func sampleTable() dataset.Table {
	return dataset.Table{Schema: dataset.SchemaRaw, Rows: []dataset.Row{
		{Tick: 1, TrackID: 7, X: 1, Y: 2, VX: 3, Speed: 3, Radius: 2.2, Weather: "WetNoon", TrafficDensity: "dense", BehaviorType: "cautious"},
		{Tick: 2, TrackID: 7, X: 1.3, Y: 2, VX: 3, Speed: 3, Radius: 2.4, Weather: "WetNoon", TrafficDensity: "dense", BehaviorType: "cautious"},
	}}
}

func TestCSVSink(t *testing.T) {
	dir := t.TempDir()
	s := NewCSVSink(dir)
	require.NoError(t, s.Write(context.Background(), 12, sampleTable()))
	require.NoError(t, s.Close(context.Background()))

	got, err := dataset.ReadFile(dataset.ScenarioFile(dir, 12))
	require.NoError(t, err)
	assert.Equal(t, sampleTable(), got)
}

type failingSink struct{ closed bool }

func (f *failingSink) Write(context.Context, int, dataset.Table) error { return errors.New("disk full") }
func (f *failingSink) Close(context.Context) error {
	f.closed = true
	return nil
}

func TestMultiSinkContinuesAfterFailure(t *testing.T) {
	dir := t.TempDir()
	bad := &failingSink{}
	m := MultiSink{bad, NewCSVSink(dir)}
	err := m.Write(context.Background(), 0, sampleTable())
	assert.ErrorContains(t, err, "disk full")
	assert.FileExists(t, dataset.ScenarioFile(dir, 0))
	require.NoError(t, m.Close(context.Background()))
	assert.True(t, bad.closed)
}

func TestRowDocument(t *testing.T) {
	doc := rowDocument("run-1", 3, sampleTable().Rows[0])
	m := doc.Map()
	assert.Equal(t, "run-1", m["run_id"])
	assert.Equal(t, 3, m["scenario_id"])
	assert.Equal(t, int64(7), m["track_id"])
	assert.Equal(t, "cautious", m["behavior_type"])
	assert.Equal(t, bson.D{{Key: "x", Value: 1.0}, {Key: "y", Value: 2.0}, {Key: "z", Value: 0.0}}, m["position"])

	raw, err := bson.Marshal(doc)
	require.NoError(t, err)
	var back struct {
		ScenarioID int     `bson:"scenario_id"`
		Radius     float64 `bson:"radius"`
	}
	require.NoError(t, bson.Unmarshal(raw, &back))
	assert.Equal(t, 3, back.ScenarioID)
	assert.Equal(t, 2.2, back.Radius)
}

func TestManifest(t *testing.T) {
	dir := t.TempDir()
	id := NewRunID()
	_, err := uuid.Parse(id)
	require.NoError(t, err)

	start := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	m := Manifest{
		RunID:      id,
		World:      "Town03",
		StartedAt:  start,
		FinishedAt: start.Add(time.Hour),
		Successful: 1,
		Failed:     1,
		Scenarios: []ScenarioEntry{
			{ID: 0, Weather: "ClearNoon", Density: "medium", Status: StatusOK, Spawned: 55, SpawnTotal: 55, Rows: 9000, Tracks: 55, CoreTracks: 48, TargetPassages: 50},
			{ID: 1, Weather: "WetNoon", Density: "medium", Status: StatusFailed, Error: "engine disconnected"},
		},
	}
	require.NoError(t, WriteManifest(dir, m))
	got, err := ReadManifest(dir)
	require.NoError(t, err)
	assert.True(t, got.StartedAt.Equal(m.StartedAt))
	assert.True(t, got.FinishedAt.Equal(m.FinishedAt))
	got.StartedAt, got.FinishedAt = m.StartedAt, m.FinishedAt
	assert.Equal(t, m, got)
}
