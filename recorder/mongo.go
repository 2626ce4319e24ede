package recorder

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/roundabout-sim-oss/dataset"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoSink 把原始数据逐行写入MongoDB集合
// 说明：每个文档带run_id与scenario_id，同一集合可保存多次采集
type MongoSink struct {
	client *mongo.Client
	col    *mongo.Collection
	runID  string
}

// NewMongoSink 连接MongoDB
func NewMongoSink(ctx context.Context, uri, db, col, runID string) (*MongoSink, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	log.Infof("recording raw rows to mongo %s.%s", db, col)
	return &MongoSink{client: client, col: client.Database(db).Collection(col), runID: runID}, nil
}

func rowDocument(runID string, scenario int, r dataset.Row) bson.D {
	return bson.D{
		{Key: "run_id", Value: runID},
		{Key: "scenario_id", Value: scenario},
		{Key: "tick", Value: r.Tick},
		{Key: "track_id", Value: r.TrackID},
		{Key: "position", Value: bson.D{{Key: "x", Value: r.X}, {Key: "y", Value: r.Y}, {Key: "z", Value: r.Z}}},
		{Key: "velocity", Value: bson.D{{Key: "x", Value: r.VX}, {Key: "y", Value: r.VY}}},
		{Key: "acceleration", Value: bson.D{{Key: "x", Value: r.AX}, {Key: "y", Value: r.AY}}},
		{Key: "speed", Value: r.Speed},
		{Key: "accel", Value: r.Accel},
		{Key: "heading", Value: r.Heading},
		{Key: "radius", Value: r.Radius},
		{Key: "angle", Value: r.Angle},
		{Key: "weather", Value: r.Weather},
		{Key: "traffic_density", Value: r.TrafficDensity},
		{Key: "behavior_type", Value: r.BehaviorType},
	}
}

// mongoBatch 单次InsertMany的文档数
const mongoBatch = 5000

func (s *MongoSink) Write(ctx context.Context, scenario int, t dataset.Table) error {
	for _, chunk := range lo.Chunk(t.Rows, mongoBatch) {
		docs := lo.Map(chunk, func(r dataset.Row, _ int) any { return rowDocument(s.runID, scenario, r) })
		if _, err := s.col.InsertMany(ctx, docs); err != nil {
			return fmt.Errorf("insert scenario %d: %w", scenario, err)
		}
	}
	return nil
}

func (s *MongoSink) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
