package dataset

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB 划分后数据集的SQLite导出
type DB struct {
	*sql.DB
}

// OpenDB 打开（或创建）SQLite数据库并建表
func OpenDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS trajectories (
			split             TEXT NOT NULL,
			scenario_id       INTEGER,
			track_id          INTEGER,
			original_track_id INTEGER,
			tick              INTEGER,
			x                 DOUBLE,
			y                 DOUBLE,
			z                 DOUBLE,
			vx                DOUBLE,
			vy                DOUBLE,
			speed             DOUBLE,
			ax                DOUBLE,
			ay                DOUBLE,
			accel             DOUBLE,
			heading           DOUBLE,
			radius            DOUBLE,
			angle             DOUBLE,
			weather           TEXT,
			traffic_density   TEXT,
			behavior_type     TEXT
		);
		CREATE INDEX IF NOT EXISTS trajectories_track ON trajectories (split, track_id);
	`)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &DB{db}, nil
}

// ReplaceSplits 用新的划分结果整体替换trajectories表内容（单个事务）
func (db *DB) ReplaceSplits(ctx context.Context, s Splits) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM trajectories`); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trajectories (
			split, scenario_id, track_id, original_track_id, tick,
			x, y, z, vx, vy, speed, ax, ay, accel, heading, radius, angle,
			weather, traffic_density, behavior_type
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, name := range SplitNames {
		for _, r := range s.Tables[name].Rows {
			if _, err := stmt.ExecContext(ctx,
				string(name), r.ScenarioID, r.TrackID, r.OriginalTrackID, r.Tick,
				r.X, r.Y, r.Z, r.VX, r.VY, r.Speed, r.AX, r.AY, r.Accel, r.Heading, r.Radius, r.Angle,
				r.Weather, r.TrafficDensity, r.BehaviorType,
			); err != nil {
				return fmt.Errorf("insert %s track %d: %w", name, r.TrackID, err)
			}
		}
	}
	return tx.Commit()
}

// CountBySplit 每个划分的行数
func (db *DB) CountBySplit(ctx context.Context) (map[SplitName]int, error) {
	rows, err := db.QueryContext(ctx, `SELECT split, COUNT(*) FROM trajectories GROUP BY split`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[SplitName]int)
	for rows.Next() {
		var name string
		var n int
		if err := rows.Scan(&name, &n); err != nil {
			return nil, err
		}
		out[SplitName(name)] = n
	}
	return out, rows.Err()
}
