package dataset_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/roundabout-sim-oss/dataset"
)

func TestReplaceSplitsOverwrites(t *testing.T) {
	ctx := context.Background()
	db, err := dataset.OpenDB(filepath.Join(t.TempDir(), "splits.db"))
	require.NoError(t, err)
	defer db.Close()

	s, err := dataset.Split(cleanedTable(20), defaultRatios)
	require.NoError(t, err)
	require.NoError(t, db.ReplaceSplits(ctx, s))
	require.NoError(t, db.ReplaceSplits(ctx, s))

	counts, err := db.CountBySplit(ctx)
	require.NoError(t, err)
	for _, name := range dataset.SplitNames {
		assert.Equal(t, len(s.Tables[name].Rows), counts[name], name)
	}

	var tracks int
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT track_id) FROM trajectories WHERE split = ?`, "train").Scan(&tracks))
	assert.Equal(t, 14, tracks)
}
