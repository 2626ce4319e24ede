package dataset_test

import (
	"github.com/tsinghua-fib-lab/roundabout-sim-oss/dataset"
)

// track 生成一条轨迹的rows行，速度与半径恒定
func track(scenario int, id int64, rows int, speed, radius float64) []dataset.Row {
	out := make([]dataset.Row, rows)
	for i := range out {
		out[i] = dataset.Row{
			Tick:           int64(i),
			TrackID:        id,
			X:              radius,
			Speed:          speed,
			VX:             speed,
			Radius:         radius,
			Weather:        "ClearNoon",
			TrafficDensity: "medium",
			BehaviorType:   "normal",
			ScenarioID:     scenario,
		}
	}
	return out
}

func merged(tracks ...[]dataset.Row) dataset.Table {
	t := dataset.Table{Schema: dataset.SchemaMerged}
	for _, rows := range tracks {
		t.Rows = append(t.Rows, rows...)
	}
	return t
}

func cleanOptions() dataset.CleanOptions {
	return dataset.CleanOptions{CollectionRadius: 50, MinTrackRows: 20, MinMeanSpeed: 0.5}
}
