package sim

import (
	"sort"
)

// 某一采样点各街道的车辆数，街道ID -> 车辆数，不含空街道
type Frame struct {
	Tick      int         `json:"tick" bson:"tick"`
	Occupancy map[int]int `json:"occupancy" bson:"occupancy"`
}

// 位置直方图的一项，坐标为街道中点
type HistogramEntry struct {
	Lon   float64 `json:"lon" bson:"lon"`
	Lat   float64 `json:"lat" bson:"lat"`
	Count int     `json:"count" bson:"count"`
}

type Stats struct {
	Ticks           int     `json:"ticks" bson:"ticks"`
	Cars            int     `json:"cars" bson:"cars"`
	CompletedTrips  int     `json:"completed_trips" bson:"completed_trips"`
	Replans         int     `json:"replans" bson:"replans"`
	OccupiedStreets int     `json:"occupied_streets" bson:"occupied_streets"`
	MeanTrips       float64 `json:"mean_trips" bson:"mean_trips"`
}

// 一次仿真的输出
type Result struct {
	RunID     string           `json:"run_id" bson:"_id"`
	Config    *Config          `json:"config" bson:"config"`
	Stats     Stats            `json:"stats" bson:"stats"`
	Histogram []HistogramEntry `json:"histogram,omitempty" bson:"histogram,omitempty"`
	Frames    []Frame          `json:"frames,omitempty" bson:"frames,omitempty"`
}

// 汇总当前的快照
// 直方图按计数降序，计数相同时按坐标升序
func (s *Simulator) Result() *Result {
	histogram := make([]HistogramEntry, 0, len(s.histogram))
	for p, count := range s.histogram {
		histogram = append(histogram, HistogramEntry{Lon: p.Lon(), Lat: p.Lat(), Count: count})
	}
	sort.Slice(histogram, func(i, j int) bool {
		a, b := histogram[i], histogram[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		if a.Lon != b.Lon {
			return a.Lon < b.Lon
		}
		return a.Lat < b.Lat
	})
	return &Result{
		RunID:     s.runID,
		Config:    s.cfg,
		Stats:     s.Stats(),
		Histogram: histogram,
		Frames:    s.frames,
	}
}
