package sim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync/atomic"
	"testing"

	"git.fiblab.net/sim/dualtraffic/roadnet"
	"git.fiblab.net/sim/dualtraffic/router"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type plannerFunc func(start, goal int) ([]int, float64, error)

func (f plannerFunc) FindPath(start, goal int) ([]int, float64, error) {
	return f(start, goal)
}

// 固定路线，无视起终点
func fixedPlanner(path ...int) Planner {
	return plannerFunc(func(int, int) ([]int, float64, error) {
		return path, 0, nil
	})
}

// n条首尾相接的街道，街道i连接路口i与i+1，权重均为spacing
func line(t testing.TB, n int, spacing float64) *router.DualGraph {
	net := roadnet.NewNetwork()
	for i := 0; i <= n; i++ {
		net.AddIntersection(int64(i), orb.Point{float64(i) * spacing, 0})
	}
	for i := 0; i < n; i++ {
		require.NoError(t, net.AddSegment(int64(i), int64(i+1)))
	}
	dual, err := router.NewBuilder(router.WithWeightScale(1)).Build(net)
	require.NoError(t, err)
	return dual
}

func grid(t testing.TB, rows, cols int) *router.DualGraph {
	dual, err := router.NewBuilder(router.WithWeightScale(1)).Build(
		roadnet.NewGrid(rows, cols, orb.Point{0, 0}, 1),
	)
	require.NoError(t, err)
	return dual
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.NumCars = 20
	cfg.MaxTicks = 100
	cfg.SamplingInterval = 10
	cfg.MedianFilter = false
	cfg.Workers = 4
	cfg.LogInterval = 0
	return cfg
}

func TestNewRejectsBadInput(t *testing.T) {
	r := router.New(grid(t, 3, 3))

	_, err := New(nil, r, testConfig())
	assert.ErrorIs(t, err, ErrEmptyGraph)

	// 权重全部相同，没有街道严格小于中位数
	cfg := testConfig()
	cfg.MedianFilter = true
	_, err = New(r.Dual(), r, cfg)
	assert.ErrorIs(t, err, ErrTooFewCandidates)

	single := line(t, 1, 1)
	_, err = New(single, router.New(single), testConfig())
	assert.ErrorIs(t, err, ErrTooFewCandidates)

	cfg = testConfig()
	cfg.NumCars = 0
	_, err = New(r.Dual(), r, cfg)
	assert.Error(t, err)
}

func TestMedianFilterCandidates(t *testing.T) {
	net := roadnet.NewNetwork()
	net.AddIntersection(0, orb.Point{0, 0})
	net.AddIntersection(1, orb.Point{10, 0})
	net.AddIntersection(2, orb.Point{0, 20})
	net.AddIntersection(3, orb.Point{-5, 0})
	net.AddIntersection(4, orb.Point{0, -8})
	for i := int64(1); i <= 4; i++ {
		require.NoError(t, net.AddSegment(0, i))
	}
	dual, err := router.NewBuilder(router.WithWeightScale(1)).Build(net)
	require.NoError(t, err)

	cfg := testConfig()
	cfg.MedianFilter = true
	s, err := New(dual, router.New(dual), cfg)
	require.NoError(t, err)
	// 权重[10 20 5 8]，中位数10
	assert.Equal(t, []int{2, 3}, s.Candidates())
	for _, car := range s.Cars() {
		assert.Contains(t, []int{2, 3}, car.Start())
		assert.Contains(t, []int{2, 3}, car.Goal())
		assert.NotEqual(t, car.Start(), car.Goal())
	}

	cfg.MedianFilter = false
	s, err = New(dual, router.New(dual), cfg)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3}, s.Candidates())
}

func TestCongestionCoefficient(t *testing.T) {
	cfg := testConfig()
	cfg.NumCars = 2
	s, err := New(line(t, 3, 5), fixedPlanner(0, 1, 2), cfg)
	require.NoError(t, err)

	assert.Equal(t, 2, s.Occupancy().Count(0))
	assert.InDelta(t, math.Pow(0.25, 0.2), s.CongestionCoefficient(0), 1e-12)
	assert.InDelta(t, 0.757858, s.CongestionCoefficient(0), 1e-6)
	// 空街道与只有1辆车的街道均不减速
	assert.Equal(t, 1.0, s.CongestionCoefficient(1))
	s.Occupancy().Leave(0)
	assert.Equal(t, 1.0, s.CongestionCoefficient(0))
}

func TestCarTraversal(t *testing.T) {
	cfg := testConfig()
	cfg.NumCars = 1
	cfg.BaseSpeed = 2
	cfg.TopSpeed = 2
	s, err := New(line(t, 3, 10), fixedPlanner(0, 1, 2), cfg)
	require.NoError(t, err)
	car := s.Cars()[0]
	assert.Equal(t, TRAVERSING, car.State())
	assert.Equal(t, 0, car.Street())

	for i := 1; i <= 4; i++ {
		require.NoError(t, s.Tick())
		assert.Equal(t, 0, car.Index())
		assert.InDelta(t, float64(2*i), car.Progress(), 1e-9)
	}
	// 第5个tick驶过权重为10的街道
	require.NoError(t, s.Tick())
	assert.Equal(t, 1, car.Index())
	assert.Zero(t, car.Progress())
	assert.Equal(t, map[int]int{1: 1}, s.Occupancy().Snapshot())

	// 进入终点街道即到达，立即从新的起点出发
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Tick())
	}
	assert.Equal(t, 1, car.CompletedTrips())
	assert.Equal(t, TRAVERSING, car.State())
	assert.Equal(t, 0, car.Index())
	assert.Equal(t, map[int]int{0: 1}, s.Occupancy().Snapshot())
	assert.Equal(t, 10, s.Ticks())
}

func TestTickInvariants(t *testing.T) {
	dual := grid(t, 5, 5)
	r := router.New(dual)
	cfg := testConfig()
	cfg.NumCars = 50
	cfg.BaseSpeed = 0.1
	cfg.TopSpeed = 0.7
	s, err := New(dual, r, cfg)
	require.NoError(t, err)

	for tick := 0; tick < 200; tick++ {
		require.NoError(t, s.Tick())
		assert.Equal(t, cfg.NumCars, s.Occupancy().Total())
		counts := make(map[int]int)
		for _, car := range s.Cars() {
			counts[car.Street()]++
			w := dual.Weight(car.Street())
			assert.GreaterOrEqual(t, car.Progress(), 0.0)
			assert.Less(t, car.Progress(), w)
			assert.Less(t, car.Index(), len(car.Itinerary())-1)
			assert.Equal(t, TRAVERSING, car.State())
		}
		require.Equal(t, counts, s.Occupancy().Snapshot())
	}
	for _, car := range s.Cars() {
		it := car.Itinerary()
		for i := 0; i+1 < len(it); i++ {
			assert.True(t, dual.HasEdge(it[i], it[i+1]))
		}
	}
	assert.Positive(t, s.Stats().CompletedTrips)
}

func TestDeterministic(t *testing.T) {
	dual := grid(t, 6, 6)
	r := router.New(dual)
	cfg := testConfig()
	cfg.Seed = 42
	cfg.Workers = 8
	cfg.SnapshotMode = SNAPSHOT_BOTH

	run := func() *Simulator {
		s, err := New(dual, r, cfg)
		require.NoError(t, err)
		_, err = s.Run(context.Background(), nil)
		require.NoError(t, err)
		return s
	}
	a, b := run(), run()
	for i := range a.Cars() {
		ca, cb := a.Cars()[i], b.Cars()[i]
		assert.Equal(t, ca.Itinerary(), cb.Itinerary())
		assert.Equal(t, ca.Index(), cb.Index())
		assert.Equal(t, ca.Progress(), cb.Progress())
		assert.Equal(t, ca.CompletedTrips(), cb.CompletedTrips())
	}
	assert.Equal(t, a.Histogram(), b.Histogram())
	assert.Equal(t, a.Frames(), b.Frames())
	assert.NotEqual(t, a.RunID(), b.RunID())
}

func TestPlanFailed(t *testing.T) {
	// 两条互不相接的街道
	net := roadnet.NewNetwork()
	for i := int64(0); i < 4; i++ {
		net.AddIntersection(i, orb.Point{float64(i), float64(i % 2)})
	}
	require.NoError(t, net.AddSegment(0, 1))
	require.NoError(t, net.AddSegment(2, 3))
	dual, err := router.NewBuilder().Build(net)
	require.NoError(t, err)

	cfg := testConfig()
	cfg.MaxPlanAttempts = 5
	_, err = New(dual, router.New(dual), cfg)
	assert.ErrorIs(t, err, ErrPlanFailed)
}

func TestReplanFailedMidRun(t *testing.T) {
	var calls atomic.Int32
	planner := plannerFunc(func(start, goal int) ([]int, float64, error) {
		if calls.Add(1) == 1 {
			return []int{0, 1}, 1, nil
		}
		return nil, math.Inf(0), fmt.Errorf("routing %d -> %d: %w", start, goal, router.ErrNoPath)
	})
	cfg := testConfig()
	cfg.NumCars = 1
	cfg.MaxPlanAttempts = 2
	s, err := New(line(t, 3, 1), planner, cfg)
	require.NoError(t, err)

	// 第一个tick即到达终点，重新规划失败
	res, err := s.Run(context.Background(), nil)
	assert.ErrorIs(t, err, ErrPlanFailed)
	require.NotNil(t, res)
	assert.Zero(t, res.Stats.Ticks)

	car := s.Cars()[0]
	assert.Equal(t, ARRIVED, car.State())
	assert.Equal(t, 1, car.Street())
	assert.Equal(t, 1, car.CompletedTrips())
	assert.Equal(t, map[int]int{car.Street(): 1}, s.Occupancy().Snapshot())

	// 出错后不再推进
	assert.NotPanics(t, func() { err = s.Tick() })
	assert.ErrorIs(t, err, ErrPlanFailed)
	assert.Equal(t, map[int]int{1: 1}, s.Occupancy().Snapshot())
	assert.Zero(t, s.Ticks())
}

func TestTickSeesEarlierMoves(t *testing.T) {
	var calls atomic.Int32
	planner := plannerFunc(func(int, int) ([]int, float64, error) {
		if calls.Add(1) == 1 {
			return []int{0, 1, 2}, 20, nil
		}
		return []int{1, 2, 3}, 20, nil
	})
	cfg := testConfig()
	cfg.NumCars = 2
	cfg.Workers = 1
	cfg.BaseSpeed = 0
	cfg.TopSpeed = 100
	cfg.SpeedFactorMin = 1
	cfg.SpeedFactorMax = 1
	s, err := New(line(t, 4, 10), planner, cfg)
	require.NoError(t, err)
	car0, car1 := s.Cars()[0], s.Cars()[1]
	require.Equal(t, 0, car0.Street())
	require.Equal(t, 1, car1.Street())

	require.NoError(t, s.Tick())
	// 车0先驶入街道1，车1本tick按2辆车计算拥堵
	assert.Equal(t, 1, car0.Street())
	assert.Equal(t, 1, car1.Street())
	assert.Equal(t, 2, s.Occupancy().Count(1))
	assert.InDelta(t, 10*math.Pow(0.25, 0.1), car1.Progress(), 1e-9)
}

func TestReplan(t *testing.T) {
	failures := 2
	planner := plannerFunc(func(start, goal int) ([]int, float64, error) {
		if failures > 0 {
			failures--
			return nil, math.Inf(0), fmt.Errorf("routing %d -> %d: %w", start, goal, router.ErrNoPath)
		}
		return []int{start, goal}, 1, nil
	})
	cfg := testConfig()
	cfg.NumCars = 1
	s, err := New(line(t, 3, 1), planner, cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Cars()[0].Replans())
	assert.Equal(t, 2, s.Stats().Replans)
}

func TestPlannerError(t *testing.T) {
	offline := errors.New("planner offline")
	planner := plannerFunc(func(int, int) ([]int, float64, error) {
		return nil, 0, offline
	})
	_, err := New(line(t, 3, 1), planner, testConfig())
	assert.ErrorIs(t, err, offline)
	assert.NotErrorIs(t, err, ErrPlanFailed)
}

func TestRunSnapshots(t *testing.T) {
	dual := grid(t, 4, 4)
	r := router.New(dual)
	for _, mode := range []SnapshotMode{SNAPSHOT_HISTOGRAM, SNAPSHOT_FRAMES, SNAPSHOT_BOTH} {
		t.Run(mode.String(), func(t *testing.T) {
			cfg := testConfig()
			cfg.MaxTicks = 10
			cfg.SamplingInterval = 3
			cfg.SnapshotMode = mode
			s, err := New(dual, r, cfg)
			require.NoError(t, err)

			var ticks []int
			res, err := s.Run(context.Background(), func(tick int) { ticks = append(ticks, tick) })
			require.NoError(t, err)
			assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, ticks)
			assert.Equal(t, 10, res.Stats.Ticks)
			assert.Equal(t, cfg.NumCars, res.Stats.Cars)
			_, err = uuid.Parse(res.RunID)
			assert.NoError(t, err)

			// 在tick 0 3 6 9之后采样
			if mode.histogram() {
				total := 0
				for _, e := range res.Histogram {
					total += e.Count
				}
				assert.Equal(t, 4*cfg.NumCars, total)
				assert.True(t, sort.SliceIsSorted(res.Histogram, func(i, j int) bool {
					return res.Histogram[i].Count > res.Histogram[j].Count
				}))
			} else {
				assert.Empty(t, res.Histogram)
			}
			if mode.frames() {
				require.Len(t, res.Frames, 4)
				for i, f := range res.Frames {
					assert.Equal(t, 3*i, f.Tick)
					sum := 0
					for _, c := range f.Occupancy {
						sum += c
					}
					assert.Equal(t, cfg.NumCars, sum)
				}
			} else {
				assert.Empty(t, res.Frames)
			}
		})
	}
}

func TestRunCanceled(t *testing.T) {
	dual := grid(t, 3, 3)
	s, err := New(dual, router.New(dual), testConfig())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := s.Run(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Zero(t, res.Stats.Ticks)
}

func TestCarStateString(t *testing.T) {
	assert.Equal(t, "planning", PLANNING.String())
	assert.Equal(t, "traversing", TRAVERSING.String())
	assert.Equal(t, "arrived", ARRIVED.String())
}
