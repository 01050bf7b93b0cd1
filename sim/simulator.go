package sim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"git.fiblab.net/sim/dualtraffic/router"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

var (
	// 错误：对偶图中没有街道
	ErrEmptyGraph = errors.New("dual graph has no streets")
	// 错误：可作为起终点的街道少于2条
	ErrTooFewCandidates = errors.New("fewer than 2 candidate streets")
)

// 交通仿真
// 车辆按ID升序依次前进，同一tick内后前进的车辆能看到先前进车辆造成的占用变化
type Simulator struct {
	cfg     *Config
	runID   string
	dual    *router.DualGraph
	planner Planner

	// 起终点候选街道
	candidates []int
	cars       []*Car
	occupancy  *Occupancy

	// 已完成的tick数
	ticks int
	// 首个tick错误，之后的Tick直接返回
	err       error
	histogram map[orb.Point]int
	frames    []Frame
}

func New(dual *router.DualGraph, planner Planner, cfg *Config) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if dual == nil || dual.Len() == 0 {
		return nil, ErrEmptyGraph
	}
	s := &Simulator{
		cfg:       cfg,
		runID:     uuid.NewString(),
		dual:      dual,
		planner:   planner,
		occupancy: NewOccupancy(),
		histogram: make(map[orb.Point]int),
		frames:    make([]Frame, 0),
	}
	s.candidates = selectCandidates(dual, cfg.MedianFilter)
	if len(s.candidates) < 2 {
		return nil, fmt.Errorf("%w: %d of %d streets (median_filter=%v)",
			ErrTooFewCandidates, len(s.candidates), dual.Len(), cfg.MedianFilter)
	}
	if err := s.populate(); err != nil {
		return nil, err
	}
	return s, nil
}

// 起终点候选：全部街道，或权重低于中位数的街道（避免被一条很长的路主导）
func selectCandidates(dual *router.DualGraph, medianFilter bool) []int {
	streets := dual.Streets()
	if !medianFilter {
		return lo.Map(streets, func(s router.Street, _ int) int { return s.ID })
	}
	median := dual.MedianWeight()
	return lo.FilterMap(streets, func(s router.Street, _ int) (int, bool) {
		return s.ID, s.Weight < median
	})
}

// 生成全部车辆并规划首次出行
// 每辆车有独立的随机数发生器，占用计数为原子操作，因此并行规划的结果与顺序无关
func (s *Simulator) populate() error {
	start := time.Now()
	s.cars = make([]*Car, s.cfg.NumCars)
	for i := range s.cars {
		s.cars[i] = newCar(s, i, s.cfg.Seed+int64(i))
	}
	var g errgroup.Group
	g.SetLimit(s.cfg.Workers)
	for _, car := range s.cars {
		car := car
		g.Go(func() error {
			if err := car.plan(); err != nil {
				return err
			}
			s.occupancy.Enter(car.Start())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	log.Infof("%d cars populated on %d candidate streets in %v",
		len(s.cars), len(s.candidates), time.Since(start))
	return nil
}

// 拥堵系数：base^((occupancy-1)/weight)
// 同一街道上的车越多，速度越慢；街道越长，能容纳的车越多
func (s *Simulator) CongestionCoefficient(street int) float64 {
	occupancy := s.occupancy.Count(street)
	return math.Pow(s.cfg.CongestionBase, float64(max(occupancy-1, 0))/s.dual.Weight(street))
}

// 所有车辆前进一个tick
// 出错后仿真状态不再推进，之后的调用返回同一错误
func (s *Simulator) Tick() error {
	if s.err != nil {
		return s.err
	}
	for _, car := range s.cars {
		if err := car.tick(); err != nil {
			s.err = fmt.Errorf("tick %d: %w", s.ticks, err)
			return s.err
		}
	}
	s.ticks++
	return nil
}

// 运行MaxTicks个tick，第i个tick后若i能被SamplingInterval整除则记录快照
// ctx取消时提前结束并返回已有的结果
func (s *Simulator) Run(ctx context.Context, onTick func(tick int)) (*Result, error) {
	start := time.Now()
	for i := 0; i < s.cfg.MaxTicks; i++ {
		if err := ctx.Err(); err != nil {
			log.Warnf("simulation stopped at tick %d: %v", i, err)
			return s.Result(), err
		}
		if s.cfg.LogInterval > 0 && i%s.cfg.LogInterval == 0 {
			log.Infof("tick %d, %d trips completed", i, s.completedTrips())
		}
		if err := s.Tick(); err != nil {
			return s.Result(), err
		}
		if i%s.cfg.SamplingInterval == 0 {
			s.snapshot(i)
		}
		if onTick != nil {
			onTick(i)
		}
	}
	log.Infof("simulation finished: %d ticks in %v", s.ticks, time.Since(start))
	return s.Result(), nil
}

func (s *Simulator) snapshot(tick int) {
	if s.cfg.SnapshotMode.histogram() {
		for _, car := range s.cars {
			s.histogram[car.Position()]++
		}
	}
	if s.cfg.SnapshotMode.frames() {
		s.frames = append(s.frames, Frame{Tick: tick, Occupancy: s.occupancy.Snapshot()})
	}
}

func (s *Simulator) completedTrips() int {
	return lo.SumBy(s.cars, func(c *Car) int { return c.completedTrips })
}

// getter

func (s *Simulator) RunID() string                { return s.runID }
func (s *Simulator) Config() *Config              { return s.cfg }
func (s *Simulator) Cars() []*Car                 { return s.cars }
func (s *Simulator) Candidates() []int            { return s.candidates }
func (s *Simulator) Occupancy() *Occupancy        { return s.occupancy }
func (s *Simulator) Ticks() int                   { return s.ticks }
func (s *Simulator) Histogram() map[orb.Point]int { return s.histogram }
func (s *Simulator) Frames() []Frame              { return s.frames }

func (s *Simulator) Stats() Stats {
	stats := Stats{
		Ticks:           s.ticks,
		Cars:            len(s.cars),
		CompletedTrips:  s.completedTrips(),
		Replans:         lo.SumBy(s.cars, func(c *Car) int { return c.replans }),
		OccupiedStreets: s.occupancy.Len(),
	}
	if stats.Cars > 0 {
		stats.MeanTrips = float64(stats.CompletedTrips) / float64(stats.Cars)
	}
	return stats
}
