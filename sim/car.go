package sim

import (
	"errors"
	"fmt"
	"math/rand"

	"git.fiblab.net/sim/dualtraffic/router"
	"github.com/paulmach/orb"
	"github.com/samber/lo"
)

// 车辆状态
// PLANNING仅出现在首次规划前；到达后在同一tick内重新规划，规划成功即回到TRAVERSING，
// 失败则停留在ARRIVED
type CarState int

const (
	PLANNING CarState = iota
	TRAVERSING
	ARRIVED
)

func (s CarState) String() string {
	return [...]string{"planning", "traversing", "arrived"}[s]
}

// 错误：连续多次选取的起终点均不可达
var ErrPlanFailed = errors.New("failed to plan a reachable trip")

// 路径规划
type Planner interface {
	FindPath(start, goal int) ([]int, float64, error)
}

type Car struct {
	sim *Simulator
	rng *rand.Rand

	id    int
	state CarState

	// 本次出行经过的街道，首为起点，尾为终点
	itinerary []int
	// 当前所在街道在itinerary中的下标
	index int
	// 在当前街道上已行驶的距离，单位与街道权重相同
	progress float64

	completedTrips int
	// 因不可达而重新选取起终点的次数
	replans int
}

func newCar(sim *Simulator, id int, seed int64) *Car {
	return &Car{
		sim:   sim,
		rng:   rand.New(rand.NewSource(seed)),
		id:    id,
		state: PLANNING,
	}
}

func (c *Car) ID() int             { return c.id }
func (c *Car) State() CarState     { return c.state }
func (c *Car) Itinerary() []int    { return c.itinerary }
func (c *Car) Index() int          { return c.index }
func (c *Car) Progress() float64   { return c.progress }
func (c *Car) CompletedTrips() int { return c.completedTrips }
func (c *Car) Replans() int        { return c.replans }
func (c *Car) Street() int         { return c.itinerary[c.index] }
func (c *Car) Start() int          { return c.itinerary[0] }
func (c *Car) Goal() int           { return c.itinerary[len(c.itinerary)-1] }
func (c *Car) String() string      { return fmt.Sprintf("car_%d", c.id) }

// 当前所在街道的中点坐标
func (c *Car) Position() orb.Point {
	return c.sim.dual.Coordinate(c.Street())
}

func (c *Car) pick(ids []int) int {
	return ids[c.rng.Intn(len(ids))]
}

// 每tick独立抽取的速度因子
func (c *Car) speedFactor() float64 {
	fMin, fMax := c.sim.cfg.SpeedFactorMin, c.sim.cfg.SpeedFactorMax
	return fMin + c.rng.Float64()*(fMax-fMin)
}

// 选取起终点并规划路径
// 起终点从候选街道中均匀随机选取，不可达时重新选取
func (c *Car) plan() error {
	candidates := c.sim.candidates
	for attempt := 0; attempt < c.sim.cfg.MaxPlanAttempts; attempt++ {
		start := c.pick(candidates)
		goal := start
		for goal == start {
			goal = c.pick(candidates)
		}
		itinerary, _, err := c.sim.planner.FindPath(start, goal)
		if err != nil {
			if errors.Is(err, router.ErrNoPath) {
				c.replans++
				continue
			}
			return fmt.Errorf("%v plan: %w", c, err)
		}
		if len(itinerary) < 2 {
			log.Panicf("%v got itinerary %v for %d -> %d", c, itinerary, start, goal)
		}
		c.itinerary = itinerary
		c.index = 0
		c.progress = 0
		c.state = TRAVERSING
		return nil
	}
	return fmt.Errorf("%v after %d attempts: %w", c, c.sim.cfg.MaxPlanAttempts, ErrPlanFailed)
}

// 前进一个tick
// 驶过当前街道后进入下一条；进入终点街道即视为到达，立即开始新的出行
func (c *Car) tick() error {
	street := c.Street()
	weight := c.sim.dual.Weight(street)
	increment := c.speedFactor() * c.sim.CongestionCoefficient(street) * weight
	increment = lo.Clamp(increment, c.sim.cfg.BaseSpeed, c.sim.cfg.TopSpeed)
	c.progress += increment
	if c.progress < weight {
		return nil
	}

	c.index++
	c.progress = 0
	c.sim.occupancy.Move(street, c.Street())
	if c.index < len(c.itinerary)-1 {
		return nil
	}
	goal := c.arrive()
	if err := c.plan(); err != nil {
		// 停在终点街道，状态保持ARRIVED
		return err
	}
	c.sim.occupancy.Move(goal, c.Start())
	return nil
}

// 到达终点街道，返回终点
func (c *Car) arrive() int {
	c.state = ARRIVED
	c.completedTrips++
	log.Debugf("%v arrived at street %d, trips=%d", c, c.Street(), c.completedTrips)
	return c.Street()
}
