package sim

import (
	"github.com/puzpuzpuz/xsync/v3"
)

// 每条街道上的车辆数
// 稀疏存储：不存在的键表示0，计数归零的键会被删除
// 增减均为原子操作，可被多个goroutine同时修改
type Occupancy struct {
	counts *xsync.MapOf[int, int]
}

func NewOccupancy() *Occupancy {
	return &Occupancy{counts: xsync.NewMapOf[int, int]()}
}

// 车辆驶入街道
func (o *Occupancy) Enter(street int) {
	o.counts.Compute(street, func(old int, _ bool) (int, bool) {
		return old + 1, false
	})
}

// 车辆驶离街道
func (o *Occupancy) Leave(street int) {
	empty := false
	o.counts.Compute(street, func(old int, loaded bool) (int, bool) {
		if !loaded || old <= 0 {
			// 回调内不能panic，否则桶锁不会释放
			empty = true
			return old, !loaded
		}
		return old - 1, old-1 == 0
	})
	if empty {
		log.Panicf("leave street %d with no car on it", street)
	}
}

// 车辆从from驶入to
func (o *Occupancy) Move(from, to int) {
	o.Leave(from)
	o.Enter(to)
}

func (o *Occupancy) Count(street int) int {
	v, _ := o.counts.Load(street)
	return v
}

// 有车的街道数
func (o *Occupancy) Len() int {
	return o.counts.Size()
}

// 所有街道车辆数之和
func (o *Occupancy) Total() int {
	total := 0
	o.counts.Range(func(_ int, v int) bool {
		total += v
		return true
	})
	return total
}

// 当前占用的拷贝
func (o *Occupancy) Snapshot() map[int]int {
	out := make(map[int]int, o.counts.Size())
	o.counts.Range(func(k int, v int) bool {
		out[k] = v
		return true
	})
	return out
}
