package router

import (
	"github.com/paulmach/orb"
)

// 对偶图中的街道节点，对应原路网中的一个路段
type Street struct {
	ID int
	// 路段两端的路口，From < To
	From, To int64
	// 基础通行代价，与路段长度成正比
	Weight float64
	// 两端点的中点，仅用作A Star的启发锚点
	Coordinate orb.Point
}

// 对偶图中的无向边，A < B
// 仅表示两条街道在某个路口相接，不带权重
type DualEdge struct {
	A, B int
}

func newDualEdge(a, b int) DualEdge {
	if a > b {
		a, b = b, a
	}
	return DualEdge{A: a, B: b}
}
