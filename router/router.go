package router

import (
	"errors"
	"fmt"

	"git.fiblab.net/sim/dualtraffic/router/algo"
)

var (
	// 错误：起终点间不存在通路
	ErrNoPath = errors.New("no path")
	// 错误：街道ID不存在
	ErrStreetNotFound = errors.New("street not found")
)

type Router struct {
	// searchGraph Topo
	// 1. 拓扑中的点为对偶图的街道，点权为街道的基础通行代价
	// 2. 拓扑中的边为对偶边（两条街道在路口相接），无权重
	// 3. 路径代价为进入的各街道点权之和（不含起点）
	dual        *DualGraph
	searchGraph *algo.SearchGraph[algo.StreetNodeAttr]

	heuristicWeight float64
}

type Option func(*Router)

// A Star启发函数系数，0退化为Dijkstra
func WithHeuristicWeight(k float64) Option {
	return func(r *Router) {
		r.heuristicWeight = k
	}
}

func New(dual *DualGraph, opts ...Option) *Router {
	r := &Router{dual: dual, heuristicWeight: algo.DEFAULT_HEURISTIC_WEIGHT}
	for _, opt := range opts {
		opt(r)
	}
	r.buildSearchGraph()
	return r
}

// getter

func (r *Router) Dual() *DualGraph {
	return r.dual
}

func (r *Router) HeuristicWeight() float64 {
	return r.heuristicWeight
}

func (r *Router) HasStreet(id int) bool {
	return r.dual.Has(id)
}

// 当前路径规划使用的街道代价（可能已被SetStreetWeight修改）
func (r *Router) StreetWeight(id int) (float64, error) {
	if !r.HasStreet(id) {
		return 0, fmt.Errorf("street(id=%d): %w", id, ErrStreetNotFound)
	}
	return r.searchGraph.GetNodeWeight(id), nil
}

// setter

// 修改路径规划使用的街道代价，不影响对偶图本身
func (r *Router) SetStreetWeight(id int, weight float64) error {
	if !r.HasStreet(id) {
		return fmt.Errorf("street(id=%d): %w", id, ErrStreetNotFound)
	}
	return r.searchGraph.SetNodeWeight(id, weight)
}

// close
func (r *Router) Close() {}
