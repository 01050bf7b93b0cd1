package router

import (
	"fmt"
	"math"

	"git.fiblab.net/sim/dualtraffic/router/algo"
	"github.com/samber/lo"
)

func (r *Router) buildSearchGraph() {
	searchGraph := algo.NewSearchGraph[algo.StreetNodeAttr](
		algo.WeightedEuclidean{K: r.heuristicWeight},
	)
	// 街道ID与搜索图节点编号一致
	for _, s := range r.dual.streets {
		if id := searchGraph.InitNode(s.Coordinate, s.Weight, algo.StreetNodeAttr{ID: s.ID}); id != s.ID {
			log.Panicf("search node %d mismatches street %d", id, s.ID)
		}
	}
	for _, e := range r.dual.Edges() {
		searchGraph.InitEdge(e.A, e.B)
	}
	r.searchGraph = searchGraph
}

// 求start到goal的街道序列（含起终点）
// 不可达时返回ErrNoPath
func (r *Router) FindPath(start, goal int) (streetIDs []int, cost float64, err error) {
	if !r.HasStreet(start) {
		return nil, math.Inf(0), fmt.Errorf("start street(id=%d): %w", start, ErrStreetNotFound)
	}
	if !r.HasStreet(goal) {
		return nil, math.Inf(0), fmt.Errorf("goal street(id=%d): %w", goal, ErrStreetNotFound)
	}
	path, cost := r.searchGraph.ShortestPath(start, goal)
	if path == nil {
		log.Debugf("routing failed, no path between street %d and %d", start, goal)
		return nil, cost, fmt.Errorf("routing %d -> %d: %w", start, goal, ErrNoPath)
	}
	streetIDs = lo.Map(path, func(item algo.PathItem[algo.StreetNodeAttr], _ int) int {
		return item.NodeAttr.ID
	})
	return streetIDs, cost, nil
}
