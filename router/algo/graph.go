package algo

import (
	"container/heap"
	"log"
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/samber/lo"
)

type node[T any] struct {
	p    orb.Point
	w    float64 // 进入该节点的代价
	attr T
}

// 点权无向图，代价全部在点上，边只表示相邻关系
type SearchGraph[NT any] struct {
	// 邻接表，node -> 有序的相邻node
	// Runtime期间邻接关系不变，因此不需要考虑并发问题
	edges [][]int
	// 点的位置与权重
	// 权重会被改变，因此需要考虑并发问题
	nodes []node[NT]
	// A Star距离预估函数
	h IHeuristics

	mu *xsync.RBMutex
}

type IHeuristics interface {
	HeuristicEuclidean(orb.Point, orb.Point) float64
}

func NewSearchGraph[NT any](h IHeuristics) *SearchGraph[NT] {
	return &SearchGraph[NT]{
		edges: make([][]int, 0),
		nodes: make([]node[NT], 0),
		h:     h,
		mu:    xsync.NewRBMutex(),
	}
}

func (g *SearchGraph[NT]) InitNode(p orb.Point, weight float64, attr NT) int {
	g.nodes = append(g.nodes, node[NT]{p: p, w: weight, attr: attr})
	g.edges = append(g.edges, make([]int, 0))
	return len(g.nodes) - 1
}

// 加入无向边，重复的边会被忽略
func (g *SearchGraph[NT]) InitEdge(a, b int) {
	if a >= len(g.edges) || b >= len(g.edges) {
		log.Panicf("edge (%d,%d) out of range, len(g.edges)=%d", a, b, len(g.edges))
	}
	g.edges[a] = insertSorted(g.edges[a], b)
	g.edges[b] = insertSorted(g.edges[b], a)
}

func insertSorted(s []int, v int) []int {
	i := sort.SearchInts(s, v)
	if i < len(s) && s[i] == v {
		return s
	}
	s = append(s, 0)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

func (g *SearchGraph[NT]) Len() int {
	return len(g.nodes)
}

func (g *SearchGraph[NT]) Neighbors(n int) []int {
	return g.edges[n]
}

func (g *SearchGraph[NT]) GetNodeWeight(n int) float64 {
	token := g.mu.RLock()
	defer g.mu.RUnlock(token)
	return g.nodes[n].w
}

func (g *SearchGraph[NT]) SetNodeWeight(n int, weight float64) error {
	if n < 0 || n >= len(g.nodes) {
		return ErrNodeOutOfRange
	}
	if weight <= 0 {
		return ErrNonPositiveWeight
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nodes[n].w = weight
	return nil
}

func (g *SearchGraph[NT]) reconstructPath(cameFrom map[int]int, curNode int, cost float64) ([]PathItem[NT], float64) {
	pathBeforeReversed := []PathItem[NT]{{Node: curNode, NodeAttr: g.nodes[curNode].attr}}
	for {
		if from, ok := cameFrom[curNode]; ok {
			curNode = from
			pathBeforeReversed = append(pathBeforeReversed, PathItem[NT]{
				Node:     curNode,
				NodeAttr: g.nodes[curNode].attr,
			})
		} else {
			break
		}
	}
	return lo.Reverse(pathBeforeReversed), cost
}

func (g *SearchGraph[NT]) ShortestPath(start, end int) ([]PathItem[NT], float64) {
	return g.ShortestPathAStar(start, end)
}

// A Star算法求点权最短路
// 启发函数不要求可采纳，结果是较好的估计而非严格最短路
// 不可达时返回nil, +Inf
func (g *SearchGraph[NT]) ShortestPathAStar(start, end int) ([]PathItem[NT], float64) {
	token := g.mu.RLock()
	defer g.mu.RUnlock(token)
	if start == end {
		return []PathItem[NT]{{Node: start, NodeAttr: g.nodes[start].attr}}, 0
	}
	endP := g.nodes[end].p
	openSet := make(PriorityQueue, 1)
	cameFrom := make(map[int]int)
	closed := make(map[int]struct{})
	gScore := make(map[int]float64)
	gScore[start] = .0
	openSet[0] = &Item{Value: start, Priority: g.h.HeuristicEuclidean(g.nodes[start].p, endP), Index: 0}
	heap.Init(&openSet)
	for openSet.Len() > 0 {
		cur := heap.Pop(&openSet).(*Item).Value
		// 同一节点可能多次入队，已确定的直接丢弃
		if _, ok := closed[cur]; ok {
			continue
		}
		if cur == end {
			return g.reconstructPath(cameFrom, cur, gScore[cur])
		}
		closed[cur] = struct{}{}
		for _, neighbor := range g.edges[cur] {
			if _, ok := closed[neighbor]; ok {
				continue
			}
			gScoreTentative := gScore[cur] + g.nodes[neighbor].w
			gScoreNeighbor, ok := gScore[neighbor]
			if !ok {
				gScoreNeighbor = math.Inf(0)
			}
			if gScoreTentative < gScoreNeighbor {
				cameFrom[neighbor] = cur
				gScore[neighbor] = gScoreTentative
				fScore := .0
				// 终点优先级置0，一旦发现立即出队
				if neighbor != end {
					fScore = gScoreTentative + g.h.HeuristicEuclidean(g.nodes[neighbor].p, endP)
				}
				heap.Push(&openSet, &Item{Value: neighbor, Priority: fScore})
			}
		}
	}
	return nil, math.Inf(0)
}
