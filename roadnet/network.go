package roadnet

import (
	"errors"
	"fmt"
	"sort"

	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
)

var (
	// 错误：路口不存在
	ErrNoIntersection = errors.New("intersection not found")
	// 错误：路段首尾为同一路口
	ErrSelfLoop = errors.New("segment starts and ends at the same intersection")
)

// 路段，From < To
type Segment struct {
	From, To int64
}

// 路网：点为路口，边为路段
type Network struct {
	g      *simple.UndirectedGraph
	coords map[int64]orb.Point // 路口坐标 [lon, lat]
}

func NewNetwork() *Network {
	return &Network{
		g:      simple.NewUndirectedGraph(),
		coords: make(map[int64]orb.Point),
	}
}

// 加入路口，已存在时更新坐标
func (n *Network) AddIntersection(id int64, p orb.Point) {
	if n.g.Node(id) == nil {
		n.g.AddNode(simple.Node(id))
	}
	n.coords[id] = p
}

// 加入路段，重复的路段被忽略
func (n *Network) AddSegment(u, v int64) error {
	if u == v {
		return fmt.Errorf("segment (%d,%d): %w", u, v, ErrSelfLoop)
	}
	for _, id := range []int64{u, v} {
		if n.g.Node(id) == nil {
			return fmt.Errorf("segment (%d,%d): %w: %d", u, v, ErrNoIntersection, id)
		}
	}
	n.g.SetEdge(simple.Edge{F: simple.Node(u), T: simple.Node(v)})
	return nil
}

func (n *Network) HasSegment(u, v int64) bool {
	return n.g.HasEdgeBetween(u, v)
}

func (n *Network) Coordinate(id int64) (orb.Point, bool) {
	p, ok := n.coords[id]
	return p, ok
}

// 路口的度
func (n *Network) Degree(id int64) int {
	if n.g.Node(id) == nil {
		return 0
	}
	return n.g.From(id).Len()
}

// 相邻路口，升序
func (n *Network) Neighbors(id int64) []int64 {
	if n.g.Node(id) == nil {
		return nil
	}
	ids := nodeIDs(graph.NodesOf(n.g.From(id)))
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// 所有路口，升序
func (n *Network) Intersections() []int64 {
	ids := nodeIDs(graph.NodesOf(n.g.Nodes()))
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// 所有路段，按(From, To)升序
func (n *Network) Segments() []Segment {
	segments := make([]Segment, 0, n.g.Edges().Len())
	for _, e := range graph.EdgesOf(n.g.Edges()) {
		u, v := e.From().ID(), e.To().ID()
		if u > v {
			u, v = v, u
		}
		segments = append(segments, Segment{From: u, To: v})
	}
	sort.Slice(segments, func(i, j int) bool {
		if segments[i].From != segments[j].From {
			return segments[i].From < segments[j].From
		}
		return segments[i].To < segments[j].To
	})
	return segments
}

func (n *Network) NumIntersections() int {
	return n.g.Nodes().Len()
}

func (n *Network) NumSegments() int {
	return n.g.Edges().Len()
}

// 路网范围
func (n *Network) Bound() orb.Bound {
	mp := make(orb.MultiPoint, 0, len(n.coords))
	for _, p := range n.coords {
		mp = append(mp, p)
	}
	return mp.Bound()
}

// 去掉没有路段的路口
func (n *Network) Prune() int {
	removed := 0
	for _, id := range n.Intersections() {
		if n.Degree(id) == 0 {
			n.g.RemoveNode(id)
			delete(n.coords, id)
			removed++
		}
	}
	return removed
}

func nodeIDs(nodes []graph.Node) []int64 {
	ids := make([]int64, len(nodes))
	for i, node := range nodes {
		ids[i] = node.ID()
	}
	return ids
}
