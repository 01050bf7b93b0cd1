package router

import (
	"errors"
	"sort"

	"git.fiblab.net/sim/dualtraffic/roadnet"
	"git.fiblab.net/sim/dualtraffic/router/algo"
	"github.com/paulmach/orb"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

const (
	// 路段长度（经纬度欧氏距离）放大系数，使权重保留足够精度
	DEFAULT_WEIGHT_SCALE = 100_000
	// 权重下限，避免拥堵系数计算时除0
	DEFAULT_MIN_WEIGHT = 1e-6
)

var (
	// 错误：路网中没有路段
	ErrEmptyNetwork = errors.New("road network has no segments")
)

// 对偶图：街道为点，路口为连接相交街道的完全子图
// 构建后只读，可在goroutine间共享
type DualGraph struct {
	streets []Street
	// 邻接关系
	g *simple.UndirectedGraph
	// 原路段 -> 街道ID
	lookup map[roadnet.Segment]int
}

func (d *DualGraph) Len() int {
	return len(d.streets)
}

func (d *DualGraph) Has(id int) bool {
	return id >= 0 && id < len(d.streets)
}

func (d *DualGraph) Street(id int) (Street, bool) {
	if !d.Has(id) {
		return Street{}, false
	}
	return d.streets[id], true
}

func (d *DualGraph) Streets() []Street {
	out := make([]Street, len(d.streets))
	copy(out, d.streets)
	return out
}

func (d *DualGraph) Weight(id int) float64 {
	return d.streets[id].Weight
}

func (d *DualGraph) Coordinate(id int) orb.Point {
	return d.streets[id].Coordinate
}

// 路段(u,v)对应的街道
func (d *DualGraph) StreetID(u, v int64) (int, bool) {
	id, ok := d.lookup[normSegment(u, v)]
	return id, ok
}

// 相邻街道，升序
func (d *DualGraph) Neighbors(id int) []int {
	nodes := graph.NodesOf(d.g.From(int64(id)))
	ids := lo.Map(nodes, func(n graph.Node, _ int) int { return int(n.ID()) })
	sort.Ints(ids)
	return ids
}

func (d *DualGraph) HasEdge(a, b int) bool {
	return d.g.HasEdgeBetween(int64(a), int64(b))
}

func (d *DualGraph) NumEdges() int {
	return d.g.Edges().Len()
}

// 所有对偶边，按(A, B)升序
func (d *DualGraph) Edges() []DualEdge {
	edges := lo.Map(graph.EdgesOf(d.g.Edges()), func(e graph.Edge, _ int) DualEdge {
		return newDualEdge(int(e.From().ID()), int(e.To().ID()))
	})
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].A != edges[j].A {
			return edges[i].A < edges[j].A
		}
		return edges[i].B < edges[j].B
	})
	return edges
}

// 连通分量，每个分量内升序
func (d *DualGraph) Components() [][]int {
	components := topo.ConnectedComponents(d.g)
	out := make([][]int, len(components))
	for i, c := range components {
		ids := lo.Map(c, func(n graph.Node, _ int) int { return int(n.ID()) })
		sort.Ints(ids)
		out[i] = ids
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

// 权重中位数，取升序后下标n/2处的值
func (d *DualGraph) MedianWeight() float64 {
	weights := lo.Map(d.streets, func(s Street, _ int) float64 { return s.Weight })
	sort.Float64s(weights)
	return weights[len(weights)/2]
}

// gonum视图，供外部的图分析使用
func (d *DualGraph) Graph() graph.Undirected {
	return d.g
}

func normSegment(u, v int64) roadnet.Segment {
	if u > v {
		u, v = v, u
	}
	return roadnet.Segment{From: u, To: v}
}

// 对偶图构建器，持有自增的街道ID计数器
type Builder struct {
	nextID      int
	weightScale float64
	minWeight   float64
}

type BuilderOption func(*Builder)

func WithWeightScale(scale float64) BuilderOption {
	return func(b *Builder) {
		b.weightScale = scale
	}
}

func WithMinWeight(w float64) BuilderOption {
	return func(b *Builder) {
		b.minWeight = w
	}
}

func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{
		weightScale: DEFAULT_WEIGHT_SCALE,
		minWeight:   DEFAULT_MIN_WEIGHT,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.minWeight <= 0 {
		b.minWeight = DEFAULT_MIN_WEIGHT
	}
	return b
}

func (b *Builder) nid() int {
	id := b.nextID
	b.nextID++
	return id
}

// 将路网转换为对偶图
// 1. 每个路段按(From, To)顺序分配ID，计算权重与中点
// 2. 度>=2的路口，其所有相接街道两两连边
// 3. 度<2的路口不产生边
func (b *Builder) Build(net *roadnet.Network) (*DualGraph, error) {
	segments := net.Segments()
	if len(segments) == 0 {
		return nil, ErrEmptyNetwork
	}
	b.nextID = 0
	d := &DualGraph{
		streets: make([]Street, 0, len(segments)),
		g:       simple.NewUndirectedGraph(),
		lookup:  make(map[roadnet.Segment]int, len(segments)),
	}
	floored := 0
	for _, seg := range segments {
		pu, _ := net.Coordinate(seg.From)
		pv, _ := net.Coordinate(seg.To)
		w := algo.Euclidean(pu, pv) * b.weightScale
		if w < b.minWeight {
			w = b.minWeight
			floored++
		}
		id := b.nid()
		d.streets = append(d.streets, Street{
			ID:         id,
			From:       seg.From,
			To:         seg.To,
			Weight:     w,
			Coordinate: orb.Point{(pu[0] + pv[0]) / 2, (pu[1] + pv[1]) / 2},
		})
		d.g.AddNode(simple.Node(id))
		d.lookup[seg] = id
	}
	if floored > 0 {
		log.Warnf("%d streets shorter than min weight %v", floored, b.minWeight)
	}

	cliques := 0
	for _, x := range net.Intersections() {
		nbrs := net.Neighbors(x)
		if len(nbrs) < 2 {
			continue
		}
		ids := lo.Map(nbrs, func(y int64, _ int) int { return d.lookup[normSegment(x, y)] })
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				d.g.SetEdge(simple.Edge{F: simple.Node(ids[i]), T: simple.Node(ids[j])})
			}
		}
		cliques++
	}
	log.Infof("dual graph built: %d streets, %d edges from %d intersections, %d components",
		d.Len(), d.NumEdges(), cliques, len(topo.ConnectedComponents(d.g)))
	return d, nil
}
