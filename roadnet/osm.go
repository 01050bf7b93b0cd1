package roadnet

import (
	"context"
	"fmt"
	"io"
	"runtime"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/paulmach/osm/osmxml"
)

type OSMFormat int

const (
	OSM_XML OSMFormat = iota
	OSM_PBF
)

// 从OSM数据构建路网
// 仅保留带highway标签的way，way中相邻的两个节点构成一个路段
// 两端节点均存在于数据中的路段才会被加入（边界处的way会被截断）
func LoadOSM(ctx context.Context, r io.Reader, format OSMFormat) (*Network, error) {
	var scanner osm.Scanner
	switch format {
	case OSM_XML:
		scanner = osmxml.New(ctx, r)
	case OSM_PBF:
		scanner = osmpbf.New(ctx, r, runtime.GOMAXPROCS(0))
	default:
		return nil, fmt.Errorf("unknown osm format %d", format)
	}
	defer scanner.Close()

	nodes := make(map[osm.NodeID]orb.Point)
	ways := make([]*osm.Way, 0)
	for scanner.Scan() {
		switch o := scanner.Object().(type) {
		case *osm.Node:
			nodes[o.ID] = orb.Point{o.Lon, o.Lat}
		case *osm.Way:
			if o.Tags.Find("highway") != "" {
				ways = append(ways, o)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan osm: %w", err)
	}

	n := NewNetwork()
	skipped := 0
	for _, w := range ways {
		for i := 0; i+1 < len(w.Nodes); i++ {
			u, v := w.Nodes[i].ID, w.Nodes[i+1].ID
			pu, okU := nodes[u]
			pv, okV := nodes[v]
			if !okU || !okV {
				skipped++
				continue
			}
			if u == v {
				continue
			}
			n.AddIntersection(int64(u), pu)
			n.AddIntersection(int64(v), pv)
			if err := n.AddSegment(int64(u), int64(v)); err != nil {
				return nil, err
			}
		}
	}
	log.Infof("osm loaded: %d nodes, %d highways -> %d intersections, %d segments (%d skipped at boundary)",
		len(nodes), len(ways), n.NumIntersections(), n.NumSegments(), skipped)
	return n, nil
}
