package roadnet_test

import (
	"testing"

	"git.fiblab.net/sim/dualtraffic/roadnet"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNetwork(t *testing.T) {
	n := roadnet.NewNetwork()
	n.AddIntersection(3, orb.Point{0, 0})
	n.AddIntersection(1, orb.Point{1, 0})
	n.AddIntersection(2, orb.Point{0, 1})
	n.AddIntersection(9, orb.Point{5, 5})

	require.NoError(t, n.AddSegment(3, 1))
	require.NoError(t, n.AddSegment(2, 3))
	// 重复路段
	require.NoError(t, n.AddSegment(1, 3))
	assert.ErrorIs(t, n.AddSegment(1, 1), roadnet.ErrSelfLoop)
	assert.ErrorIs(t, n.AddSegment(1, 42), roadnet.ErrNoIntersection)

	assert.Equal(t, 4, n.NumIntersections())
	assert.Equal(t, 2, n.NumSegments())
	assert.Equal(t, 2, n.Degree(3))
	assert.Equal(t, 0, n.Degree(9))
	assert.Equal(t, 0, n.Degree(100))
	assert.Equal(t, []int64{1, 2}, n.Neighbors(3))
	assert.True(t, n.HasSegment(1, 3))
	assert.Equal(t, []roadnet.Segment{{From: 1, To: 3}, {From: 2, To: 3}}, n.Segments())

	b := n.Bound()
	assert.Equal(t, orb.Point{0, 0}, b.Min)
	assert.Equal(t, orb.Point{5, 5}, b.Max)

	assert.Equal(t, 1, n.Prune())
	assert.Equal(t, 3, n.NumIntersections())
	_, ok := n.Coordinate(9)
	assert.False(t, ok)
}

func TestGrid(t *testing.T) {
	n := roadnet.NewGrid(3, 4, orb.Point{116.3, 39.9}, 0.001)
	assert.Equal(t, 12, n.NumIntersections())
	// 水平 3*3 + 竖直 2*4
	assert.Equal(t, 17, n.NumSegments())
	assert.Equal(t, 2, n.Degree(0))
	assert.Equal(t, 4, n.Degree(5))
	p, ok := n.Coordinate(5)
	assert.True(t, ok)
	assert.InDelta(t, 116.301, p.Lon(), 1e-9)
	assert.InDelta(t, 39.901, p.Lat(), 1e-9)
}

func TestFromSegmentDocs(t *testing.T) {
	n, err := roadnet.FromSegmentDocs([]roadnet.SegmentDoc{
		{From: roadnet.EndpointDoc{ID: 1, Lat: 39.9, Lon: 116.3}, To: roadnet.EndpointDoc{ID: 2, Lat: 39.9, Lon: 116.4}},
		{From: roadnet.EndpointDoc{ID: 2, Lat: 39.9, Lon: 116.4}, To: roadnet.EndpointDoc{ID: 3, Lat: 40.0, Lon: 116.4}},
		{From: roadnet.EndpointDoc{ID: 3, Lat: 40.0, Lon: 116.4}, To: roadnet.EndpointDoc{ID: 3, Lat: 40.0, Lon: 116.4}},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n.NumIntersections())
	assert.Equal(t, 2, n.NumSegments())
	p, _ := n.Coordinate(2)
	assert.Equal(t, orb.Point{116.4, 39.9}, p)
}
