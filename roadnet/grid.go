package roadnet

import "github.com/paulmach/orb"

// 生成rows×cols的方格路网，路口间距为spacing（单位：度）
// 路口编号为 row*cols+col
func NewGrid(rows, cols int, origin orb.Point, spacing float64) *Network {
	n := NewNetwork()
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			n.AddIntersection(int64(r*cols+c), orb.Point{
				origin[0] + float64(c)*spacing,
				origin[1] + float64(r)*spacing,
			})
		}
	}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			id := int64(r*cols + c)
			if c+1 < cols {
				_ = n.AddSegment(id, id+1)
			}
			if r+1 < rows {
				_ = n.AddSegment(id, id+int64(cols))
			}
		}
	}
	return n
}
