package algo

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// 坐标间的欧氏距离（经纬度直接作为平面坐标）
func Euclidean(p1, p2 orb.Point) float64 {
	return planar.Distance(p1, p2)
}

// 按系数缩放的欧氏距离启发函数
type WeightedEuclidean struct {
	K float64
}

func (h WeightedEuclidean) HeuristicEuclidean(p1, p2 orb.Point) float64 {
	return h.K * Euclidean(p1, p2)
}
