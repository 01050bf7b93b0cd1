package algo

import "errors"

const (
	// 启发函数默认系数，经验值
	DEFAULT_HEURISTIC_WEIGHT = 1_000_000
)

var (
	// 错误：节点编号超出范围
	ErrNodeOutOfRange = errors.New("node index out of range")
	// 错误：节点权重必须为正
	ErrNonPositiveWeight = errors.New("node weight should be positive")
)
