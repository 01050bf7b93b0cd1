package algo

// 对偶图中的街道节点属性
type StreetNodeAttr struct {
	ID int
}

// 路径中的一个节点
type PathItem[NT any] struct {
	Node     int
	NodeAttr NT
}
