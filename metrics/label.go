package metrics

// Label 指标标签
//
// 标签值应保持低基数：outcome、operation 可以，instance id、完整路径不行。
type Label struct {
	Key   string
	Value string
}

// L 便捷构造函数
//
//	counter.Inc(ctx, metrics.L("outcome", "hit"))
func L(key, value string) Label {
	return Label{Key: key, Value: value}
}
