package loadbalance

import (
	"cmp"
	"slices"
	"sync/atomic"

	"github.com/ceyewan/srvd/registry"
)

// RoundRobin 按实例 ID 排序后依次选择。
// 计数器使用原子操作，多个协程共享同一个 RoundRobin 时无需加锁。
type RoundRobin struct {
	counter atomic.Uint64
}

// NewRoundRobin 创建轮询策略
func NewRoundRobin() *RoundRobin {
	return &RoundRobin{}
}

// Pick 选择下一个实例
func (b *RoundRobin) Pick(instances []registry.Instance) (registry.Instance, error) {
	if len(instances) == 0 {
		return registry.Instance{}, ErrNoInstances
	}
	sorted := slices.SortedFunc(slices.Values(instances), func(a, b registry.Instance) int {
		return cmp.Compare(a.ID, b.ID)
	})
	n := b.counter.Add(1) - 1
	return sorted[n%uint64(len(sorted))], nil
}
