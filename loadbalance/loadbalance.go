// Package loadbalance 提供从解析结果中选择单个实例的策略，均实现 registry.Picker。
//
// 策略：
//   - Random：均匀随机，等价于取 Resolve 随机排列的第一个
//   - RoundRobin：按实例 ID 排序后轮询，不受 Resolve 随机排列影响
//   - WeightedRandom：按负载中的 weight 字段加权随机，缺省权重为 1
//   - ConsistentHash：按请求键映射到哈希环，实例集合不变时同一键总是选中同一实例
//
// 所有策略并发安全。
package loadbalance

import (
	"fmt"

	"github.com/ceyewan/srvd/registry"
	"github.com/ceyewan/srvd/xerrors"
)

// 策略名称
const (
	StrategyRandom         = "random"
	StrategyRoundRobin     = "round_robin"
	StrategyWeightedRandom = "weighted_random"
	StrategyConsistentHash = "consistent_hash"
)

// ErrNoInstances 候选实例列表为空
var ErrNoInstances = fmt.Errorf("loadbalance: no instances available: %w", registry.ErrNotFound)

// ErrUnknownStrategy 策略名称不存在
var ErrUnknownStrategy = fmt.Errorf("loadbalance: unknown strategy: %w", xerrors.ErrInvalidInput)

// Strategies 返回 New 支持的全部策略名称
func Strategies() []string {
	return []string{StrategyRandom, StrategyRoundRobin, StrategyWeightedRandom, StrategyConsistentHash}
}

// New 按名称创建策略，空名称使用 Random。
// ConsistentHash 需要请求键，通过 key 传入，其它策略忽略 key。
func New(name, key string) (registry.Picker, error) {
	switch name {
	case "", StrategyRandom:
		return Random(), nil
	case StrategyRoundRobin:
		return NewRoundRobin(), nil
	case StrategyWeightedRandom:
		return WeightedRandom(), nil
	case StrategyConsistentHash:
		return NewConsistentHash(key), nil
	default:
		return nil, xerrors.Wrapf(ErrUnknownStrategy, "%q", name)
	}
}
