package loadbalance

import (
	"hash/crc32"
	"slices"
	"strconv"

	"github.com/ceyewan/srvd/registry"
)

// DefaultReplicas 每个实例在哈希环上的虚拟节点数
const DefaultReplicas = 100

// ConsistentHash 把请求键映射到实例哈希环上顺时针方向最近的虚拟节点。
//
//	虚拟节点哈希 = crc32("{instanceId}#{i}")
//
// 哈希环在每次 Pick 时按传入的实例集合构建，不保存状态，
// 所以实例集合相同时结果与列表顺序无关。
type ConsistentHash struct {
	key      string
	replicas int
}

// NewConsistentHash 创建以 key 为请求键的一致性哈希策略
func NewConsistentHash(key string) *ConsistentHash {
	return &ConsistentHash{key: key, replicas: DefaultReplicas}
}

// Pick 选出 key 对应的实例
func (b *ConsistentHash) Pick(instances []registry.Instance) (registry.Instance, error) {
	if len(instances) == 0 {
		return registry.Instance{}, ErrNoInstances
	}

	type vnode struct {
		hash uint32
		idx  int
	}
	ring := make([]vnode, 0, len(instances)*b.replicas)
	for i, inst := range instances {
		for r := range b.replicas {
			ring = append(ring, vnode{
				hash: crc32.ChecksumIEEE([]byte(inst.ID + "#" + strconv.Itoa(r))),
				idx:  i,
			})
		}
	}
	// 哈希相同时按 ID 排序，保证与列表顺序无关
	slices.SortFunc(ring, func(a, c vnode) int {
		if a.hash != c.hash {
			if a.hash < c.hash {
				return -1
			}
			return 1
		}
		switch {
		case instances[a.idx].ID < instances[c.idx].ID:
			return -1
		case instances[a.idx].ID > instances[c.idx].ID:
			return 1
		}
		return 0
	})

	h := crc32.ChecksumIEEE([]byte(b.key))
	i, _ := slices.BinarySearchFunc(ring, h, func(n vnode, target uint32) int {
		switch {
		case n.hash < target:
			return -1
		case n.hash > target:
			return 1
		}
		return 0
	})
	if i == len(ring) {
		i = 0
	}
	return instances[ring[i].idx], nil
}
