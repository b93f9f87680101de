package loadbalance

import (
	"math/rand/v2"

	"github.com/ceyewan/srvd/registry"
)

type randomPicker struct{}

// Random 返回均匀随机策略
func Random() registry.Picker {
	return randomPicker{}
}

func (randomPicker) Pick(instances []registry.Instance) (registry.Instance, error) {
	if len(instances) == 0 {
		return registry.Instance{}, ErrNoInstances
	}
	return instances[rand.IntN(len(instances))], nil
}
