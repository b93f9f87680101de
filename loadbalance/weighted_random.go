package loadbalance

import (
	"math/rand/v2"

	"github.com/ceyewan/srvd/registry"
)

// WeightField 负载中表示权重的字段
const WeightField = "weight"

type weightedRandomPicker struct{}

// WeightedRandom 返回加权随机策略
func WeightedRandom() registry.Picker {
	return weightedRandomPicker{}
}

func (weightedRandomPicker) Pick(instances []registry.Instance) (registry.Instance, error) {
	if len(instances) == 0 {
		return registry.Instance{}, ErrNoInstances
	}

	total := 0
	weights := make([]int, len(instances))
	for i, inst := range instances {
		weights[i] = weightOf(inst)
		total += weights[i]
	}
	if total == 0 {
		return instances[rand.IntN(len(instances))], nil
	}

	r := rand.IntN(total)
	for i, w := range weights {
		r -= w
		if r < 0 {
			return instances[i], nil
		}
	}
	return instances[len(instances)-1], nil
}

// weightOf 读取权重；缺省或非数字为 1，负数为 0
func weightOf(inst registry.Instance) int {
	v, ok := inst.Field(WeightField)
	if !ok {
		return 1
	}
	f, ok := v.(float64)
	if !ok {
		return 1
	}
	if f < 0 {
		return 0
	}
	return int(f)
}
