package loadbalance

import (
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/srvd/registry"
)

func instance(t *testing.T, id string, weight int) registry.Instance {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"host": "10.0.0.1", "port": 8000, "weight": weight})
	require.NoError(t, err)
	var v any
	require.NoError(t, json.Unmarshal(raw, &v))
	return registry.Instance{ID: id, Value: v, Raw: raw}
}

func testInstances(t *testing.T) []registry.Instance {
	return []registry.Instance{
		instance(t, "a", 10),
		instance(t, "b", 5),
		instance(t, "c", 10),
	}
}

func TestEmptyInstances(t *testing.T) {
	for _, name := range Strategies() {
		p, err := New(name, "key")
		require.NoError(t, err)
		_, err = p.Pick(nil)
		assert.ErrorIs(t, err, ErrNoInstances, name)
		assert.True(t, registry.IsNotFound(err), name)
	}
}

func TestNewUnknownStrategy(t *testing.T) {
	_, err := New("fastest", "")
	assert.ErrorIs(t, err, ErrUnknownStrategy)

	p, err := New("", "")
	require.NoError(t, err)
	assert.NotNil(t, p)
}

func TestRandom(t *testing.T) {
	list := testInstances(t)
	counts := map[string]int{}
	for range 3000 {
		inst, err := Random().Pick(list)
		require.NoError(t, err)
		counts[inst.ID]++
	}
	assert.Len(t, counts, 3)
}

func TestRoundRobinIgnoresOrder(t *testing.T) {
	b := NewRoundRobin()
	list := testInstances(t)

	var got []string
	for i := range 6 {
		// 每次传入不同排列
		perm := slices.Clone(list)
		slices.Reverse(perm[i%2:])
		inst, err := b.Pick(perm)
		require.NoError(t, err)
		got = append(got, inst.ID)
	}
	assert.Equal(t, []string{"a", "b", "c", "a", "b", "c"}, got)
}

func TestRoundRobinConcurrent(t *testing.T) {
	b := NewRoundRobin()
	list := testInstances(t)

	var mu sync.Mutex
	counts := map[string]int{}
	var wg sync.WaitGroup
	for range 30 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			inst, err := b.Pick(list)
			assert.NoError(t, err)
			mu.Lock()
			counts[inst.ID]++
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, map[string]int{"a": 10, "b": 10, "c": 10}, counts)
}

func TestWeightedRandom(t *testing.T) {
	list := testInstances(t)
	counts := map[string]int{}
	n := 10000
	for range n {
		inst, err := WeightedRandom().Pick(list)
		require.NoError(t, err)
		counts[inst.ID]++
	}

	// 权重 10:5:10，a 约为 b 的两倍
	ratio := float64(counts["a"]) / float64(counts["b"])
	assert.InDelta(t, 2.0, ratio, 0.5)
}

func TestWeightedRandomZeroAndMissingWeights(t *testing.T) {
	zero := []registry.Instance{instance(t, "a", 0), instance(t, "b", 0)}
	inst, err := WeightedRandom().Pick(zero)
	require.NoError(t, err)
	assert.Contains(t, []string{"a", "b"}, inst.ID)

	mixed := []registry.Instance{instance(t, "a", 0), {ID: "plain", Value: "10.0.0.1:80"}}
	for range 50 {
		inst, err := WeightedRandom().Pick(mixed)
		require.NoError(t, err)
		assert.Equal(t, "plain", inst.ID)
	}
}

func TestConsistentHashStable(t *testing.T) {
	list := testInstances(t)

	for i := range 20 {
		key := fmt.Sprintf("user-%d", i)
		first, err := NewConsistentHash(key).Pick(list)
		require.NoError(t, err)

		perm := slices.Clone(list)
		slices.Reverse(perm)
		second, err := NewConsistentHash(key).Pick(perm)
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID, key)
	}
}

func TestConsistentHashMinimalRemap(t *testing.T) {
	list := testInstances(t)
	shrunk := list[:2]

	moved := 0
	for i := range 200 {
		key := fmt.Sprintf("k%d", i)
		before, err := NewConsistentHash(key).Pick(list)
		require.NoError(t, err)
		after, err := NewConsistentHash(key).Pick(shrunk)
		require.NoError(t, err)
		// 只有原本落在被移除实例上的键会迁移
		if before.ID != "c" {
			assert.Equal(t, before.ID, after.ID, key)
		} else {
			moved++
		}
	}
	assert.Greater(t, moved, 0)
}
