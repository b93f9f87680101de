package breaker

import (
	"context"

	"github.com/ceyewan/srvd/metrics"
)

const (
	// MetricRequestsTotal 经过熔断器的请求数 (Counter)，按 key 与 result 区分
	MetricRequestsTotal = "breaker_requests_total"
	// MetricStateChanges 状态变更次数 (Counter)
	MetricStateChanges = "breaker_state_changes_total"

	LabelKey       = "key"
	LabelResult    = "result"
	LabelFromState = "from_state"
	LabelToState   = "to_state"

	ResultSuccess  = "success"
	ResultFailure  = "failure"
	ResultRejected = "rejected"
)

type breakerMetrics struct {
	requests metrics.Counter
	changes  metrics.Counter
}

func newBreakerMetrics(m metrics.Meter) (*breakerMetrics, error) {
	requests, err := m.Counter(MetricRequestsTotal, "Requests passed through the circuit breaker")
	if err != nil {
		return nil, err
	}
	changes, err := m.Counter(MetricStateChanges, "Circuit breaker state changes")
	if err != nil {
		return nil, err
	}
	return &breakerMetrics{requests: requests, changes: changes}, nil
}

func (m *breakerMetrics) observe(ctx context.Context, key, result string) {
	m.requests.Inc(ctx, metrics.L(LabelKey, key), metrics.L(LabelResult, result))
}

func (m *breakerMetrics) stateChanged(key string, from, to State) {
	m.changes.Inc(context.Background(),
		metrics.L(LabelKey, key),
		metrics.L(LabelFromState, from.String()),
		metrics.L(LabelToState, to.String()))
}
