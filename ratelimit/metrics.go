package ratelimit

import (
	"context"

	"github.com/ceyewan/srvd/metrics"
	"github.com/ceyewan/srvd/xerrors"
)

// Metrics 指标常量定义
const (
	// MetricDecisions 限流判定次数 (Counter)，按 result 区分 allowed/denied
	MetricDecisions = "ratelimit_decisions_total"

	// MetricActiveKeys 当前持有令牌桶的键数量 (Gauge)
	MetricActiveKeys = "ratelimit_active_keys"

	labelResult = "result"
)

type limiterMetrics struct {
	decisions  metrics.Counter
	activeKeys metrics.Gauge
}

func newLimiterMetrics(m metrics.Meter) (*limiterMetrics, error) {
	decisions, err := m.Counter(MetricDecisions, "Rate limit decisions by result")
	if err != nil {
		return nil, xerrors.Wrap(err, "create decisions counter")
	}
	activeKeys, err := m.Gauge(MetricActiveKeys, "Number of keys holding a token bucket")
	if err != nil {
		return nil, xerrors.Wrap(err, "create active keys gauge")
	}
	return &limiterMetrics{decisions: decisions, activeKeys: activeKeys}, nil
}

func (m *limiterMetrics) observe(ctx context.Context, allowed bool) {
	result := "denied"
	if allowed {
		result = "allowed"
	}
	m.decisions.Inc(ctx, metrics.L(labelResult, result))
}
