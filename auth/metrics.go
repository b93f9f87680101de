package auth

import (
	"context"

	"github.com/ceyewan/srvd/metrics"
)

// MetricTokensValidated Token 校验计数，标签: result (success|expired|invalid_signature|invalid_token)
const MetricTokensValidated = "auth_tokens_validated_total"

type authMetrics struct {
	validated metrics.Counter
}

func newAuthMetrics(m metrics.Meter) (*authMetrics, error) {
	c, err := m.Counter(MetricTokensValidated, "Bearer tokens validated by the gateway")
	if err != nil {
		return nil, err
	}
	return &authMetrics{validated: c}, nil
}

func (m *authMetrics) observe(ctx context.Context, result string) {
	m.validated.Inc(ctx, metrics.L("result", result))
}
