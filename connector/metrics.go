package connector

import (
	"context"

	"github.com/ceyewan/srvd/metrics"
	"github.com/ceyewan/srvd/xerrors"
)

const (
	metricConnectTotal = "connector_connect_total"
	metricActive       = "connector_active_connections"
)

// connMetrics 连接器共用的指标集
type connMetrics struct {
	kind    string
	name    string
	connect metrics.Counter
	active  metrics.Gauge
}

func newConnMetrics(meter metrics.Meter, kind, name string) (*connMetrics, error) {
	connect, err := meter.Counter(metricConnectTotal, "Number of connection attempts by outcome")
	if err != nil {
		return nil, xerrors.Wrap(err, "create connect counter")
	}
	active, err := meter.Gauge(metricActive, "Number of active connections")
	if err != nil {
		return nil, xerrors.Wrap(err, "create active connections gauge")
	}
	return &connMetrics{kind: kind, name: name, connect: connect, active: active}, nil
}

func (m *connMetrics) labels() []metrics.Label {
	return []metrics.Label{metrics.L("connector", m.kind), metrics.L("name", m.name)}
}

func (m *connMetrics) observeConnect(ctx context.Context, err error) {
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeError
	}
	m.connect.Inc(ctx, append(m.labels(), metrics.L(metrics.LabelOutcome, outcome))...)
	if err == nil {
		m.active.Set(ctx, 1, m.labels()...)
	}
}

func (m *connMetrics) observeClose(ctx context.Context) {
	m.active.Set(ctx, 0, m.labels()...)
}
