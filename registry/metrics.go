package registry

import (
	"context"
	"time"

	"github.com/ceyewan/srvd/metrics"
	"github.com/ceyewan/srvd/xerrors"
)

const (
	MetricCacheRequests   = "registry_cache_requests_total"
	MetricResolveDuration = "registry_resolve_duration_seconds"
	MetricRefreshTotal    = "registry_refresh_total"
	MetricAnnounceTotal   = "registry_announce_total"

	labelResult = "result"
)

const (
	resultHit         = "hit"
	resultMiss        = "miss"
	resultNotFound    = "not_found"
	resultUpdated     = "updated"
	resultInvalidated = "invalidated"
)

var resolveBuckets = []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}

// registryMetrics registry 的指标集
type registryMetrics struct {
	cacheRequests   metrics.Counter
	resolveDuration metrics.Histogram
	refresh         metrics.Counter
	announce        metrics.Counter
}

func newRegistryMetrics(m metrics.Meter) (*registryMetrics, error) {
	cacheRequests, err := m.Counter(MetricCacheRequests, "Resolution cache lookups by result")
	if err != nil {
		return nil, xerrors.Wrap(err, "create cache requests counter")
	}
	resolveDuration, err := m.Histogram(MetricResolveDuration, "Resolve latency in seconds",
		metrics.WithUnit("s"), metrics.WithBuckets(resolveBuckets))
	if err != nil {
		return nil, xerrors.Wrap(err, "create resolve duration histogram")
	}
	refresh, err := m.Counter(MetricRefreshTotal, "Watch-triggered refreshes by result")
	if err != nil {
		return nil, xerrors.Wrap(err, "create refresh counter")
	}
	announce, err := m.Counter(MetricAnnounceTotal, "Announce and unannounce calls by outcome")
	if err != nil {
		return nil, xerrors.Wrap(err, "create announce counter")
	}
	return &registryMetrics{
		cacheRequests:   cacheRequests,
		resolveDuration: resolveDuration,
		refresh:         refresh,
		announce:        announce,
	}, nil
}

func (m *registryMetrics) observeCache(ctx context.Context, hit bool) {
	result := resultMiss
	if hit {
		result = resultHit
	}
	m.cacheRequests.Inc(ctx, metrics.L(labelResult, result))
}

func (m *registryMetrics) observeResolve(ctx context.Context, start time.Time, err error) {
	outcome := metrics.OutcomeSuccess
	switch {
	case IsNotFound(err):
		outcome = resultNotFound
	case err != nil:
		outcome = metrics.OutcomeError
	}
	m.resolveDuration.Record(ctx, time.Since(start).Seconds(), metrics.L(metrics.LabelOutcome, outcome))
}

func (m *registryMetrics) observeRefresh(ctx context.Context, result string) {
	m.refresh.Inc(ctx, metrics.L(labelResult, result))
}

func (m *registryMetrics) observeAnnounce(ctx context.Context, op string, err error) {
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeError
	}
	m.announce.Inc(ctx, metrics.L(metrics.LabelOperation, op), metrics.L(metrics.LabelOutcome, outcome))
}
