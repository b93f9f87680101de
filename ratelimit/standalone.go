package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/ceyewan/srvd/clog"
	"github.com/ceyewan/srvd/xerrors"
)

// limiterWrapper 包装 rate.Limiter 并记录最后访问时间
type limiterWrapper struct {
	limiter  *rate.Limiter
	lastSeen time.Time
	mu       sync.Mutex
}

// standaloneLimiter 单机限流器实现
type standaloneLimiter struct {
	cfg      *Config
	limit    Limit
	logger   clog.Logger
	metrics  *limiterMetrics
	limiters sync.Map // map[string]*limiterWrapper
	keys     atomic.Int64
	stopCh   chan struct{}
	stopOnce sync.Once
	now      func() time.Time
}

func newStandalone(cfg *Config, opt *options) (*standaloneLimiter, error) {
	m, err := newLimiterMetrics(opt.meter)
	if err != nil {
		return nil, err
	}

	l := &standaloneLimiter{
		cfg:     cfg,
		limit:   Limit{Rate: cfg.Rate, Burst: cfg.Burst},
		logger:  opt.logger,
		metrics: m,
		stopCh:  make(chan struct{}),
		now:     time.Now,
	}
	go l.cleanupLoop()

	l.logger.Info("rate limiter created",
		clog.Any("rate", cfg.Rate),
		clog.Int("burst", cfg.Burst),
		clog.Duration("idle_timeout", cfg.IdleTimeout))
	return l, nil
}

// Allow 尝试获取 1 个令牌
func (l *standaloneLimiter) Allow(ctx context.Context, key string) (bool, error) {
	return l.AllowN(ctx, key, 1)
}

// AllowN 尝试获取 N 个令牌
func (l *standaloneLimiter) AllowN(ctx context.Context, key string, n int) (bool, error) {
	if key == "" {
		return false, ErrKeyEmpty
	}
	if n <= 0 {
		return false, xerrors.Wrapf(xerrors.ErrInvalidInput, "ratelimit: n must be positive")
	}

	wrapper := l.getLimiter(key)

	wrapper.mu.Lock()
	now := l.now()
	allowed := wrapper.limiter.AllowN(now, n)
	wrapper.lastSeen = now
	wrapper.mu.Unlock()

	l.metrics.observe(ctx, allowed)
	if !allowed {
		l.logger.Debug("rate limit exceeded", clog.String("key", key))
	}
	return allowed, nil
}

// Limit 返回限流规则
func (l *standaloneLimiter) Limit() Limit {
	return l.limit
}

// getLimiter 获取或创建指定 key 的令牌桶
func (l *standaloneLimiter) getLimiter(key string) *limiterWrapper {
	if v, ok := l.limiters.Load(key); ok {
		return v.(*limiterWrapper)
	}

	wrapper := &limiterWrapper{
		limiter:  rate.NewLimiter(rate.Limit(l.limit.Rate), l.limit.Burst),
		lastSeen: l.now(),
	}
	actual, loaded := l.limiters.LoadOrStore(key, wrapper)
	if !loaded {
		l.metrics.activeKeys.Set(context.Background(), float64(l.keys.Add(1)))
	}
	return actual.(*limiterWrapper)
}

func (l *standaloneLimiter) cleanupLoop() {
	ticker := time.NewTicker(l.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-l.stopCh:
			return
		}
	}
}

// cleanup 删除空闲超过 IdleTimeout 的令牌桶
func (l *standaloneLimiter) cleanup() int {
	now := l.now()
	count := 0

	l.limiters.Range(func(key, value any) bool {
		wrapper := value.(*limiterWrapper)
		wrapper.mu.Lock()
		idle := now.Sub(wrapper.lastSeen)
		wrapper.mu.Unlock()

		if idle > l.cfg.IdleTimeout {
			l.limiters.Delete(key)
			count++
		}
		return true
	})

	if count > 0 {
		l.metrics.activeKeys.Set(context.Background(), float64(l.keys.Add(-int64(count))))
		l.logger.Debug("cleaned up idle limiters", clog.Int("count", count))
	}
	return count
}

// Close 停止后台清理，幂等
func (l *standaloneLimiter) Close() error {
	l.stopOnce.Do(func() { close(l.stopCh) })
	return nil
}
