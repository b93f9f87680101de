package breaker

import (
	"context"
	"errors"
	"sync"

	"github.com/sony/gobreaker/v2"

	"github.com/ceyewan/srvd/clog"
)

// circuitBreaker 每个 key 一个 gobreaker 实例
type circuitBreaker struct {
	cfg     *Config
	logger  clog.Logger
	metrics *breakerMetrics

	breakers sync.Map // map[string]*gobreaker.CircuitBreaker[struct{}]
}

func newCircuitBreaker(cfg *Config, opt *options) (*circuitBreaker, error) {
	m, err := newBreakerMetrics(opt.meter)
	if err != nil {
		return nil, err
	}
	opt.logger.Info("circuit breaker created",
		clog.Int("max_requests", int(cfg.MaxRequests)),
		clog.Duration("timeout", cfg.Timeout),
		clog.Float64("failure_ratio", cfg.FailureRatio),
		clog.Int("minimum_requests", int(cfg.MinimumRequests)))
	return &circuitBreaker{cfg: cfg, logger: opt.logger, metrics: m}, nil
}

func (cb *circuitBreaker) Execute(ctx context.Context, key string, fn func() error, isFailure func(error) bool) error {
	brk := cb.get(key)

	// gobreaker 通过 IsSuccessful 判断结果，这里把“不计入失败”的错误暂存起来再还原
	var passed error
	_, err := brk.Execute(func() (struct{}, error) {
		err := fn()
		if err != nil && isFailure != nil && !isFailure(err) {
			passed = err
			return struct{}{}, nil
		}
		return struct{}{}, err
	})

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		cb.metrics.observe(ctx, key, ResultRejected)
		return ErrOpenState
	case err != nil:
		cb.metrics.observe(ctx, key, ResultFailure)
		return err
	default:
		cb.metrics.observe(ctx, key, ResultSuccess)
		return passed
	}
}

func (cb *circuitBreaker) State(key string) State {
	val, ok := cb.breakers.Load(key)
	if !ok {
		return StateClosed
	}
	return fromGobreaker(val.(*gobreaker.CircuitBreaker[struct{}]).State())
}

func (cb *circuitBreaker) get(key string) *gobreaker.CircuitBreaker[struct{}] {
	if val, ok := cb.breakers.Load(key); ok {
		return val.(*gobreaker.CircuitBreaker[struct{}])
	}

	brk := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:          key,
		MaxRequests:   cb.cfg.MaxRequests,
		Interval:      cb.cfg.Interval,
		Timeout:       cb.cfg.Timeout,
		ReadyToTrip:   cb.readyToTrip,
		OnStateChange: cb.onStateChange,
	})
	actual, _ := cb.breakers.LoadOrStore(key, brk)
	return actual.(*gobreaker.CircuitBreaker[struct{}])
}

func (cb *circuitBreaker) readyToTrip(counts gobreaker.Counts) bool {
	if counts.Requests < cb.cfg.MinimumRequests {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= cb.cfg.FailureRatio
}

func (cb *circuitBreaker) onStateChange(name string, from, to gobreaker.State) {
	f, t := fromGobreaker(from), fromGobreaker(to)
	cb.logger.Warn("circuit breaker state changed",
		clog.String("key", name), clog.String("from", f.String()), clog.String("to", t.String()))
	cb.metrics.stateChanged(name, f, t)
}

func fromGobreaker(s gobreaker.State) State {
	switch s {
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	case gobreaker.StateOpen:
		return StateOpen
	default:
		return StateClosed
	}
}
