package cli

import (
	"context"
	"fmt"

	"github.com/ceyewan/srvd/breaker"
	"github.com/ceyewan/srvd/clog"
	"github.com/ceyewan/srvd/connector"
	"github.com/ceyewan/srvd/coord"
	"github.com/ceyewan/srvd/metrics"
	"github.com/ceyewan/srvd/registry"
	"github.com/ceyewan/srvd/trace"
	"github.com/ceyewan/srvd/xerrors"
)

// StoreFactory 按配置创建协调存储，返回的 release 释放存储及其连接器
type StoreFactory func(ctx context.Context, cfg *AppConfig, logger clog.Logger, meter metrics.Meter) (store coord.Store, release func() error, err error)

// app 一次命令执行所需的全部依赖
type app struct {
	cfg      *AppConfig
	logger   clog.Logger
	meter    metrics.Meter
	registry registry.Registry

	closers []func() error
}

func wireApp(ctx context.Context, cfg *AppConfig, newStore StoreFactory) (a *app, err error) {
	a = &app{cfg: cfg}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	a.logger, err = clog.New(&cfg.Log, clog.WithNamespace("srvctl"))
	if err != nil {
		return nil, xerrors.Wrap(err, "create logger")
	}

	a.meter, err = metrics.New(&cfg.Metrics)
	if err != nil {
		return nil, xerrors.Wrap(err, "create meter")
	}
	a.closers = append(a.closers, func() error { return a.meter.Shutdown(context.Background()) })

	shutdownTrace, err := trace.Init(&cfg.Trace)
	if err != nil {
		return nil, xerrors.Wrap(err, "init tracing")
	}
	a.closers = append(a.closers, func() error { return shutdownTrace(context.Background()) })

	store, release, err := newStore(ctx, cfg, a.logger, a.meter)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, release)

	brk, err := breaker.New(&cfg.Breaker, breaker.WithLogger(a.logger), breaker.WithMeter(a.meter))
	if err != nil {
		return nil, xerrors.Wrap(err, "create circuit breaker")
	}
	if cfg.Breaker.Enabled {
		store = breaker.WrapStore(store, brk)
	}

	a.registry, err = registry.New(store, &cfg.Registry,
		registry.WithLogger(a.logger), registry.WithMeter(a.meter))
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.registry.Close)

	if err := a.registry.Connect(ctx); err != nil {
		return nil, xerrors.Wrap(err, "wait for store session")
	}
	return a, nil
}

// Close 按创建的逆序释放资源
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return xerrors.Combine(errs...)
}

// defaultStoreFactory 根据 Backend 连接 etcd、ZooKeeper 或创建进程内存储
func defaultStoreFactory(ctx context.Context, cfg *AppConfig, logger clog.Logger, meter metrics.Meter) (coord.Store, func() error, error) {
	switch cfg.Backend {
	case BackendEtcd:
		conn, err := connector.NewEtcd(&cfg.Etcd.Conn,
			connector.WithLogger(logger), connector.WithMeter(meter))
		if err != nil {
			return nil, nil, err
		}
		if err := conn.Connect(ctx); err != nil {
			_ = conn.Close()
			return nil, nil, err
		}
		store, err := coord.NewEtcd(conn, &cfg.Etcd.Store, coord.WithLogger(logger))
		if err != nil {
			_ = conn.Close()
			return nil, nil, err
		}
		return store, func() error { return xerrors.Combine(store.Close(), conn.Close()) }, nil

	case BackendZooKeeper:
		conn, err := connector.NewZooKeeper(&cfg.ZooKeeper,
			connector.WithLogger(logger), connector.WithMeter(meter))
		if err != nil {
			return nil, nil, err
		}
		if err := conn.Connect(ctx); err != nil {
			_ = conn.Close()
			return nil, nil, err
		}
		store, err := coord.NewZooKeeper(conn, coord.WithLogger(logger))
		if err != nil {
			_ = conn.Close()
			return nil, nil, err
		}
		return store, func() error { return xerrors.Combine(store.Close(), conn.Close()) }, nil

	case BackendMemory:
		store := coord.NewMemory()
		return store, store.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}
