package connector

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/ceyewan/srvd/clog"
	"github.com/ceyewan/srvd/xerrors"
)

type etcdConnector struct {
	cfg     *EtcdConfig
	client  *clientv3.Client
	logger  clog.Logger
	metrics *connMetrics
	healthy atomic.Bool
	closed  bool
	mu      sync.RWMutex
}

// NewEtcd 创建 Etcd 连接器，不立即建立连接
func NewEtcd(cfg *EtcdConfig, opts ...Option) (EtcdConnector, error) {
	if cfg == nil {
		return nil, xerrors.Wrap(ErrConfig, "etcd config is nil")
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	opt := applyOptions(opts)
	m, err := newConnMetrics(opt.meter, "etcd", cfg.Name)
	if err != nil {
		return nil, err
	}

	return &etcdConnector{
		cfg:     cfg,
		logger:  opt.logger.With(clog.String("connector", "etcd"), clog.String("name", cfg.Name)),
		metrics: m,
	}, nil
}

// Connect 建立连接
func (c *etcdConnector) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrAlreadyClosed
	}
	if c.client != nil && c.healthy.Load() {
		return nil
	}

	c.logger.Info("attempting to connect to etcd", clog.Strings("endpoints", c.cfg.Endpoints))

	if c.client == nil {
		client, err := clientv3.New(clientv3.Config{
			Endpoints:            c.cfg.Endpoints,
			DialTimeout:          c.cfg.DialTimeout,
			DialKeepAliveTime:    c.cfg.KeepAliveTime,
			DialKeepAliveTimeout: c.cfg.KeepAliveTimeout,
			Username:             c.cfg.Username,
			Password:             c.cfg.Password,
			Context:              context.WithoutCancel(ctx),
		})
		if err != nil {
			c.metrics.observeConnect(ctx, err)
			c.logger.Error("failed to create etcd client", clog.Error(err))
			return fmt.Errorf("etcd connector[%s]: %w: %w", c.cfg.Name, ErrConnection, err)
		}
		c.client = client
	}

	// 客户端是惰性拨号的，用一次读请求确认集群可达
	if err := c.probe(ctx); err != nil {
		c.metrics.observeConnect(ctx, err)
		c.logger.Error("failed to connect to etcd", clog.Error(err))
		return fmt.Errorf("etcd connector[%s]: %w: %w", c.cfg.Name, ErrConnection, err)
	}

	c.metrics.observeConnect(ctx, nil)
	c.healthy.Store(true)
	c.logger.Info("successfully connected to etcd", clog.Strings("endpoints", c.cfg.Endpoints))
	return nil
}

func (c *etcdConnector) probe(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancel()
	_, err := c.client.Get(probeCtx, "health-check", clientv3.WithCountOnly())
	return err
}

// Close 关闭连接
func (c *etcdConnector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.healthy.Store(false)
	c.metrics.observeClose(context.Background())

	if c.client == nil {
		return nil
	}

	c.logger.Info("closing etcd connection")
	if err := c.client.Close(); err != nil {
		c.logger.Error("failed to close etcd connection", clog.Error(err))
		return err
	}
	c.logger.Info("etcd connection closed successfully")
	return nil
}

// HealthCheck 检查连接健康状态
func (c *etcdConnector) HealthCheck(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.client == nil || c.closed {
		c.healthy.Store(false)
		return ErrNotConnected
	}

	if err := c.probe(ctx); err != nil {
		c.healthy.Store(false)
		c.logger.Warn("etcd health check failed", clog.Error(err))
		return fmt.Errorf("etcd connector[%s]: %w: %w", c.cfg.Name, ErrHealthCheck, err)
	}

	c.healthy.Store(true)
	return nil
}

// IsHealthy 返回缓存的健康状态
func (c *etcdConnector) IsHealthy() bool {
	return c.healthy.Load()
}

// Name 返回连接器名称
func (c *etcdConnector) Name() string {
	return c.cfg.Name
}

// GetClient 返回 Etcd 客户端
func (c *etcdConnector) GetClient() *clientv3.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client
}
