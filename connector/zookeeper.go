package connector

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-zookeeper/zk"

	"github.com/ceyewan/srvd/clog"
	"github.com/ceyewan/srvd/xerrors"
)

const sessionEventBuffer = 64

type zookeeperConnector struct {
	cfg     *ZooKeeperConfig
	conn    *zk.Conn
	events  chan zk.Event
	done    chan struct{}
	logger  clog.Logger
	metrics *connMetrics
	healthy atomic.Bool
	closed  bool
	mu      sync.RWMutex
	wg      sync.WaitGroup
}

// NewZooKeeper 创建 ZooKeeper 连接器，不立即建立连接
func NewZooKeeper(cfg *ZooKeeperConfig, opts ...Option) (ZooKeeperConnector, error) {
	if cfg == nil {
		return nil, xerrors.Wrap(ErrConfig, "zookeeper config is nil")
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	opt := applyOptions(opts)
	m, err := newConnMetrics(opt.meter, "zookeeper", cfg.Name)
	if err != nil {
		return nil, err
	}

	return &zookeeperConnector{
		cfg:     cfg,
		events:  make(chan zk.Event, sessionEventBuffer),
		done:    make(chan struct{}),
		logger:  opt.logger.With(clog.String("connector", "zookeeper"), clog.String("name", cfg.Name)),
		metrics: m,
	}, nil
}

// Connect 建立连接并等待会话建立
func (c *zookeeperConnector) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrAlreadyClosed
	}
	if c.conn != nil && c.conn.State() == zk.StateHasSession {
		return nil
	}

	c.logger.Info("attempting to connect to zookeeper", clog.Strings("servers", c.cfg.Servers))

	if c.conn == nil {
		conn, events, err := zk.Connect(c.cfg.Servers, c.cfg.SessionTimeout, zk.WithLogger(zkLogger{c.logger}))
		if err != nil {
			c.metrics.observeConnect(ctx, err)
			c.logger.Error("failed to create zookeeper client", clog.Error(err))
			return fmt.Errorf("zookeeper connector[%s]: %w: %w", c.cfg.Name, ErrConnection, err)
		}
		c.conn = conn
		c.wg.Add(1)
		go c.pump(events)
	}

	if err := c.waitSession(ctx); err != nil {
		c.metrics.observeConnect(ctx, err)
		c.logger.Error("failed to establish zookeeper session", clog.Error(err))
		return fmt.Errorf("zookeeper connector[%s]: %w: %w", c.cfg.Name, ErrConnection, err)
	}

	c.metrics.observeConnect(ctx, nil)
	c.healthy.Store(true)
	c.logger.Info("successfully connected to zookeeper",
		clog.Strings("servers", c.cfg.Servers), clog.Int64("session_id", c.conn.SessionID()))
	return nil
}

func (c *zookeeperConnector) waitSession(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancel()

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		if c.conn.State() == zk.StateHasSession {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// pump 持续消费 zk 的全局事件通道，只转发会话事件；zk 在该通道写满时直接丢弃事件
func (c *zookeeperConnector) pump(events <-chan zk.Event) {
	defer c.wg.Done()
	defer close(c.events)

	for {
		var ev zk.Event
		select {
		case <-c.done:
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			ev = e
		}
		if ev.Type != zk.EventSession {
			continue
		}
		switch ev.State {
		case zk.StateHasSession:
			c.healthy.Store(true)
		case zk.StateDisconnected, zk.StateExpired, zk.StateAuthFailed:
			c.healthy.Store(false)
		}
		c.logger.Debug("zookeeper session event", clog.String("state", ev.State.String()))

		select {
		case c.events <- ev:
		default:
			c.logger.Warn("session event dropped, consumer too slow", clog.String("state", ev.State.String()))
		}
	}
}

// SessionEvents 返回会话状态事件流
func (c *zookeeperConnector) SessionEvents() <-chan zk.Event {
	return c.events
}

// Close 关闭连接
func (c *zookeeperConnector) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.healthy.Store(false)
	c.metrics.observeClose(context.Background())
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		close(c.events)
		return nil
	}

	c.logger.Info("closing zookeeper connection")
	conn.Close()
	close(c.done)
	c.wg.Wait()
	c.logger.Info("zookeeper connection closed successfully")
	return nil
}

// HealthCheck 检查连接健康状态
func (c *zookeeperConnector) HealthCheck(ctx context.Context) error {
	c.mu.RLock()
	conn, closed := c.conn, c.closed
	c.mu.RUnlock()

	if conn == nil || closed {
		c.healthy.Store(false)
		return ErrNotConnected
	}

	if _, _, err := conn.Exists("/"); err != nil {
		c.healthy.Store(false)
		c.logger.Warn("zookeeper health check failed", clog.Error(err))
		return fmt.Errorf("zookeeper connector[%s]: %w: %w", c.cfg.Name, ErrHealthCheck, err)
	}
	c.healthy.Store(true)
	return nil
}

// IsHealthy 返回缓存的健康状态
func (c *zookeeperConnector) IsHealthy() bool {
	return c.healthy.Load()
}

// Name 返回连接器名称
func (c *zookeeperConnector) Name() string {
	return c.cfg.Name
}

// GetClient 返回 ZooKeeper 客户端
func (c *zookeeperConnector) GetClient() *zk.Conn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn
}

// zkLogger 将 zk 客户端日志转到 clog
type zkLogger struct {
	logger clog.Logger
}

func (l zkLogger) Printf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
