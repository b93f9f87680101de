// Package registry 提供基于协调存储的服务通告与发现组件。
//
// 存储布局：
//
//	{prefix}/{domain}/{encodeURIComponent(type)}/{instanceId} -> payload（临时节点）
//
// 例如：
//   - /srv/example.com/http/5f1c...      -> {"host":"10.0.0.1","port":80}
//   - /srv/example.com/my%20svc/9ab2...  -> "10.0.0.2:9000"
//
// 核心能力：
//   - Announce/Unannounce：以临时节点通告实例，会话结束后自动下线
//   - Resolve：有界 LRU 解析缓存；未命中时列出子节点并在同一调用中注册一次性监听，
//     并发读取每个实例（读取时已消失的实例直接跳过），返回随机排列
//   - 监听触发后在后台重新列出并重新注册监听，成功则覆盖缓存并推送 services_changed，
//     失败则移除缓存项，等待下一次未命中重新建立
//   - Domains/Types：枚举域与服务类型
//
// ## 基本使用
//
//	etcdConn, _ := connector.NewEtcd(&cfg.Etcd, connector.WithLogger(logger))
//	defer etcdConn.Close()
//	_ = etcdConn.Connect(ctx)
//
//	store, _ := coord.NewEtcd(etcdConn, &coord.EtcdConfig{SessionTTL: 10})
//	defer store.Close()
//
//	reg, _ := registry.New(store, &registry.Config{Prefix: "/srv"}, registry.WithLogger(logger))
//	defer reg.Close()
//	_ = reg.Connect(ctx)
//
//	id, err := reg.Announce(ctx, "example.com", "http", map[string]any{"host": "10.0.0.1", "port": 80})
//	instances, err := reg.Resolve(ctx, "example.com", "http")
//
// ## 设计原则
//
//   - 借用模型：registry 借用 coord.Store，不负责其生命周期
//   - 找不到实例（ErrNotFound）是正常结果，不记录为错误
//   - 后台刷新没有调用方可以通知，失败时降级为缓存失效
package registry

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/ceyewan/srvd/clog"
	"github.com/ceyewan/srvd/coord"
	"github.com/ceyewan/srvd/idgen"
	"github.com/ceyewan/srvd/xerrors"
)

// New 创建 Registry 实例
//
// 参数:
//   - store: 协调存储，registry 仅借用
//   - cfg: Registry 配置，nil 使用默认配置
//   - opts: 可选参数 (Logger, Meter, IDGenerator)
func New(store coord.Store, cfg *Config, opts ...Option) (Registry, error) {
	if store == nil {
		return nil, xerrors.New("coord store is required")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	opt := applyOptions(opts)

	m, err := newRegistryMetrics(opt.meter)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &registry{
		store:   store,
		cfg:     cfg,
		paths:   paths{prefix: cfg.Prefix},
		logger:  opt.logger,
		ids:     opt.ids,
		watches: newWatchTable(),
		events:  newEmitter(),
		metrics: m,
		ctx:     ctx,
		cancel:  cancel,
		ready:   make(chan struct{}),
	}
	r.cache, err = newResolutionCache(cfg.CacheCapacity, r.onEvict)
	if err != nil {
		cancel()
		return nil, err
	}
	return r, nil
}

type registry struct {
	store   coord.Store
	cfg     *Config
	paths   paths
	logger  clog.Logger
	ids     idgen.Generator
	cache   *resolutionCache
	watches *watchTable
	events  *emitter
	metrics *registryMetrics
	misses  singleflight.Group

	// ctx 随 Close 取消，后台刷新使用
	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool

	connectOnce sync.Once
	stopState   func()
	stateMu     sync.Mutex
	lastState   coord.State
	ready       chan struct{}
	readyOnce   sync.Once
	closeOnce   sync.Once
}

// onEvict 目录被容量淘汰后释放其监听状态，存储上的一次性监听触发时因 token 失效被忽略
func (r *registry) onEvict(path string) {
	if r.watches.evicted(path, r.cache.has) {
		r.logger.Debug("directory evicted from cache", clog.String("path", path))
	}
}

func (r *registry) ensureOpen() error {
	if r.closed.Load() {
		return ErrRegistryClosed
	}
	return nil
}

// Connect 订阅会话状态并等待就绪
func (r *registry) Connect(ctx context.Context) error {
	if err := r.ensureOpen(); err != nil {
		return err
	}

	r.connectOnce.Do(func() {
		r.stateMu.Lock()
		r.lastState = -1
		r.stateMu.Unlock()

		stop := r.store.OnStateChange(r.handleState)
		r.stateMu.Lock()
		r.stopState = stop
		r.stateMu.Unlock()
		r.handleState(r.store.State())
	})

	select {
	case <-r.ready:
		return nil
	case <-r.ctx.Done():
		return ErrRegistryClosed
	case <-ctx.Done():
		return xerrors.Wrap(ctx.Err(), "wait for store session")
	}
}

// handleState 将存储会话状态转为 ready/error/close 事件，同一状态不重复推送
func (r *registry) handleState(st coord.State) {
	if r.closed.Load() {
		return
	}

	r.stateMu.Lock()
	if st == r.lastState {
		r.stateMu.Unlock()
		return
	}
	r.lastState = st
	r.stateMu.Unlock()

	switch st {
	case coord.StateConnected:
		r.readyOnce.Do(func() { close(r.ready) })
		r.logger.Info("store session ready")
		r.events.emit(Event{Type: EventReady, State: st})
	case coord.StateDisconnected:
		r.logger.Warn("store connection lost")
		r.events.emit(Event{Type: EventError, State: st,
			Err: &StoreError{Code: coord.CodeConnectionLoss, Message: "connection lost"}})
	case coord.StateExpired:
		r.logger.Warn("store session expired")
		r.events.emit(Event{Type: EventError, State: st,
			Err: &StoreError{Code: coord.CodeSessionExpired, Message: "session expired"}})
	case coord.StateClosed:
		r.logger.Info("store closed")
		r.emitClose(st)
	}
}

func (r *registry) emitClose(st coord.State) {
	r.closeOnce.Do(func() {
		r.events.emit(Event{Type: EventClose, State: st})
	})
}

// Subscribe 注册事件监听
func (r *registry) Subscribe(l Listener, types ...EventType) uint64 {
	return r.events.subscribe(l, types)
}

// Unsubscribe 取消订阅
func (r *registry) Unsubscribe(id uint64) bool {
	return r.events.unsubscribe(id)
}

// Close 关闭 registry
func (r *registry) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}

	r.cancel()

	r.stateMu.Lock()
	stop := r.stopState
	r.stateMu.Unlock()
	if stop != nil {
		stop()
	}

	r.cache.clear()
	r.watches.reset()
	r.emitClose(coord.StateClosed)
	r.events.clear()

	r.logger.Info("registry closed")
	return nil
}
