package registry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/ceyewan/srvd/clog"
	"github.com/ceyewan/srvd/coord"
	"github.com/ceyewan/srvd/trace"
)

// Resolve 解析目录下的全部存活实例
func (r *registry) Resolve(ctx context.Context, domain, service string) (list []Instance, err error) {
	start := time.Now()
	ctx, span := startSpan(ctx, trace.SpanResolve, domain, service)
	defer func() {
		r.metrics.observeResolve(ctx, start, err)
		span.SetAttributes(attribute.Int(trace.AttrCount, len(list)))
		endSpan(span, err)
	}()

	if err := r.ensureOpen(); err != nil {
		return nil, err
	}
	if err := validateDirectory(domain, service); err != nil {
		return nil, err
	}

	path := r.paths.directory(domain, service)
	cached, hit := r.cache.get(path)
	r.metrics.observeCache(ctx, hit)
	span.SetAttributes(attribute.Bool(trace.AttrCacheHit, hit))
	if !hit {
		cached, err = r.load(ctx, domain, service, path)
		if err != nil {
			return nil, err
		}
	}

	if len(cached) == 0 {
		return nil, notFound("no records for %q in %q", service, domain)
	}
	return shuffled(cached), nil
}

// load 处理缓存未命中；开启 CoalesceMisses 时同一目录的并发未命中共享一次读取
func (r *registry) load(ctx context.Context, domain, service, path string) ([]Instance, error) {
	if !r.cfg.CoalesceMisses {
		return r.populate(ctx, domain, service, path)
	}
	v, err, _ := r.misses.Do(path, func() (any, error) {
		return r.populate(ctx, domain, service, path)
	})
	if err != nil {
		return nil, err
	}
	return v.([]Instance), nil
}

// populate 列出目录并注册监听，读取全部实例后写入缓存
func (r *registry) populate(ctx context.Context, domain, service, path string) ([]Instance, error) {
	if err := coord.MkdirAll(ctx, r.store, path); err != nil {
		return nil, r.listingError(path, err)
	}

	token := r.watches.begin(path)
	ids, err := r.store.ChildrenW(ctx, path, r.watchFunc(domain, service, path, token))
	if err != nil {
		r.watches.abort(path, token)
		return nil, r.listingError(path, err)
	}

	list, err := r.fetchAll(ctx, path, ids)
	if err != nil {
		r.watches.abort(path, token)
		return nil, err
	}

	// 被取代的读取只返回结果，不覆盖更新的缓存项
	switch r.watches.commit(path, token, func() { r.cache.set(path, list) }) {
	case commitRefresh:
		go r.refresh(domain, service, path, token)
	case commitStale:
		r.logger.Debug("superseded resolve not cached", clog.String("path", path))
	}

	r.logger.Debug("directory resolved",
		clog.String("path", path),
		clog.Int("count", len(list)))
	return list, nil
}

// listingError 目录不存在视为没有成员，其它失败原样返回
func (r *registry) listingError(path string, err error) error {
	if coord.IsNoNode(err) {
		return notFound("directory %q does not exist", path)
	}
	r.logger.Warn("failed to list directory", clog.String("path", path), clog.Error(err))
	return err
}

// fetchAll 并发读取实例数据，结果保持列出顺序；读取时已消失的实例被跳过
func (r *registry) fetchAll(ctx context.Context, path string, ids []string) ([]Instance, error) {
	found := make([]*Instance, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.FetchConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			data, err := r.store.Get(gctx, path+"/"+id)
			if coord.IsNoNode(err) {
				return nil
			}
			if err != nil {
				return err
			}
			inst := newInstance(id, data)
			found[i] = &inst
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	list := make([]Instance, 0, len(ids))
	for _, inst := range found {
		if inst != nil {
			list = append(list, *inst)
		}
	}
	return list, nil
}

// watchFunc 构造携带注册 token 的一次性监听回调
func (r *registry) watchFunc(domain, service, path string, token uint64) coord.WatchFunc {
	return func(ev coord.WatchEvent) {
		if r.closed.Load() {
			return
		}
		if ev.Type == coord.EventNotWatching {
			if r.watches.revoke(path, token) {
				r.cache.remove(path)
				r.logger.Debug("watch revoked, cache entry removed",
					clog.String("path", path), clog.Error(ev.Err))
			}
			return
		}
		if r.watches.fire(path, token) {
			go r.refresh(domain, service, path, token)
		}
	}
}

// refresh 监听触发后重新列出目录、重新注册监听并覆盖缓存。
// 任一步失败都移除缓存项，目录回到未监听状态。
func (r *registry) refresh(domain, service, path string, token uint64) {
	ctx := r.ctx
	for {
		if r.closed.Load() || !r.cache.has(path) {
			r.watches.drop(path, token)
			return
		}

		next, ok := r.watches.rearm(path, token)
		if !ok {
			return
		}
		token = next

		ids, err := r.store.ChildrenW(ctx, path, r.watchFunc(domain, service, path, token))
		var list []Instance
		if err == nil {
			list, err = r.fetchAll(ctx, path, ids)
		}
		if err != nil {
			r.invalidate(ctx, path, token, err)
			return
		}

		if !r.watches.apply(path, token, func() { r.cache.set(path, list) }) {
			return
		}

		again, revoked := r.watches.finish(path, token)
		if revoked {
			r.cache.remove(path)
			return
		}

		r.metrics.observeRefresh(ctx, resultUpdated)
		r.logger.Debug("directory refreshed",
			clog.String("path", path),
			clog.Int("count", len(list)))
		r.events.emit(Event{
			Type:      EventServicesChanged,
			Domain:    domain,
			Service:   service,
			Instances: shuffled(list),
		})

		if !again {
			return
		}
	}
}

// invalidate 后台刷新失败时移除缓存项，等待下一次未命中重新建立
func (r *registry) invalidate(ctx context.Context, path string, token uint64, err error) {
	if !r.watches.drop(path, token) {
		return
	}
	r.cache.remove(path)
	r.metrics.observeRefresh(ctx, resultInvalidated)
	r.logger.Warn("refresh failed, cache entry invalidated",
		clog.String("path", path),
		clog.Error(err))
}

// Pick 解析目录并选出一个实例
func (r *registry) Pick(ctx context.Context, domain, service string, p Picker) (Instance, error) {
	list, err := r.Resolve(ctx, domain, service)
	if err != nil {
		return Instance{}, err
	}
	if p == nil {
		return list[0], nil
	}
	return p.Pick(list)
}

// Watch 返回目录的变化事件流，第一个事件是当前快照
func (r *registry) Watch(ctx context.Context, domain, service string) (<-chan Event, error) {
	if err := r.ensureOpen(); err != nil {
		return nil, err
	}
	if err := validateDirectory(domain, service); err != nil {
		return nil, err
	}

	s := &watchStream{
		ch:     make(chan Event, 16),
		done:   make(chan struct{}),
		logger: r.logger.With(clog.String("domain", domain), clog.String("service", service)),
	}
	id := r.events.subscribe(func(ev Event) {
		switch {
		case ev.Type == EventClose:
			s.stop()
		case ev.Domain == domain && ev.Service == service:
			s.send(ev)
		}
	}, []EventType{EventServicesChanged, EventClose})

	list, err := r.Resolve(ctx, domain, service)
	if err != nil && !IsNotFound(err) {
		r.events.unsubscribe(id)
		return nil, err
	}
	s.prime(Event{Type: EventServicesChanged, Domain: domain, Service: service, Instances: list})

	go func() {
		select {
		case <-ctx.Done():
		case <-r.ctx.Done():
		case <-s.done:
		}
		r.events.unsubscribe(id)
		s.close()
	}()
	return s.ch, nil
}

// watchStream 单个 Watch 调用的事件通道；快照发出前到达的事件暂存，随后按序投递
type watchStream struct {
	mu      sync.Mutex
	ch      chan Event
	primed  bool
	pending []Event
	closed  bool

	done     chan struct{}
	stopOnce sync.Once
	logger   clog.Logger
}

func (s *watchStream) prime(snapshot Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.primed = true
	s.deliverLocked(snapshot)
	for _, ev := range s.pending {
		s.deliverLocked(ev)
	}
	s.pending = nil
}

func (s *watchStream) send(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.primed {
		s.pending = append(s.pending, ev)
		return
	}
	s.deliverLocked(ev)
}

func (s *watchStream) deliverLocked(ev Event) {
	if s.closed {
		return
	}
	select {
	case s.ch <- ev:
	default:
		s.logger.Warn("watch consumer too slow, event dropped")
	}
}

func (s *watchStream) stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

func (s *watchStream) close() {
	s.stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}
