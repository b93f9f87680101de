package coord

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"go.etcd.io/etcd/api/v3/mvccpb"
	"go.etcd.io/etcd/api/v3/v3rpc/rpctypes"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/status"

	"github.com/ceyewan/srvd/clog"
	"github.com/ceyewan/srvd/connector"
	"github.com/ceyewan/srvd/xerrors"
)

// EtcdConfig etcd 存储配置
type EtcdConfig struct {
	// SessionTTL 会话租约 TTL（秒），临时节点在租约过期后被删除 (默认: 10)
	SessionTTL int `mapstructure:"session_ttl" yaml:"session_ttl"`
}

func (c *EtcdConfig) setDefaults() {
	if c.SessionTTL <= 0 {
		c.SessionTTL = 10
	}
}

// EtcdStore 基于 etcd 的 Store 实现
//
// 每个节点对应一个同名键；临时节点挂在会话租约上；
// ChildrenW 先在修订号 R 上读取子节点，再从 R+1 开始监听，保证两者之间的变化不会丢失。
type EtcdStore struct {
	client *clientv3.Client
	cfg    *EtcdConfig
	logger clog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool
	wg     sync.WaitGroup

	state     atomic.Int32
	listeners stateListeners
	dispatch  *dispatcher

	mu      sync.Mutex
	session *concurrency.Session
}

var _ Store = (*EtcdStore)(nil)

// NewEtcd 基于已连接的 Etcd 连接器创建存储
//
// 存储借用连接器，Close 不会关闭连接器。
func NewEtcd(conn connector.EtcdConnector, cfg *EtcdConfig, opts ...Option) (*EtcdStore, error) {
	if conn == nil {
		return nil, xerrors.New("coord: etcd connector is nil")
	}
	client := conn.GetClient()
	if client == nil {
		return nil, xerrors.Wrap(connector.ErrNotConnected, "coord: etcd connector")
	}
	if cfg == nil {
		cfg = &EtcdConfig{}
	}
	cfg.setDefaults()

	o := applyOptions(opts)
	ctx, cancel := context.WithCancel(context.Background())
	s := &EtcdStore{
		client:   client,
		cfg:      cfg,
		logger:   o.logger.With(clog.String("backend", "etcd")),
		ctx:      ctx,
		cancel:   cancel,
		dispatch: newDispatcher(),
	}
	s.state.Store(int32(StateConnecting))

	s.wg.Add(1)
	go s.monitorConnectivity()
	return s, nil
}

// monitorConnectivity 将 gRPC 连接状态映射为会话状态
func (s *EtcdStore) monitorConnectivity() {
	defer s.wg.Done()

	cc := s.client.ActiveConnection()
	if cc == nil {
		s.setState(StateConnected)
		<-s.ctx.Done()
		return
	}

	st := cc.GetState()
	for {
		switch st {
		case connectivity.Ready, connectivity.Idle:
			s.setState(StateConnected)
		case connectivity.TransientFailure:
			s.setState(StateDisconnected)
		case connectivity.Connecting:
			if s.State() == StateConnected {
				s.setState(StateDisconnected)
			}
		case connectivity.Shutdown:
			s.setState(StateClosed)
			return
		}
		if !cc.WaitForStateChange(s.ctx, st) {
			return
		}
		st = cc.GetState()
	}
}

func (s *EtcdStore) setState(st State) {
	if State(s.state.Swap(int32(st))) == st {
		return
	}
	s.logger.Debug("session state changed", clog.String("state", st.String()))
	for _, fn := range s.listeners.snapshot() {
		fn := fn
		s.dispatch.post(func() { fn(st) })
	}
}

// State 返回会话状态
func (s *EtcdStore) State() State {
	return State(s.state.Load())
}

// OnStateChange 订阅会话状态变化
func (s *EtcdStore) OnStateChange(fn StateFunc) func() {
	return s.listeners.add(fn)
}

// leaseID 返回当前会话租约，必要时创建新会话
func (s *EtcdStore) leaseID(ctx context.Context) (clientv3.LeaseID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session != nil {
		select {
		case <-s.session.Done():
			s.session = nil
		default:
			return s.session.Lease(), nil
		}
	}

	sess, err := concurrency.NewSession(s.client,
		concurrency.WithTTL(s.cfg.SessionTTL),
		concurrency.WithContext(s.ctx))
	if err != nil {
		return clientv3.NoLease, err
	}
	s.session = sess
	s.logger.Info("etcd session created", clog.Int64("lease", int64(sess.Lease())))

	s.wg.Add(1)
	go s.watchSession(sess)
	return sess.Lease(), nil
}

// watchSession 会话租约丢失时通知 StateExpired，后续的临时节点创建会建立新会话
func (s *EtcdStore) watchSession(sess *concurrency.Session) {
	defer s.wg.Done()

	<-sess.Done()
	if s.closed.Load() {
		return
	}

	s.mu.Lock()
	if s.session == sess {
		s.session = nil
	}
	s.mu.Unlock()

	s.logger.Warn("etcd session expired", clog.Int64("lease", int64(sess.Lease())))
	prev := s.State()
	s.setState(StateExpired)
	if prev == StateConnected {
		s.setState(StateConnected)
	}
}

func (s *EtcdStore) check(ctx context.Context, op, path string) error {
	if s.closed.Load() {
		return &Error{Code: CodeClosing, Op: op, Path: path, Message: "store closed"}
	}
	if err := ctx.Err(); err != nil {
		return newError(CodeOf(err), op, path, err)
	}
	if err := validatePath(path); err != nil {
		e := err.(*Error)
		e.Op = op
		return e
	}
	return nil
}

// Create 创建节点
func (s *EtcdStore) Create(ctx context.Context, path string, data []byte, mode CreateMode) error {
	const op = "create"
	if err := s.check(ctx, op, path); err != nil {
		return err
	}
	if path == "/" {
		return newError(CodeNodeExists, op, path, nil)
	}

	var putOpts []clientv3.OpOption
	if mode == Ephemeral {
		lease, err := s.leaseID(ctx)
		if err != nil {
			return s.mapError(op, path, err)
		}
		putOpts = append(putOpts, clientv3.WithLease(lease))
	}

	parent := parentOf(path)
	cmps := []clientv3.Cmp{clientv3.Compare(clientv3.CreateRevision(path), "=", 0)}
	elseOps := []clientv3.Op{clientv3.OpGet(path, clientv3.WithCountOnly())}
	if parent != "/" {
		cmps = append(cmps,
			clientv3.Compare(clientv3.CreateRevision(parent), ">", 0),
			clientv3.Compare(clientv3.LeaseValue(parent), "=", clientv3.NoLease))
		elseOps = append(elseOps, clientv3.OpGet(parent, clientv3.WithCountOnly()))
	}

	resp, err := s.client.Txn(ctx).
		If(cmps...).
		Then(clientv3.OpPut(path, string(data), putOpts...)).
		Else(elseOps...).
		Commit()
	if err != nil {
		return s.mapError(op, path, err)
	}
	if resp.Succeeded {
		return nil
	}

	if resp.Responses[0].GetResponseRange().Count > 0 {
		return newError(CodeNodeExists, op, path, nil)
	}
	if parent != "/" && resp.Responses[1].GetResponseRange().Count == 0 {
		return newError(CodeNoNode, op, path, nil)
	}
	return newError(CodeNoChildrenForEphemerals, op, path, nil)
}

// Delete 删除节点
func (s *EtcdStore) Delete(ctx context.Context, path string) error {
	const op = "delete"
	if err := s.check(ctx, op, path); err != nil {
		return err
	}
	if path == "/" {
		return newError(CodeBadArguments, op, path, nil)
	}

	resp, err := s.client.Txn(ctx).
		If(
			clientv3.Compare(clientv3.CreateRevision(path), ">", 0),
			clientv3.Compare(clientv3.CreateRevision(childPrefix(path)), "=", 0).WithPrefix(),
		).
		Then(clientv3.OpDelete(path)).
		Else(clientv3.OpGet(path, clientv3.WithCountOnly())).
		Commit()
	if err != nil {
		return s.mapError(op, path, err)
	}
	if resp.Succeeded {
		return nil
	}
	if resp.Responses[0].GetResponseRange().Count == 0 {
		return newError(CodeNoNode, op, path, nil)
	}
	return newError(CodeNotEmpty, op, path, nil)
}

// Get 读取节点数据
func (s *EtcdStore) Get(ctx context.Context, path string) ([]byte, error) {
	const op = "get"
	if err := s.check(ctx, op, path); err != nil {
		return nil, err
	}
	if path == "/" {
		return nil, nil
	}

	resp, err := s.client.Get(ctx, path)
	if err != nil {
		return nil, s.mapError(op, path, err)
	}
	if len(resp.Kvs) == 0 {
		return nil, newError(CodeNoNode, op, path, nil)
	}
	return resp.Kvs[0].Value, nil
}

// Children 列出子节点
func (s *EtcdStore) Children(ctx context.Context, path string) ([]string, error) {
	const op = "children"
	if err := s.check(ctx, op, path); err != nil {
		return nil, err
	}
	names, _, err := s.list(ctx, path)
	if err != nil {
		return nil, s.mapError(op, path, err)
	}
	return names, nil
}

// ChildrenW 列出子节点并注册一次性监听
func (s *EtcdStore) ChildrenW(ctx context.Context, path string, fn WatchFunc) ([]string, error) {
	const op = "children_w"
	if err := s.check(ctx, op, path); err != nil {
		return nil, err
	}
	names, rev, err := s.list(ctx, path)
	if err != nil {
		return nil, s.mapError(op, path, err)
	}

	watchCtx, cancel := context.WithCancel(s.ctx)
	var wch clientv3.WatchChan
	if path == "/" {
		wch = s.client.Watch(clientv3.WithRequireLeader(watchCtx), "/",
			clientv3.WithPrefix(), clientv3.WithRev(rev+1))
	} else {
		// [path, path+"0") 覆盖 path 本身与所有 path+"/" 开头的键
		wch = s.client.Watch(clientv3.WithRequireLeader(watchCtx), path,
			clientv3.WithRange(path+"0"), clientv3.WithRev(rev+1))
	}

	s.wg.Add(1)
	go s.awaitChange(path, wch, cancel, fn)
	return names, nil
}

// awaitChange 等待第一个相关事件，回调一次后退出
func (s *EtcdStore) awaitChange(path string, wch clientv3.WatchChan, cancel context.CancelFunc, fn WatchFunc) {
	defer s.wg.Done()
	defer cancel()

	for resp := range wch {
		if err := resp.Err(); err != nil {
			s.logger.Warn("watch aborted", clog.String("path", path), clog.Error(err))
			fn(WatchEvent{Type: EventNotWatching, Path: path, Err: s.mapError("watch", path, err)})
			return
		}
		for _, ev := range resp.Events {
			if t, ok := classify(path, ev); ok {
				fn(WatchEvent{Type: t, Path: path})
				return
			}
		}
	}
	fn(WatchEvent{Type: EventNotWatching, Path: path, Err: &Error{Code: CodeClosing, Op: "watch", Path: path, Message: "watch closed"}})
}

// classify 判断键事件是否构成对 path 的子节点变化或删除
func classify(path string, ev *clientv3.Event) (EventType, bool) {
	key := string(ev.Kv.Key)
	if key == path {
		if ev.Type == mvccpb.DELETE {
			return EventNodeDeleted, true
		}
		return 0, false
	}

	prefix := childPrefix(path)
	if !strings.HasPrefix(key, prefix) || strings.Contains(key[len(prefix):], "/") {
		return 0, false
	}
	if ev.Type == mvccpb.DELETE || ev.IsCreate() {
		return EventChildrenChanged, true
	}
	return 0, false
}

// list 返回直接子节点名称与读取时的修订号
func (s *EtcdStore) list(ctx context.Context, path string) ([]string, int64, error) {
	prefix := childPrefix(path)
	getChildren := clientv3.OpGet(prefix, clientv3.WithPrefix(), clientv3.WithKeysOnly())

	var (
		kvs []*mvccpb.KeyValue
		rev int64
	)
	if path == "/" {
		resp, err := s.client.Do(ctx, getChildren)
		if err != nil {
			return nil, 0, err
		}
		kvs, rev = resp.Get().Kvs, resp.Get().Header.Revision
	} else {
		resp, err := s.client.Txn(ctx).
			If(clientv3.Compare(clientv3.CreateRevision(path), ">", 0)).
			Then(getChildren).
			Commit()
		if err != nil {
			return nil, 0, err
		}
		if !resp.Succeeded {
			return nil, 0, ErrNoNode
		}
		kvs, rev = resp.Responses[0].GetResponseRange().Kvs, resp.Header.Revision
	}

	names := make([]string, 0, len(kvs))
	for _, kv := range kvs {
		rest := string(kv.Key[len(prefix):])
		if rest == "" || strings.Contains(rest, "/") {
			continue
		}
		names = append(names, rest)
	}
	return names, rev, nil
}

// mapError 将 etcd / gRPC 错误映射为存储返回码
func (s *EtcdStore) mapError(op, path string, err error) error {
	var ce *Error
	if errors.As(err, &ce) {
		if ce.Op == "" {
			return newError(ce.Code, op, path, nil)
		}
		return ce
	}
	if s.closed.Load() {
		return newError(CodeClosing, op, path, err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return newError(CodeOf(err), op, path, err)
	}
	if errors.Is(err, rpctypes.ErrCompacted) || errors.Is(err, rpctypes.ErrFutureRev) {
		return newError(CodeSystemError, op, path, err)
	}
	if errors.Is(err, clientv3.ErrNoAvailableEndpoints) {
		return newError(CodeConnectionLoss, op, path, err)
	}

	code := codes.Unknown
	var ee rpctypes.EtcdError
	if errors.As(err, &ee) {
		code = ee.Code()
	} else if st, ok := status.FromError(err); ok {
		code = st.Code()
	}

	switch code {
	case codes.Unavailable, codes.Canceled, codes.Aborted:
		return newError(CodeConnectionLoss, op, path, err)
	case codes.DeadlineExceeded:
		return newError(CodeOperationTimeout, op, path, err)
	case codes.PermissionDenied, codes.Unauthenticated:
		return newError(CodeNoAuth, op, path, err)
	case codes.InvalidArgument, codes.OutOfRange:
		return newError(CodeBadArguments, op, path, err)
	case codes.NotFound:
		return newError(CodeSessionExpired, op, path, err)
	default:
		return newError(CodeSystemError, op, path, err)
	}
}

// Close 撤销全部监听并撤销会话租约（删除本会话的临时节点），不关闭连接器
func (s *EtcdStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	s.mu.Lock()
	sess := s.session
	s.session = nil
	s.mu.Unlock()

	var err error
	if sess != nil {
		err = sess.Close()
	}

	s.cancel()
	s.wg.Wait()
	s.setState(StateClosed)
	s.dispatch.stop()
	s.logger.Info("etcd store closed")
	return err
}
