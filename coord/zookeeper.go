package coord

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/go-zookeeper/zk"

	"github.com/ceyewan/srvd/clog"
	"github.com/ceyewan/srvd/connector"
	"github.com/ceyewan/srvd/xerrors"
)

// ZooKeeperStore 基于 ZooKeeper 的 Store 实现，直接使用原生的临时节点与一次性监听
type ZooKeeperStore struct {
	conn   *zk.Conn
	logger clog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool
	wg     sync.WaitGroup

	state     atomic.Int32
	listeners stateListeners
	dispatch  *dispatcher

	mu        sync.Mutex
	ephemeral map[string]struct{}
}

var _ Store = (*ZooKeeperStore)(nil)

// NewZooKeeper 基于已连接的 ZooKeeper 连接器创建存储
//
// 存储消费连接器的会话事件流，同一个连接器只应创建一个 ZooKeeperStore。
func NewZooKeeper(conn connector.ZooKeeperConnector, opts ...Option) (*ZooKeeperStore, error) {
	if conn == nil {
		return nil, xerrors.New("coord: zookeeper connector is nil")
	}
	client := conn.GetClient()
	if client == nil {
		return nil, xerrors.Wrap(connector.ErrNotConnected, "coord: zookeeper connector")
	}

	o := applyOptions(opts)
	ctx, cancel := context.WithCancel(context.Background())
	s := &ZooKeeperStore{
		conn:      client,
		logger:    o.logger.With(clog.String("backend", "zookeeper")),
		ctx:       ctx,
		cancel:    cancel,
		dispatch:  newDispatcher(),
		ephemeral: make(map[string]struct{}),
	}
	if client.State() == zk.StateHasSession {
		s.state.Store(int32(StateConnected))
	}

	s.wg.Add(1)
	go s.pumpSessionEvents(conn.SessionEvents())
	return s, nil
}

func (s *ZooKeeperStore) pumpSessionEvents(events <-chan zk.Event) {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				s.setState(StateClosed)
				return
			}
			switch ev.State {
			case zk.StateHasSession:
				s.setState(StateConnected)
			case zk.StateExpired:
				s.setState(StateExpired)
			case zk.StateDisconnected:
				s.setState(StateDisconnected)
			case zk.StateConnecting:
				if s.State() == StateConnected {
					s.setState(StateDisconnected)
				}
			}
		}
	}
}

func (s *ZooKeeperStore) setState(st State) {
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
func (s *ZooKeeperStore) State() State {
	return State(s.state.Load())
}

// OnStateChange 订阅会话状态变化
func (s *ZooKeeperStore) OnStateChange(fn StateFunc) func() {
	return s.listeners.add(fn)
}

func (s *ZooKeeperStore) check(ctx context.Context, op, path string) error {
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
func (s *ZooKeeperStore) Create(ctx context.Context, path string, data []byte, mode CreateMode) error {
	const op = "create"
	if err := s.check(ctx, op, path); err != nil {
		return err
	}

	var flags int32
	if mode == Ephemeral {
		flags = zk.FlagEphemeral
	}
	if _, err := s.conn.Create(path, data, flags, zk.WorldACL(zk.PermAll)); err != nil {
		return mapZKError(op, path, err)
	}
	if mode == Ephemeral {
		s.mu.Lock()
		s.ephemeral[path] = struct{}{}
		s.mu.Unlock()
	}
	return nil
}

// Delete 删除节点
func (s *ZooKeeperStore) Delete(ctx context.Context, path string) error {
	const op = "delete"
	if err := s.check(ctx, op, path); err != nil {
		return err
	}
	if err := s.conn.Delete(path, -1); err != nil {
		return mapZKError(op, path, err)
	}
	s.mu.Lock()
	delete(s.ephemeral, path)
	s.mu.Unlock()
	return nil
}

// Get 读取节点数据
func (s *ZooKeeperStore) Get(ctx context.Context, path string) ([]byte, error) {
	const op = "get"
	if err := s.check(ctx, op, path); err != nil {
		return nil, err
	}
	data, _, err := s.conn.Get(path)
	if err != nil {
		return nil, mapZKError(op, path, err)
	}
	return data, nil
}

// Children 列出子节点
func (s *ZooKeeperStore) Children(ctx context.Context, path string) ([]string, error) {
	const op = "children"
	if err := s.check(ctx, op, path); err != nil {
		return nil, err
	}
	names, _, err := s.conn.Children(path)
	if err != nil {
		return nil, mapZKError(op, path, err)
	}
	return names, nil
}

// ChildrenW 列出子节点并注册一次性监听
func (s *ZooKeeperStore) ChildrenW(ctx context.Context, path string, fn WatchFunc) ([]string, error) {
	const op = "children_w"
	if err := s.check(ctx, op, path); err != nil {
		return nil, err
	}
	names, _, ch, err := s.conn.ChildrenW(path)
	if err != nil {
		return nil, mapZKError(op, path, err)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		select {
		case <-s.ctx.Done():
			fn(WatchEvent{Type: EventNotWatching, Path: path, Err: &Error{Code: CodeClosing, Op: "watch", Path: path, Message: "store closed"}})
		case ev, ok := <-ch:
			if !ok {
				fn(WatchEvent{Type: EventNotWatching, Path: path, Err: &Error{Code: CodeConnectionLoss, Op: "watch", Path: path}})
				return
			}
			fn(translateZKEvent(path, ev))
		}
	}()
	return names, nil
}

func translateZKEvent(path string, ev zk.Event) WatchEvent {
	switch ev.Type {
	case zk.EventNodeChildrenChanged:
		return WatchEvent{Type: EventChildrenChanged, Path: path}
	case zk.EventNodeDeleted:
		return WatchEvent{Type: EventNodeDeleted, Path: path}
	default:
		var err error
		if ev.Err != nil {
			err = mapZKError("watch", path, ev.Err)
		}
		return WatchEvent{Type: EventNotWatching, Path: path, Err: err}
	}
}

// Close 撤销全部监听并删除本存储创建的临时节点，不关闭连接器
func (s *ZooKeeperStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	s.mu.Lock()
	paths := make([]string, 0, len(s.ephemeral))
	for p := range s.ephemeral {
		paths = append(paths, p)
	}
	s.ephemeral = make(map[string]struct{})
	s.mu.Unlock()

	var errs []error
	for _, p := range paths {
		if err := s.conn.Delete(p, -1); err != nil && !errors.Is(err, zk.ErrNoNode) {
			errs = append(errs, mapZKError("delete", p, err))
		}
	}

	s.cancel()
	s.wg.Wait()
	s.setState(StateClosed)
	s.dispatch.stop()
	s.logger.Info("zookeeper store closed")
	return xerrors.Combine(errs...)
}

// mapZKError 将 zk 客户端错误映射为存储返回码
func mapZKError(op, path string, err error) error {
	code := CodeSystemError
	switch {
	case errors.Is(err, zk.ErrNoNode):
		code = CodeNoNode
	case errors.Is(err, zk.ErrNodeExists):
		code = CodeNodeExists
	case errors.Is(err, zk.ErrNotEmpty):
		code = CodeNotEmpty
	case errors.Is(err, zk.ErrNoChildrenForEphemerals):
		code = CodeNoChildrenForEphemerals
	case errors.Is(err, zk.ErrNoAuth), errors.Is(err, zk.ErrAuthFailed), errors.Is(err, zk.ErrInvalidACL):
		code = CodeNoAuth
	case errors.Is(err, zk.ErrBadVersion):
		code = CodeBadVersion
	case errors.Is(err, zk.ErrBadArguments), errors.Is(err, zk.ErrInvalidPath):
		code = CodeBadArguments
	case errors.Is(err, zk.ErrSessionExpired):
		code = CodeSessionExpired
	case errors.Is(err, zk.ErrConnectionClosed), errors.Is(err, zk.ErrNoServer):
		code = CodeConnectionLoss
	case errors.Is(err, zk.ErrClosing):
		code = CodeClosing
	case errors.Is(err, zk.ErrAPIError):
		code = CodeAPIError
	}
	return newError(code, op, path, err)
}
