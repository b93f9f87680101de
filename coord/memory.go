package coord

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
)

// MemoryServer 进程内的节点树，可被多个 MemoryStore 会话共享，
// 用来模拟多个客户端连接同一个协调存储。
type MemoryServer struct {
	mu          sync.Mutex
	nodes       map[string]*memNode
	nextSession int64
}

type memNode struct {
	data     []byte
	owner    *MemoryStore // 非 nil 表示临时节点
	session  int64
	children map[string]struct{}
	watches  []memWatch
}

type memWatch struct {
	store *MemoryStore
	fn    WatchFunc
}

// NewMemoryServer 创建只包含根节点的空树
func NewMemoryServer() *MemoryServer {
	return &MemoryServer{
		nodes: map[string]*memNode{
			"/": {children: make(map[string]struct{})},
		},
	}
}

// NewStore 在该树上打开一个新会话
func (s *MemoryServer) NewStore() *MemoryStore {
	s.mu.Lock()
	s.nextSession++
	id := s.nextSession
	s.mu.Unlock()

	m := &MemoryStore{server: s, dispatch: newDispatcher()}
	m.session.Store(id)
	m.state.Store(int32(StateConnected))
	return m
}

// MemoryStore 进程内 Store 实现
type MemoryStore struct {
	server    *MemoryServer
	session   atomic.Int64
	state     atomic.Int32
	closed    atomic.Bool
	dispatch  *dispatcher
	listeners stateListeners
}

var _ Store = (*MemoryStore)(nil)

// NewMemory 创建独占一棵新树的内存存储
func NewMemory() *MemoryStore {
	return NewMemoryServer().NewStore()
}

// Server 返回底层节点树，用于在同一棵树上打开其它会话
func (m *MemoryStore) Server() *MemoryServer {
	return m.server
}

func (m *MemoryStore) check(ctx context.Context, op, path string) error {
	if m.closed.Load() {
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
func (m *MemoryStore) Create(ctx context.Context, path string, data []byte, mode CreateMode) error {
	const op = "create"
	if err := m.check(ctx, op, path); err != nil {
		return err
	}
	if path == "/" {
		return newError(CodeNodeExists, op, path, nil)
	}

	s := m.server
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[path]; ok {
		return newError(CodeNodeExists, op, path, nil)
	}
	parentPath := parentOf(path)
	parent, ok := s.nodes[parentPath]
	if !ok {
		return newError(CodeNoNode, op, path, nil)
	}
	if parent.owner != nil {
		return newError(CodeNoChildrenForEphemerals, op, path, nil)
	}

	n := &memNode{data: slices.Clone(data), children: make(map[string]struct{})}
	if mode == Ephemeral {
		n.owner = m
		n.session = m.session.Load()
	}
	s.nodes[path] = n
	parent.children[path[len(childPrefix(parentPath)):]] = struct{}{}
	s.fireLocked(parent, WatchEvent{Type: EventChildrenChanged, Path: parentPath})
	return nil
}

// Delete 删除节点
func (m *MemoryStore) Delete(ctx context.Context, path string) error {
	const op = "delete"
	if err := m.check(ctx, op, path); err != nil {
		return err
	}
	if path == "/" {
		return newError(CodeBadArguments, op, path, nil)
	}

	s := m.server
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[path]
	if !ok {
		return newError(CodeNoNode, op, path, nil)
	}
	if len(n.children) > 0 {
		return newError(CodeNotEmpty, op, path, nil)
	}
	s.removeLocked(path, n)
	return nil
}

func (s *MemoryServer) removeLocked(path string, n *memNode) {
	delete(s.nodes, path)
	s.fireLocked(n, WatchEvent{Type: EventNodeDeleted, Path: path})

	parentPath := parentOf(path)
	if parent, ok := s.nodes[parentPath]; ok {
		delete(parent.children, path[len(childPrefix(parentPath)):])
		s.fireLocked(parent, WatchEvent{Type: EventChildrenChanged, Path: parentPath})
	}
}

// fireLocked 触发并清空节点上的一次性监听
func (s *MemoryServer) fireLocked(n *memNode, ev WatchEvent) {
	watches := n.watches
	n.watches = nil
	for _, w := range watches {
		fn := w.fn
		w.store.dispatch.post(func() { fn(ev) })
	}
}

// Get 读取节点数据
func (m *MemoryStore) Get(ctx context.Context, path string) ([]byte, error) {
	const op = "get"
	if err := m.check(ctx, op, path); err != nil {
		return nil, err
	}

	s := m.server
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[path]
	if !ok {
		return nil, newError(CodeNoNode, op, path, nil)
	}
	return slices.Clone(n.data), nil
}

// Children 列出子节点
func (m *MemoryStore) Children(ctx context.Context, path string) ([]string, error) {
	return m.children(ctx, "children", path, nil)
}

// ChildrenW 列出子节点并注册一次性监听
func (m *MemoryStore) ChildrenW(ctx context.Context, path string, fn WatchFunc) ([]string, error) {
	return m.children(ctx, "children_w", path, fn)
}

func (m *MemoryStore) children(ctx context.Context, op, path string, fn WatchFunc) ([]string, error) {
	if err := m.check(ctx, op, path); err != nil {
		return nil, err
	}

	s := m.server
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[path]
	if !ok {
		return nil, newError(CodeNoNode, op, path, nil)
	}
	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	slices.Sort(names)

	if fn != nil {
		n.watches = append(n.watches, memWatch{store: m, fn: fn})
	}
	return names, nil
}

// State 返回会话状态
func (m *MemoryStore) State() State {
	return State(m.state.Load())
}

// OnStateChange 订阅会话状态变化
func (m *MemoryStore) OnStateChange(fn StateFunc) func() {
	return m.listeners.add(fn)
}

func (m *MemoryStore) setState(st State) {
	m.state.Store(int32(st))
	for _, fn := range m.listeners.snapshot() {
		fn := fn
		m.dispatch.post(func() { fn(st) })
	}
}

// ExpireSession 模拟会话失效：删除本会话的临时节点，撤销本会话的全部监听，
// 依次通知 StateExpired 与 StateConnected，之后以新会话继续工作。
func (m *MemoryStore) ExpireSession() {
	if m.closed.Load() {
		return
	}
	m.endSession(&Error{Code: CodeSessionExpired, Message: "session expired"})

	s := m.server
	s.mu.Lock()
	s.nextSession++
	m.session.Store(s.nextSession)
	s.mu.Unlock()

	m.setState(StateExpired)
	m.setState(StateConnected)
}

// endSession 撤销本会话的监听并删除本会话创建的临时节点
func (m *MemoryStore) endSession(cause error) {
	s := m.server
	s.mu.Lock()
	defer s.mu.Unlock()

	for path, n := range s.nodes {
		kept := n.watches[:0]
		for _, w := range n.watches {
			if w.store != m {
				kept = append(kept, w)
				continue
			}
			fn, ev := w.fn, WatchEvent{Type: EventNotWatching, Path: path, Err: cause}
			m.dispatch.post(func() { fn(ev) })
		}
		n.watches = kept
	}

	session := m.session.Load()
	var ephemeral []string
	for path, n := range s.nodes {
		if n.owner == m && n.session == session {
			ephemeral = append(ephemeral, path)
		}
	}
	// 临时节点没有子节点，按任意顺序删除都满足约束
	for _, path := range ephemeral {
		if n, ok := s.nodes[path]; ok {
			s.removeLocked(path, n)
		}
	}
}

// Close 关闭会话
func (m *MemoryStore) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}
	m.endSession(&Error{Code: CodeClosing, Message: "store closed"})
	m.setState(StateClosed)
	m.dispatch.stop()
	return nil
}
