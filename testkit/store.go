package testkit

import (
	"context"
	"sync"
	"testing"

	"github.com/ceyewan/srvd/coord"
)

// NewMemoryStore 返回一个测试结束时自动关闭的内存存储
func NewMemoryStore(t *testing.T) *coord.MemoryStore {
	s := coord.NewMemory()
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// Op 存储操作名
type Op string

const (
	OpCreate    Op = "create"
	OpDelete    Op = "delete"
	OpGet       Op = "get"
	OpChildren  Op = "children"
	OpChildrenW Op = "children_w"
)

type fault struct {
	op   Op
	path string
	err  error
	// remaining 剩余生效次数，负数表示一直生效
	remaining int
}

func (f *fault) matches(op Op, path string) bool {
	return f.remaining != 0 && f.op == op && (f.path == "" || f.path == path)
}

type armedWatch struct {
	once sync.Once
	fn   coord.WatchFunc
}

func (w *armedWatch) fire(ev coord.WatchEvent) bool {
	fired := false
	w.once.Do(func() {
		fired = true
		w.fn(ev)
	})
	return fired
}

// FaultStore 包装 coord.Store，统计调用次数并按操作注入错误，
// 同时记录 ChildrenW 注册的监听，测试可以用 FireWatch 手动触发。
type FaultStore struct {
	coord.Store

	mu      sync.Mutex
	calls   map[Op]int
	faults  []*fault
	watches map[string][]*armedWatch
}

// NewFaultStore 包装 inner
func NewFaultStore(inner coord.Store) *FaultStore {
	return &FaultStore{
		Store:   inner,
		calls:   make(map[Op]int),
		watches: make(map[string][]*armedWatch),
	}
}

// Fail 让匹配的操作一直返回 err；path 为空匹配任意路径
func (f *FaultStore) Fail(op Op, path string, err error) {
	f.FailN(op, path, err, -1)
}

// FailOnce 让下一次匹配的操作返回 err
func (f *FaultStore) FailOnce(op Op, path string, err error) {
	f.FailN(op, path, err, 1)
}

// FailN 让接下来 n 次匹配的操作返回 err
func (f *FaultStore) FailN(op Op, path string, err error, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faults = append(f.faults, &fault{op: op, path: path, err: err, remaining: n})
}

// Heal 清除全部注入的错误
func (f *FaultStore) Heal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faults = nil
}

// Calls 返回操作的调用次数
func (f *FaultStore) Calls(op Op) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// ResetCalls 清零调用计数
func (f *FaultStore) ResetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = make(map[Op]int)
}

// Watching 返回 path 上尚未触发的监听数
func (f *FaultStore) Watching(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.watches[path])
}

// FireWatch 同步触发 path 上全部尚未触发的监听，返回触发数
func (f *FaultStore) FireWatch(path string, typ coord.EventType) int {
	f.mu.Lock()
	armed := f.watches[path]
	delete(f.watches, path)
	f.mu.Unlock()

	n := 0
	for _, w := range armed {
		if w.fire(coord.WatchEvent{Type: typ, Path: path}) {
			n++
		}
	}
	return n
}

func (f *FaultStore) enter(op Op, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	for _, ft := range f.faults {
		if ft.matches(op, path) {
			if ft.remaining > 0 {
				ft.remaining--
			}
			return ft.err
		}
	}
	return nil
}

func (f *FaultStore) Create(ctx context.Context, path string, data []byte, mode coord.CreateMode) error {
	if err := f.enter(OpCreate, path); err != nil {
		return err
	}
	return f.Store.Create(ctx, path, data, mode)
}

func (f *FaultStore) Delete(ctx context.Context, path string) error {
	if err := f.enter(OpDelete, path); err != nil {
		return err
	}
	return f.Store.Delete(ctx, path)
}

func (f *FaultStore) Get(ctx context.Context, path string) ([]byte, error) {
	if err := f.enter(OpGet, path); err != nil {
		return nil, err
	}
	return f.Store.Get(ctx, path)
}

func (f *FaultStore) Children(ctx context.Context, path string) ([]string, error) {
	if err := f.enter(OpChildren, path); err != nil {
		return nil, err
	}
	return f.Store.Children(ctx, path)
}

func (f *FaultStore) ChildrenW(ctx context.Context, path string, fn coord.WatchFunc) ([]string, error) {
	if err := f.enter(OpChildrenW, path); err != nil {
		return nil, err
	}

	w := &armedWatch{fn: fn}
	f.mu.Lock()
	f.watches[path] = append(f.watches[path], w)
	f.mu.Unlock()

	names, err := f.Store.ChildrenW(ctx, path, func(ev coord.WatchEvent) {
		f.forget(path, w)
		w.fire(ev)
	})
	if err != nil {
		f.forget(path, w)
		return nil, err
	}
	return names, nil
}

func (f *FaultStore) forget(path string, w *armedWatch) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := f.watches[path]
	for i, x := range list {
		if x == w {
			f.watches[path] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(f.watches[path]) == 0 {
		delete(f.watches, path)
	}
}
