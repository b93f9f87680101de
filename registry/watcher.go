package registry

import "sync"

// watchPhase 单个目录的监听状态；不在表中即为未监听
type watchPhase int

const (
	// phasePopulating 缓存未命中路径已注册监听，正在读取实例
	phasePopulating watchPhase = iota + 1
	// phaseWatched 缓存已写入，监听有效
	phaseWatched
	// phaseRefreshing 监听已触发，后台刷新进行中
	phaseRefreshing
)

// commitResult 缓存未命中路径完成读取后的处理结果
type commitResult int

const (
	// commitKeep 进入 Watched，无需额外动作
	commitKeep commitResult = iota
	// commitRefresh 读取期间监听已触发，需要立即刷新
	commitRefresh
	// commitDrop 读取期间监听被撤销，缓存项不能保留
	commitDrop
	// commitStale 已被更新的未命中或刷新取代
	commitStale
)

type watchState struct {
	phase watchPhase
	token uint64
	// dirty 读取期间收到了变更通知
	dirty bool
	// revoked 读取期间监听被存储撤销
	revoked bool
}

// watchTable 维护每个目录至多一个有效的一次性监听。
//
// 每次注册监听都会分配新的 token，回调携带注册时的 token，
// 与表中 token 不一致的回调来自被取代的监听，直接忽略。
type watchTable struct {
	mu     sync.Mutex
	next   uint64
	states map[string]*watchState
}

func newWatchTable() *watchTable {
	return &watchTable{states: make(map[string]*watchState)}
}

func (w *watchTable) lookup(path string, token uint64) *watchState {
	st, ok := w.states[path]
	if !ok || st.token != token {
		return nil
	}
	return st
}

// begin 缓存未命中路径即将注册监听
func (w *watchTable) begin(path string) uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.next++
	w.states[path] = &watchState{phase: phasePopulating, token: w.next}
	return w.next
}

// abort 缓存未命中路径失败，放弃该目录的监听
func (w *watchTable) abort(path string, token uint64) {
	w.drop(path, token)
}

// commit 缓存未命中路径读取完成；token 仍有效且监听未被撤销时在锁内执行 store 写入缓存
func (w *watchTable) commit(path string, token uint64, store func()) commitResult {
	w.mu.Lock()
	defer w.mu.Unlock()

	st := w.lookup(path, token)
	switch {
	case st == nil:
		return commitStale
	case st.revoked:
		delete(w.states, path)
		return commitDrop
	case st.dirty:
		store()
		st.phase, st.dirty = phaseRefreshing, false
		return commitRefresh
	default:
		store()
		st.phase = phaseWatched
		return commitKeep
	}
}

// fire 处理变更通知，返回 true 表示调用方需要启动刷新
func (w *watchTable) fire(path string, token uint64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	st := w.lookup(path, token)
	if st == nil {
		return false
	}
	if st.phase == phaseWatched {
		st.phase = phaseRefreshing
		return true
	}
	st.dirty = true
	return false
}

// revoke 处理监听被撤销，返回 true 表示调用方需要立即移除缓存项
func (w *watchTable) revoke(path string, token uint64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	st := w.lookup(path, token)
	if st == nil {
		return false
	}
	if st.phase == phaseWatched {
		delete(w.states, path)
		return true
	}
	st.revoked = true
	return false
}

// rearm 刷新即将重新注册监听，返回新 token；目录已不处于刷新状态时返回 false
func (w *watchTable) rearm(path string, token uint64) (uint64, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	st := w.lookup(path, token)
	if st == nil || st.phase != phaseRefreshing {
		return 0, false
	}
	w.next++
	st.token, st.dirty, st.revoked = w.next, false, false
	return st.token, true
}

// apply token 仍是该目录的有效监听时在锁内执行 store，返回是否执行
func (w *watchTable) apply(path string, token uint64, store func()) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.lookup(path, token) == nil {
		return false
	}
	store()
	return true
}

// evicted 缓存项被容量淘汰后清理处于 Watched 的监听状态。
// 淘汰通知是异步的，cached 在锁内确认该目录没有被重新写入缓存。
func (w *watchTable) evicted(path string, cached func(string) bool) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	st, ok := w.states[path]
	if !ok || st.phase != phaseWatched || cached(path) {
		return false
	}
	delete(w.states, path)
	return true
}

func (w *watchTable) size() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.states)
}

// finish 刷新结束，返回 true 表示刷新期间又有变化，需要再刷新一轮；
// revoked 为 true 表示刷新期间监听被撤销，调用方需移除缓存项
func (w *watchTable) finish(path string, token uint64) (again, revoked bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	st := w.lookup(path, token)
	switch {
	case st == nil:
		return false, false
	case st.revoked:
		delete(w.states, path)
		return false, true
	case st.dirty:
		st.dirty = false
		return true, false
	default:
		st.phase = phaseWatched
		return false, false
	}
}

// drop 移除目录的监听状态，返回 token 是否匹配
func (w *watchTable) drop(path string, token uint64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.lookup(path, token) == nil {
		return false
	}
	delete(w.states, path)
	return true
}

// phase 返回目录当前的监听状态，未监听时返回 0
func (w *watchTable) phase(path string) watchPhase {
	w.mu.Lock()
	defer w.mu.Unlock()
	if st, ok := w.states[path]; ok {
		return st.phase
	}
	return 0
}

func (w *watchTable) reset() {
	w.mu.Lock()
	w.states = make(map[string]*watchState)
	w.mu.Unlock()
}
