package registry

import (
	"sync"

	"github.com/ceyewan/srvd/coord"
)

// EventType 事件类型
type EventType string

const (
	// EventReady 与协调存储的会话建立（或重新建立）
	EventReady EventType = "ready"
	// EventClose registry 或底层存储已关闭
	EventClose EventType = "close"
	// EventError 底层连接异常，如断开或会话失效
	EventError EventType = "error"
	// EventServicesChanged 某个目录的实例集合在后台刷新后发生变化
	EventServicesChanged EventType = "services_changed"
)

// Event 推送给监听者的事件
type Event struct {
	Type EventType
	// Domain、Service、Instances 仅对 EventServicesChanged 有效
	Domain    string
	Service   string
	Instances []Instance
	// State 触发 ready/error/close 的存储会话状态
	State coord.State
	// Err 仅对 EventError 有效
	Err error
}

// Listener 事件回调，在触发事件的协程中同步执行，不应长时间阻塞
type Listener func(Event)

type subscription struct {
	fn    Listener
	types map[EventType]struct{}
}

func (s subscription) accepts(t EventType) bool {
	if len(s.types) == 0 {
		return true
	}
	_, ok := s.types[t]
	return ok
}

// emitter 监听者注册表
type emitter struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]subscription
}

func newEmitter() *emitter {
	return &emitter{subs: make(map[uint64]subscription)}
}

func (e *emitter) subscribe(fn Listener, types []EventType) uint64 {
	sub := subscription{fn: fn}
	if len(types) > 0 {
		sub.types = make(map[EventType]struct{}, len(types))
		for _, t := range types {
			sub.types[t] = struct{}{}
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	e.subs[e.nextID] = sub
	return e.nextID
}

func (e *emitter) unsubscribe(id uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.subs[id]; !ok {
		return false
	}
	delete(e.subs, id)
	return true
}

// emit 向当前监听者快照同步投递事件，回调中可以安全地订阅或取消订阅
func (e *emitter) emit(ev Event) {
	e.mu.RLock()
	targets := make([]Listener, 0, len(e.subs))
	for _, s := range e.subs {
		if s.accepts(ev.Type) {
			targets = append(targets, s.fn)
		}
	}
	e.mu.RUnlock()

	for _, fn := range targets {
		fn(ev)
	}
}

func (e *emitter) clear() {
	e.mu.Lock()
	e.subs = make(map[uint64]subscription)
	e.mu.Unlock()
}
