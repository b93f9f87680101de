// Package coord 定义 srvd 依赖的协调存储抽象。
//
// 存储是一棵层级节点树，提供：
//   - 持久节点与临时节点（临时节点随会话失效自动删除）
//   - 一次性子节点监听：ChildrenW 在列出子节点的同一次调用中注册监听，
//     列出之后发生的变化保证至少触发一次回调，回调触发后监听即失效
//
// 错误以 *Error 表示，Code 沿用 ZooKeeper 的返回码语义，
// 便于上层按 "节点不存在" 与其它失败分别处理。
//
// 后端实现：
//   - NewEtcd：在 etcd 上模拟节点树，会话租约承载临时节点
//   - NewZooKeeper：直接使用 ZooKeeper 原生语义
//   - NewMemory：进程内实现，用于测试与单进程嵌入
//
// Store 借用外部连接器（connector），Close 只释放自身资源，不关闭连接器。
package coord

import (
	"context"
	"strings"
)

// CreateMode 节点创建模式
type CreateMode int

const (
	// Persistent 持久节点
	Persistent CreateMode = iota
	// Ephemeral 临时节点，生命周期绑定创建它的会话
	Ephemeral
)

func (m CreateMode) String() string {
	if m == Ephemeral {
		return "ephemeral"
	}
	return "persistent"
}

// EventType 监听事件类型
type EventType int

const (
	// EventChildrenChanged 被监听节点的子节点集合发生变化
	EventChildrenChanged EventType = iota + 1
	// EventNodeDeleted 被监听节点本身被删除
	EventNodeDeleted
	// EventNotWatching 监听因会话失效或存储关闭而被撤销，不会再有后续通知
	EventNotWatching
)

func (t EventType) String() string {
	switch t {
	case EventChildrenChanged:
		return "children_changed"
	case EventNodeDeleted:
		return "node_deleted"
	case EventNotWatching:
		return "not_watching"
	default:
		return "unknown"
	}
}

// WatchEvent 一次性监听触发时传递的事件
type WatchEvent struct {
	Type EventType
	Path string
	// Err 仅在 EventNotWatching 时可能非空
	Err error
}

// WatchFunc 监听回调，每次注册至多被调用一次，在存储内部的协程中执行，不应长时间阻塞
type WatchFunc func(WatchEvent)

// State 存储会话状态
type State int

const (
	StateConnecting State = iota
	StateConnected
	StateDisconnected
	// StateExpired 会话失效，此前创建的临时节点均已删除
	StateExpired
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateExpired:
		return "expired"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// StateFunc 会话状态变化回调
type StateFunc func(State)

// Store 协调存储接口，所有方法并发安全
type Store interface {
	// Create 创建节点，父节点必须已存在。
	//
	// 返回错误：
	//   - CodeNodeExists: 节点已存在
	//   - CodeNoNode: 父节点不存在
	Create(ctx context.Context, path string, data []byte, mode CreateMode) error

	// Delete 删除节点，节点必须存在且没有子节点。
	Delete(ctx context.Context, path string) error

	// Get 读取节点数据，节点不存在时返回 CodeNoNode。
	Get(ctx context.Context, path string) ([]byte, error)

	// Children 列出直接子节点名称。
	Children(ctx context.Context, path string) ([]string, error)

	// ChildrenW 列出直接子节点名称，并在同一次调用中注册一次性监听。
	// 调用失败时不注册监听。
	ChildrenW(ctx context.Context, path string, fn WatchFunc) ([]string, error)

	// State 返回当前会话状态
	State() State

	// OnStateChange 订阅会话状态变化，返回取消订阅函数
	OnStateChange(fn StateFunc) (cancel func())

	// Close 释放存储资源，撤销所有监听（以 EventNotWatching 通知），幂等
	Close() error
}

// MkdirAll 逐级创建持久节点，已存在的节点不视为错误
func MkdirAll(ctx context.Context, s Store, path string) error {
	if err := validatePath(path); err != nil {
		return err
	}
	if path == "/" {
		return nil
	}

	cur := ""
	for _, seg := range strings.Split(path[1:], "/") {
		cur += "/" + seg
		err := s.Create(ctx, cur, nil, Persistent)
		if err != nil && CodeOf(err) != CodeNodeExists {
			return err
		}
	}
	return nil
}

// validatePath 校验节点路径：以 "/" 开头，不以 "/" 结尾（根除外），不含空段
func validatePath(path string) error {
	if path == "/" {
		return nil
	}
	if !strings.HasPrefix(path, "/") || strings.HasSuffix(path, "/") || strings.Contains(path, "//") {
		return &Error{Code: CodeBadArguments, Op: "validate", Path: path, Message: "invalid path"}
	}
	return nil
}

// parentOf 返回父节点路径
func parentOf(path string) string {
	i := strings.LastIndexByte(path, '/')
	if i <= 0 {
		return "/"
	}
	return path[:i]
}

// childPrefix 返回子节点键前缀
func childPrefix(path string) string {
	if path == "/" {
		return "/"
	}
	return path + "/"
}
