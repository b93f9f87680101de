package registry

import (
	"context"
)

// Registry 服务通告与发现接口
type Registry interface {
	// --- 连接生命周期 ---

	// Connect 订阅存储会话状态并等待会话就绪（触发 ready 事件）。
	// 幂等；会话状态变化之后以 ready/error/close 事件推送。
	Connect(ctx context.Context) error

	// --- 服务通告 ---

	// Announce 在 {prefix}/{domain}/{type} 下创建临时实例节点。
	// 实例 ID 在本地同步生成并总是返回，调用方需要检查 error 才能确认实例可被发现。
	// payload 为 []byte 或 string 时原样保存，其它值序列化为 JSON。
	Announce(ctx context.Context, domain, service string, payload any) (string, error)

	// AnnounceAsync 立即返回实例 ID，创建结果通过通道返回（恰好一个值）
	AnnounceAsync(domain, service string, payload any) (string, <-chan error)

	// Unannounce 删除实例节点；节点不存在同样返回 StoreError
	Unannounce(ctx context.Context, domain, service, id string) error

	// --- 服务发现 ---

	// Resolve 返回目录下全部存活实例的随机排列。
	// 没有存活实例时返回 ErrNotFound，其它存储失败返回 StoreError。
	Resolve(ctx context.Context, domain, service string) ([]Instance, error)

	// Pick 解析目录并用 Picker 选出一个实例，Picker 为 nil 时随机选择
	Pick(ctx context.Context, domain, service string, p Picker) (Instance, error)

	// Watch 解析目录以确保其处于监听状态，并返回该目录的变化事件流。
	// 第一个事件是当前快照；ctx 结束或 registry 关闭时通道关闭。
	Watch(ctx context.Context, domain, service string) (<-chan Event, error)

	// --- 枚举 ---

	// Domains 列出全部域
	Domains(ctx context.Context) ([]string, error)

	// Types 列出域下的全部服务类型（已解码）
	Types(ctx context.Context, domain string) ([]string, error)

	// Services 是 Types 的别名
	Services(ctx context.Context, domain string) ([]string, error)

	// --- 事件 ---

	// Subscribe 注册事件监听，types 为空表示接收全部类型，返回订阅 ID
	Subscribe(l Listener, types ...EventType) uint64

	// Unsubscribe 取消订阅，返回订阅是否存在
	Unsubscribe(id uint64) bool

	// --- 资源管理 ---

	// Close 清空缓存、停止后台刷新、推送 close 事件并移除全部监听者。
	// registry 借用 Store，不会关闭它；本 registry 通告的临时节点随 Store 会话结束而消失。
	Close() error
}

// Picker 从实例列表中选出一个实例
type Picker interface {
	Pick(instances []Instance) (Instance, error)
}

// PickerFunc 将函数适配为 Picker
type PickerFunc func(instances []Instance) (Instance, error)

func (f PickerFunc) Pick(instances []Instance) (Instance, error) { return f(instances) }
