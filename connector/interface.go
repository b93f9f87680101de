// Package connector 为 srvd 提供协调存储的连接管理能力。
//
// 目前支持两类后端：
//   - Etcd：主后端，coord 包在其上模拟临时节点与一次性监听
//   - ZooKeeper：原生支持临时节点与一次性子节点监听
//
// 基本使用：
//
//	conn, err := connector.NewEtcd(&connector.EtcdConfig{
//		Endpoints: []string{"127.0.0.1:2379"},
//	}, connector.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	defer conn.Close()
//
//	if err := conn.Connect(ctx); err != nil {
//		return err
//	}
//	client := conn.GetClient()
//
// 资源所有权：
//
//	Connector 拥有底层连接的生命周期，应通过 defer 确保 Close() 被调用。
//	coord.Store、registry 等组件仅借用 Connector，不会调用 Close()。
//	应用层应按照 LIFO 顺序释放资源：先关闭依赖 Connector 的组件，再关闭 Connector。
package connector

import (
	"context"

	"github.com/go-zookeeper/zk"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// Connector 定义所有连接器的通用行为，方法均为并发安全。
type Connector interface {
	// Connect 建立连接，幂等。
	//
	// 返回错误：
	//   - ErrConnection: 连接建立失败
	//   - ErrAlreadyClosed: 连接器已关闭
	Connect(ctx context.Context) error

	// Close 关闭连接并释放资源，幂等。
	Close() error

	// HealthCheck 发送测试请求验证连接可用性，并刷新 IsHealthy 的缓存结果。
	HealthCheck(ctx context.Context) error

	// IsHealthy 返回最后一次检查的健康状态，无阻塞。
	IsHealthy() bool

	// Name 返回连接实例名称，用于日志与指标。
	Name() string
}

// TypedConnector 提供类型安全的客户端访问。
type TypedConnector[T any] interface {
	Connector

	// GetClient 返回底层客户端实例，Connect 之前可能返回 nil。
	GetClient() T
}

// EtcdConnector Etcd 连接器接口。
type EtcdConnector interface {
	TypedConnector[*clientv3.Client]
}

// ZooKeeperConnector ZooKeeper 连接器接口。
type ZooKeeperConnector interface {
	TypedConnector[*zk.Conn]

	// SessionEvents 返回会话状态事件流（连接、断开、过期）。
	//
	// 通道只有一个消费者，通常是 coord 的 ZooKeeper 存储；
	// 消费不及时的事件会被丢弃并记录日志。Close 后通道关闭。
	SessionEvents() <-chan zk.Event
}
