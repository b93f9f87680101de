package testkit

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/ceyewan/srvd/connector"
	"github.com/ceyewan/srvd/coord"
)

// GetEtcdConfig 返回 Etcd 测试配置
// 默认连接 localhost:2379，可通过 SRVD_TEST_ETCD_ENDPOINTS 环境变量覆盖（逗号分隔）
func GetEtcdConfig() *connector.EtcdConfig {
	endpoints := []string{"localhost:2379"}
	if v := os.Getenv("SRVD_TEST_ETCD_ENDPOINTS"); v != "" {
		endpoints = strings.Split(v, ",")
	}
	return &connector.EtcdConfig{
		Name:           "test-etcd",
		Endpoints:      endpoints,
		DialTimeout:    2 * time.Second,
		ConnectTimeout: 2 * time.Second,
	}
}

// GetEtcdConnector 获取 Etcd 连接器，etcd 不可用时跳过测试
func GetEtcdConnector(t *testing.T) connector.EtcdConnector {
	t.Helper()
	conn, err := connector.NewEtcd(GetEtcdConfig(), connector.WithLogger(NewLogger()))
	if err != nil {
		t.Fatalf("failed to create etcd connector: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})

	if err := conn.Connect(context.Background()); err != nil {
		t.Skipf("etcd not available: %v", err)
	}
	return conn
}

// GetEtcdStore 在本地 etcd 上打开一个 coord.Store，etcd 不可用时跳过测试
func GetEtcdStore(t *testing.T) coord.Store {
	t.Helper()
	store, err := coord.NewEtcd(GetEtcdConnector(t), &coord.EtcdConfig{SessionTTL: 5},
		coord.WithLogger(NewLogger()))
	if err != nil {
		t.Fatalf("failed to create etcd store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
