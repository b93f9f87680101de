//go:build integration

// 运行测试需要: go test ./coord/... -tags=integration -v
package coord

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcetcd "github.com/testcontainers/testcontainers-go/modules/etcd"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ceyewan/srvd/connector"
)

func startEtcd(t *testing.T) *connector.EtcdConfig {
	ctx := context.Background()
	container, err := tcetcd.Run(ctx, "quay.io/coreos/etcd:v3.5.9")
	require.NoError(t, err, "Failed to start Etcd container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "2379")
	require.NoError(t, err)
	return &connector.EtcdConfig{Endpoints: []string{fmt.Sprintf("%s:%s", host, port.Port())}}
}

func startZooKeeper(t *testing.T) *connector.ZooKeeperConfig {
	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "zookeeper:3.9",
			ExposedPorts: []string{"2181/tcp"},
			WaitingFor:   wait.ForListeningPort("2181/tcp"),
		},
		Started: true,
	})
	require.NoError(t, err, "Failed to start ZooKeeper container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "2181")
	require.NoError(t, err)
	return &connector.ZooKeeperConfig{
		Servers:        []string{fmt.Sprintf("%s:%s", host, port.Port())},
		ConnectTimeout: 30 * time.Second,
	}
}

func TestEtcdStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	cfg := startEtcd(t)

	runStoreSuite(t, func(t *testing.T) (Store, Store) {
		open := func() Store {
			conn, err := connector.NewEtcd(&connector.EtcdConfig{Endpoints: cfg.Endpoints})
			require.NoError(t, err)
			require.NoError(t, conn.Connect(context.Background()))
			s, err := NewEtcd(conn, &EtcdConfig{SessionTTL: 5})
			require.NoError(t, err)
			t.Cleanup(func() {
				_ = s.Close()
				_ = conn.Close()
			})
			return s
		}
		return open(), open()
	})
}

func TestZooKeeperStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	cfg := startZooKeeper(t)

	runStoreSuite(t, func(t *testing.T) (Store, Store) {
		open := func() Store {
			conn, err := connector.NewZooKeeper(&connector.ZooKeeperConfig{
				Servers:        cfg.Servers,
				ConnectTimeout: cfg.ConnectTimeout,
			})
			require.NoError(t, err)
			require.NoError(t, conn.Connect(context.Background()))
			s, err := NewZooKeeper(conn)
			require.NoError(t, err)
			t.Cleanup(func() {
				_ = s.Close()
				_ = conn.Close()
			})
			return s
		}
		return open(), open()
	})
}
