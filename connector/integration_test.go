//go:build integration

// 运行测试需要: go test ./connector/... -tags=integration -v
package connector

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcetcd "github.com/testcontainers/testcontainers-go/modules/etcd"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ceyewan/srvd/clog"
)

func getTestLogger() clog.Logger {
	logger, err := clog.New(clog.NewDevDefaultConfig())
	if err != nil {
		return clog.Discard()
	}
	return logger
}

func setupEtcdContainer(t *testing.T) *EtcdConfig {
	ctx := context.Background()

	container, err := tcetcd.Run(ctx, "quay.io/coreos/etcd:v3.5.9")
	require.NoError(t, err, "Failed to start Etcd container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	mappedPort, err := container.MappedPort(ctx, "2379")
	require.NoError(t, err)

	return &EtcdConfig{
		Name:        "test-etcd",
		Endpoints:   []string{fmt.Sprintf("%s:%s", host, mappedPort.Port())},
		DialTimeout: 5 * time.Second,
	}
}

func setupZooKeeperContainer(t *testing.T) *ZooKeeperConfig {
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
	mappedPort, err := container.MappedPort(ctx, "2181")
	require.NoError(t, err)

	return &ZooKeeperConfig{
		Name:           "test-zk",
		Servers:        []string{fmt.Sprintf("%s:%s", host, mappedPort.Port())},
		ConnectTimeout: 30 * time.Second,
	}
}

func TestEtcdConnectorIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	cfg := setupEtcdContainer(t)
	conn, err := NewEtcd(cfg, WithLogger(getTestLogger()))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, conn.Connect(ctx))
	require.NoError(t, conn.Connect(ctx))
	assert.True(t, conn.IsHealthy())

	client := conn.GetClient()
	require.NotNil(t, client)
	_, err = client.Put(ctx, "/srv/test", "value")
	require.NoError(t, err)

	require.NoError(t, conn.HealthCheck(ctx))
	require.NoError(t, conn.Close())
	assert.False(t, conn.IsHealthy())
}

func TestZooKeeperConnectorIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	cfg := setupZooKeeperContainer(t)
	conn, err := NewZooKeeper(cfg, WithLogger(getTestLogger()))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, conn.Connect(ctx))
	assert.True(t, conn.IsHealthy())

	client := conn.GetClient()
	_, err = client.Create("/srvd-test", nil, 0, zk.WorldACL(zk.PermAll))
	require.NoError(t, err)
	require.NoError(t, conn.HealthCheck(ctx))

	require.NoError(t, conn.Close())
	assert.False(t, conn.IsHealthy())
}
