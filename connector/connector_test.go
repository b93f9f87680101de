package connector

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/srvd/clog"
	"github.com/ceyewan/srvd/metrics"
)

// TestEtcdConfigValidation 测试 Etcd 配置验证
func TestEtcdConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *EtcdConfig
		wantErr bool
	}{
		{name: "valid config with defaults", cfg: &EtcdConfig{Endpoints: []string{"localhost:2379"}}},
		{name: "empty endpoints should fail", cfg: &EtcdConfig{}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "default", tt.cfg.Name)
			assert.Equal(t, 5*time.Second, tt.cfg.DialTimeout)
			assert.Equal(t, 5*time.Second, tt.cfg.ConnectTimeout)
			assert.Equal(t, 10*time.Second, tt.cfg.KeepAliveTime)
		})
	}
}

// TestZooKeeperConfigValidation 测试 ZooKeeper 配置验证
func TestZooKeeperConfigValidation(t *testing.T) {
	cfg := &ZooKeeperConfig{Servers: []string{"localhost:2181"}}
	require.NoError(t, cfg.validate())
	assert.Equal(t, 10*time.Second, cfg.SessionTimeout)
	assert.Equal(t, "default", cfg.Name)

	assert.Error(t, (&ZooKeeperConfig{}).validate())
	assert.Error(t, (&ZooKeeperConfig{Servers: []string{"x"}, SessionTimeout: time.Millisecond}).validate())
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := NewEtcd(nil)
	assert.ErrorIs(t, err, ErrConfig)

	_, err = NewEtcd(&EtcdConfig{})
	assert.ErrorIs(t, err, ErrConfig)

	_, err = NewZooKeeper(nil)
	assert.ErrorIs(t, err, ErrConfig)

	_, err = NewZooKeeper(&ZooKeeperConfig{})
	assert.ErrorIs(t, err, ErrConfig)
}

// TestLifecycleWithoutConnect 未连接时的生命周期行为
func TestLifecycleWithoutConnect(t *testing.T) {
	ctx := context.Background()
	opts := []Option{WithLogger(clog.Discard()), WithMeter(metrics.Discard())}

	etcd, err := NewEtcd(&EtcdConfig{Name: "etcd-test", Endpoints: []string{"localhost:2379"}}, opts...)
	require.NoError(t, err)
	assert.Equal(t, "etcd-test", etcd.Name())
	assert.Nil(t, etcd.GetClient())
	assert.False(t, etcd.IsHealthy())
	assert.ErrorIs(t, etcd.HealthCheck(ctx), ErrNotConnected)
	require.NoError(t, etcd.Close())
	require.NoError(t, etcd.Close())
	assert.ErrorIs(t, etcd.Connect(ctx), ErrAlreadyClosed)

	zkc, err := NewZooKeeper(&ZooKeeperConfig{Name: "zk-test", Servers: []string{"localhost:2181"}}, opts...)
	require.NoError(t, err)
	assert.Equal(t, "zk-test", zkc.Name())
	assert.Nil(t, zkc.GetClient())
	assert.ErrorIs(t, zkc.HealthCheck(ctx), ErrNotConnected)
	require.NoError(t, zkc.Close())
	require.NoError(t, zkc.Close())
	assert.ErrorIs(t, zkc.Connect(ctx), ErrAlreadyClosed)

	_, open := <-zkc.SessionEvents()
	assert.False(t, open)
}
