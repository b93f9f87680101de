package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestConfigDefaults(t *testing.T) {
	cfg := &Config{EnvPrefix: "srvd_test"}
	cfg.setDefaults()
	assert.Equal(t, "config", cfg.Name)
	assert.Equal(t, []string{".", "./config"}, cfg.Paths)
	assert.Equal(t, "yaml", cfg.FileType)
	assert.Equal(t, "SRVD_TEST", cfg.EnvPrefix)
}

// TestLoadPrecedence 环境变量 > .env > 环境特定配置 > 基础配置 > 默认值
func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "config.yaml"), `
backend: etcd
etcd:
  endpoints: ["127.0.0.1:2379"]
  dial_timeout: 5s
registry:
  prefix: /srv
  cache_size: 32
`)
	writeFile(t, filepath.Join(dir, "config.dev.yaml"), `
registry:
  cache_size: 64
`)
	writeFile(t, filepath.Join(dir, ".env"), "SRVDT1_LOG_LEVEL=debug\n")

	t.Setenv("SRVDT1_ENV", "dev")
	t.Setenv("SRVDT1_REGISTRY_PREFIX", "/services")
	t.Cleanup(func() { _ = os.Unsetenv("SRVDT1_LOG_LEVEL") })

	l, err := New(&Config{Paths: []string{dir}, EnvPrefix: "SRVDT1"},
		WithDefaults(map[string]any{"log.level": "info", "http.addr": ":8080"}))
	require.NoError(t, err)
	require.NoError(t, l.Load(context.Background()))

	assert.Equal(t, filepath.Join(dir, "config.yaml"), l.ConfigFileUsed())
	assert.Equal(t, "/services", l.Get("registry.prefix"))
	assert.Equal(t, "debug", l.Get("log.level"))
	assert.Equal(t, 64, l.Get("registry.cache_size"))
	assert.Equal(t, "etcd", l.Get("backend"))
	assert.Equal(t, ":8080", l.Get("http.addr"))

	var out struct {
		Etcd struct {
			Endpoints   []string      `mapstructure:"endpoints"`
			DialTimeout time.Duration `mapstructure:"dial_timeout"`
		} `mapstructure:"etcd"`
		Registry struct {
			Prefix    string `mapstructure:"prefix"`
			CacheSize int    `mapstructure:"cache_size"`
		} `mapstructure:"registry"`
	}
	require.NoError(t, l.Unmarshal(&out))
	assert.Equal(t, []string{"127.0.0.1:2379"}, out.Etcd.Endpoints)
	assert.Equal(t, 5*time.Second, out.Etcd.DialTimeout)
	assert.Equal(t, "/services", out.Registry.Prefix)
	assert.Equal(t, 64, out.Registry.CacheSize)
}

// TestLoadWithoutFile 没有配置文件时只使用默认值与环境变量
func TestLoadWithoutFile(t *testing.T) {
	t.Setenv("SRVDT2_ETCD_ENDPOINTS", "10.0.0.1:2379,10.0.0.2:2379")

	l, err := New(&Config{Paths: []string{t.TempDir()}, EnvPrefix: "SRVDT2"},
		WithDefaults(map[string]any{"etcd.endpoints": []string{"127.0.0.1:2379"}}))
	require.NoError(t, err)
	require.NoError(t, l.Load(context.Background()))
	assert.Empty(t, l.ConfigFileUsed())

	var endpoints []string
	require.NoError(t, l.UnmarshalKey("etcd.endpoints", &endpoints))
	assert.Equal(t, []string{"10.0.0.1:2379", "10.0.0.2:2379"}, endpoints)
}

func TestLoadExplicitFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "srvd.yaml")
	writeFile(t, file, "backend: zookeeper\n")

	l, err := New(&Config{File: file, EnvPrefix: "SRVDT3"})
	require.NoError(t, err)
	require.NoError(t, l.Load(context.Background()))
	assert.Equal(t, "zookeeper", l.Get("backend"))

	l, err = New(&Config{File: filepath.Join(dir, "missing.yaml"), EnvPrefix: "SRVDT3"})
	require.NoError(t, err)
	err = l.Load(context.Background())
	assert.ErrorIs(t, err, ErrFileNotFound)
	assert.True(t, IsNotFound(err))
}

func TestLoadValidator(t *testing.T) {
	l, err := New(&Config{Paths: []string{t.TempDir()}, EnvPrefix: "SRVDT4"},
		WithValidator(func(l Loader) error {
			if l.Get("backend") == nil {
				return errors.New("backend is required")
			}
			return nil
		}))
	require.NoError(t, err)

	err = l.Load(context.Background())
	assert.ErrorIs(t, err, ErrValidationFailed)
	assert.True(t, IsInvalidInput(err))
	assert.Contains(t, err.Error(), "backend is required")
}

func TestMustLoadPanics(t *testing.T) {
	assert.Panics(t, func() {
		MustLoad(&Config{File: filepath.Join(t.TempDir(), "missing.yaml")})
	})
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	writeFile(t, file, "registry:\n  cache_size: 32\n")

	l, err := New(&Config{Paths: []string{dir}, EnvPrefix: "SRVDT5"})
	require.NoError(t, err)
	require.NoError(t, l.Load(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := l.Watch(ctx, "registry.cache_size")
	require.NoError(t, err)

	// 给 fsnotify 留出注册时间；先写临时文件再改名，避免读到截断的文件
	time.Sleep(100 * time.Millisecond)
	tmp := filepath.Join(dir, "config.yaml.tmp")
	writeFile(t, tmp, "registry:\n  cache_size: 128\n")
	require.NoError(t, os.Rename(tmp, file))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-ch:
			assert.Equal(t, "registry.cache_size", ev.Key)
			assert.Equal(t, "file", ev.Source)
			if ev.Value != 128 {
				continue
			}
		case <-deadline:
			t.Fatal("no config change event")
		}
		break
	}

	cancel()
	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
}
