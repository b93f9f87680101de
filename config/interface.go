// Package config 为 srvd 命令行与网关提供统一的配置加载，基于 Viper 实现。
//
// 来源与优先级（高到低）：
//   - 环境变量，按前缀映射，如 SRVD_ETCD_ENDPOINTS 对应 etcd.endpoints
//   - .env 文件（工作目录与各搜索路径）
//   - 环境特定配置，如 SRVD_ENV=dev 时合并 config.dev.yaml
//   - 基础配置文件 config.yaml
//   - WithDefaults 注册的默认值
//
// 基本使用：
//
//	loader, err := config.New(&config.Config{Paths: []string{"./config"}},
//		config.WithDefaults(map[string]any{"registry.prefix": "/srv"}))
//	if err != nil {
//		return err
//	}
//	if err := loader.Load(ctx); err != nil {
//		return err
//	}
//	var cfg AppConfig
//	err = loader.Unmarshal(&cfg)
//
// 环境变量只对已知的 key 生效：出现在配置文件中或通过 WithDefaults 注册的 key。
package config

import (
	"context"
	"time"
)

// Loader 配置加载器
type Loader interface {
	// Load 加载配置并开始监听配置文件变化
	Load(ctx context.Context) error

	// Get 获取原始配置值
	Get(key string) any

	// Unmarshal 将整个配置反序列化到结构体
	Unmarshal(v any) error

	// UnmarshalKey 将指定 Key 的配置反序列化到结构体
	UnmarshalKey(key string, v any) error

	// Watch 监听配置变化，ctx 结束时通道关闭
	Watch(ctx context.Context, key string) (<-chan Event, error)

	// Validate 验证当前配置
	Validate() error

	// ConfigFileUsed 返回实际加载的配置文件路径，未加载文件时为空
	ConfigFileUsed() string
}

// Event 配置变更事件
type Event struct {
	Key       string
	Value     any
	OldValue  any
	Source    string // 目前只有 "file"
	Timestamp time.Time
}
