// Package ratelimit 提供基于令牌桶的单机限流，用于保护 HTTP 查询网关。
//
// 每个限流键（默认为客户端 IP）拥有独立的 golang.org/x/time/rate 令牌桶，
// 长时间未访问的令牌桶由后台协程定期清理。
//
// ## 基本使用
//
//	limiter, _ := ratelimit.New(&ratelimit.Config{Enabled: true, Rate: 50, Burst: 100},
//	    ratelimit.WithLogger(logger), ratelimit.WithMeter(meter))
//	defer limiter.Close()
//
//	r := gin.New()
//	r.Use(ratelimit.GinMiddleware(limiter, nil))
package ratelimit

import (
	"context"
	"time"
)

// Limit 限流规则（令牌桶算法）
type Limit struct {
	Rate  float64 // 令牌生成速率（每秒生成多少个令牌）
	Burst int     // 令牌桶容量（突发最大请求数）
}

// Limiter 限流器接口
type Limiter interface {
	// Allow 尝试获取 1 个令牌（非阻塞）
	Allow(ctx context.Context, key string) (bool, error)

	// AllowN 尝试获取 N 个令牌（非阻塞）
	AllowN(ctx context.Context, key string, n int) (bool, error)

	// Limit 返回限流规则
	Limit() Limit

	// Close 停止后台清理
	Close() error
}

// Config 限流配置
//
// 典型配置示例（YAML）：
//
//	ratelimit:
//	  enabled: true
//	  rate: 50
//	  burst: 100
//	  cleanup_interval: 1m
//	  idle_timeout: 5m
type Config struct {
	// Enabled 为 false 时 New 返回放行一切的 Limiter
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Rate 每个键每秒生成的令牌数
	Rate float64 `mapstructure:"rate" yaml:"rate"`

	// Burst 每个键的令牌桶容量
	Burst int `mapstructure:"burst" yaml:"burst"`

	// CleanupInterval 清理空闲令牌桶的间隔（默认：1 分钟）
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" yaml:"cleanup_interval"`

	// IdleTimeout 令牌桶空闲超时时间（默认：5 分钟）
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
}

func (c *Config) setDefaults() {
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = time.Minute
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 5 * time.Minute
	}
}

func (c *Config) validate() error {
	if c.Rate <= 0 || c.Burst <= 0 {
		return ErrInvalidLimit
	}
	return nil
}

// New 创建限流器
func New(cfg *Config, opts ...Option) (Limiter, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}
	if !cfg.Enabled {
		return Discard(), nil
	}
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return newStandalone(cfg, applyOptions(opts))
}

type noopLimiter struct{}

// Discard 返回放行一切的 Limiter
func Discard() Limiter { return noopLimiter{} }

func (noopLimiter) Allow(context.Context, string) (bool, error)       { return true, nil }
func (noopLimiter) AllowN(context.Context, string, int) (bool, error) { return true, nil }
func (noopLimiter) Limit() Limit                                      { return Limit{} }
func (noopLimiter) Close() error                                      { return nil }
