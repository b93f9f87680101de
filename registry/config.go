package registry

import (
	"fmt"
	"strings"
)

// Config Registry 组件配置
//
// 典型配置示例（YAML）：
//
//	registry:
//	  prefix: "/srv"
//	  cache_capacity: 32
//	  fetch_concurrency: 8
//	  coalesce_misses: false
type Config struct {
	// Prefix 存储路径前缀，默认 "/srv"
	Prefix string `mapstructure:"prefix" yaml:"prefix" json:"prefix"`

	// CacheCapacity 解析缓存最多保留的目录数，默认 32
	CacheCapacity int `mapstructure:"cache_capacity" yaml:"cache_capacity" json:"cache_capacity"`

	// FetchConcurrency 读取实例数据的并发上限，默认 8
	FetchConcurrency int `mapstructure:"fetch_concurrency" yaml:"fetch_concurrency" json:"fetch_concurrency"`

	// CoalesceMisses 为 true 时同一目录的并发缓存未命中只发起一次读取，默认 false
	CoalesceMisses bool `mapstructure:"coalesce_misses" yaml:"coalesce_misses" json:"coalesce_misses"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	c := &Config{}
	c.setDefaults()
	return c
}

func (c *Config) setDefaults() {
	if c.Prefix == "" {
		c.Prefix = "/srv"
	}
	if c.CacheCapacity <= 0 {
		c.CacheCapacity = 32
	}
	if c.FetchConcurrency <= 0 {
		c.FetchConcurrency = 8
	}
}

func (c *Config) validate() error {
	c.setDefaults()
	if !strings.HasPrefix(c.Prefix, "/") || c.Prefix == "/" || strings.HasSuffix(c.Prefix, "/") {
		return fmt.Errorf("%w: prefix must start with '/' and must not end with '/': %q", ErrInvalidArgument, c.Prefix)
	}
	if strings.Contains(c.Prefix, "//") {
		return fmt.Errorf("%w: prefix contains an empty segment: %q", ErrInvalidArgument, c.Prefix)
	}
	return nil
}
