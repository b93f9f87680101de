package httpapi

import (
	"time"

	"github.com/ceyewan/srvd/ratelimit"
)

// Config HTTP 查询网关配置
//
// 典型配置示例（YAML）：
//
//	http:
//	  addr: ":8080"
//	  service_name: "srvd-gateway"
//	  shutdown_timeout: 5s
//	  ratelimit:
//	    enabled: true
//	    rate: 50
//	    burst: 100
type Config struct {
	// Addr 监听地址，默认 ":8080"
	Addr string `mapstructure:"addr" yaml:"addr"`

	// ServiceName 用于 HTTP 指标与链路追踪，默认 "srvd-gateway"
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`

	// ShutdownTimeout 优雅关闭的最长等待时间，默认 5s
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	// RateLimit 按客户端 IP 限流，默认关闭
	RateLimit ratelimit.Config `mapstructure:"ratelimit" yaml:"ratelimit"`
}

func (c *Config) setDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.ServiceName == "" {
		c.ServiceName = "srvd-gateway"
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
}
