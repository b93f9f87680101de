package connector

import (
	"fmt"
	"time"
)

// EtcdConfig Etcd 连接配置
type EtcdConfig struct {
	// 基础配置（可选，有默认值）
	Name           string        `mapstructure:"name" yaml:"name"`                       // 连接器名称 (默认: "default")
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"` // Connect 探测超时 (默认: 5s)

	// 核心配置
	Endpoints []string `mapstructure:"endpoints" yaml:"endpoints"` // [必填] 连接地址列表
	Username  string   `mapstructure:"username" yaml:"username"`   // [可选] 认证用户
	Password  string   `mapstructure:"password" yaml:"password"`   // [可选] 认证密码

	// 高级配置（可选，有默认值）
	DialTimeout      time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`             // 拨号超时 (默认: 5s)
	KeepAliveTime    time.Duration `mapstructure:"keep_alive_time" yaml:"keep_alive_time"`       // 心跳间隔 (默认: 10s)
	KeepAliveTimeout time.Duration `mapstructure:"keep_alive_timeout" yaml:"keep_alive_timeout"` // 心跳超时 (默认: 3s)
}

// setDefaults 设置默认值
func (c *EtcdConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 5 * time.Second
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.KeepAliveTime == 0 {
		c.KeepAliveTime = 10 * time.Second
	}
	if c.KeepAliveTimeout == 0 {
		c.KeepAliveTimeout = 3 * time.Second
	}
}

func (c *EtcdConfig) validate() error {
	c.setDefaults()
	if len(c.Endpoints) == 0 {
		return fmt.Errorf("etcd endpoints cannot be empty")
	}
	return nil
}

// ZooKeeperConfig ZooKeeper 连接配置
type ZooKeeperConfig struct {
	Name           string        `mapstructure:"name" yaml:"name"`                       // 连接器名称 (默认: "default")
	Servers        []string      `mapstructure:"servers" yaml:"servers"`                 // [必填] 服务器列表，如 "127.0.0.1:2181"
	SessionTimeout time.Duration `mapstructure:"session_timeout" yaml:"session_timeout"` // 会话超时 (默认: 10s)
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"` // 等待会话建立的超时 (默认: 5s)
}

func (c *ZooKeeperConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.SessionTimeout == 0 {
		c.SessionTimeout = 10 * time.Second
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 5 * time.Second
	}
}

func (c *ZooKeeperConfig) validate() error {
	c.setDefaults()
	if len(c.Servers) == 0 {
		return fmt.Errorf("zookeeper servers cannot be empty")
	}
	if c.SessionTimeout < time.Second {
		return fmt.Errorf("zookeeper session timeout must be at least 1s, got %s", c.SessionTimeout)
	}
	return nil
}
