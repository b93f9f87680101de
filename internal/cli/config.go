package cli

import (
	"fmt"
	"time"

	"github.com/ceyewan/srvd/auth"
	"github.com/ceyewan/srvd/breaker"
	"github.com/ceyewan/srvd/clog"
	"github.com/ceyewan/srvd/config"
	"github.com/ceyewan/srvd/connector"
	"github.com/ceyewan/srvd/coord"
	"github.com/ceyewan/srvd/httpapi"
	"github.com/ceyewan/srvd/metrics"
	"github.com/ceyewan/srvd/registry"
	"github.com/ceyewan/srvd/trace"
)

// 协调存储后端
const (
	BackendEtcd      = "etcd"
	BackendZooKeeper = "zookeeper"
	BackendMemory    = "memory"
)

// AppConfig srvctl 全部配置，对应配置文件的顶层结构
//
//	backend: etcd
//	timeout: 10s
//	etcd:
//	  endpoints: ["127.0.0.1:2379"]
//	  session_ttl: 10
//	zookeeper:
//	  servers: ["127.0.0.1:2181"]
//	registry:
//	  prefix: /srv
//	breaker:
//	  enabled: true
//	log:
//	  level: warn
//	http:
//	  addr: ":8080"
//	auth:
//	  enabled: true
//	  secret_key: "..."
type AppConfig struct {
	Backend string        `mapstructure:"backend"`
	Timeout time.Duration `mapstructure:"timeout"`

	Etcd      EtcdConfig                `mapstructure:"etcd"`
	ZooKeeper connector.ZooKeeperConfig `mapstructure:"zookeeper"`
	Registry  registry.Config           `mapstructure:"registry"`
	Breaker   breaker.Config            `mapstructure:"breaker"`
	Log       clog.Config               `mapstructure:"log"`
	Metrics   metrics.Config            `mapstructure:"metrics"`
	Trace     trace.Config              `mapstructure:"trace"`
	HTTP      httpapi.Config            `mapstructure:"http"`
	Auth      auth.Config               `mapstructure:"auth"`
}

// EtcdConfig 连接参数与存储参数平铺在同一节下
type EtcdConfig struct {
	Conn  connector.EtcdConfig `mapstructure:",squash"`
	Store coord.EtcdConfig     `mapstructure:",squash"`
}

// defaults 注册到加载器，使对应的环境变量（SRVD_ETCD_ENDPOINTS 等）生效
func defaults() map[string]any {
	return map[string]any{
		"backend":                    BackendEtcd,
		"timeout":                    "10s",
		"etcd.endpoints":             []string{"127.0.0.1:2379"},
		"etcd.username":              "",
		"etcd.password":              "",
		"etcd.dial_timeout":          "5s",
		"etcd.session_ttl":           10,
		"zookeeper.servers":          []string{"127.0.0.1:2181"},
		"zookeeper.session_timeout":  "10s",
		"registry.prefix":            "/srv",
		"registry.cache_capacity":    32,
		"registry.fetch_concurrency": 8,
		"registry.coalesce_misses":   false,
		"breaker.enabled":            false,
		"breaker.timeout":            "30s",
		"log.level":                  "warn",
		"log.format":                 "console",
		"log.output":                 "stderr",
		"metrics.enabled":            false,
		"metrics.service_name":       "srvctl",
		"metrics.path":               "/metrics",
		"metrics.runtime_metrics":    true,
		"trace.enabled":              false,
		"trace.service_name":         "srvctl",
		"trace.endpoint":             "localhost:4317",
		"trace.sampler":              1.0,
		"trace.insecure":             true,
		"http.addr":                  ":8080",
		"http.service_name":          "srvd-gateway",
		"http.ratelimit.enabled":     false,
		"http.ratelimit.rate":        50,
		"http.ratelimit.burst":       100,
		"auth.enabled":               false,
		"auth.secret_key":            "",
		"auth.issuer":                "srvd",
		"auth.token_ttl":             "1h",
	}
}

func validateAppConfig(l config.Loader) error {
	switch backend := l.Get("backend"); backend {
	case BackendEtcd, BackendZooKeeper, BackendMemory:
		return nil
	default:
		return fmt.Errorf("unknown backend %v, want one of etcd|zookeeper|memory", backend)
	}
}
