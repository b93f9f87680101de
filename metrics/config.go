package metrics

// Config 指标系统的配置
//
// 典型配置示例（YAML）：
//
//	metrics:
//	  enabled: true
//	  service_name: "srvd"
//	  version: "v0.1.0"
//	  port: 9090
//	  path: "/metrics"
//	  runtime_metrics: true
type Config struct {
	// Enabled 为 false 时 New 返回 noop Meter
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// ServiceName 作为 OpenTelemetry Resource 的 service.name
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`

	// Version 作为 OpenTelemetry Resource 的 service.version
	Version string `mapstructure:"version" yaml:"version"`

	// Port 大于 0 时启动 Prometheus HTTP 服务器
	Port int `mapstructure:"port" yaml:"port"`

	// Path Prometheus 指标路径，必须以 "/" 开头
	Path string `mapstructure:"path" yaml:"path"`

	// RuntimeMetrics 同时导出 Go 运行时指标（goroutine、GC、内存）
	RuntimeMetrics bool `mapstructure:"runtime_metrics" yaml:"runtime_metrics"`
}

// NewDevDefaultConfig 返回开发环境配置：启用收集但不监听端口
func NewDevDefaultConfig(serviceName string) *Config {
	return &Config{
		Enabled:     true,
		ServiceName: serviceName,
		Version:     "dev",
	}
}
