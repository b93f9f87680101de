package trace

// Config 链路追踪配置
//
// 典型配置示例（YAML）：
//
//	trace:
//	  enabled: true
//	  service_name: "srvctl"
//	  endpoint: "localhost:4317"
//	  sampler: 1.0
//	  batcher: "batch"
//	  insecure: true
type Config struct {
	// Enabled 为 false 时只生成 TraceID，不导出
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	ServiceName string `mapstructure:"service_name" yaml:"service_name"`

	// Endpoint OTLP gRPC 接收端地址 (如 Tempo/Jaeger)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Sampler 采样率，取值 [0, 1]
	Sampler float64 `mapstructure:"sampler" yaml:"sampler"`

	// Batcher "batch"（默认）或 "simple"
	Batcher string `mapstructure:"batcher" yaml:"batcher"`

	Insecure bool `mapstructure:"insecure" yaml:"insecure"`
}

// DefaultConfig 返回默认配置
func DefaultConfig(serviceName string) *Config {
	return &Config{
		ServiceName: serviceName,
		Endpoint:    "localhost:4317",
		Sampler:     1.0,
		Batcher:     "batch",
		Insecure:    true,
	}
}
