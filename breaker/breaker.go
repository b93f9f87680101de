// Package breaker 为协调存储访问与 gRPC 客户端调用提供熔断保护，基于 sony/gobreaker 实现。
//
// 熔断粒度由调用方给出的 key 决定，每个 key 独立统计：
//   - WrapStore 以存储操作名为 key（create、get、children_w ...），
//     只把连接类失败（连接丢失、超时、会话失效）计为失败，节点不存在等业务结果不计入
//   - UnaryClientInterceptor 默认以 gRPC 目标为 key，只把 Unavailable 等传输类状态计为失败
//
// 熔断打开期间请求立即失败：存储操作返回 CodeConnectionLoss 的 coord.Error（错误链包含 ErrOpenState），
// gRPC 调用返回 codes.Unavailable。
//
// 基本使用：
//
//	brk, _ := breaker.New(&breaker.Config{Enabled: true}, breaker.WithLogger(logger))
//	store = breaker.WrapStore(store, brk)
//	reg, _ := registry.New(store, nil)
package breaker

import (
	"context"
	"time"
)

// Breaker 熔断器
type Breaker interface {
	// Execute 在 key 对应的熔断器保护下执行 fn。
	// isFailure 判断 fn 返回的错误是否计入失败，为 nil 时任何错误都计入。
	Execute(ctx context.Context, key string, fn func() error, isFailure func(error) bool) error

	// State 返回 key 对应熔断器的状态，未使用过的 key 为 StateClosed
	State(key string) State
}

// State 熔断器状态
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half_open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Config 熔断器配置
//
//	breaker:
//	  enabled: true
//	  max_requests: 1
//	  timeout: 30s
//	  failure_ratio: 0.6
//	  minimum_requests: 10
type Config struct {
	// Enabled 为 false 时 New 返回直通实现
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// MaxRequests 半开状态下允许通过的探测请求数（默认：1）
	MaxRequests uint32 `mapstructure:"max_requests" yaml:"max_requests"`

	// Interval 闭合状态下清空统计的周期（默认：0，不清空）
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`

	// Timeout 打开状态持续时间，之后进入半开（默认：30s）
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`

	// FailureRatio 失败率阈值（默认：0.6）
	FailureRatio float64 `mapstructure:"failure_ratio" yaml:"failure_ratio"`

	// MinimumRequests 统计窗口内达到该请求数才可能触发熔断（默认：10）
	MinimumRequests uint32 `mapstructure:"minimum_requests" yaml:"minimum_requests"`
}

func (c *Config) setDefaults() {
	if c.MaxRequests == 0 {
		c.MaxRequests = 1
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.FailureRatio <= 0 {
		c.FailureRatio = 0.6
	}
	if c.MinimumRequests == 0 {
		c.MinimumRequests = 10
	}
}

func (c *Config) validate() error {
	if c.FailureRatio > 1 {
		return ErrInvalidConfig
	}
	return nil
}

// New 创建熔断器
//
// 参数:
//   - cfg: 熔断器配置，Enabled 为 false 时返回 Discard()
//   - opts: 可选参数 (Logger, Meter)
func New(cfg *Config, opts ...Option) (Breaker, error) {
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
	return newCircuitBreaker(cfg, applyOptions(opts))
}

type passthrough struct{}

// Discard 返回从不熔断的实现
func Discard() Breaker { return passthrough{} }

func (passthrough) Execute(_ context.Context, _ string, fn func() error, _ func(error) bool) error {
	return fn()
}

func (passthrough) State(string) State { return StateClosed }
