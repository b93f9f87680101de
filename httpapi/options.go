package httpapi

import (
	"github.com/ceyewan/srvd/auth"
	"github.com/ceyewan/srvd/clog"
	"github.com/ceyewan/srvd/metrics"
	"github.com/ceyewan/srvd/ratelimit"
)

// Option 组件初始化选项函数
type Option func(*options)

type options struct {
	logger  clog.Logger
	meter   metrics.Meter
	limiter ratelimit.Limiter
	authn   auth.Authenticator
	tracing bool
}

// WithLogger 注入日志记录器
// 组件内部会自动追加 "httpapi" namespace
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l.WithNamespace("httpapi")
		}
	}
}

// WithMeter 注入指标收集器，同时决定 /metrics 暴露的内容
func WithMeter(m metrics.Meter) Option {
	return func(o *options) {
		if m != nil {
			o.meter = m
		}
	}
}

// WithLimiter 使用外部创建的限流器，优先于 Config.RateLimit
func WithLimiter(l ratelimit.Limiter) Option {
	return func(o *options) {
		o.limiter = l
	}
}

// WithAuthenticator 要求写接口（通告、撤销）携带具有 auth.ScopeWrite 的 Token
func WithAuthenticator(a auth.Authenticator) Option {
	return func(o *options) {
		o.authn = a
	}
}

// WithTracing 为每个请求创建入口 Span，使用全局 TracerProvider
func WithTracing() Option {
	return func(o *options) {
		o.tracing = true
	}
}

func applyOptions(opts []Option) *options {
	o := &options{
		logger: clog.Discard(),
		meter:  metrics.Discard(),
		authn:  auth.Discard(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
