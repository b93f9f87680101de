package registry

import (
	"github.com/ceyewan/srvd/clog"
	"github.com/ceyewan/srvd/idgen"
	"github.com/ceyewan/srvd/metrics"
)

// Option 组件初始化选项函数
type Option func(*options)

type options struct {
	logger clog.Logger
	meter  metrics.Meter
	ids    idgen.Generator
}

// WithLogger 注入日志记录器
// 组件内部会自动追加 "registry" namespace
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l.WithNamespace("registry")
		}
	}
}

// WithMeter 注入指标收集器
func WithMeter(m metrics.Meter) Option {
	return func(o *options) {
		if m != nil {
			o.meter = m
		}
	}
}

// WithIDGenerator 替换实例 ID 生成器，默认 UUID v4
func WithIDGenerator(g idgen.Generator) Option {
	return func(o *options) {
		if g != nil {
			o.ids = g
		}
	}
}

func applyOptions(opts []Option) *options {
	o := &options{
		logger: clog.Discard(),
		meter:  metrics.Discard(),
		ids:    idgen.NewUUID(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
