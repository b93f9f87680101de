package config

import "github.com/ceyewan/srvd/clog"

// Option 加载器选项
type Option func(*options)

type options struct {
	logger    clog.Logger
	defaults  map[string]any
	validator func(Loader) error
}

// WithLogger 注入日志记录器，追加 "config" namespace
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l.WithNamespace("config")
		}
	}
}

// WithDefaults 注册默认值，key 使用点分路径（如 "etcd.endpoints"）。
// 注册过的 key 才能被环境变量覆盖并出现在 Unmarshal 结果中。
func WithDefaults(defaults map[string]any) Option {
	return func(o *options) {
		if o.defaults == nil {
			o.defaults = make(map[string]any, len(defaults))
		}
		for k, v := range defaults {
			o.defaults[k] = v
		}
	}
}

// WithValidator 设置 Load 结束前执行的校验函数
func WithValidator(fn func(Loader) error) Option {
	return func(o *options) {
		o.validator = fn
	}
}

func applyOptions(opts []Option) *options {
	o := &options{logger: clog.Discard()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
