package breaker

import "github.com/ceyewan/srvd/xerrors"

var (
	// ErrConfigNil 配置为空
	ErrConfigNil = xerrors.New("breaker: config is nil")

	// ErrInvalidConfig 配置取值非法
	ErrInvalidConfig = xerrors.Wrap(xerrors.ErrInvalidInput, "breaker: failure_ratio must be within (0, 1]")

	// ErrOpenState 熔断器处于打开状态，或半开状态下探测请求已满
	ErrOpenState = xerrors.Wrap(xerrors.ErrUnavailable, "breaker: circuit open")
)
