package config

import "github.com/ceyewan/srvd/xerrors"

var (
	// ErrFileNotFound 显式指定的配置文件不存在
	ErrFileNotFound = xerrors.Wrap(xerrors.ErrNotFound, "config: file not found")

	// ErrValidationFailed 配置校验失败
	ErrValidationFailed = xerrors.Wrap(xerrors.ErrInvalidInput, "config: validation failed")
)

// IsNotFound 检查错误是否为配置未找到
func IsNotFound(err error) bool {
	return xerrors.Is(err, xerrors.ErrNotFound)
}

// IsInvalidInput 检查错误是否为配置格式无效或验证失败
func IsInvalidInput(err error) bool {
	return xerrors.Is(err, xerrors.ErrInvalidInput)
}
