package registry

import (
	"fmt"

	"github.com/ceyewan/srvd/coord"
	"github.com/ceyewan/srvd/xerrors"
)

var (
	// ErrNotFound 目录或域下没有存活成员，或路径本身不存在；属于正常结果
	ErrNotFound = fmt.Errorf("registry: %w", xerrors.ErrNotFound)

	// ErrInvalidArgument 域名、服务类型或实例 ID 不合法
	ErrInvalidArgument = fmt.Errorf("registry: %w", xerrors.ErrInvalidInput)

	// ErrRegistryClosed registry 已关闭
	ErrRegistryClosed = xerrors.New("registry: closed")
)

// StoreError 协调存储返回的非成功结果，携带原始返回码
type StoreError = coord.Error

// IsNotFound 判断错误是否为 ErrNotFound
func IsNotFound(err error) bool {
	return xerrors.Is(err, ErrNotFound)
}

// AsStoreError 从错误链中提取 StoreError
func AsStoreError(err error) (*StoreError, bool) {
	var se *StoreError
	if xerrors.As(err, &se) {
		return se, true
	}
	return nil, false
}

func notFound(format string, args ...any) error {
	return xerrors.Wrapf(ErrNotFound, format, args...)
}

func invalidArgument(format string, args ...any) error {
	return xerrors.Wrapf(ErrInvalidArgument, format, args...)
}
