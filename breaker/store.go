package breaker

import (
	"context"
	"errors"

	"github.com/ceyewan/srvd/coord"
)

// breakerStore 在每个存储操作外包一层熔断
type breakerStore struct {
	coord.Store
	brk Breaker
}

// WrapStore 返回受熔断保护的存储。
// State、OnStateChange 与 Close 直接透传；watch 回调不受影响。
func WrapStore(inner coord.Store, brk Breaker) coord.Store {
	return &breakerStore{Store: inner, brk: brk}
}

// IsStoreFailure 判断存储错误是否反映后端不可用
func IsStoreFailure(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	switch coord.CodeOf(err) {
	case coord.CodeConnectionLoss, coord.CodeOperationTimeout, coord.CodeSessionExpired, coord.CodeSystemError:
		return true
	default:
		return false
	}
}

func (s *breakerStore) run(ctx context.Context, op, path string, fn func() error) error {
	err := s.brk.Execute(ctx, op, fn, IsStoreFailure)
	if errors.Is(err, ErrOpenState) {
		return &coord.Error{Code: coord.CodeConnectionLoss, Op: op, Path: path, Message: "circuit open", Err: ErrOpenState}
	}
	return err
}

func (s *breakerStore) Create(ctx context.Context, path string, data []byte, mode coord.CreateMode) error {
	return s.run(ctx, "create", path, func() error {
		return s.Store.Create(ctx, path, data, mode)
	})
}

func (s *breakerStore) Delete(ctx context.Context, path string) error {
	return s.run(ctx, "delete", path, func() error {
		return s.Store.Delete(ctx, path)
	})
}

func (s *breakerStore) Get(ctx context.Context, path string) (data []byte, err error) {
	err = s.run(ctx, "get", path, func() error {
		data, err = s.Store.Get(ctx, path)
		return err
	})
	return data, err
}

func (s *breakerStore) Children(ctx context.Context, path string) (children []string, err error) {
	err = s.run(ctx, "children", path, func() error {
		children, err = s.Store.Children(ctx, path)
		return err
	})
	return children, err
}

func (s *breakerStore) ChildrenW(ctx context.Context, path string, fn coord.WatchFunc) (children []string, err error) {
	err = s.run(ctx, "children_w", path, func() error {
		children, err = s.Store.ChildrenW(ctx, path, fn)
		return err
	})
	return children, err
}
