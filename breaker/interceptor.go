package breaker

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// KeyFunc 从 gRPC 调用中提取熔断 key
type KeyFunc func(fullMethod string, cc *grpc.ClientConn) string

// TargetKey 以拨号目标为 key，如 "srvd:///example.com/_grpc._tcp"
func TargetKey(_ string, cc *grpc.ClientConn) string {
	return cc.Target()
}

// MethodKey 以完整方法名为 key
func MethodKey(fullMethod string, _ *grpc.ClientConn) string {
	return fullMethod
}

// IsRPCFailure 判断 gRPC 错误是否反映后端不可用
func IsRPCFailure(err error) bool {
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Internal, codes.Unknown:
		return true
	default:
		return false
	}
}

// UnaryClientInterceptor 返回 gRPC 一元调用客户端拦截器，keyFunc 为 nil 时使用 TargetKey
//
//	conn, _ := registry.NewGRPCClient(reg, "example.com", "_grpc._tcp",
//		grpc.WithUnaryInterceptor(breaker.UnaryClientInterceptor(brk, nil)))
func UnaryClientInterceptor(brk Breaker, keyFunc KeyFunc) grpc.UnaryClientInterceptor {
	if keyFunc == nil {
		keyFunc = TargetKey
	}
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		err := brk.Execute(ctx, keyFunc(method, cc), func() error {
			return invoker(ctx, method, req, reply, cc, opts...)
		}, IsRPCFailure)
		if err == ErrOpenState {
			return status.Error(codes.Unavailable, ErrOpenState.Error())
		}
		return err
	}
}
