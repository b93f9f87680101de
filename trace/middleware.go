package trace

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/stats"
)

// GinMiddleware 为 HTTP 网关的每个请求创建入口 Span
func GinMiddleware(serviceName string) gin.HandlerFunc {
	return otelgin.Middleware(serviceName)
}

// GRPCClientStatsHandler 返回 gRPC 客户端跟踪处理器
func GRPCClientStatsHandler() stats.Handler {
	return otelgrpc.NewClientHandler()
}

// GRPCDialOption 供 registry.NewGRPCClient 附加客户端跟踪
func GRPCDialOption() grpc.DialOption {
	return grpc.WithStatsHandler(GRPCClientStatsHandler())
}
