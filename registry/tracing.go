package registry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/ceyewan/srvd/trace"
)

// startSpan 使用全局 TracerProvider 创建 Span；未初始化追踪时为 noop
func startSpan(ctx context.Context, name, domain, service string) (context.Context, oteltrace.Span) {
	return otel.Tracer(trace.TracerName).Start(ctx, name,
		oteltrace.WithSpanKind(oteltrace.SpanKindClient),
		oteltrace.WithAttributes(
			attribute.String(trace.AttrDomain, domain),
			attribute.String(trace.AttrService, service),
		))
}

// endSpan 结束 Span；ErrNotFound 属于正常结果，不标记为错误
func endSpan(span oteltrace.Span, err error) {
	if err != nil && !IsNotFound(err) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
