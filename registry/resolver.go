package registry

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/resolver"

	"github.com/ceyewan/srvd/clog"
)

// DefaultScheme gRPC 解析器使用的 scheme
const DefaultScheme = "srvd"

// GRPCTarget 返回指向目录的 gRPC 目标地址，形如 srvd:///example.com/my%20svc
func GRPCTarget(domain, service string) string {
	return DefaultScheme + ":///" + domain + "/" + encodeSegment(service)
}

// NewResolverBuilder 创建基于 Registry 的 gRPC resolver.Builder
//
// 地址取自实例负载（见 Instance.Address），目录变化通过 Watch 推送给 gRPC。
func NewResolverBuilder(r Registry, opts ...Option) resolver.Builder {
	return &resolverBuilder{registry: r, logger: applyOptions(opts).logger}
}

// NewGRPCClient 创建一个通过 Registry 发现后端的 gRPC 客户端连接，默认 round_robin 负载均衡
func NewGRPCClient(r Registry, domain, service string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	dialOpts := append([]grpc.DialOption{
		grpc.WithResolvers(NewResolverBuilder(r)),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultServiceConfig(`{"loadBalancingConfig":[{"round_robin":{}}]}`),
	}, opts...)
	return grpc.NewClient(GRPCTarget(domain, service), dialOpts...)
}

type resolverBuilder struct {
	registry Registry
	logger   clog.Logger
}

// Build 创建 resolver
func (b *resolverBuilder) Build(target resolver.Target, cc resolver.ClientConn, _ resolver.BuildOptions) (resolver.Resolver, error) {
	domain, service, err := parseTarget(target)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	events, err := b.registry.Watch(ctx, domain, service)
	if err != nil {
		cancel()
		return nil, err
	}

	r := &grpcResolver{
		registry: b.registry,
		domain:   domain,
		service:  service,
		cc:       cc,
		ctx:      ctx,
		cancel:   cancel,
		logger: b.logger.With(
			clog.String("domain", domain),
			clog.String("service", service)),
	}
	r.wg.Add(1)
	go r.run(events)
	return r, nil
}

// Scheme 返回 scheme
func (b *resolverBuilder) Scheme() string {
	return DefaultScheme
}

// parseTarget 从 srvd:///{domain}/{encodedType} 中取出目录
func parseTarget(target resolver.Target) (string, string, error) {
	p := strings.TrimPrefix(target.URL.EscapedPath(), "/")
	domain, enc, ok := strings.Cut(p, "/")
	if !ok || domain == "" || enc == "" || strings.Contains(enc, "/") {
		return "", "", fmt.Errorf("%w: target %q must be %s:///{domain}/{type}",
			ErrInvalidArgument, target.URL.String(), DefaultScheme)
	}
	return domain, decodeSegment(enc), nil
}

// grpcResolver 将目录的 services_changed 事件转为 gRPC 地址列表
type grpcResolver struct {
	registry Registry
	domain   string
	service  string
	cc       resolver.ClientConn
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	logger   clog.Logger
}

func (r *grpcResolver) run(events <-chan Event) {
	defer r.wg.Done()
	for ev := range events {
		r.push(ev.Instances)
	}
}

// push 推送地址列表；列表为空时保留 gRPC 的旧状态，只报告错误
func (r *grpcResolver) push(instances []Instance) {
	addrs := make([]resolver.Address, 0, len(instances))
	for _, inst := range instances {
		addr, ok := inst.Address()
		if !ok {
			r.logger.Debug("instance has no address, skipped", clog.String("id", inst.ID))
			continue
		}
		addrs = append(addrs, resolver.Address{Addr: addr})
	}

	if len(addrs) == 0 {
		r.logger.Warn("no addressable instances")
		r.cc.ReportError(notFound("no addressable instances for %q in %q", r.service, r.domain))
		return
	}

	if err := r.cc.UpdateState(resolver.State{Addresses: addrs}); err != nil {
		r.logger.Error("failed to update resolver state", clog.Error(err))
	}
}

// ResolveNow 缓存由监听维护，这里只在缓存失效时触发一次重新解析
func (r *grpcResolver) ResolveNow(resolver.ResolveNowOptions) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		list, err := r.registry.Resolve(r.ctx, r.domain, r.service)
		if r.ctx.Err() != nil {
			return
		}
		if err != nil && !IsNotFound(err) {
			r.cc.ReportError(err)
			return
		}
		r.push(list)
	}()
}

// Close 关闭 resolver
func (r *grpcResolver) Close() {
	r.cancel()
	r.wg.Wait()
}
