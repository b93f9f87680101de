// Package httpapi 提供只读为主的 HTTP 查询网关，把 Registry 的枚举、解析与选择暴露为 JSON 接口。
//
// 路由：
//
//	GET    /healthz
//	GET    /metrics
//	GET    /v1/domains
//	GET    /v1/domains/:domain/types
//	GET    /v1/domains/:domain/types/:type/instances
//	POST   /v1/domains/:domain/types/:type/instances        通告实例，负载为请求体
//	DELETE /v1/domains/:domain/types/:type/instances/:id
//	GET    /v1/domains/:domain/types/:type/pick?strategy=round_robin&key=...
//
// 写接口在配置 WithAuthenticator 后需要 Bearer Token。
// 服务类型中的 "/" 等字符需要在 URL 中百分号编码。
// 通过网关通告的实例绑定网关自身的存储会话，网关退出后随之下线。
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/ceyewan/srvd/auth"
	"github.com/ceyewan/srvd/clog"
	"github.com/ceyewan/srvd/loadbalance"
	"github.com/ceyewan/srvd/metrics"
	"github.com/ceyewan/srvd/ratelimit"
	"github.com/ceyewan/srvd/registry"
	"github.com/ceyewan/srvd/trace"
	"github.com/ceyewan/srvd/xerrors"
)

// Server HTTP 查询网关
type Server struct {
	cfg      *Config
	registry registry.Registry
	logger   clog.Logger
	meter    metrics.Meter
	limiter  ratelimit.Limiter
	ownLimit bool
	authn    auth.Authenticator
	engine   *gin.Engine

	// 轮询策略需要跨请求保持计数，按目录保存
	mu          sync.Mutex
	roundRobins map[string]*loadbalance.RoundRobin
}

// New 创建网关
//
// 参数:
//   - reg: Registry 实例，网关仅借用
//   - cfg: 网关配置，nil 使用默认配置
//   - opts: 可选参数 (Logger, Meter, Limiter, Authenticator, Tracing)
func New(reg registry.Registry, cfg *Config, opts ...Option) (*Server, error) {
	if reg == nil {
		return nil, xerrors.New("registry is required")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.setDefaults()
	opt := applyOptions(opts)

	s := &Server{
		cfg:         cfg,
		registry:    reg,
		logger:      opt.logger,
		meter:       opt.meter,
		limiter:     opt.limiter,
		authn:       opt.authn,
		roundRobins: make(map[string]*loadbalance.RoundRobin),
	}
	if s.limiter == nil {
		l, err := ratelimit.New(&cfg.RateLimit,
			ratelimit.WithLogger(opt.logger), ratelimit.WithMeter(opt.meter))
		if err != nil {
			return nil, xerrors.Wrap(err, "create rate limiter")
		}
		s.limiter, s.ownLimit = l, true
	}

	httpMetrics, err := metrics.NewHTTPServerMetrics(opt.meter, cfg.ServiceName)
	if err != nil {
		return nil, err
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.UseRawPath = true
	engine.UnescapePathValues = true
	engine.Use(gin.Recovery())
	if opt.tracing {
		engine.Use(trace.GinMiddleware(cfg.ServiceName))
	}
	engine.Use(metrics.GinHTTPMiddleware(httpMetrics))
	s.engine = engine
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.engine.GET("/healthz", s.healthz)
	s.engine.GET("/metrics", gin.WrapH(metrics.Handler(s.meter)))

	v1 := s.engine.Group("/v1", ratelimit.GinMiddleware(s.limiter, nil))
	v1.GET("/domains", s.listDomains)
	v1.GET("/domains/:domain/types", s.listTypes)
	v1.GET("/domains/:domain/types/:type/instances", s.listInstances)
	v1.GET("/domains/:domain/types/:type/pick", s.pick)

	write := s.authn.GinMiddleware(auth.ScopeWrite)
	v1.POST("/domains/:domain/types/:type/instances", write, s.announce)
	v1.DELETE("/domains/:domain/types/:type/instances/:id", write, s.unannounce)
}

// Handler 返回网关的 http.Handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run 监听 Config.Addr 直到 ctx 结束，随后优雅关闭
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.cfg.Addr, Handler: s.engine}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http gateway listening", clog.String("addr", s.cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return xerrors.Wrap(err, "http gateway")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancel()
	s.logger.Info("http gateway shutting down")
	return srv.Shutdown(shutdownCtx)
}

// Close 释放网关自己创建的限流器；Registry 由调用方关闭
func (s *Server) Close() error {
	if s.ownLimit {
		return s.limiter.Close()
	}
	return nil
}

func (s *Server) roundRobin(domain, service string) *loadbalance.RoundRobin {
	key := domain + "\x00" + service
	s.mu.Lock()
	defer s.mu.Unlock()
	rr, ok := s.roundRobins[key]
	if !ok {
		rr = loadbalance.NewRoundRobin()
		s.roundRobins[key] = rr
	}
	return rr
}
