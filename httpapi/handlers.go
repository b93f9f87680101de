package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ceyewan/srvd/clog"
	"github.com/ceyewan/srvd/coord"
	"github.com/ceyewan/srvd/loadbalance"
	"github.com/ceyewan/srvd/registry"
	"github.com/ceyewan/srvd/xerrors"
)

// 错误码
const (
	CodeNotFound    = "NOT_FOUND"
	CodeInvalid     = "INVALID_ARGUMENT"
	CodeStore       = "STORE_ERROR"
	CodeUnavailable = "UNAVAILABLE"
	CodeTimeout     = "TIMEOUT"
	CodeInternal    = "INTERNAL"
)

// maxPayloadBytes 通告请求体上限
const maxPayloadBytes = 64 << 10

// ErrorResponse 错误响应
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	// StoreCode 仅在 Code 为 STORE_ERROR 时出现
	StoreCode *int `json:"store_code,omitempty"`
}

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) listDomains(c *gin.Context) {
	domains, err := s.registry.Domains(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"domains": domains})
}

func (s *Server) listTypes(c *gin.Context) {
	domain := c.Param("domain")
	types, err := s.registry.Types(c.Request.Context(), domain)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"domain": domain, "types": types})
}

func (s *Server) listInstances(c *gin.Context) {
	domain, service := c.Param("domain"), c.Param("type")
	list, err := s.registry.Resolve(c.Request.Context(), domain, service)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"domain": domain, "type": service, "instances": list})
}

func (s *Server) pick(c *gin.Context) {
	domain, service := c.Param("domain"), c.Param("type")

	var picker registry.Picker
	switch strategy := c.Query("strategy"); strategy {
	case loadbalance.StrategyRoundRobin:
		picker = s.roundRobin(domain, service)
	default:
		p, err := loadbalance.New(strategy, c.Query("key"))
		if err != nil {
			s.fail(c, err)
			return
		}
		picker = p
	}

	inst, err := s.registry.Pick(c.Request.Context(), domain, service, picker)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"domain": domain, "type": service, "instance": inst})
}

func (s *Server) announce(c *gin.Context) {
	domain, service := c.Param("domain"), c.Param("type")

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPayloadBytes+1))
	if err != nil {
		s.fail(c, xerrors.Wrap(registry.ErrInvalidArgument, "read body"))
		return
	}
	if len(body) > maxPayloadBytes {
		s.fail(c, xerrors.Wrap(registry.ErrInvalidArgument, "payload too large"))
		return
	}

	id, err := s.registry.Announce(c.Request.Context(), domain, service, body)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"domain": domain, "type": service, "id": id})
}

func (s *Server) unannounce(c *gin.Context) {
	domain, service, id := c.Param("domain"), c.Param("type"), c.Param("id")
	if err := s.registry.Unannounce(c.Request.Context(), domain, service, id); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// fail 将错误映射为 HTTP 状态码；NotFound 属于正常结果，不记录日志
func (s *Server) fail(c *gin.Context, err error) {
	status, resp := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(c.Request.Context(), "request failed",
			clog.String("path", c.Request.URL.Path), clog.Error(err))
	}
	c.AbortWithStatusJSON(status, resp)
}

func classify(err error) (int, ErrorResponse) {
	resp := ErrorResponse{Error: err.Error()}
	switch {
	case registry.IsNotFound(err):
		resp.Code = CodeNotFound
		return http.StatusNotFound, resp
	case xerrors.Is(err, xerrors.ErrInvalidInput):
		resp.Code = CodeInvalid
		return http.StatusBadRequest, resp
	case xerrors.Is(err, registry.ErrRegistryClosed):
		resp.Code = CodeUnavailable
		return http.StatusServiceUnavailable, resp
	case errors.Is(err, context.DeadlineExceeded):
		resp.Code = CodeTimeout
		return http.StatusGatewayTimeout, resp
	}
	if se, ok := registry.AsStoreError(err); ok {
		code := int(se.Code)
		resp.Code, resp.StoreCode = CodeStore, &code
		// 删除不存在的实例
		if se.Code == coord.CodeNoNode {
			return http.StatusNotFound, resp
		}
		return http.StatusBadGateway, resp
	}
	resp.Code = CodeInternal
	return http.StatusInternalServerError, resp
}
