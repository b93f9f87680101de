// Package auth 为 HTTP 网关的写接口提供基于 JWT (HS256) 的访问控制。
//
// 网关的读接口（解析、枚举、选择）保持开放；通告与撤销实例需要携带
// 具有相应 scope 的 Bearer Token：
//
//	authn, _ := auth.New(&auth.Config{Enabled: true, SecretKey: "..."})
//	token, _ := authn.GenerateToken(ctx, "deployer", []string{auth.ScopeWrite}, time.Hour)
//
//	curl -X POST -H "Authorization: Bearer $TOKEN" .../instances
package auth

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/ceyewan/srvd/clog"
)

// ScopeWrite 允许通告与撤销实例
const ScopeWrite = "registry:write"

// Claims JWT 载荷
type Claims struct {
	jwt.RegisteredClaims

	// Scopes 授权范围，如 "registry:write"
	Scopes []string `json:"scopes,omitempty"`
}

// HasScope 判断是否具有 scope
func (c *Claims) HasScope(scope string) bool {
	return slices.Contains(c.Scopes, scope)
}

// Authenticator 签发与校验 Token
type Authenticator interface {
	// GenerateToken 为 subject 签发 Token，ttl <= 0 时使用 Config.TokenTTL
	GenerateToken(ctx context.Context, subject string, scopes []string, ttl time.Duration) (string, error)

	// ValidateToken 校验签名、有效期、签发者与受众，返回载荷
	ValidateToken(ctx context.Context, token string) (*Claims, error)

	// GinMiddleware 校验请求中的 Bearer Token，并要求具有全部 scopes
	GinMiddleware(scopes ...string) gin.HandlerFunc
}

type jwtAuth struct {
	cfg     *Config
	logger  clog.Logger
	metrics *authMetrics
	now     func() time.Time
}

// New 创建 Authenticator，Enabled 为 false 时返回 Discard()
func New(cfg *Config, opts ...Option) (Authenticator, error) {
	if cfg == nil {
		return nil, ErrInvalidConfig
	}
	if !cfg.Enabled {
		return Discard(), nil
	}
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	o := applyOptions(opts)
	m, err := newAuthMetrics(o.meter)
	if err != nil {
		return nil, err
	}
	return &jwtAuth{cfg: cfg, logger: o.logger, metrics: m, now: time.Now}, nil
}

func (a *jwtAuth) GenerateToken(ctx context.Context, subject string, scopes []string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", ErrInvalidClaims
	}
	if ttl <= 0 {
		ttl = a.cfg.TokenTTL
	}

	now := a.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    a.cfg.Issuer,
			Audience:  a.cfg.Audience,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Scopes: scopes,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(a.cfg.SecretKey))
	if err != nil {
		return "", err
	}
	a.logger.InfoContext(ctx, "token issued",
		clog.String("subject", subject), clog.Strings("scopes", scopes), clog.Duration("ttl", ttl))
	return signed, nil
}

func (a *jwtAuth) ValidateToken(ctx context.Context, token string) (*Claims, error) {
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
	}
	if a.cfg.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(a.cfg.Issuer))
	}
	if len(a.cfg.Audience) > 0 {
		parserOpts = append(parserOpts, jwt.WithAudience(a.cfg.Audience[0]))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return []byte(a.cfg.SecretKey), nil
	}, parserOpts...)
	if err != nil {
		var reason string
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			reason, err = "expired", ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
			reason, err = "invalid_signature", ErrInvalidSignature
		default:
			reason, err = "invalid_token", ErrInvalidToken
		}
		a.metrics.observe(ctx, reason)
		return nil, err
	}
	a.metrics.observe(ctx, "success")
	return claims, nil
}

// ClaimsKey gin.Context 中保存 Claims 的键
const ClaimsKey = "auth:claims"

func (a *jwtAuth) GinMiddleware(scopes ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := a.extractToken(c.Request)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error(), "code": "UNAUTHENTICATED"})
			return
		}
		claims, err := a.ValidateToken(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error(), "code": "UNAUTHENTICATED"})
			return
		}
		for _, scope := range scopes {
			if !claims.HasScope(scope) {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
					"error": "missing scope " + scope, "code": "PERMISSION_DENIED",
				})
				return
			}
		}
		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

func (a *jwtAuth) extractToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrMissingToken
	}
	head, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(head, a.cfg.TokenHeadName) || token == "" {
		return "", ErrInvalidToken
	}
	return token, nil
}

// GetClaims 从 gin.Context 获取已校验的 Claims
func GetClaims(c *gin.Context) (*Claims, bool) {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*Claims)
	return claims, ok
}

type noopAuth struct{}

// Discard 返回不做校验的实现：中间件直接放行，不能签发 Token
func Discard() Authenticator { return noopAuth{} }

func (noopAuth) GenerateToken(context.Context, string, []string, time.Duration) (string, error) {
	return "", ErrDisabled
}

func (noopAuth) ValidateToken(context.Context, string) (*Claims, error) {
	return nil, ErrDisabled
}

func (noopAuth) GinMiddleware(...string) gin.HandlerFunc {
	return func(c *gin.Context) { c.Next() }
}
