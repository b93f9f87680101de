package auth

import (
	"time"

	"github.com/ceyewan/srvd/xerrors"
)

// Config 网关鉴权配置
//
//	auth:
//	  enabled: true
//	  secret_key: "${SRVD_AUTH_SECRET_KEY}"
//	  issuer: "srvd"
//	  token_ttl: 1h
type Config struct {
	// Enabled 为 false 时写接口不做校验
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// SecretKey HS256 签名密钥，至少 32 字节
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key"`

	Issuer   string   `mapstructure:"issuer" yaml:"issuer"`
	Audience []string `mapstructure:"audience" yaml:"audience"`

	// TokenTTL 签发 Token 的默认有效期，默认 1h
	TokenTTL time.Duration `mapstructure:"token_ttl" yaml:"token_ttl"`

	// TokenHeadName Authorization 头的前缀，默认 Bearer
	TokenHeadName string `mapstructure:"token_head_name" yaml:"token_head_name"`
}

func (c *Config) setDefaults() {
	if c.TokenTTL <= 0 {
		c.TokenTTL = time.Hour
	}
	if c.TokenHeadName == "" {
		c.TokenHeadName = "Bearer"
	}
}

func (c *Config) validate() error {
	if len(c.SecretKey) < 32 {
		return xerrors.Wrap(ErrInvalidConfig, "secret_key must be at least 32 characters")
	}
	return nil
}
