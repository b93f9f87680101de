package auth

import "github.com/ceyewan/srvd/xerrors"

var (
	ErrInvalidToken     = xerrors.New("auth: invalid token")
	ErrExpiredToken     = xerrors.New("auth: token expired")
	ErrMissingToken     = xerrors.New("auth: missing token")
	ErrInvalidClaims    = xerrors.New("auth: invalid claims")
	ErrInvalidSignature = xerrors.New("auth: invalid signature")
	ErrInvalidConfig    = xerrors.Wrap(xerrors.ErrInvalidInput, "auth: invalid config")
	ErrDisabled         = xerrors.New("auth: disabled")
)
