package relink

import (
	"github.com/pkg/errors"
)

var (
	ErrConfiguration    = errors.New("invalid configuration")
	ErrIllegalState     = errors.New("illegal state")
	ErrConnectionClosed = errors.New("connection has been closed")
	ErrCannotConnect    = errors.New("connection cannot be established")
	ErrRateLimit        = errors.New("rate limit exceeded")
)

func configErrorf(format string, args ...any) error {
	return errors.Wrapf(ErrConfiguration, format, args...)
}
