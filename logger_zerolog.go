package relink

import (
	"fmt"

	"github.com/rs/zerolog"
)

type zerologLogger struct {
	zl zerolog.Logger
}

// NewZerologLogger adapts a zerolog.Logger to Logger. Fields added with WithField become
// structured zerolog fields.
func NewZerologLogger(zl zerolog.Logger) Logger {
	return zerologLogger{zl: zl}
}

func (l zerologLogger) WithField(key string, value any) Logger {
	return zerologLogger{zl: l.zl.With().Interface(key, value).Logger()}
}

func (l zerologLogger) Debug(args ...any) { l.zl.Debug().Msg(fmt.Sprint(args...)) }

func (l zerologLogger) Debugf(format string, args ...any) { l.zl.Debug().Msgf(format, args...) }

func (l zerologLogger) Info(args ...any) { l.zl.Info().Msg(fmt.Sprint(args...)) }

func (l zerologLogger) Infof(format string, args ...any) { l.zl.Info().Msgf(format, args...) }

func (l zerologLogger) Warn(args ...any) { l.zl.Warn().Msg(fmt.Sprint(args...)) }

func (l zerologLogger) Warnf(format string, args ...any) { l.zl.Warn().Msgf(format, args...) }

func (l zerologLogger) Error(args ...any) { l.zl.Error().Msg(fmt.Sprint(args...)) }

func (l zerologLogger) Errorf(format string, args ...any) { l.zl.Error().Msgf(format, args...) }
