package auth

import (
	"github.com/rs/zerolog"
)

// ZerologLogger adapts a zerolog.Logger to Logger.
type ZerologLogger struct {
	log zerolog.Logger
}

// NewZerologLogger returns a Logger writing through log.
func NewZerologLogger(log zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{log: log.With().Str("component", "auth").Logger()}
}

func (z *ZerologLogger) Debug(msg string, args ...any) {
	z.log.Debug().Fields(args).Msg(msg)
}

func (z *ZerologLogger) Info(msg string, args ...any) {
	z.log.Info().Fields(args).Msg(msg)
}

func (z *ZerologLogger) Warn(msg string, args ...any) {
	z.log.Warn().Fields(args).Msg(msg)
}

func (z *ZerologLogger) Error(msg string, args ...any) {
	z.log.Error().Fields(args).Msg(msg)
}
