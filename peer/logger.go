package peer

import (
	"github.com/pion/logging"
	"github.com/rs/zerolog"
)

// NewLoggerFactory routes pion's internal logging into l, tagging each
// entry with the pion scope ("ice", "dtls", "pc", ...).
func NewLoggerFactory(l zerolog.Logger) logging.LoggerFactory {
	return loggerFactory{log: l}
}

type loggerFactory struct {
	log zerolog.Logger
}

func (f loggerFactory) NewLogger(scope string) logging.LeveledLogger {
	return leveledLogger{log: f.log.With().Str("scope", scope).Logger()}
}

type leveledLogger struct {
	log zerolog.Logger
}

var _ logging.LeveledLogger = leveledLogger{}

func (l leveledLogger) Trace(msg string) { l.log.Trace().Msg(msg) }
func (l leveledLogger) Tracef(format string, args ...interface{}) {
	l.log.Trace().Msgf(format, args...)
}

func (l leveledLogger) Debug(msg string) { l.log.Debug().Msg(msg) }
func (l leveledLogger) Debugf(format string, args ...interface{}) {
	l.log.Debug().Msgf(format, args...)
}

func (l leveledLogger) Info(msg string) { l.log.Info().Msg(msg) }
func (l leveledLogger) Infof(format string, args ...interface{}) {
	l.log.Info().Msgf(format, args...)
}

func (l leveledLogger) Warn(msg string) { l.log.Warn().Msg(msg) }
func (l leveledLogger) Warnf(format string, args ...interface{}) {
	l.log.Warn().Msgf(format, args...)
}

func (l leveledLogger) Error(msg string) { l.log.Error().Msg(msg) }
func (l leveledLogger) Errorf(format string, args ...interface{}) {
	l.log.Error().Msgf(format, args...)
}
