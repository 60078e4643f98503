package observability

import (
	"fmt"

	"github.com/rs/zerolog"
)

// TemporalLogger bridges the Temporal SDK's log.Logger to zerolog so worker
// and workflow logs land in the same stream as the rest of the service.
type TemporalLogger struct {
	logger zerolog.Logger
}

// NewTemporalLogger wraps logger, tagging SDK output with its own
// component field.
func NewTemporalLogger(logger zerolog.Logger) *TemporalLogger {
	return &TemporalLogger{logger: logger.With().Str("component", "temporal-sdk").Logger()}
}

func (l *TemporalLogger) Debug(msg string, keyvals ...interface{}) {
	emit(l.logger.Debug(), msg, keyvals)
}

func (l *TemporalLogger) Info(msg string, keyvals ...interface{}) {
	emit(l.logger.Info(), msg, keyvals)
}

func (l *TemporalLogger) Warn(msg string, keyvals ...interface{}) {
	emit(l.logger.Warn(), msg, keyvals)
}

func (l *TemporalLogger) Error(msg string, keyvals ...interface{}) {
	emit(l.logger.Error(), msg, keyvals)
}

// emit attaches the SDK's alternating key-value pairs as structured fields.
// Non-string keys are stringified rather than dropped, and a trailing
// value-less key is kept under "extra".
func emit(ev *zerolog.Event, msg string, keyvals []interface{}) {
	for i := 0; i < len(keyvals); i += 2 {
		if i+1 >= len(keyvals) {
			ev = ev.Interface("extra", keyvals[i])
			break
		}
		key, ok := keyvals[i].(string)
		if !ok {
			key = fmt.Sprint(keyvals[i])
		}
		ev = ev.Interface(key, keyvals[i+1])
	}
	ev.Msg(msg)
}
