package logger

import (
	"go.uber.org/zap"

	"github.com/matheusluizig/imovelguide-integracao-sub000/sym"
)

// Symbol-aware logging helpers. The glyph goes in the `symbol` field, not the
// message, so logs stay queryable by subsystem:
//
//	logger.PulseInfow(log, "Run finished", "integration_id", id)

// PulseInfow logs an info message with the Pulse symbol (꩜)
func PulseInfow(log *zap.SugaredLogger, msg string, keysAndValues ...interface{}) {
	withSymbol(log, sym.Pulse).Infow(msg, keysAndValues...)
}

// PulseWarnw logs a warning message with the Pulse symbol (꩜)
func PulseWarnw(log *zap.SugaredLogger, msg string, keysAndValues ...interface{}) {
	withSymbol(log, sym.Pulse).Warnw(msg, keysAndValues...)
}

// PulseErrorw logs an error message with the Pulse symbol (꩜)
func PulseErrorw(log *zap.SugaredLogger, msg string, keysAndValues ...interface{}) {
	withSymbol(log, sym.Pulse).Errorw(msg, keysAndValues...)
}

// PulseOpenInfow logs startup and recovery with the PulseOpen symbol (✿)
func PulseOpenInfow(log *zap.SugaredLogger, msg string, keysAndValues ...interface{}) {
	withSymbol(log, sym.PulseOpen).Infow(msg, keysAndValues...)
}

// PulseCloseInfow logs shutdown with the PulseClose symbol (❀)
func PulseCloseInfow(log *zap.SugaredLogger, msg string, keysAndValues ...interface{}) {
	withSymbol(log, sym.PulseClose).Infow(msg, keysAndValues...)
}

// IXInfow logs feed ingestion progress with the IX symbol (⨳)
func IXInfow(log *zap.SugaredLogger, msg string, keysAndValues ...interface{}) {
	withSymbol(log, sym.IX).Infow(msg, keysAndValues...)
}

// MediaWarnw logs image ingestion problems with the Media symbol (▦)
func MediaWarnw(log *zap.SugaredLogger, msg string, keysAndValues ...interface{}) {
	withSymbol(log, sym.Media).Warnw(msg, keysAndValues...)
}

func withSymbol(log *zap.SugaredLogger, symbol string) *zap.SugaredLogger {
	if log == nil {
		log = Logger
	}
	return log.With(FieldSymbol, symbol)
}
