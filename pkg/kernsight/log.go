package kernsight

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the process-wide zap logger. Level is read from
// KERNELSIGHT_LOG_LEVEL (DEBUG|INFO|WARN|ERROR), defaulting to INFO.
func NewLogger() (*zap.Logger, error) {
	level := ParseLogLevel(os.Getenv("KERNELSIGHT_LOG_LEVEL"))

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

// ParseLogLevel maps the KERNELSIGHT_LOG_LEVEL values to a zapcore.Level,
// defaulting to Info for anything unrecognized.
func ParseLogLevel(s string) zapcore.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return zapcore.DebugLevel
	case "WARN", "WARNING":
		return zapcore.WarnLevel
	case "ERROR":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// CycleLogFields is the stable field set §7 requires on every executed
// action, rejection, and verification result: cycle_id, phase, signal_type,
// severity, action_type, outcome.
func CycleLogFields(cycleID, phase, signalType, severity, actionType, outcome string) []zap.Field {
	return []zap.Field{
		zap.String("cycle_id", cycleID),
		zap.String("phase", phase),
		zap.String("signal_type", signalType),
		zap.String("severity", severity),
		zap.String("action_type", actionType),
		zap.String("outcome", outcome),
	}
}
