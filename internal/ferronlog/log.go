// Package ferronlog provides the structured logging ambient stack shared by
// every module handler. Prometheus metrics are exported separately by
// internal/metrics; tracing and OTLP export are not part of the core.
package ferronlog

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Channel is the destination a Logger writes to, mirroring the CLI's
// --log/--error-log selector.
type Channel int

const (
	ChannelStdout Channel = iota
	ChannelStderr
	ChannelOff
)

// Logger wraps a *zap.Logger configured for one of the server's two log
// channels (access log, error log). It is safe for concurrent use.
type Logger struct {
	z *zap.Logger
}

// New builds a Logger writing JSON records to the given channel.
func New(ch Channel) (*Logger, error) {
	if ch == ChannelOff {
		return &Logger{z: zap.NewNop()}, nil
	}

	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	switch ch {
	case ChannelStdout:
		cfg.OutputPaths = []string{"stdout"}
		cfg.ErrorOutputPaths = []string{"stdout"}
	case ChannelStderr:
		cfg.OutputPaths = []string{"stderr"}
		cfg.ErrorOutputPaths = []string{"stderr"}
	}

	z, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{z: z}, nil
}

// Nop returns a Logger that discards everything, used in tests.
func Nop() *Logger { return &Logger{z: zap.NewNop()} }

func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{z: l.z.With(fields...)}
}

func (l *Logger) Info(msg string, fields ...zap.Field)  { l.z.Info(msg, fields...) }
func (l *Logger) Warn(msg string, fields ...zap.Field)  { l.z.Warn(msg, fields...) }
func (l *Logger) Error(msg string, fields ...zap.Field) { l.z.Error(msg, fields...) }
func (l *Logger) Fatal(msg string, fields ...zap.Field) { l.z.Fatal(msg, fields...) }
func (l *Logger) Sync() error                           { return l.z.Sync() }

// ErrorLogger is the per-request error-channel handle passed to every
// module's request_handler/response_modifying_handler, matching the
// error_logger parameter in the module handler contract (spec §4.2).
type ErrorLogger struct {
	*Logger
	RequestID string
}

func (l *Logger) ForRequest(requestID string) *ErrorLogger {
	return &ErrorLogger{Logger: l.With(zap.String("request_id", requestID)), RequestID: requestID}
}
