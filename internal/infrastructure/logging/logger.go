// Package logging builds the supervisor's structured logger on uber/zap.
//
// There is one sink: stdout, where the framework log collector picks
// records up. Production emits JSON; development switches to a colored
// console encoder with stacktraces on errors. Components take a named
// child logger so every record carries its origin (supervisor, appproc,
// http, app).
package logging

import (
	"fmt"
	"os"

	"github.com/GriffinCanCode/ModuleOS/supervisor/internal/infrastructure/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.Logger with convenience methods.
type Logger struct {
	*zap.Logger
}

// New builds a logger from the supervisor's logging configuration.
func New(cfg config.LogConfig) (*Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("bad log level %q: %w", cfg.Level, err)
	}

	core := zapcore.NewCore(encoder(cfg.Development), zapcore.Lock(os.Stdout), level)

	opts := []zap.Option{zap.AddCaller()}
	if cfg.Development {
		opts = append(opts, zap.Development(), zap.AddStacktrace(zapcore.ErrorLevel))
	}

	return &Logger{Logger: zap.New(core, opts...)}, nil
}

// NewDefault creates a logger with the default supervisor configuration.
func NewDefault() *Logger {
	logger, err := New(config.Default().Logging)
	if err != nil {
		// Fallback to no-op logger
		return NewNop()
	}
	return logger
}

// NewNop creates a logger that discards everything. Useful for tests.
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// Component returns a named child logger for a supervisor component.
func (l *Logger) Component(name string) *zap.Logger {
	return l.Named(name)
}

// encoder picks the output encoding. Both start from the zap presets; the
// production JSON encoder renames the time, message and logger keys for the
// on-device log collector, while the development console encoder keeps the
// preset's keys.
func encoder(development bool) zapcore.Encoder {
	if development {
		ec := zap.NewDevelopmentEncoderConfig()
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewConsoleEncoder(ec)
	}

	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "timestamp"
	ec.MessageKey = "message"
	ec.NameKey = "logger"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	return zapcore.NewJSONEncoder(ec)
}
