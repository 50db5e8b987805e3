// Package logger builds zap loggers and carries them through contexts.
package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type options struct {
	stderr bool
	fields []zap.Field
}

// Option customizes NewLogger.
type Option func(*options)

// WithStderr sends all output to stderr. The MCP stdio server needs stdout
// for the protocol.
func WithStderr() Option {
	return func(o *options) { o.stderr = true }
}

// WithFields attaches fields to every entry.
func WithFields(fields ...zap.Field) Option {
	return func(o *options) { o.fields = append(o.fields, fields...) }
}

// NewLogger creates a zap logger for the given environment.
// prod uses JSON output, local/dev/docker use console output.
// level (if non-empty) overrides the default level: debug, info, warn, error.
func NewLogger(env, level string, opts ...Option) (*zap.Logger, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	var cfg zap.Config
	switch env {
	case "prod":
		cfg = zap.NewProductionConfig()
	case "local", "dev", "docker", "test":
		cfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("unknown environment %q for logger", env)
	}

	if level != "" {
		var lvl zapcore.Level
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	if o.stderr {
		cfg.OutputPaths = []string{"stderr"}
		cfg.ErrorOutputPaths = []string{"stderr"}
	}

	l, err := cfg.Build(zap.AddStacktrace(zapcore.ErrorLevel), zap.Fields(o.fields...))
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return l, nil
}
