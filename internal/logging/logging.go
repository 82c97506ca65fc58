// Package logging builds the zap logger used at the CLI edges. The kernel
// packages stay logger-free; diagnostics surface through errors and
// events.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config controls logger construction.
type Config struct {
	// Level is debug, info, warn, or error. Empty means info.
	Level string
	// File appends JSON logs to the given path instead of stderr.
	File string
}

// New builds a logger. Console output stays human-readable; file output is
// JSON.
func New(cfg Config) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.Set(cfg.Level); err != nil {
			return nil, fmt.Errorf("logging: invalid level %q: %w", cfg.Level, err)
		}
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.DisableStacktrace = true
	if cfg.File != "" {
		zapCfg.OutputPaths = []string{cfg.File}
	} else {
		zapCfg.Encoding = "console"
		zapCfg.OutputPaths = []string{"stderr"}
		zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("logging: build logger: %w", err)
	}
	return logger, nil
}
