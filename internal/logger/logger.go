// Package logger builds the process group's structured logger: a
// verbosity string parsed into a zap.AtomicLevel.
package logger

import "go.uber.org/zap"

// New builds a *zap.Logger at the given verbosity ("debug", "info",
// "warn", "error", ...). An empty string defaults to info.
func New(verbosity string) (*zap.Logger, error) {
	if verbosity == "" {
		verbosity = "info"
	}
	cfg := zap.NewProductionConfig()
	level, err := zap.ParseAtomicLevel(verbosity)
	if err != nil {
		return nil, err
	}
	cfg.Level = level
	return cfg.Build()
}

// NopIfNil returns l, or a no-op logger if l is nil. Every component in
// this module accepts a *zap.Logger and should route construction through
// this helper so callers may omit logging entirely.
func NopIfNil(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
