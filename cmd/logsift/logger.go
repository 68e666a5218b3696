package main

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newLogger writes JSON logs to path, falling back to stderr when the file
// cannot be opened. verbose adds a human readable stderr core.
func newLogger(path string, verbose bool) (*zap.Logger, func()) {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var (
		sink    zapcore.WriteSyncer
		cleanup = func() {}
	)
	if f, err := openLogFile(path); err == nil {
		sink = zapcore.AddSync(f)
		cleanup = func() { _ = f.Close() }
	} else {
		sink = zapcore.Lock(os.Stderr)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), sink, level),
	}
	if verbose {
		consoleCfg := zap.NewDevelopmentEncoderConfig()
		consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.Lock(os.Stderr), zapcore.DebugLevel))
	}

	logger := zap.New(zapcore.NewTee(cores...)).Named("logsift")
	return logger, func() {
		_ = logger.Sync()
		cleanup()
	}
}

func openLogFile(path string) (*os.File, error) {
	if path == "" {
		return nil, os.ErrInvalid
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
}
