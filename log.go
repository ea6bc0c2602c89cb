package main

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the process logger. Entries always go to stderr; when
// configured, info-and-above entries are also appended to the access log and
// warn-and-above entries to the error log. The returned func closes the files.
func NewLogger(cfg LoggingConfig) (*zap.Logger, func(), error) {
	level, err := zapcore.ParseLevel(strings.TrimSpace(strings.ToLower(cfg.Level)))
	if err != nil {
		return nil, nil, fmt.Errorf("invalid logging.level %q: %w", cfg.Level, err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	if cfg.JSON {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(enc, zapcore.Lock(os.Stderr), level),
	}
	var files []*os.File
	closeFiles := func() {
		for _, f := range files {
			_ = f.Close()
		}
	}

	appendLog := func(path string, min zapcore.Level) error {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file %s: %w", path, err)
		}
		files = append(files, f)
		fileLevel := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
			return l >= min && level.Enabled(l)
		})
		cores = append(cores, zapcore.NewCore(enc.Clone(), zapcore.AddSync(f), fileLevel))
		return nil
	}
	if cfg.AccessLog != "" {
		if err := appendLog(cfg.AccessLog, zapcore.InfoLevel); err != nil {
			closeFiles()
			return nil, nil, err
		}
	}
	if cfg.ErrorLog != "" {
		if err := appendLog(cfg.ErrorLog, zapcore.WarnLevel); err != nil {
			closeFiles()
			return nil, nil, err
		}
	}

	logger := zap.New(zapcore.NewTee(cores...))
	return logger, func() {
		_ = logger.Sync()
		closeFiles()
	}, nil
}
