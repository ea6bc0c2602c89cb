package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLogger_SplitsFiles(t *testing.T) {
	dir := t.TempDir()
	cfg := LoggingConfig{
		Level:     "info",
		AccessLog: filepath.Join(dir, "access.log"),
		ErrorLog:  filepath.Join(dir, "error.log"),
	}
	logger, closeLog, err := NewLogger(cfg)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	logger.Debug("debug entry")
	logger.Info("info entry")
	logger.Warn("warn entry")
	closeLog()

	access, err := os.ReadFile(cfg.AccessLog)
	if err != nil {
		t.Fatal(err)
	}
	errs, err := os.ReadFile(cfg.ErrorLog)
	if err != nil {
		t.Fatal(err)
	}

	if strings.Contains(string(access), "debug entry") {
		t.Error("access log should respect the configured level")
	}
	if !strings.Contains(string(access), "info entry") || !strings.Contains(string(access), "warn entry") {
		t.Errorf("access log: got %q", access)
	}
	if strings.Contains(string(errs), "info entry") || !strings.Contains(string(errs), "warn entry") {
		t.Errorf("error log: got %q", errs)
	}
}

func TestNewLogger_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "access.log")
	logger, closeLog, err := NewLogger(LoggingConfig{Level: "INFO", AccessLog: path, JSON: true})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	logger.Info("hello")
	closeLog()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "{") || !strings.Contains(string(data), `"msg":"hello"`) {
		t.Errorf("expected a JSON line, got %q", data)
	}
}

func TestNewLogger_Errors(t *testing.T) {
	if _, _, err := NewLogger(LoggingConfig{Level: "loud"}); err == nil {
		t.Error("expected an error for an unknown level")
	}
	missing := filepath.Join(t.TempDir(), "missing", "access.log")
	if _, _, err := NewLogger(LoggingConfig{Level: "info", AccessLog: missing}); err == nil {
		t.Error("expected an error for an unopenable log file")
	}
}
