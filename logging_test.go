package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLoggerDefaults(t *testing.T) {
	var stdout, stderr bytes.Buffer
	logger, closer, err := NewLogger(nil, &stdout, &stderr)
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	defer closer.Close()

	logger.Debug("hidden")
	logger.Info("reloading", "path", "src/other.py")

	out := stdout.String()
	if strings.Contains(out, "hidden") {
		t.Error("debug message logged at default level")
	}
	if !strings.Contains(out, "path=src/other.py") {
		t.Errorf("stdout = %q, want text record with path", out)
	}
	if stderr.Len() != 0 {
		t.Errorf("stderr = %q, want empty", stderr.String())
	}
}

func TestNewLoggerBuiltinConfig(t *testing.T) {
	var stdout, stderr bytes.Buffer
	logger, _, err := NewLogger(DefaultSettings().Logging, &stdout, &stderr)
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	logger.Info("hello")
	if !strings.Contains(stdout.String(), "hello") {
		t.Errorf("stdout = %q, want message", stdout.String())
	}
}

func TestNewLoggerFlatBlob(t *testing.T) {
	var stdout, stderr bytes.Buffer
	blob := map[string]any{"level": "debug", "format": "json", "output": "stderr"}
	logger, _, err := NewLogger(blob, &stdout, &stderr)
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	logger.Debug("spawned", "pid", 42)

	if stdout.Len() != 0 {
		t.Errorf("stdout = %q, want empty", stdout.String())
	}
	var rec map[string]any
	if err := json.Unmarshal(stderr.Bytes(), &rec); err != nil {
		t.Fatalf("stderr is not a JSON record: %v (%q)", err, stderr.String())
	}
	if rec["msg"] != "spawned" || rec["level"] != "DEBUG" {
		t.Errorf("record = %v", rec)
	}
}

func TestNewLoggerDictConfig(t *testing.T) {
	var stdout, stderr bytes.Buffer
	blob := map[string]any{
		"version": 1,
		"handlers": map[string]any{
			"err": map[string]any{"stream": "ext://sys.stderr"},
		},
		"root": map[string]any{
			"level":    "WARNING",
			"handlers": []any{"err"},
		},
	}
	logger, _, err := NewLogger(blob, &stdout, &stderr)
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	logger.Info("skipped")
	logger.Warn("kept")

	if stdout.Len() != 0 {
		t.Errorf("stdout = %q, want empty", stdout.String())
	}
	out := stderr.String()
	if strings.Contains(out, "skipped") || !strings.Contains(out, "kept") {
		t.Errorf("stderr = %q, want only the warning", out)
	}
}

func TestNewLoggerFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hmr.log")
	blob := map[string]any{
		"handlers": map[string]any{
			"file": map[string]any{"filename": path},
		},
		"root": map[string]any{"handlers": []any{"file"}},
	}
	var stdout, stderr bytes.Buffer
	logger, closer, err := NewLogger(blob, &stdout, &stderr)
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	logger.Info("to file")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "to file") {
		t.Errorf("log file = %q, want message", data)
	}
	if stdout.Len() != 0 {
		t.Errorf("stdout = %q, want empty", stdout.String())
	}
}

func TestNewLoggerInvalid(t *testing.T) {
	tests := []map[string]any{
		{"level": "loud"},
		{"format": "xml"},
		{"root": map[string]any{"level": "chatty"}},
	}
	for _, blob := range tests {
		if _, _, err := NewLogger(blob, &bytes.Buffer{}, &bytes.Buffer{}); err == nil {
			t.Errorf("NewLogger(%v) should fail", blob)
		}
	}
}
