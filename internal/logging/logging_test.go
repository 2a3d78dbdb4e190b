package logging

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"WARN", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"trace", LevelTrace, false},
		{"verbose", slog.LevelInfo, true},
	}

	for _, tc := range cases {
		got, err := ParseLevel(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseLevel(%q) expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseLevel(%q) unexpected error: %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestNewFileLoggerWritesJSON(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "logs", "ingest.log")

	logger, closeFn, err := NewFileLogger(logPath, "indexer", slog.LevelDebug)
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}
	defer func() {
		if err := closeFn(); err != nil {
			t.Errorf("close: %v", err)
		}
	}()

	logger.Info("batch committed", "batch", 3, "inserted", 1000)

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}

	var record map[string]any
	if err := json.Unmarshal(data, &record); err != nil {
		t.Fatalf("log record is not valid JSON: %v\n%s", err, data)
	}
	if record["msg"] != "batch committed" {
		t.Errorf("msg = %v", record["msg"])
	}
	if record["service"] != "indexer" {
		t.Errorf("service attribute = %v, want indexer", record["service"])
	}
	if record["batch"] != float64(3) {
		t.Errorf("batch attribute = %v", record["batch"])
	}
}

func TestFileLoggerCustomLevelNames(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "trace.log")

	logger, closeFn, err := NewFileLogger(logPath, "test", LevelTrace)
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}
	defer closeFn() //nolint:errcheck // best-effort cleanup

	logger.Log(t.Context(), LevelTrace, "very detailed")

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}

	var record map[string]any
	if err := json.Unmarshal(data, &record); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if record["level"] != "TRACE" {
		t.Errorf("level = %v, want TRACE", record["level"])
	}
}
