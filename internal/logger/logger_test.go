package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogger_InfoWritesLineToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	l := New(path, 1000, true, false)
	l.Info("hello world")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "hello world") {
		t.Fatalf("expected the log file to contain the message, got %q", string(data))
	}
	if !strings.Contains(string(data), "INFO") {
		t.Fatalf("expected an INFO tag, got %q", string(data))
	}
}

func TestLogger_DisabledSuppressesWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	l := New(path, 1000, false, false)
	l.Info("should not appear")

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected no log file to be created while disabled")
	}
}

func TestLogger_DebugSuppressedAtInfoLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	l := New(path, 1000, true, false)
	l.Debug("should be suppressed")
	l.Info("should appear")

	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "should be suppressed") {
		t.Fatalf("expected debug messages to be suppressed at the default info level")
	}
	if !strings.Contains(string(data), "should appear") {
		t.Fatalf("expected the info message to be written")
	}
}

func TestLogger_SetLevelAllowsDebug(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	l := New(path, 1000, true, false)
	l.SetLevel("DEBUG")
	l.Debug("now visible")

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "now visible") {
		t.Fatalf("expected debug messages to be written once level is set to DEBUG")
	}
}

func TestLogger_RotatesAfterMaxLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	l := New(path, 3, true, false)
	for i := 0; i < 5; i++ {
		l.Info("line")
	}

	dir := filepath.Dir(path)
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) < 2 {
		t.Fatalf("expected rotation to produce an additional rotated file, got %d entries", len(entries))
	}
}
