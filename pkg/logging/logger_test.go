package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// setupTestDir points the package at a temp log directory and resets the
// once-guards so NewLogger re-initializes.
func setupTestDir(t *testing.T) {
	t.Helper()

	origLogDir := logDir
	origInitErr := initErr

	logDir = t.TempDir()
	initErr = nil
	initOnce = sync.Once{}

	t.Cleanup(func() {
		logDir = origLogDir
		initErr = origInitErr
		initOnce = sync.Once{}
	})
}

func TestNewLogger(t *testing.T) {
	setupTestDir(t)

	logger, err := NewLogger("tab")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Close()

	if logger.component != "tab" {
		t.Errorf("Expected component 'tab', got %q", logger.component)
	}
	if logger.SessionID() == "" {
		t.Error("Expected non-empty session ID")
	}
	if !strings.HasSuffix(logger.LogPath(), "-widescreen.log") {
		t.Errorf("Unexpected log path %q", logger.LogPath())
	}
	if _, err := os.Stat(logger.LogPath()); err != nil {
		t.Errorf("Log file does not exist at %s: %v", logger.LogPath(), err)
	}
}

func TestLoggerFormatting(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "mode")

	logger.Debugf("debug %d", 1)
	logger.Infof("info")
	logger.Warnf("warn")
	logger.Errorf("error")

	out := buf.String()
	for _, want := range []string{
		"[mode] [DEBUG] debug 1",
		"[mode] [INFO] info",
		"[mode] [WARN] warn",
		"[mode] [ERROR] error",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in\n%s", want, out)
		}
	}
}

func TestLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "relay")
	logger.SetLevel(LevelWarn)

	logger.Debugf("hidden")
	logger.Infof("hidden")
	logger.Warnf("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("expected debug/info to be filtered, got\n%s", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("expected warn line, got\n%s", out)
	}
}

func TestLoggerWith(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "tab").With("observe")
	logger.Infof("hello")

	if !strings.Contains(buf.String(), "[tab/observe] [INFO] hello") {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestMultipleComponentsShareFile(t *testing.T) {
	setupTestDir(t)

	a, err := NewLogger("a")
	if err != nil {
		t.Fatalf("NewLogger a: %v", err)
	}
	defer a.Close()
	b, err := NewLogger("b")
	if err != nil {
		t.Fatalf("NewLogger b: %v", err)
	}
	defer b.Close()

	if a.LogPath() != b.LogPath() {
		t.Fatalf("expected shared log path, got %q and %q", a.LogPath(), b.LogPath())
	}

	a.Infof("from a")
	b.Infof("from b")

	content, err := os.ReadFile(filepath.Clean(a.LogPath()))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(content), "[a]") || !strings.Contains(string(content), "[b]") {
		t.Errorf("expected both components in log, got\n%s", content)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   LevelDebug,
		"warn":    LevelWarn,
		"warning": LevelWarn,
		"error":   LevelError,
		"info":    LevelInfo,
		"bogus":   LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerCloseTwice(t *testing.T) {
	setupTestDir(t)

	logger, err := NewLogger("test")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("First close failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("Second close failed: %v", err)
	}
}
