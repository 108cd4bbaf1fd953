package observability

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spec-kit/token-auth/internal/config"
)

func TestNewLoggerWritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.log")
	logger, err := NewLogger(
		config.LoggerConfig{Level: "debug", FilePath: path, MaxSizeMB: 1},
		config.AppConfig{Name: "token-auth", Env: "test", Version: "dev"},
	)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	logger.Debug("hello from test")
	_ = logger.Sync()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(raw), "hello from test") || !strings.Contains(string(raw), `"service":"token-auth"`) {
		t.Fatalf("unexpected log file content %s", raw)
	}
}

func TestNewLoggerFallsBackToInfo(t *testing.T) {
	logger, err := NewLogger(config.LoggerConfig{Level: "loud"}, config.AppConfig{})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if logger.Core().Enabled(-1) {
		t.Fatal("debug should be disabled when the level is invalid")
	}
}
