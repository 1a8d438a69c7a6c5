package logging_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tramita/internal/config"
	"tramita/internal/logging"
	"tramita/internal/services"
)

func TestNewConsoleWritesToFile(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "console.log")

	logger, err := logging.New(logging.Options{
		Format:      "console",
		Level:       "info",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	component := logging.NewComponentLogger(logger, "fanout")
	component.Info("notification created", logging.String(logging.FieldNotificationID, "n-1"))

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	output := string(data)
	if !strings.Contains(output, "fanout: notification created") {
		t.Fatalf("expected component-prefixed message, got %q", output)
	}
	if !strings.Contains(output, "notification_id=n-1") {
		t.Fatalf("expected notification_id attribute, got %q", output)
	}
}

func TestNewJSONFormat(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "out.json")

	logger, err := logging.New(logging.Options{
		Format:      "json",
		Level:       "debug",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Debug("probing", logging.Int("count", 3))

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	output := string(data)
	for _, fragment := range []string{`"msg":"probing"`, `"count":3`, `"level":"debug"`} {
		if !strings.Contains(output, fragment) {
			t.Fatalf("expected %q in output %q", fragment, output)
		}
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewFromConfigCreatesLogDir(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = filepath.Join(t.TempDir(), "nested", "logs")

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	if logger == nil {
		t.Fatal("expected logger instance")
	}
	if _, err := os.Stat(cfg.Paths.LogDir); err != nil {
		t.Fatalf("expected log dir to exist: %v", err)
	}
}

func TestContextFields(t *testing.T) {
	ctx := services.WithActorID(context.Background(), "u-admin")
	ctx = services.WithRequestID(ctx, "req-7")

	fields := logging.ContextFields(ctx)
	if len(fields) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(fields))
	}
	keys := map[string]bool{}
	for _, f := range fields {
		keys[f.Key] = true
	}
	if !keys[logging.FieldActorID] || !keys[logging.FieldCorrelationID] {
		t.Fatalf("unexpected field keys: %v", keys)
	}
}
