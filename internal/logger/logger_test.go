package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogger_WritesToFileAndConsole(t *testing.T) {
	dir := t.TempDir()
	log, err := New(dir)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer log.Close()

	var console bytes.Buffer
	log.console = &console
	log.errOut = &console

	log.Info("streaming at %d fps", 10)
	log.Warning("frame skipped")
	log.Error("connection lost: %v", os.ErrClosed)

	out := console.String()
	for _, want := range []string{"streaming at 10 fps", "frame skipped", "connection lost"} {
		if !strings.Contains(out, want) {
			t.Errorf("console output missing %q: %s", want, out)
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, "liveclient.log"))
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "INFO ") || !strings.Contains(string(data), "ERROR") {
		t.Errorf("log file missing plain level tags: %s", data)
	}
}

func TestLogger_NilIsSafe(t *testing.T) {
	var log *Logger
	log.Info("no-op")
	log.Warning("no-op")
	log.Error("no-op")
	if err := log.Close(); err != nil {
		t.Errorf("Close on nil logger: %v", err)
	}
}

func TestLogger_ConsoleOnly(t *testing.T) {
	log, err := New("")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if log.file != nil {
		t.Error("expected no log file when directory is empty")
	}
	if err := log.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}
