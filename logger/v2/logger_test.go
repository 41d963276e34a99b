package v2

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "unknown level", cfg: Config{Level: "loud", Format: "text"}},
		{name: "unknown format", cfg: Config{Level: "info", Format: "xml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); err == nil {
				t.Errorf("New(%+v) expected error, got nil", tt.cfg)
			}
		})
	}
}

func TestJSONOutputCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "debug", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	child := l.With(String("request_id", "req-1"))
	child.Error("tool failed", errors.New("boom"), Int("attempt", 2))

	var entry map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if entry["msg"] != "tool failed" {
		t.Errorf("msg = %v, want %q", entry["msg"], "tool failed")
	}
	if entry["request_id"] != "req-1" {
		t.Errorf("request_id = %v, want req-1", entry["request_id"])
	}
	if entry["attempt"] != float64(2) {
		t.Errorf("attempt = %v, want 2", entry["attempt"])
	}
	if entry["error"] != "boom" {
		t.Errorf("error = %v, want boom", entry["error"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "warn", Format: "text", Writer: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	l.Info("hidden")
	l.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info entry written at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("warn entry missing: %q", out)
	}
}

func TestChildLoggersDoNotShareFields(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "info", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	parent := l.With(String("component", "agent"))
	a := parent.With(String("branch", "a"))
	_ = parent.With(String("branch", "b"))

	a.Info("from a")
	if !strings.Contains(buf.String(), `"branch":"a"`) {
		t.Errorf("child fields overwritten by sibling: %q", buf.String())
	}
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "agentd.log")
	l, err := New(Config{Level: "info", Format: "text", Output: path})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	l.Info("to file")
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "to file") {
		t.Errorf("log file missing entry: %q", string(data))
	}
}

func TestUtilLoggerAdapter(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "info", Format: "text", Writer: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	adapter := ToUtilLogger(l)
	adapter.Infof("connected to %s", "search")
	adapter.Errorf("stream closed: %d", 3)

	out := buf.String()
	if !strings.Contains(out, "connected to search") || !strings.Contains(out, "stream closed: 3") {
		t.Errorf("output = %q", out)
	}
}
