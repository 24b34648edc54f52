package logger

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewRejectsBadLevel(t *testing.T) {
	if _, err := New(Config{Level: "loud"}); err == nil {
		t.Fatalf("expected error for invalid level")
	}
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	lg, err := New(Config{
		Level:      "debug",
		Outputs:    []string{"file"},
		OutputFile: path,
		Format:     "json",
	})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	lg.LogStream("stream_connected", map[string]interface{}{"tokens": 2})
	lg.LogPoll("poll_result", "active", map[string]interface{}{"records": 3})
	_ = lg.Close()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d", len(lines))
	}

	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("log line not json: %v", err)
	}
	if entry["event"] != "stream_connected" || entry["tokens"] != float64(2) {
		t.Fatalf("unexpected entry %v", entry)
	}

	if err := json.Unmarshal([]byte(lines[1]), &entry); err != nil {
		t.Fatalf("log line not json: %v", err)
	}
	if entry["view"] != "active" {
		t.Fatalf("poll event must carry the view: %v", entry)
	}
}

func TestErrorFileOnlyGetsErrors(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "app.log")
	errFile := filepath.Join(dir, "error.log")
	lg, err := New(Config{
		Level:      "info",
		Outputs:    []string{"file"},
		OutputFile: out,
		ErrorFile:  errFile,
		Format:     "json",
	})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	lg.LogStream("stream_connected", map[string]interface{}{"tokens": 1})
	lg.LogError(errors.New("dial refused"), map[string]interface{}{"stage": "connect"})
	_ = lg.Close()

	raw, _ := os.ReadFile(errFile)
	content := string(raw)
	if !strings.Contains(content, "dial refused") {
		t.Fatalf("error file missing error entry: %s", content)
	}
	if strings.Contains(content, "stream_connected") {
		t.Fatalf("info events must not reach the error file")
	}
}

func TestReconcileEventsBelowInfo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	lg, err := New(Config{
		Level:      "info",
		Outputs:    []string{"file"},
		OutputFile: path,
		Format:     "json",
	})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	// 对账快照走 debug，info 级别下不落盘
	lg.LogReconcile("active", map[string]interface{}{"rows": 3, "pending": 0})
	_ = lg.Close()

	raw, _ := os.ReadFile(path)
	if strings.TrimSpace(string(raw)) != "" {
		t.Fatalf("debug event leaked at info level: %s", raw)
	}
}

func TestWithFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	lg, err := New(Config{
		Level:      "info",
		Outputs:    []string{"file"},
		OutputFile: path,
		Format:     "json",
	})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	lg.WithFields(map[string]interface{}{"component": "feed"}).Info("up")
	_ = lg.Close()

	raw, _ := os.ReadFile(path)
	if !strings.Contains(string(raw), `"component":"feed"`) {
		t.Fatalf("bound field missing: %s", raw)
	}
}
