package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"
	"time"
)

// capture redirects log output for one test.
func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(os.Stderr) })
	return &buf
}

func parseEvent(t *testing.T, line string) Event {
	t.Helper()
	var e Event
	if err := json.Unmarshal([]byte(strings.TrimSpace(line)), &e); err != nil {
		t.Fatalf("output is not JSON: %v (output: %q)", err, line)
	}
	return e
}

func TestLoggerScoping(t *testing.T) {
	logger := New("engine").WithRun("run-1").WithTask("web#build")

	if logger.component != "engine" {
		t.Errorf("expected component 'engine', got %q", logger.component)
	}
	if logger.run != "run-1" {
		t.Errorf("expected run 'run-1', got %q", logger.run)
	}
	if logger.task != "web#build" {
		t.Errorf("expected task 'web#build', got %q", logger.task)
	}
}

func TestWithTaskKeepsRun(t *testing.T) {
	logger := New("runner").WithRun("run-9").WithTask("api#test")
	if logger.run != "run-9" {
		t.Errorf("WithTask dropped the run scope: %q", logger.run)
	}
}

func TestInfoEmitsJSON(t *testing.T) {
	buf := capture(t)

	New("cache").WithRun("r1").Info("cache_hit", map[string]any{"hash": "abc"})

	e := parseEvent(t, buf.String())
	if e.Level != LevelInfo {
		t.Errorf("expected level info, got %q", e.Level)
	}
	if e.Component != "cache" {
		t.Errorf("expected component 'cache', got %q", e.Component)
	}
	if e.Run != "r1" {
		t.Errorf("expected run 'r1', got %q", e.Run)
	}
	if e.Extra["hash"] != "abc" {
		t.Errorf("expected extra hash 'abc', got %v", e.Extra["hash"])
	}
}

func TestErrorIncludesMessage(t *testing.T) {
	buf := capture(t)

	New("scm").Error("list_failed", nil, errors.New("git exited 128"))

	e := parseEvent(t, buf.String())
	if e.Level != LevelError {
		t.Errorf("expected level error, got %q", e.Level)
	}
	if e.Error != "git exited 128" {
		t.Errorf("expected error message, got %q", e.Error)
	}
}

func TestDebugSuppressedUnlessVerbose(t *testing.T) {
	buf := capture(t)

	SetVerbose(false)
	New("runner").Debug("hidden", nil)
	if buf.Len() != 0 {
		t.Fatalf("debug emitted without verbose: %q", buf.String())
	}

	SetVerbose(true)
	defer SetVerbose(false)
	New("runner").Debug("visible", nil)
	if buf.Len() == 0 {
		t.Fatal("debug not emitted with verbose enabled")
	}
}

func TestTimedEventRecordsDuration(t *testing.T) {
	buf := capture(t)

	start := time.Now().Add(-150 * time.Millisecond)
	New("runner").TimedEvent("task_finished", start, nil)

	e := parseEvent(t, buf.String())
	if e.Duration < 100 {
		t.Errorf("expected duration >= 100ms, got %d", e.Duration)
	}
}
