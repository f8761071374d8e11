package model

import (
	"testing"
	"time"
)

func TestLogMessageFormat(t *testing.T) {
	tests := []struct {
		name     string
		msg      LogMessage
		expected string
	}{
		{"stdout", LogMessage{Source: SourceOut, Text: "model loaded"}, "[OUT] model loaded"},
		{"stderr", LogMessage{Source: SourceErr, Text: "warning: low vram"}, "[ERR] warning: low vram"},
		{"heartbeat", LogMessage{Source: SourceHeartbeat, Text: "Moshi engine is active..."}, "[HEARTBEAT] Moshi engine is active..."},
		{"empty text", LogMessage{Source: SourceStatus}, "[STATUS] "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.msg.Format(); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestNewLogMessageTimestamp(t *testing.T) {
	before := time.Now()
	msg := NewLogMessage(SourceOut, "hello")
	after := time.Now()

	if msg.Timestamp.Before(before) || msg.Timestamp.After(after) {
		t.Errorf("timestamp %v not within [%v, %v]", msg.Timestamp, before, after)
	}
	if msg.Source != SourceOut || msg.Text != "hello" {
		t.Errorf("unexpected message: %+v", msg)
	}
}

func TestRunArgsJSON(t *testing.T) {
	run := &Run{}
	data, err := run.ArgsToJSON()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if data != "[]" {
		t.Errorf("expected [] for nil args, got %s", data)
	}

	if err := run.ArgsFromJSON(`["-c","2500","--threads","8"]`); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(run.Args) != 4 || run.Args[1] != "2500" {
		t.Errorf("unexpected args: %v", run.Args)
	}

	if err := run.ArgsFromJSON(""); err != nil || run.Args != nil {
		t.Errorf("expected empty string to clear args, got %v (err %v)", run.Args, err)
	}
}

func TestRunDuration(t *testing.T) {
	start := time.Now().Add(-time.Minute)
	end := start.Add(30 * time.Second)
	run := &Run{StartedAt: start, EndedAt: &end}

	if run.Duration() != 30*time.Second {
		t.Errorf("expected 30s, got %v", run.Duration())
	}

	run.EndedAt = nil
	if run.Duration() < time.Minute {
		t.Errorf("expected running duration >= 1m, got %v", run.Duration())
	}
}
