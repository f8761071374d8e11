package logger

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/remote-agent-terminal/engine-relay/internal/model"
)

func readLines(t *testing.T, data []byte) []string {
	t.Helper()
	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines
}

func TestTranscriptHeaderAndEvents(t *testing.T) {
	var buf bytes.Buffer
	tr := NewTranscriptWithWriter(&buf)

	if err := tr.WriteHeader("run 1234"); err != nil {
		t.Fatalf("WriteHeader failed: %v", err)
	}

	start := tr.StartTime()
	messages := []model.LogMessage{
		{Source: model.SourceOut, Text: "Loading...", Timestamp: start.Add(500 * time.Millisecond)},
		{Source: model.SourceErr, Text: "warn", Timestamp: start.Add(time.Second)},
		{Source: model.SourceHeartbeat, Text: "Moshi engine is active...", Timestamp: start.Add(5 * time.Second)},
	}
	for _, msg := range messages {
		if err := tr.Record(msg); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	lines := readLines(t, buf.Bytes())
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d: %v", len(lines), lines)
	}

	var header Header
	if err := json.Unmarshal([]byte(lines[0]), &header); err != nil {
		t.Fatalf("invalid header: %v", err)
	}
	if header.Version != 2 || header.Title != "run 1234" || header.Timestamp != start.Unix() {
		t.Errorf("unexpected header: %+v", header)
	}

	expected := []Event{
		{TimeOffset: 0.5, EventType: EventOutput, Data: "[OUT] Loading...\r\n"},
		{TimeOffset: 1, EventType: EventOutput, Data: "[ERR] warn\r\n"},
		{TimeOffset: 5, EventType: EventMarker, Data: "Moshi engine is active..."},
	}
	for i, want := range expected {
		var got Event
		if err := json.Unmarshal([]byte(lines[i+1]), &got); err != nil {
			t.Fatalf("invalid event %d: %v", i, err)
		}
		if got != want {
			t.Errorf("event %d: expected %+v, got %+v", i, want, got)
		}
	}
}

func TestTranscriptZeroTimestamp(t *testing.T) {
	var buf bytes.Buffer
	tr := NewTranscriptWithWriter(&buf)

	if err := tr.Record(model.LogMessage{Source: model.SourceOut, Text: "no time"}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	var ev Event
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &ev); err != nil {
		t.Fatalf("invalid event: %v", err)
	}
	if ev.TimeOffset < 0 || ev.TimeOffset > 1 {
		t.Errorf("expected offset near zero, got %f", ev.TimeOffset)
	}
}

func TestTranscriptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "run.cast")

	tr, err := NewTranscript(path)
	if err != nil {
		t.Fatalf("NewTranscript failed: %v", err)
	}
	tr.WriteHeader("file test")
	tr.Record(model.NewLogMessage(model.SourceOut, "hello"))

	if err := tr.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}
	if err := tr.Record(model.NewLogMessage(model.SourceOut, "late")); !errors.Is(err, os.ErrClosed) {
		t.Errorf("expected os.ErrClosed after close, got %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read transcript: %v", err)
	}
	if lines := readLines(t, data); len(lines) != 2 {
		t.Errorf("expected header and one event, got %v", lines)
	}
}

func TestEventUnmarshalErrors(t *testing.T) {
	cases := []string{
		`[1.0, "o"]`,
		`["x", "o", "data"]`,
		`[1.0, 2, "data"]`,
		`[1.0, "o", 3]`,
		`{"not":"an array"}`,
	}
	for _, c := range cases {
		var ev Event
		if err := json.Unmarshal([]byte(c), &ev); err == nil {
			t.Errorf("expected error for %s", c)
		}
	}
}
