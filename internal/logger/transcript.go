// Package logger records relayed engine output to disk.
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/remote-agent-terminal/engine-relay/internal/model"
)

const (
	// Terminal geometry advertised in the header; players wrap long lines.
	transcriptWidth  = 120
	transcriptHeight = 40

	EventOutput = "o"
	EventMarker = "m"
)

// Header is the first line of an asciicast v2 transcript.
type Header struct {
	Version   int    `json:"version"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Timestamp int64  `json:"timestamp"`
	Title     string `json:"title,omitempty"`
}

// Event is a single asciicast v2 event.
// Format: [time_offset, event_type, data]
type Event struct {
	TimeOffset float64
	EventType  string
	Data       string
}

// MarshalJSON implements custom JSON marshaling for Event.
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{e.TimeOffset, e.EventType, e.Data})
}

// UnmarshalJSON implements custom JSON unmarshaling for Event.
func (e *Event) UnmarshalJSON(data []byte) error {
	var arr []interface{}
	if err := json.Unmarshal(data, &arr); err != nil {
		return err
	}
	if len(arr) != 3 {
		return fmt.Errorf("invalid event format: expected 3 elements, got %d", len(arr))
	}

	timeOffset, ok := arr[0].(float64)
	if !ok {
		return fmt.Errorf("invalid time offset type")
	}
	eventType, ok := arr[1].(string)
	if !ok {
		return fmt.Errorf("invalid event type")
	}
	eventData, ok := arr[2].(string)
	if !ok {
		return fmt.Errorf("invalid event data type")
	}

	e.TimeOffset = timeOffset
	e.EventType = eventType
	e.Data = eventData
	return nil
}

// Transcript records the messages of one engine run as an asciicast v2
// JSON-lines file. OUT, ERR and STATUS lines become output events, heartbeats
// become markers.
type Transcript struct {
	writer    io.Writer
	file      *os.File // only set if we own the file
	startTime time.Time
	mu        sync.Mutex
	closed    bool
}

// NewTranscript creates the transcript file, including missing parent directories.
func NewTranscript(filePath string) (*Transcript, error) {
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create transcript directory: %w", err)
	}
	file, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create transcript file: %w", err)
	}

	return &Transcript{
		writer:    file,
		file:      file,
		startTime: time.Now(),
	}, nil
}

// NewTranscriptWithWriter creates a Transcript that writes to w.
func NewTranscriptWithWriter(w io.Writer) *Transcript {
	return &Transcript{
		writer:    w,
		startTime: time.Now(),
	}
}

// WriteHeader writes the asciicast header. Call it once, before any event.
func (t *Transcript) WriteHeader(title string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	header := Header{
		Version:   2,
		Width:     transcriptWidth,
		Height:    transcriptHeight,
		Timestamp: t.startTime.Unix(),
		Title:     title,
	}

	return t.writeLineLocked(header)
}

// Record appends one relayed message.
func (t *Transcript) Record(msg model.LogMessage) error {
	eventType := EventOutput
	data := msg.Format() + "\r\n"
	if msg.Source == model.SourceHeartbeat {
		eventType = EventMarker
		data = msg.Text
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return os.ErrClosed
	}

	offset := msg.Timestamp.Sub(t.startTime).Seconds()
	if offset < 0 || msg.Timestamp.IsZero() {
		offset = time.Since(t.startTime).Seconds()
	}

	return t.writeLineLocked(Event{
		TimeOffset: offset,
		EventType:  eventType,
		Data:       data,
	})
}

func (t *Transcript) writeLineLocked(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal transcript line: %w", err)
	}
	if _, err := t.writer.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write transcript line: %w", err)
	}
	return nil
}

// Close closes the transcript file. Later Record calls fail with os.ErrClosed.
func (t *Transcript) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	if t.file != nil {
		return t.file.Close()
	}
	return nil
}

// StartTime returns the start time of the recording.
func (t *Transcript) StartTime() time.Time {
	return t.startTime
}
