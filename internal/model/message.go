package model

import (
	"fmt"
	"time"
)

// Source identifies where a LogMessage came from.
type Source string

const (
	SourceOut       Source = "OUT"
	SourceErr       Source = "ERR"
	SourceHeartbeat Source = "HEARTBEAT"
	SourceStatus    Source = "STATUS"
)

// LogMessage is one relayed line. It is passed by value and never mutated after creation.
type LogMessage struct {
	Source    Source    `json:"source"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// NewLogMessage stamps text with the current time.
func NewLogMessage(source Source, text string) LogMessage {
	return LogMessage{
		Source:    source,
		Text:      text,
		Timestamp: time.Now(),
	}
}

// Format renders the message the way viewers receive it: "[SOURCE] text".
func (m LogMessage) Format() string {
	return fmt.Sprintf("[%s] %s", m.Source, m.Text)
}
