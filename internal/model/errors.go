package model

import "errors"

var (
	// ErrBinaryNotFound is returned when the engine binary does not resolve to an executable.
	ErrBinaryNotFound = errors.New("engine binary not found")

	// ErrRunNotFound is returned when a run record does not exist.
	ErrRunNotFound = errors.New("run not found")

	// ErrTranscriptNotFound is returned when a run has no transcript on disk.
	ErrTranscriptNotFound = errors.New("transcript not found")
)
