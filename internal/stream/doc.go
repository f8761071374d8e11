// Package stream turns the raw stdout/stderr pipes of the engine process into
// discrete log messages.
//
// A Reader consumes its stream one character at a time through a buffered
// reader, so a partial line is available as soon as the pipe yields it. The
// accumulated characters live in a FlushBuffer and are emitted when:
//   - a newline arrives,
//   - the buffer grows past MaxBufferLen characters,
//   - the buffer contains a loading keyword (emitted without clearing).
//
// Whitespace-only flushes are dropped. Invalid UTF-8 is replaced with U+FFFD.
package stream
