package stream

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/remote-agent-terminal/engine-relay/internal/model"
)

var logger = log.New(os.Stderr, "", log.LstdFlags)

// readBufferSize bounds a single pipe read. bufio returns whatever one read
// yields, so this never waits for the buffer to fill.
const readBufferSize = 4096

// Emitter receives every message a Reader produces. It must not block.
type Emitter func(msg model.LogMessage)

// Options tunes a Reader.
type Options struct {
	// DedupePeek suppresses an emit whose text equals the previous emit of
	// this reader. Off by default: a loading keyword followed by a newline
	// yields the same line twice.
	DedupePeek bool

	// Echo writes every flushed line to the server log.
	Echo bool
}

// Reader drains one output stream of the engine process.
type Reader struct {
	src    io.Reader
	source model.Source
	emit   Emitter
	opts   Options

	buf      FlushBuffer
	lastEmit string
}

// NewReader creates a Reader tagging every message with source.
func NewReader(src io.Reader, source model.Source, emit Emitter, opts Options) *Reader {
	return &Reader{
		src:    src,
		source: source,
		emit:   emit,
		opts:   opts,
	}
}

// Source returns the label this reader tags its messages with.
func (r *Reader) Source() model.Source {
	return r.source
}

// Run reads until end of input. A clean end of stream, including the stream
// being closed underneath the reader, returns nil.
func (r *Reader) Run() error {
	br := bufio.NewReaderSize(r.src, readBufferSize)

	for {
		ch, _, err := br.ReadRune()
		if err != nil {
			r.flushTail()
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
				return nil
			}
			return fmt.Errorf("read %s stream: %w", r.source, err)
		}
		r.consume(ch)
	}
}

// consume applies the flush rules to one character.
func (r *Reader) consume(ch rune) {
	r.buf.Append(ch)

	switch {
	case ch == '\n' || r.buf.Overflowed():
		r.send(r.buf.Flush(), true)
	case r.buf.HasPeekKeyword():
		r.send(r.buf.Peek(), false)
	}
}

// flushTail emits whatever is left once the stream has ended.
func (r *Reader) flushTail() {
	if r.buf.Len() == 0 {
		return
	}
	r.send(r.buf.Flush(), true)
}

func (r *Reader) send(text string, flushed bool) {
	if text == "" {
		return
	}
	if r.opts.DedupePeek && text == r.lastEmit {
		return
	}
	r.lastEmit = text

	msg := model.NewLogMessage(r.source, text)
	if flushed && r.opts.Echo {
		logger.Print(msg.Format())
	}
	r.emit(msg)
}
