// Package stream writes newline-delimited JSON responses, optionally
// gzip-compressed, flushing as it goes so large results are never held in
// memory.
package stream

import (
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ContentType is the media type of streamed responses.
const ContentType = "application/stream+json"

// DefaultFlushEvery is the number of lines written between flushes.
const DefaultFlushEvery = 100

// Writer encodes one JSON value per line. Not safe for concurrent use.
type Writer struct {
	gz         *gzip.Writer
	enc        *json.Encoder
	flush      func() error
	flushEvery int
	pending    int
	lines      int
	closed     bool
}

// Options configure a Writer.
type Options struct {
	// GzipLevel enables compression at levels 1 to 9; 0 disables it.
	GzipLevel int
	// FlushEvery defaults to DefaultFlushEvery.
	FlushEvery int
}

// NewWriter writes lines to w.
func NewWriter(w io.Writer, opts Options) (*Writer, error) {
	sw := &Writer{flushEvery: opts.FlushEvery}
	if sw.flushEvery <= 0 {
		sw.flushEvery = DefaultFlushEvery
	}

	out := w

	if opts.GzipLevel != 0 {
		gz, err := gzip.NewWriterLevel(w, opts.GzipLevel)
		if err != nil {
			return nil, fmt.Errorf("stream: gzip level %d: %w", opts.GzipLevel, err)
		}

		sw.gz = gz
		out = gz
	}

	sw.enc = json.NewEncoder(out)
	sw.enc.SetEscapeHTML(false)

	return sw, nil
}

// NewResponse prepares rw for a streamed response with the given status and
// returns a Writer that flushes through to the client.
func NewResponse(rw http.ResponseWriter, status int, opts Options) (*Writer, error) {
	if opts.GzipLevel < 0 || opts.GzipLevel > gzip.BestCompression {
		return nil, fmt.Errorf("stream: gzip level %d out of range 0-9", opts.GzipLevel)
	}

	h := rw.Header()
	h.Set("Content-Type", ContentType)
	h.Set("X-Content-Type-Options", "nosniff")

	if opts.GzipLevel > 0 {
		h.Set("Content-Encoding", "gzip")
		h.Add("Vary", "Accept-Encoding")
	}

	sw, err := NewWriter(rw, opts)
	if err != nil {
		return nil, err
	}

	rc := http.NewResponseController(rw)
	sw.flush = func() error {
		if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
			return err
		}

		return nil
	}

	rw.WriteHeader(status)

	return sw, nil
}

// Write encodes v as one line.
func (w *Writer) Write(v any) error {
	if w.closed {
		return errors.New("stream: write after close")
	}

	if err := w.enc.Encode(v); err != nil {
		return fmt.Errorf("stream: encoding line %d: %w", w.lines+1, err)
	}

	w.lines++
	w.pending++

	if w.pending >= w.flushEvery {
		return w.Flush()
	}

	return nil
}

// Flush pushes buffered lines to the client.
func (w *Writer) Flush() error {
	w.pending = 0

	if w.gz != nil {
		if err := w.gz.Flush(); err != nil {
			return fmt.Errorf("stream: flushing gzip: %w", err)
		}
	}

	if w.flush != nil {
		if err := w.flush(); err != nil {
			return fmt.Errorf("stream: flushing response: %w", err)
		}
	}

	return nil
}

// Lines returns the number of lines written.
func (w *Writer) Lines() int {
	return w.lines
}

// Close finishes the stream. It does not close the underlying writer.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}

	w.closed = true

	if w.gz != nil {
		if err := w.gz.Close(); err != nil {
			return fmt.Errorf("stream: closing gzip: %w", err)
		}
	}

	if w.flush != nil {
		return w.flush()
	}

	return nil
}
