package eventlog

import (
	"encoding/json"
	"io"
	"sync"
)

// JSONWriter writes events as JSON lines. It is safe for concurrent use
// by several runs; each event is written as one complete line.
type JSONWriter struct {
	w       io.Writer
	closer  io.Closer
	encoder *json.Encoder
	err     error
	mu      sync.Mutex
}

// NewJSONWriter creates a writer over w. If w is also an io.Closer it is
// closed by Close.
func NewJSONWriter(w io.Writer) *JSONWriter {
	jw := &JSONWriter{
		w:       w,
		encoder: json.NewEncoder(w),
	}
	if c, ok := w.(io.Closer); ok {
		jw.closer = c
	}
	return jw
}

// Log writes an event. After the first write error further events are dropped.
func (w *JSONWriter) Log(event Event) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.encoder == nil || w.err != nil {
		return
	}
	w.err = w.encoder.Encode(event)
}

// Err returns the first write error, if any.
func (w *JSONWriter) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Close stops the writer and closes the underlying writer when it is closable.
func (w *JSONWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.encoder == nil {
		return nil
	}
	w.encoder = nil
	if w.closer != nil {
		return w.closer.Close()
	}
	return w.err
}

var _ Logger = (*JSONWriter)(nil)
