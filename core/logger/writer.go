package logger

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"sync"
)

// output is a log destination receiving records at or above min.
type output struct {
	w   io.Writer
	min slog.Level
}

type line struct {
	level slog.Level
	data  []byte
}

type sink struct {
	buf *bufio.Writer
	min slog.Level
}

// asyncWriter serialises formatted lines onto its outputs from a single
// goroutine. Each output may filter by level, e.g. an errors-only file.
type asyncWriter struct {
	queue    chan line
	flushReq chan chan error
	done     chan struct{}
	once     sync.Once
	sinks    []sink

	mu       sync.Mutex
	writeErr error
}

func newAsyncWriter(bufSize int, outputs ...output) *asyncWriter {
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	sinks := make([]sink, 0, len(outputs))
	for _, o := range outputs {
		if o.w == nil {
			continue
		}
		sinks = append(sinks, sink{buf: bufio.NewWriterSize(o.w, bufSize), min: o.min})
	}
	aw := &asyncWriter{
		queue:    make(chan line, 256),
		flushReq: make(chan chan error),
		done:     make(chan struct{}),
		sinks:    sinks,
	}
	go aw.loop()
	return aw
}

func (w *asyncWriter) loop() {
	defer close(w.done)
	for {
		select {
		case ln, ok := <-w.queue:
			if !ok {
				w.setErr(w.flushAll())
				return
			}
			w.setErr(w.writeLine(ln))
		case ack := <-w.flushReq:
			ack <- w.flushAll()
		}
	}
}

// Write queues p for the outputs accepting level. It blocks when the queue
// is full rather than dropping the line.
func (w *asyncWriter) Write(level slog.Level, p []byte) error {
	if err := w.err(); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	w.queue <- line{level: level, data: append([]byte(nil), p...)}
	return nil
}

// Flush blocks until every queued line has reached the outputs.
func (w *asyncWriter) Flush() error {
	if err := w.err(); err != nil {
		return err
	}
	ack := make(chan error, 1)
	select {
	case w.flushReq <- ack:
		return <-ack
	case <-w.done:
		return w.err()
	}
}

// Close drains the queue and returns the first write error seen.
func (w *asyncWriter) Close() error {
	w.once.Do(func() { close(w.queue) })
	<-w.done
	return w.err()
}

func (w *asyncWriter) writeLine(ln line) error {
	for _, s := range w.sinks {
		if ln.level < s.min {
			continue
		}
		if _, err := s.buf.Write(ln.data); err != nil {
			return err
		}
		if err := s.buf.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func (w *asyncWriter) flushAll() error {
	var errs []error
	for _, s := range w.sinks {
		if err := s.buf.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (w *asyncWriter) err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writeErr
}

func (w *asyncWriter) setErr(err error) {
	if err == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.writeErr == nil {
		w.writeErr = err
	}
}
