package runner

import (
	"bytes"
	"sync"
)

// cappedWriter enforces an output buffer cap on one stream. The Runner gives
// stdout and stderr a writer each, both with the full memoryLimitMB cap, so
// their combined output can reach twice that cap before either writer kills
// the child. It is an output-size guard, not an RSS limit. Once the cap is
// reached it calls
// onExceeded exactly once, which the caller wires to
// killing the child process, and silently drops further bytes so the
// child never blocks on a full pipe.
type cappedWriter struct {
	mu         sync.Mutex
	buf        bytes.Buffer
	limit      int
	onExceeded func()
	fired      sync.Once
	exceeded   bool
}

func newCappedWriter(limit int, onExceeded func()) *cappedWriter {
	return &cappedWriter{limit: limit, onExceeded: onExceeded}
}

func (w *cappedWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.exceeded {
		return len(p), nil
	}

	remaining := w.limit - w.buf.Len()
	if remaining <= 0 {
		w.exceeded = true
		w.fired.Do(func() {
			if w.onExceeded != nil {
				go w.onExceeded()
			}
		})
		return len(p), nil
	}

	if len(p) > remaining {
		w.buf.Write(p[:remaining])
		w.exceeded = true
		w.fired.Do(func() {
			if w.onExceeded != nil {
				go w.onExceeded()
			}
		})
		return len(p), nil
	}

	w.buf.Write(p)
	return len(p), nil
}

func (w *cappedWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

func (w *cappedWriter) Exceeded() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.exceeded
}
