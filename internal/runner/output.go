package runner

import (
	"bytes"
	"io"
	"sync"

	"github.com/joss/chore/internal/pipeline"
)

// outputSink serializes interleaved task output onto one writer.
// Concurrent tasks write whole lines at a time so their output stays
// readable even when it arrives interleaved.
type outputSink struct {
	mu sync.Mutex
	w  io.Writer
}

func newOutputSink(w io.Writer) *outputSink {
	if w == nil {
		w = io.Discard
	}
	return &outputSink{w: w}
}

// writeLines emits data line by line, each prefixed with the node
// label. A trailing partial line is still emitted with the prefix.
func (s *outputSink) writeLines(label string, data []byte) {
	if len(data) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(data) > 0 {
		line := data
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			line = data[:i+1]
			data = data[i+1:]
		} else {
			data = nil
		}
		io.WriteString(s.w, label+": ")
		s.w.Write(line)
		if line[len(line)-1] != '\n' {
			io.WriteString(s.w, "\n")
		}
	}
}

// prefixWriter buffers a task's stream and forwards complete lines to
// the shared sink. flush emits any trailing partial line.
type prefixWriter struct {
	sink  *outputSink
	label string

	mu  sync.Mutex
	buf bytes.Buffer
}

func (p *prefixWriter) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.buf.Write(b)
	for {
		i := bytes.IndexByte(p.buf.Bytes(), '\n')
		if i < 0 {
			break
		}
		line := make([]byte, i+1)
		p.buf.Read(line)
		p.sink.writeLines(p.label, line)
	}
	return len(b), nil
}

func (p *prefixWriter) flush() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.buf.Len() > 0 {
		p.sink.writeLines(p.label, p.buf.Bytes())
		p.buf.Reset()
	}
}

// streamFor returns the live stream writer for a task, or nil when its
// output mode suppresses live output. errors-only tasks are captured
// silently and dumped by the visitor if the task fails.
func (s *outputSink) streamFor(label string, mode pipeline.OutputMode) *prefixWriter {
	switch mode {
	case pipeline.OutputFull, pipeline.OutputNewOnly:
		return &prefixWriter{sink: s, label: label}
	}
	return nil
}
