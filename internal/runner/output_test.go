package runner

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joss/chore/internal/pipeline"
)

func TestWriteLinesPrefixesEveryLine(t *testing.T) {
	var buf bytes.Buffer
	sink := newOutputSink(&buf)

	sink.writeLines("web#build", []byte("one\ntwo\n"))
	assert.Equal(t, "web#build: one\nweb#build: two\n", buf.String())
}

func TestWriteLinesPartialTail(t *testing.T) {
	var buf bytes.Buffer
	sink := newOutputSink(&buf)

	sink.writeLines("web#build", []byte("no newline"))
	assert.Equal(t, "web#build: no newline\n", buf.String())

	buf.Reset()
	sink.writeLines("web#build", nil)
	assert.Empty(t, buf.String())
}

func TestPrefixWriterBuffersPartialLines(t *testing.T) {
	var buf bytes.Buffer
	sink := newOutputSink(&buf)
	w := sink.streamFor("web#build", pipeline.OutputFull)
	require.NotNil(t, w)

	w.Write([]byte("hel"))
	assert.Empty(t, buf.String(), "incomplete lines stay buffered")

	w.Write([]byte("lo\nwor"))
	assert.Equal(t, "web#build: hello\n", buf.String())

	w.flush()
	assert.Equal(t, "web#build: hello\nweb#build: wor\n", buf.String())

	// Flushing an empty buffer emits nothing.
	w.flush()
	assert.Equal(t, "web#build: hello\nweb#build: wor\n", buf.String())
}

func TestStreamForOutputModes(t *testing.T) {
	sink := newOutputSink(nil)

	assert.NotNil(t, sink.streamFor("x", pipeline.OutputFull))
	assert.NotNil(t, sink.streamFor("x", pipeline.OutputNewOnly))
	assert.Nil(t, sink.streamFor("x", pipeline.OutputHashOnly))
	assert.Nil(t, sink.streamFor("x", pipeline.OutputErrorsOnly))
	assert.Nil(t, sink.streamFor("x", pipeline.OutputNone))
}
