package supervisor

import (
	"bytes"
	"sync"
)

type Stream string

const (
	StreamStdout Stream = "stdout"
	StreamStderr Stream = "stderr"
)

// Sink receives output chunks while the worker runs. Chunks of one stream
// arrive in order; the two streams are delivered from different goroutines.
type Sink func(stream Stream, chunk []byte)

// capture is an io.Writer that keeps everything written and forwards a copy
// of each chunk to a sink.
type capture struct {
	mx     sync.Mutex
	buf    bytes.Buffer
	stream Stream
	sink   Sink
}

func newCapture(stream Stream, sink Sink) *capture {
	return &capture{stream: stream, sink: sink}
}

func (c *capture) Write(p []byte) (int, error) {
	c.mx.Lock()
	c.buf.Write(p)
	c.mx.Unlock()
	if c.sink != nil {
		c.sink(c.stream, bytes.Clone(p))
	}
	return len(p), nil
}

// Bytes returns a copy of the captured output, never nil.
func (c *capture) Bytes() []byte {
	c.mx.Lock()
	defer c.mx.Unlock()
	b := bytes.Clone(c.buf.Bytes())
	if b == nil {
		b = []byte{}
	}
	return b
}
