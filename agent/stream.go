package agent

import (
	"context"
	"fmt"
)

// Stream is an in-flight streamed request. Chunks must be drained until the
// channel closes; Wait then returns the same result ProcessMessage would.
type Stream struct {
	chunks chan Chunk
	done   chan struct{}
	resp   *Response
	err    error
}

// Chunks returns the chunk channel. It is closed after the final chunk, or
// without one when the request fails.
func (s *Stream) Chunks() <-chan Chunk { return s.chunks }

// Wait blocks until the request has finished
func (s *Stream) Wait() (*Response, error) {
	<-s.done
	return s.resp, s.err
}

// ProcessMessageStream starts a request and streams its chunks. Request
// errors are returned synchronously; later failures surface through Wait.
func (a *Agent) ProcessMessageStream(ctx context.Context, req *Request) (*Stream, error) {
	s := &Stream{
		chunks: make(chan Chunk, a.streamBuffer),
		done:   make(chan struct{}),
	}
	t, err := a.prepare(ctx, req, s.chunks)
	if err != nil {
		return nil, err
	}

	go func() {
		defer close(s.done)
		defer close(s.chunks)
		defer func() {
			if r := recover(); r != nil {
				t.logger.Error("Stream producer panicked", fmt.Errorf("%v", r))
				s.resp, s.err = nil, fmt.Errorf("stream producer panicked: %v", r)
			}
		}()
		s.resp, s.err = t.run(ctx)
	}()
	return s, nil
}
