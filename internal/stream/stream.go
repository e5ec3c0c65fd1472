// Package stream provides the per-connection message stream handle shared
// by the platform connectors. One Stream corresponds to exactly one
// connection attempt: it never reconnects, and its channel is closed
// exactly once when the connection terminates for any reason.
package stream

import (
	"context"
	"sync"

	"github.com/aperso/monochat/internal/message"
)

// Stream delivers the messages decoded from one live connection.
//
// Consumers read from Messages. A closed channel means the stream has
// permanently ended; an open but empty channel means no event has arrived
// yet. Cancel stops the connection cooperatively and may be called any
// number of times from any goroutine.
type Stream struct {
	msgs   chan message.Message
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// New creates a stream whose lifetime is bounded by parent.
func New(parent context.Context, buffer int) *Stream {
	ctx, cancel := context.WithCancel(parent)
	return &Stream{
		msgs:   make(chan message.Message, buffer),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Messages returns the receive side of the stream. The channel is closed
// when the connection terminates.
func (s *Stream) Messages() <-chan message.Message {
	return s.msgs
}

// Context is cancelled when the stream is cancelled or has ended. The
// producing connector uses it to tie its goroutines to the stream.
func (s *Stream) Context() context.Context {
	return s.ctx
}

// Cancel requests termination. Idempotent and safe to call concurrently
// with reads; the channel is closed by the producer once its decode loop
// has unwound.
func (s *Stream) Cancel() {
	s.cancel()
}

// Emit delivers one message to the consumer, blocking until it is
// accepted or the stream is cancelled. Returns false on cancellation.
// Called only by the producing connector's decode loop.
func (s *Stream) Emit(msg message.Message) bool {
	select {
	case s.msgs <- msg:
		return true
	case <-s.ctx.Done():
		return false
	}
}

// End marks the stream permanently terminated: it cancels the context and
// closes the message channel. Called exactly once by the producing
// connector when its decode loop exits; idempotent regardless.
func (s *Stream) End() {
	s.once.Do(func() {
		s.cancel()
		close(s.msgs)
	})
}
