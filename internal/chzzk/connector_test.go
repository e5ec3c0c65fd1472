package chzzk

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aperso/monochat/internal/stream"
)

// fakeConn is a scripted websocket connection. Reads drain the frame
// queue and then block until the connection is closed, like a live
// socket with no traffic.
type fakeConn struct {
	frames chan []byte
	closed chan struct{}
	once   sync.Once

	mu        sync.Mutex
	writes    []string
	failWrite bool
}

func newFakeConn(frames ...string) *fakeConn {
	fc := &fakeConn{
		frames: make(chan []byte, len(frames)+16),
		closed: make(chan struct{}),
	}
	for _, f := range frames {
		fc.frames <- []byte(f)
	}
	return fc
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case <-f.closed:
		return 0, nil, errors.New("use of closed network connection")
	default:
	}
	select {
	case frame := <-f.frames:
		return websocket.TextMessage, frame, nil
	case <-f.closed:
		return 0, nil, errors.New("use of closed network connection")
	}
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrite {
		return errors.New("broken pipe")
	}
	f.writes = append(f.writes, string(data))
	return nil
}

func (f *fakeConn) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) setFailWrite() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failWrite = true
}

func (f *fakeConn) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

func (f *fakeConn) write(i int) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes[i]
}

func newTestConnector(clock clockwork.Clock) *Connector {
	c := New("http://example.invalid/live-status")
	c.clock = clock
	return c
}

func streamEnded(st *stream.Stream) func() bool {
	return func() bool {
		select {
		case _, ok := <-st.Messages():
			return !ok
		default:
			return false
		}
	}
}

func TestRun_DecodesFramesAndSkipsMalformed(t *testing.T) {
	amount := uint64(500)
	fc := newFakeConn(
		string(chatFrame(t, event(t, "Alice", "one", nil))),
		"not a chat frame",
		string(chatFrame(t, event(t, "Bob", "two", &amount))),
	)
	c := newTestConnector(clockwork.NewFakeClock())
	st := stream.New(context.Background(), 16)

	go c.run(st, fc, "chan-1")

	first := <-st.Messages()
	assert.Equal(t, "Alice", first.Sender)
	assert.Equal(t, "chzzk", first.Platform)
	assert.Equal(t, "chan-1", first.Channel)

	second := <-st.Messages()
	assert.Equal(t, "Bob", second.Sender)
	require.NotNil(t, second.Donated)
	assert.Equal(t, uint64(500), *second.Donated)

	// The malformed frame between the two yielded nothing.
	select {
	case msg, ok := <-st.Messages():
		require.False(t, ok, "unexpected extra message: %+v", msg)
	default:
	}

	st.Cancel()
	assert.Eventually(t, streamEnded(st), time.Second, 10*time.Millisecond)
}

func TestRun_CancellationEndsStream(t *testing.T) {
	fc := newFakeConn(string(chatFrame(t, event(t, "Alice", "one", nil))))
	c := newTestConnector(clockwork.NewFakeClock())
	st := stream.New(context.Background(), 16)

	go c.run(st, fc, "chan-1")

	<-st.Messages()
	st.Cancel()

	assert.Eventually(t, streamEnded(st), time.Second, 10*time.Millisecond)
}

func TestKeepalive_SendsPingThenPong(t *testing.T) {
	fc := newFakeConn()
	clk := clockwork.NewFakeClock()
	c := newTestConnector(clk)
	st := stream.New(context.Background(), 16)

	go c.run(st, fc, "chan-1")

	require.Eventually(t, func() bool {
		clk.Advance(keepaliveInterval)
		return fc.writeCount() >= 2
	}, 2*time.Second, 10*time.Millisecond)

	var ping, pong envelope
	require.NoError(t, json.Unmarshal([]byte(fc.write(0)), &ping))
	require.NoError(t, json.Unmarshal([]byte(fc.write(1)), &pong))
	assert.Equal(t, cmdPing, ping.Command)
	assert.Equal(t, cmdPong, pong.Command)

	st.Cancel()
	assert.Eventually(t, streamEnded(st), time.Second, 10*time.Millisecond)
}

func TestKeepalive_SendFailureEndsStream(t *testing.T) {
	fc := newFakeConn()
	clk := clockwork.NewFakeClock()
	c := newTestConnector(clk)
	st := stream.New(context.Background(), 16)

	go c.run(st, fc, "chan-1")

	fc.setFailWrite()
	assert.Eventually(t, func() bool {
		clk.Advance(keepaliveInterval)
		return streamEnded(st)()
	}, 2*time.Second, 10*time.Millisecond)
}
