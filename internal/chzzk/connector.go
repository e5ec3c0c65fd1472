// Package chzzk connects to Chzzk live chat. A connection is bootstrapped
// through two HTTP calls (channel id, then access token), authenticated
// as the first websocket frame, and then streamed: every inbound frame is
// decoded into zero or more unified messages while a 30-second keepalive
// sends Ping then Pong. Either keepalive send failing, the socket
// closing, or cancellation ends the stream; there is no reconnect.
package chzzk

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/aperso/monochat/internal/message"
	"github.com/aperso/monochat/internal/stream"
)

const (
	chatEndpoint  = "wss://kr-ss1.chat.naver.com/chat"
	tokenEndpoint = "https://comm-api.game.naver.com/nng_main/v1/chats/access-token"

	keepaliveInterval = 30 * time.Second
	streamBuffer      = 64
)

// wsConn is the slice of *websocket.Conn the connector needs; tests
// substitute a scripted implementation.
type wsConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Connector manages one Chzzk chat connection attempt.
type Connector struct {
	url      string
	chatURL  string
	tokenURL string
	client   *http.Client
	dialer   *websocket.Dialer
	clock    clockwork.Clock
}

// New creates a connector for a chat-sources or live-status URL.
func New(url string) *Connector {
	return &Connector{
		url:      url,
		chatURL:  chatEndpoint,
		tokenURL: tokenEndpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
		dialer:   websocket.DefaultDialer,
		clock:    clockwork.NewRealClock(),
	}
}

// Open bootstraps the session, dials the chat websocket, sends the Auth
// command as the first frame, and returns the live message stream. Any
// failure up to and including the Auth send aborts the attempt; after
// that, failures only terminate the returned stream.
func (c *Connector) Open(ctx context.Context) (*stream.Stream, error) {
	session, err := c.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	conn, _, err := c.dialer.DialContext(ctx, c.chatURL, nil)
	if err != nil {
		return nil, fmt.Errorf("connect to chat websocket: %w", err)
	}

	if err := c.authenticate(conn, session); err != nil {
		conn.Close()
		return nil, err
	}
	log.Printf("Connected to Chzzk chat channel %s", session.ChannelID)

	st := stream.New(ctx, streamBuffer)
	go c.run(st, conn, session.ChannelID)
	return st, nil
}

func (c *Connector) authenticate(conn wsConn, session Session) error {
	frame, err := encodeCommand(session.ChannelID, authBody{
		AccessToken: session.AccessToken,
		Auth:        "READ",
	})
	if err != nil {
		return err
	}
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("send auth command: %w", err)
	}
	return nil
}

// run is the decode loop, the sole producer of the stream. It exits when
// the socket fails, which the keepalive goroutine and the cancellation
// watchdog both trigger by closing the socket under them.
func (c *Connector) run(st *stream.Stream, conn wsConn, channelID string) {
	defer st.End()
	defer conn.Close()

	go c.keepalive(st.Context(), conn, channelID)
	go func() {
		<-st.Context().Done()
		conn.Close()
	}()

	for {
		frameType, frame, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if frameType != websocket.TextMessage {
			continue
		}
		msgs, err := decodeChat(frame)
		if err != nil {
			// Non-chat frames (connect acks, system notices) land here.
			continue
		}
		now := c.clock.Now().UTC().Format(time.RFC3339)
		for _, msg := range msgs {
			msg.Platform = "chzzk"
			msg.Channel = channelID
			msg.Timestamp = now
			if !st.Emit(msg) {
				return
			}
		}
	}
}

// keepalive sends Ping then Pong every interval. The remote expects both
// signals; either send failing is treated as connection loss.
func (c *Connector) keepalive(ctx context.Context, conn wsConn, channelID string) {
	ticker := c.clock.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			for _, cmd := range []command{pingBody{}, pongBody{}} {
				frame, err := encodeCommand(channelID, cmd)
				if err != nil {
					log.Printf("Chzzk keepalive encode error: %v", err)
					conn.Close()
					return
				}
				if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
					log.Printf("Chzzk keepalive send failed, closing connection: %v", err)
					conn.Close()
					return
				}
			}
		}
	}
}

// Start opens the connection and forwards its stream into the shared
// pipeline channel until the stream ends or ctx is cancelled.
func (c *Connector) Start(ctx context.Context, messageChan chan<- message.Message) error {
	st, err := c.Open(ctx)
	if err != nil {
		return err
	}
	defer st.Cancel()

	for {
		select {
		case msg, ok := <-st.Messages():
			if !ok {
				log.Println("Chzzk stream ended")
				return nil
			}
			select {
			case messageChan <- msg:
			case <-ctx.Done():
				return ctx.Err()
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
