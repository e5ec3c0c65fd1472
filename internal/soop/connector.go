// Package soop connects to Soop (formerly AfreecaTV) live chat. The aqua
// API resolves the chat server parameters, then a raw websocket carries
// fixed-header delimited packets: a login and join handshake, one
// discarded acknowledgment frame, and then the live stream of chat and
// donation packets. A 6-second keepalive runs while the broadcast's
// liveness flag holds; a broadcaster status-change packet flips the flag
// and ends the stream. There is no reconnect.
package soop

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/aperso/monochat/internal/message"
	"github.com/aperso/monochat/internal/stream"
)

const (
	aquaEndpoint = "https://live.sooplive.co.kr/api/aqua_api.php"

	keepaliveInterval = 6 * time.Second
	streamBuffer      = 64
)

// wsConn is the slice of *websocket.Conn the connector needs; tests
// substitute a scripted implementation.
type wsConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Connector manages one Soop chat connection attempt.
type Connector struct {
	url     string
	aquaURL string
	client  *http.Client
	dialer  *websocket.Dialer
	clock   clockwork.Clock
}

// New creates a connector for an aqua component URL.
func New(url string) *Connector {
	return &Connector{
		url:     url,
		aquaURL: aquaEndpoint,
		client:  &http.Client{Timeout: 10 * time.Second},
		dialer:  websocket.DefaultDialer,
		clock:   clockwork.NewRealClock(),
	}
}

// Open resolves the aqua parameters, dials the chat server with the
// "chat" sub-protocol, performs the login/join handshake, discards the
// join acknowledgment, and returns the live message stream. Failures up
// to that point abort the attempt; after it, failures only terminate the
// returned stream.
func (c *Connector) Open(ctx context.Context) (*stream.Stream, error) {
	channel, err := c.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	wsURL := fmt.Sprintf("ws://%s:%s/Websocket", channel.Domain, channel.Port)
	dialer := *c.dialer
	dialer.Subprotocols = []string{"chat"}
	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("connect to chat websocket: %w", err)
	}

	if err := c.handshake(conn, channel); err != nil {
		conn.Close()
		return nil, err
	}
	log.Printf("Connected to Soop chat room %d", channel.ChatNo)

	st := stream.New(ctx, streamBuffer)
	go c.run(st, conn, channel.ChatNo)
	return st, nil
}

// handshake sends the login and join packets and discards exactly one
// inbound frame, assumed to be the join acknowledgment. The frame is not
// validated, and a read failure here is ignored: a dead socket surfaces
// immediately once streaming begins.
func (c *Connector) handshake(conn wsConn, channel aquaChannel) error {
	if err := conn.WriteMessage(websocket.TextMessage, []byte(writeLogin())); err != nil {
		return fmt.Errorf("send login packet: %w", err)
	}
	join := writeJoinChannel(channel.ChatNo, channel.Password)
	if err := conn.WriteMessage(websocket.TextMessage, []byte(join)); err != nil {
		return fmt.Errorf("send join packet: %w", err)
	}
	conn.ReadMessage()
	return nil
}

// run is the decode loop, the sole producer of the stream. The keepalive
// goroutine and the cancellation watchdog end it by closing the socket
// under it.
func (c *Connector) run(st *stream.Stream, conn wsConn, chatNo uint32) {
	defer st.End()
	defer conn.Close()

	var alive atomic.Bool
	alive.Store(true)

	go c.keepalive(st.Context(), conn, &alive)
	go func() {
		<-st.Context().Done()
		conn.Close()
	}()

	channel := fmt.Sprintf("%d", chatNo)
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return
		}
		msg, ok := c.handleFrame(string(frame), &alive)
		if !ok {
			continue
		}
		msg.Platform = "soop"
		msg.Channel = channel
		msg.Timestamp = c.clock.Now().UTC().Format(time.RFC3339)
		if !st.Emit(msg) {
			return
		}
	}
}

// handleFrame decodes one inbound frame. Chat and balloon packets yield a
// message; a broadcaster status change flips the liveness flag; anything
// else, including malformed packets, is skipped.
func (c *Connector) handleFrame(frame string, alive *atomic.Bool) (message.Message, bool) {
	packetType, body, err := parsePacket(frame)
	if err != nil {
		return message.Message{}, false
	}
	switch packetType {
	case packetChatMessage:
		msg, err := handleChatMessage(body)
		if err != nil {
			return message.Message{}, false
		}
		return msg, true
	case packetBalloon:
		msg, err := handleBalloon(body)
		if err != nil {
			return message.Message{}, false
		}
		return msg, true
	case packetStatus:
		alive.Store(false)
		return message.Message{}, false
	default:
		return message.Message{}, false
	}
}

// keepalive sends a keepalive packet every interval while the liveness
// flag holds. The flag dropping or a send failing closes the socket,
// which terminates the decode loop and with it the stream.
func (c *Connector) keepalive(ctx context.Context, conn wsConn, alive *atomic.Bool) {
	ticker := c.clock.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if !alive.Load() {
				log.Println("Soop broadcast ended, closing connection")
				conn.Close()
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(writeKeepalive())); err != nil {
				log.Printf("Soop keepalive send failed, closing connection: %v", err)
				conn.Close()
				return
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
				log.Println("Soop stream ended")
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
