package chzzk

import (
	"encoding/json"
	"fmt"

	"github.com/aperso/monochat/internal/message"
)

// Command codes used on the chat websocket. All current commands are
// version 3 of the "game" service.
const (
	serviceID      = "game"
	commandVersion = 3

	cmdPing = 0
	cmdAuth = 100
	cmdPong = 10000
)

// envelope is the outer wrapper around every command exchanged on the
// socket. Bdy carries the command body's own JSON verbatim.
type envelope struct {
	ServiceID string          `json:"svcid"`
	ChannelID string          `json:"cid"`
	Command   int             `json:"cmd"`
	Version   int             `json:"ver"`
	Body      json.RawMessage `json:"bdy"`
}

// command is the closed set of outbound command bodies.
type command interface {
	code() int
}

type authBody struct {
	AccessToken string `json:"accTkn"`
	Auth        string `json:"auth"`
}

func (authBody) code() int { return cmdAuth }

type pingBody struct{}

func (pingBody) code() int { return cmdPing }

type pongBody struct{}

func (pongBody) code() int { return cmdPong }

// encodeCommand wraps an outbound command body in the envelope. The body
// is serialized on its own first and embedded under bdy as-is.
func encodeCommand(channelID string, cmd command) ([]byte, error) {
	body, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("encode command body: %w", err)
	}
	frame, err := json.Marshal(envelope{
		ServiceID: serviceID,
		ChannelID: channelID,
		Command:   cmd.code(),
		Version:   commandVersion,
		Body:      body,
	})
	if err != nil {
		return nil, fmt.Errorf("encode command envelope: %w", err)
	}
	return frame, nil
}

// chatEvent is one entry of an inbound chat command's body list. Profile
// and extras arrive as JSON re-encoded into string values and need a
// second parse each.
type chatEvent struct {
	Profile string `json:"profile"`
	Msg     string `json:"msg"`
	Extras  string `json:"extras"`
}

// decodeChat unpacks an inbound frame into zero or more unified messages.
// A frame whose envelope or body list cannot be parsed fails as a whole;
// a malformed event inside an otherwise valid list is dropped
// individually.
func decodeChat(frame []byte) ([]message.Message, error) {
	var env struct {
		Body json.RawMessage `json:"bdy"`
	}
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	var events []json.RawMessage
	if err := json.Unmarshal(env.Body, &events); err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}

	msgs := make([]message.Message, 0, len(events))
	for _, raw := range events {
		msg, err := decodeEvent(raw)
		if err != nil {
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// decodeEvent double-parses a single chat event: the event itself, then
// the JSON strings nested in its profile and extras fields.
func decodeEvent(raw json.RawMessage) (message.Message, error) {
	var event chatEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return message.Message{}, fmt.Errorf("decode event: %w", err)
	}

	var profile struct {
		Nickname string `json:"nickname"`
	}
	if err := json.Unmarshal([]byte(event.Profile), &profile); err != nil {
		return message.Message{}, fmt.Errorf("decode profile: %w", err)
	}

	var extras struct {
		PayAmount *uint64 `json:"payAmount"`
	}
	if err := json.Unmarshal([]byte(event.Extras), &extras); err != nil {
		return message.Message{}, fmt.Errorf("decode extras: %w", err)
	}

	return message.Message{
		Sender:  profile.Nickname,
		Content: message.Text(event.Msg),
		Donated: extras.PayAmount,
	}, nil
}
