package soop

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aperso/monochat/internal/message"
)

// The wire format is a fixed 14-byte header followed by a raw text body:
// two literal control bytes, a 4-digit zero-padded packet type, a 6-digit
// zero-padded body length, and a literal "00". Body fields are delimited
// by 0x0C at positions defined per packet type.
const (
	headerLen = 2 + 4 + 6 + 2

	fieldDelimiter = "\x0C"

	packetKeepalive   = 0x00
	packetLogin       = 0x01
	packetJoinChannel = 0x02
	packetChatMessage = 0x05
	packetStatus      = 0x07
	packetBalloon     = 0x12
)

func writePacket(packetType int, body string) string {
	return fmt.Sprintf("\x1B\x09%04d%06d%02d%s", packetType, len(body), 0, body)
}

func writeKeepalive() string {
	return writePacket(packetKeepalive, "\x0C")
}

func writeLogin() string {
	return writePacket(packetLogin, "\x0C\x0C\x0C16\x0C")
}

func writeJoinChannel(chatNo uint32, password string) string {
	body := fmt.Sprintf("\x0C%d\x0C\x0C0\x0C\x0Clog\x11\x12pwd\x11%s\x12\x0C", chatNo, password)
	return writePacket(packetJoinChannel, body)
}

// parsePacket splits a raw frame into its packet type and body. The
// declared body length is deliberately not checked against the actual
// body; inconsistent frames pass through as-is.
func parsePacket(packet string) (int, string, error) {
	if len(packet) < headerLen {
		return 0, "", fmt.Errorf("packet too short: %d bytes", len(packet))
	}
	packetType, err := strconv.Atoi(packet[2:6])
	if err != nil {
		return 0, "", fmt.Errorf("parse packet type: %w", err)
	}
	return packetType, packet[headerLen:], nil
}

// handleChatMessage extracts a chat event: message text at field index 1,
// sender name four fields further on.
func handleChatMessage(body string) (message.Message, error) {
	fields := strings.Split(body, fieldDelimiter)
	if len(fields) <= 5 {
		return message.Message{}, fmt.Errorf("invalid chatmesg packet: %d fields", len(fields))
	}
	return message.Message{
		Sender:  fields[5],
		Content: message.Text(fields[1]),
	}, nil
}

// handleBalloon extracts a donation event: sender at field index 2,
// amount one field further on.
func handleBalloon(body string) (message.Message, error) {
	fields := strings.Split(body, fieldDelimiter)
	if len(fields) <= 3 {
		return message.Message{}, fmt.Errorf("invalid sendballoon packet: %d fields", len(fields))
	}
	amount, err := strconv.ParseUint(fields[3], 10, 64)
	if err != nil {
		return message.Message{}, fmt.Errorf("parse balloon amount: %w", err)
	}
	return message.Message{
		Sender:  fields[2],
		Donated: message.Amount(amount),
	}, nil
}
