package chzzk

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeCommand_Auth(t *testing.T) {
	frame, err := encodeCommand("abc", authBody{AccessToken: "tok", Auth: "READ"})
	require.NoError(t, err)

	var env envelope
	require.NoError(t, json.Unmarshal(frame, &env))

	assert.Equal(t, "game", env.ServiceID)
	assert.Equal(t, "abc", env.ChannelID)
	assert.Equal(t, 100, env.Command)
	assert.Equal(t, 3, env.Version)
	assert.Equal(t, `{"accTkn":"tok","auth":"READ"}`, string(env.Body))
}

func TestEncodeCommand_Keepalive(t *testing.T) {
	t.Run("ping", func(t *testing.T) {
		frame, err := encodeCommand("abc", pingBody{})
		require.NoError(t, err)

		var env envelope
		require.NoError(t, json.Unmarshal(frame, &env))
		assert.Equal(t, 0, env.Command)
		assert.Equal(t, 3, env.Version)
	})

	t.Run("pong", func(t *testing.T) {
		frame, err := encodeCommand("abc", pongBody{})
		require.NoError(t, err)

		var env envelope
		require.NoError(t, json.Unmarshal(frame, &env))
		assert.Equal(t, 10000, env.Command)
		assert.Equal(t, 3, env.Version)
	})
}

// chatFrame builds an inbound chat command frame with the given events
// pre-serialized as JSON objects.
func chatFrame(t *testing.T, events ...string) []byte {
	t.Helper()
	body := "[" + events[0]
	for _, ev := range events[1:] {
		body += "," + ev
	}
	body += "]"
	frame, err := json.Marshal(map[string]any{
		"svcid": "game",
		"cmd":   93101,
		"bdy":   json.RawMessage(body),
	})
	require.NoError(t, err)
	return frame
}

// event builds a single chat event whose profile and extras are JSON
// re-encoded into strings, the way the wire carries them.
func event(t *testing.T, nickname, msg string, payAmount *uint64) string {
	t.Helper()
	profile, err := json.Marshal(map[string]string{"nickname": nickname})
	require.NoError(t, err)
	extras := map[string]any{}
	if payAmount != nil {
		extras["payAmount"] = *payAmount
	}
	extrasJSON, err := json.Marshal(extras)
	require.NoError(t, err)
	ev, err := json.Marshal(map[string]string{
		"profile": string(profile),
		"msg":     msg,
		"extras":  string(extrasJSON),
	})
	require.NoError(t, err)
	return string(ev)
}

func TestDecodeChat(t *testing.T) {
	t.Run("chat with donation", func(t *testing.T) {
		amount := uint64(500)
		msgs, err := decodeChat(chatFrame(t, event(t, "Alice", "hi", &amount)))
		require.NoError(t, err)
		require.Len(t, msgs, 1)

		assert.Equal(t, "Alice", msgs[0].Sender)
		require.NotNil(t, msgs[0].Content)
		assert.Equal(t, "hi", *msgs[0].Content)
		require.NotNil(t, msgs[0].Donated)
		assert.Equal(t, uint64(500), *msgs[0].Donated)
	})

	t.Run("pure chat has no donation", func(t *testing.T) {
		msgs, err := decodeChat(chatFrame(t, event(t, "Bob", "hello", nil)))
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.Nil(t, msgs[0].Donated)
	})

	t.Run("malformed profile drops the event only", func(t *testing.T) {
		broken := `{"profile":"not json","msg":"hi","extras":"{}"}`
		msgs, err := decodeChat(chatFrame(t, broken, event(t, "Carol", "still here", nil)))
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.Equal(t, "Carol", msgs[0].Sender)
	})

	t.Run("non-chat frame fails as a whole", func(t *testing.T) {
		_, err := decodeChat([]byte(`{"svcid":"game","cmd":10100,"bdy":{"uid":"x"}}`))
		assert.Error(t, err)
	})

	t.Run("garbage frame fails", func(t *testing.T) {
		_, err := decodeChat([]byte("not json at all"))
		assert.Error(t, err)
	})
}
