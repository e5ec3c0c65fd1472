package recorder

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aperso/monochat/internal/message"
)

func TestRecord_FlushesFullBuffer(t *testing.T) {
	dir := t.TempDir()
	r := New(dir, 2, 60, 100)
	require.NoError(t, os.MkdirAll(dir, 0755))

	require.NoError(t, r.record(message.Message{Platform: "chzzk", Channel: "abc", Sender: "alice", Content: message.Text("one")}))
	require.NoError(t, r.record(message.Message{Platform: "chzzk", Channel: "abc", Sender: "bob", Donated: message.Amount(500)}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Name(), "chzzk_abc_"))
	assert.True(t, strings.HasSuffix(entries[0].Name(), ".jsonl"))

	file, err := os.Open(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	defer file.Close()

	var lines []message.Message
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var msg message.Message
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &msg))
		lines = append(lines, msg)
	}
	require.Len(t, lines, 2)
	assert.Equal(t, "alice", lines[0].Sender)
	assert.Equal(t, "one", *lines[0].Content)
	assert.Nil(t, lines[0].Donated)
	assert.Equal(t, uint64(500), *lines[1].Donated)
	assert.Nil(t, lines[1].Content)
}

func TestRecord_SeparateFilesPerPlatformChannel(t *testing.T) {
	dir := t.TempDir()
	r := New(dir, 1, 60, 100)

	require.NoError(t, r.record(message.Message{Platform: "chzzk", Channel: "abc", Sender: "alice", Content: message.Text("hi")}))
	require.NoError(t, r.record(message.Message{Platform: "soop", Channel: "12345", Sender: "bob", Content: message.Text("yo")}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestCloseAll_FlushesAndQueuesFiles(t *testing.T) {
	dir := t.TempDir()
	r := New(dir, 100, 60, 100)

	require.NoError(t, r.record(message.Message{Platform: "soop", Channel: "7", Sender: "carol", Content: message.Text("bye")}))

	fileChan := make(chan string, 4)
	r.closeAll(fileChan)

	require.Len(t, fileChan, 1)
	path := <-fileChan
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"carol"`)
	assert.Empty(t, r.open)
}
