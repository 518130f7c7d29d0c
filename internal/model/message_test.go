package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRole_DecodesRecordStoreSenders(t *testing.T) {
	var msgs []Message
	err := json.Unmarshal([]byte(`[
		{"id":"1","sender":"user","text":"hi"},
		{"id":"2","sender":"ai","text":"hello"},
		{"id":"3","sender":"assistant","text":"again"}
	]`), &msgs)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, RoleUser, msgs[0].Role)
	assert.Equal(t, RoleAssistant, msgs[1].Role)
	assert.Equal(t, RoleAssistant, msgs[2].Role)
}

func TestRole_EncodesAssistantAsAI(t *testing.T) {
	b, err := json.Marshal(Message{ID: "2", Role: RoleAssistant, Text: "hello"})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"sender":"ai"`)

	b, err = json.Marshal(Message{ID: "1", Role: RoleUser, Text: "hi"})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"sender":"user"`)
}

func TestRole_RejectsUnknownSender(t *testing.T) {
	var m Message
	assert.Error(t, json.Unmarshal([]byte(`{"sender":"robot"}`), &m))
}
