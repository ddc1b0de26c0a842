package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAction(t *testing.T) {
	for _, a := range Actions {
		got, err := ParseAction(string(a))
		require.NoError(t, err)
		assert.Equal(t, a, got)
	}

	_, err := ParseAction("Pause")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "action", verr.Field)
	assert.Equal(t, "field 'action' must be one of: skip, hint, pause, resume", err.Error())
}

func TestTerminalStatus(t *testing.T) {
	status, ok := TerminalStatus(EventStoryBlocked)
	assert.True(t, ok)
	assert.Equal(t, StoryBlocked, status)

	_, ok = TerminalStatus(EventStoryStart)
	assert.False(t, ok)
	_, ok = TerminalStatus(EventToolUse)
	assert.False(t, ok)
}

func TestPayloadString(t *testing.T) {
	payload := map[string]any{"tool": "Bash", "category": nil, "agent_type": 3}

	v, ok := PayloadString(payload, PayloadTool)
	assert.True(t, ok)
	assert.Equal(t, "Bash", v)

	_, ok = PayloadString(payload, PayloadCategory)
	assert.False(t, ok)
	_, ok = PayloadString(payload, PayloadAgentType)
	assert.False(t, ok)
	_, ok = PayloadString(nil, PayloadTool)
	assert.False(t, ok)
}

func TestValidationErrorMessage(t *testing.T) {
	assert.Equal(t, "Run must be an object", (&ValidationError{Msg: "Run must be an object"}).Error())
	err := Invalid("wave", "must be an integer if provided.")
	assert.True(t, IsValidation(err))
	assert.Equal(t, "field 'wave' must be an integer if provided.", err.Error())

	_, ok := ParseSource("hook")
	assert.True(t, ok)
	_, ok = ParseRunMode("batch")
	assert.False(t, ok)
}
