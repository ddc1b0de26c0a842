package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flitsinc/taskplex-monitor/internal/schema"
)

func TestIntervention(t *testing.T) {
	in, err := Intervention([]byte(`{"action":"hint","story_id":"s1","message":"look at lint","run_id":"r1"}`))
	require.NoError(t, err)
	assert.Equal(t, "hint", in.Action)
	assert.Equal(t, "s1", *in.StoryID)
	assert.Equal(t, "look at lint", *in.Message)
	assert.Equal(t, "r1", *in.RunID)

	in, err = Intervention([]byte(`{"action":"pause","story_id":null}`))
	require.NoError(t, err)
	assert.Nil(t, in.StoryID)
	assert.Nil(t, in.RunID)
}

func TestInterventionRejects(t *testing.T) {
	cases := []struct {
		input string
		field string
	}{
		{`{}`, "action"},
		{`{"action":""}`, "action"},
		{`{"action":3}`, "action"},
		{`{"action":"pause","run_id":7}`, "run_id"},
		{`{"action":"hint","message":{"text":"x"}}`, "message"},
	}
	for _, tc := range cases {
		_, err := Intervention([]byte(tc.input))
		var verr *schema.ValidationError
		require.ErrorAs(t, err, &verr, "input %s", tc.input)
		assert.Equal(t, tc.field, verr.Field, "input %s", tc.input)
	}

	_, err := Intervention([]byte(`null`))
	assert.True(t, schema.IsValidation(err))
}
