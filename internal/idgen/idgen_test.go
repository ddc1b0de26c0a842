package idgen

import (
	"testing"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestIDIsUUIDv7(t *testing.T) {
	id, err := uuid.Parse(RequestID())
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())
	assert.NotEqual(t, RequestID(), RequestID())
}

func TestObserverIDsSortByCreation(t *testing.T) {
	first := ObserverID()
	second := ObserverID()
	_, err := ulid.ParseStrict(first)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.LessOrEqual(t, first[:10], second[:10])
}
