package idgen

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUUIDV4(t *testing.T) {
	id := NewUUIDV4()
	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(4), parsed.Version())
	assert.NotEqual(t, id, NewUUIDV4())
}

func TestUUIDGenerator(t *testing.T) {
	parsed, err := uuid.Parse(NewUUID().Next())
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(4), parsed.Version())

	parsed, err = uuid.Parse(NewUUID(WithUUIDVersion("v7")).Next())
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}

func TestFunc(t *testing.T) {
	var g Generator = Func(func() string { return "fixed" })
	assert.Equal(t, "fixed", g.Next())
}
