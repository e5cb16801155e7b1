package id

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAtStampsTime(t *testing.T) {
	day := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)

	parsed, err := ulid.Parse(At(day))
	require.NoError(t, err)
	assert.Equal(t, ulid.Timestamp(day), parsed.Time())
}

func TestAtIsMonotonicWithinInstant(t *testing.T) {
	day := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)

	prev := At(day)
	for i := 0; i < 100; i++ {
		next := At(day)
		assert.Less(t, prev, next)
		prev = next
	}
}

func TestRun(t *testing.T) {
	_, err := uuid.Parse(Run())
	assert.NoError(t, err)
	assert.NotEqual(t, Run(), Run())
}
