package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedClock(t *testing.T) {
	start := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	clock := NewFixedClock(start)

	assert.Equal(t, start, clock.Now())
	assert.Equal(t, start, clock.Now(), "clock must not move on its own")

	clock.Advance(48 * time.Hour)
	assert.Equal(t, start.Add(48*time.Hour), clock.Now())

	clock.AdvanceDate(0, 3, 0)
	assert.Equal(t, time.Date(2024, 4, 17, 9, 0, 0, 0, time.UTC), clock.Now())

	clock.Set(start)
	assert.Equal(t, start, clock.Now())
}

func TestFixedClockNormalizesToUTC(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	local := time.Date(2024, 6, 1, 12, 0, 0, 0, loc)
	clock := NewFixedClock(local)

	assert.Equal(t, time.UTC, clock.Now().Location())
	assert.True(t, clock.Now().Equal(local))
}

func TestSequentialIDs(t *testing.T) {
	gen := NewSequentialIDs("task")

	assert.Equal(t, "task-000001", gen.NewID())
	assert.Equal(t, "task-000002", gen.NewID())

	gen.Reset()
	assert.Equal(t, "task-000001", gen.NewID())

	assert.Equal(t, "id-000001", NewSequentialIDs("").NewID())
}
