package controller

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeferredQueue_PopDueFiresInTimeOrder(t *testing.T) {
	t.Parallel()
	q := &deferredQueue{}
	base := time.Date(2025, 3, 12, 12, 0, 0, 0, time.UTC)

	var fired []string
	mk := func(name string) func(time.Time) bool {
		return func(time.Time) bool {
			fired = append(fired, name)
			return true
		}
	}

	// Scheduled out of order; fire order follows the timestamps.
	q.schedule("late", base.Add(3*time.Second), mk("late"))
	q.schedule("early", base.Add(time.Second), mk("early"))
	q.schedule("mid", base.Add(2*time.Second), mk("mid"))

	due := q.popDue(base.Add(2 * time.Second))
	require.Len(t, due, 2, "events at or before now are due, inclusive")
	for _, ev := range due {
		ev.fire(base)
	}
	assert.Equal(t, []string{"early", "mid"}, fired)
	assert.Equal(t, 1, q.len())
}

func TestDeferredQueue_PopDueEmpty(t *testing.T) {
	t.Parallel()
	q := &deferredQueue{}
	base := time.Date(2025, 3, 12, 12, 0, 0, 0, time.UTC)

	assert.Nil(t, q.popDue(base))

	q.schedule("future", base.Add(time.Minute), func(time.Time) bool { return true })
	assert.Nil(t, q.popDue(base))
	assert.Equal(t, 1, q.len())
}

func TestDeferredQueue_CancelRemovesAllByName(t *testing.T) {
	t.Parallel()
	q := &deferredQueue{}
	base := time.Date(2025, 3, 12, 12, 0, 0, 0, time.UTC)
	noop := func(time.Time) bool { return true }

	q.schedule("victim", base.Add(time.Second), noop)
	q.schedule("keeper", base.Add(2*time.Second), noop)
	q.schedule("victim", base.Add(3*time.Second), noop)

	assert.True(t, q.cancel("victim"))
	assert.False(t, q.cancel("victim"), "a second cancel finds nothing")
	require.Equal(t, 1, q.len())

	due := q.popDue(base.Add(time.Minute))
	require.Len(t, due, 1)
	assert.Equal(t, "keeper", due[0].name)
}
