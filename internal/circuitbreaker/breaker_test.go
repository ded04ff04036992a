package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func newTestBreaker(maxFailures int, cooldown time.Duration) (*Breaker, *time.Time) {
	b := New("test", maxFailures, cooldown)
	now := time.Date(2025, 3, 12, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }
	return b, &now
}

func TestBreaker_StaysClosedBelowThreshold(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)

	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, b.Execute(func() error { return errBoom }), errBoom)
	}
	assert.Equal(t, StateClosed, b.State())

	require.NoError(t, b.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_TripsOpenAfterConsecutiveFailures(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)

	for i := 0; i < 3; i++ {
		_ = b.Execute(func() error { return errBoom })
	}
	assert.Equal(t, StateOpen, b.State())

	called := false
	err := b.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called, "open breaker must not call fn")
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)

	_ = b.Execute(func() error { return errBoom })
	_ = b.Execute(func() error { return errBoom })
	require.NoError(t, b.Execute(func() error { return nil }))
	_ = b.Execute(func() error { return errBoom })
	_ = b.Execute(func() error { return errBoom })

	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_HalfOpenProbeCloses(t *testing.T) {
	b, now := newTestBreaker(2, 30*time.Second)

	_ = b.Execute(func() error { return errBoom })
	_ = b.Execute(func() error { return errBoom })
	require.Equal(t, StateOpen, b.State())

	*now = now.Add(31 * time.Second)
	assert.Equal(t, StateHalfOpen, b.State())

	require.NoError(t, b.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_HalfOpenProbeFailureReopens(t *testing.T) {
	b, now := newTestBreaker(2, 30*time.Second)

	_ = b.Execute(func() error { return errBoom })
	_ = b.Execute(func() error { return errBoom })
	*now = now.Add(31 * time.Second)

	assert.ErrorIs(t, b.Execute(func() error { return errBoom }), errBoom)
	assert.Equal(t, StateOpen, b.State())

	// Still open before the second cooldown elapses.
	*now = now.Add(10 * time.Second)
	assert.Equal(t, StateOpen, b.State())
	*now = now.Add(21 * time.Second)
	assert.Equal(t, StateHalfOpen, b.State())
}

func TestBreaker_DefaultsApplied(t *testing.T) {
	b := New("defaults", 0, 0)
	assert.Equal(t, 5, b.maxFailures)
	assert.Equal(t, 30*time.Second, b.cooldown)
}
