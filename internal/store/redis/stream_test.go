package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStream_RejectsInvalidURL(t *testing.T) {
	t.Parallel()

	s, err := NewStream("not-a-redis-url", "traffic:events")
	require.Error(t, err)
	assert.Nil(t, s)
	assert.Contains(t, err.Error(), "parse redis url")
}
