package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvOr(t *testing.T) {
	t.Setenv("TICKBOOK_TESTUTIL_ADDR", "redis:6380")
	assert.Equal(t, "redis:6380", EnvOr("TICKBOOK_TESTUTIL_ADDR", "localhost:6379"))
	assert.Equal(t, "localhost:6379", EnvOr("TICKBOOK_TESTUTIL_UNSET", "localhost:6379"))
}

func TestSkipIfRedisUnavailable(t *testing.T) {
	// nothing listens on port 1, so the subtest must be skipped rather than failed
	ran := false
	t.Run("unreachable", func(t *testing.T) {
		SkipIfRedisUnavailable(t, "127.0.0.1:1")
		ran = true
	})
	assert.False(t, ran)
}
