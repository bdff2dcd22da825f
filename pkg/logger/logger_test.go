package logger

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	t.Run("masks sensitive string values", func(t *testing.T) {
		got := Sanitize("access_token", "eyJhbGciOiJIUzI1NiJ9.payload.sig")
		assert.Equal(t, "eyJh***.sig", got)

		got = Sanitize("Authorization", "Bearer abcdef123456")
		assert.Equal(t, "Bear***3456", got)
	})

	t.Run("short secrets are fully hidden", func(t *testing.T) {
		assert.Equal(t, "***", Sanitize("password", "hunter2"))
	})

	t.Run("non-string sensitive values are redacted", func(t *testing.T) {
		assert.Equal(t, "***REDACTED***", Sanitize("client_secret", 12345))
		assert.Equal(t, "***REDACTED***", Sanitize("signature", ""))
	})

	t.Run("key matching is case-insensitive and substring based", func(t *testing.T) {
		assert.Equal(t, "***", Sanitize("X-Service-Signature", "deadbeef"))
		assert.Equal(t, "***REDACTED***", Sanitize("refresh_token_hash", []byte{1}))
	})

	t.Run("benign keys pass through", func(t *testing.T) {
		assert.Equal(t, "user-1", Sanitize("identity_id", "user-1"))
		assert.Equal(t, 42, Sanitize("count", 42))
	})
}

func TestFieldHelpers(t *testing.T) {
	assert.Equal(t, Field{Key: "name", Value: "svc"}, String("name", "svc"))
	assert.Equal(t, Field{Key: "n", Value: 7}, Int("n", 7))
	assert.Equal(t, Field{Key: "elapsed", Value: "1.5s"}, Duration("elapsed", 1500*time.Millisecond))

	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, Field{Key: "at", Value: "2025-03-01T12:00:00Z"}, Time("at", at))

	assert.Equal(t, Field{Key: "error", Value: "boom"}, Err(errors.New("boom")))
	assert.Equal(t, Field{Key: "error", Value: nil}, Err(nil))
}
