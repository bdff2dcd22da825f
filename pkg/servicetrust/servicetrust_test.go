package servicetrust

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soybean-admin/uniauth/pkg/constants"
)

const testSecret = "service-trust-secret-0123456789abcdef"

func TestSignAndVerify(t *testing.T) {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	nonce := NewNonce()

	sig := Sign(testSecret, "svc-1", "billing", ts, nonce)
	assert.Len(t, sig, 64) // hex sha256

	assert.True(t, VerifySignature(testSecret, "svc-1", "billing", ts, nonce, sig))
}

func TestVerifySignature_RejectsTampering(t *testing.T) {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	nonce := NewNonce()
	sig := Sign(testSecret, "svc-1", "billing", ts, nonce)

	// Any altered field invalidates the signature.
	assert.False(t, VerifySignature(testSecret, "svc-2", "billing", ts, nonce, sig))
	assert.False(t, VerifySignature(testSecret, "svc-1", "payments", ts, nonce, sig))
	assert.False(t, VerifySignature(testSecret, "svc-1", "billing", ts, NewNonce(), sig))
	assert.False(t, VerifySignature(testSecret, "svc-1", "billing", "1", nonce, sig))
	assert.False(t, VerifySignature("wrong-secret", "svc-1", "billing", ts, nonce, sig))
	assert.False(t, VerifySignature(testSecret, "svc-1", "billing", ts, nonce, sig[:63]+"0"))
}

func TestCanonical_FieldOrder(t *testing.T) {
	assert.Equal(t, "a:b:c:d", Canonical("a", "b", "c", "d"))

	// Swapping fields produces a different signature even when the joined
	// bytes could collide.
	sig1 := Sign(testSecret, "a", "b", "1", "n")
	sig2 := Sign(testSecret, "b", "a", "1", "n")
	assert.NotEqual(t, sig1, sig2)
}

func TestCheckSkew(t *testing.T) {
	now := time.Now()
	maxSkew := 5 * time.Minute

	within := func(offset time.Duration) string {
		return strconv.FormatInt(now.Add(offset).UnixMilli(), 10)
	}

	assert.True(t, CheckSkew(within(0), now, maxSkew))
	assert.True(t, CheckSkew(within(-4*time.Minute), now, maxSkew))
	// Future timestamps are tolerated up to the same bound.
	assert.True(t, CheckSkew(within(4*time.Minute), now, maxSkew))

	assert.False(t, CheckSkew(within(-6*time.Minute), now, maxSkew))
	assert.False(t, CheckSkew(within(6*time.Minute), now, maxSkew))
	assert.False(t, CheckSkew("not-a-number", now, maxSkew))
	assert.False(t, CheckSkew("", now, maxSkew))
}

func TestSignHeaders(t *testing.T) {
	headers := SignHeaders(testSecret, "svc-1", "billing")

	require.Equal(t, "svc-1", headers[constants.HeaderServiceID])
	require.Equal(t, "billing", headers[constants.HeaderServiceName])
	require.NotEmpty(t, headers[constants.HeaderServiceTimestamp])
	require.NotEmpty(t, headers[constants.HeaderServiceNonce])

	assert.True(t, VerifySignature(
		testSecret,
		headers[constants.HeaderServiceID],
		headers[constants.HeaderServiceName],
		headers[constants.HeaderServiceTimestamp],
		headers[constants.HeaderServiceNonce],
		headers[constants.HeaderServiceSignature],
	))
	assert.True(t, CheckSkew(headers[constants.HeaderServiceTimestamp], time.Now(), time.Minute))
}

func TestNewNonce_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		n := NewNonce()
		assert.False(t, seen[n])
		seen[n] = true
	}
}
