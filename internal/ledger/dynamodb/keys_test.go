package dynamodb

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRunListSKOrdersByStartTime(t *testing.T) {
	earlier := runListSK(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), "run-a")
	later := runListSK(time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC), "run-b")
	assert.Less(t, earlier, later)
}

func TestEventSKUnique(t *testing.T) {
	ts := time.Now()
	a := eventSK(ts)
	b := eventSK(ts)
	assert.NotEqual(t, a, b, "same-millisecond events must not collide")
	assert.True(t, strings.HasPrefix(a, prefixEvent))
}

func TestClaimPK(t *testing.T) {
	assert.Equal(t, "KEY#main@abc123", claimPK("main@abc123"))
}

func TestTTLExpiry(t *testing.T) {
	assert.False(t, isExpired(0), "zero epoch means no TTL")
	assert.False(t, isExpired(ttlEpoch(time.Hour)))
	assert.True(t, isExpired(time.Now().Add(-time.Minute).Unix()))
}
