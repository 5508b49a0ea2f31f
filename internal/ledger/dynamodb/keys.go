package dynamodb

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// PK/SK prefix constants.
const (
	prefixRun   = "RUN#"
	prefixKey   = "KEY#"
	prefixLock  = "LOCK#"
	prefixEvent = "EVENT#"

	pkRunList = "RUNS"
	pkEvents  = "EVENTS"

	skClaim = "CLAIM"
	skLock  = "LOCK"
)

func runPK(runID string) string { return prefixRun + runID }
func runSK(runID string) string { return prefixRun + runID }

func claimPK(deployKey string) string { return prefixKey + deployKey }

// runListSK orders the run list by start time. Fixed-width millis keep the
// lexicographic sort correct regardless of sub-second precision.
func runListSK(startedAt time.Time, runID string) string {
	return fmt.Sprintf("%s%013d#%s", prefixRun, startedAt.UnixMilli(), runID)
}

func eventSK(ts time.Time) string {
	millis := ts.UnixMilli()
	nonce := make([]byte, 4)
	_, _ = rand.Read(nonce)
	return fmt.Sprintf("%s%013d#%s", prefixEvent, millis, hex.EncodeToString(nonce))
}

func lockPK(key string) string { return prefixLock + key }

func ttlEpoch(d time.Duration) int64 {
	return time.Now().Add(d).Unix()
}

func isExpired(epoch int64) bool {
	return epoch > 0 && time.Now().Unix() > epoch
}
