package onboarding

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

const setupTokenBytes = 32

// DefaultTokenTTL is how long a setup link stays valid.
const DefaultTokenTTL = 24 * time.Hour

// IssueToken generates an opaque 64-character setup token from a
// cryptographically secure source, along with its absolute expiry instant
// in UTC. A non-positive ttl falls back to DefaultTokenTTL.
func IssueToken(ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	buf := make([]byte, setupTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", time.Time{}, fmt.Errorf("generate setup token: %w", err)
	}
	return hex.EncodeToString(buf), time.Now().UTC().Add(ttl), nil
}
