package records

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// shareTokenBytes is the entropy of a share token. 16 random bytes keeps the
// hex token unguessable; possession of the token is the whole authorization.
const shareTokenBytes = 16

// newShareToken returns a fresh crypto-random hex token.
func newShareToken() (string, error) {
	buf := make([]byte, shareTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate share token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// tokenMatches compares a presented token against the stored one in constant
// time, so response timing reveals nothing about how many leading characters
// of a guess are correct.
func tokenMatches(stored, presented string) bool {
	return subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) == 1
}
