package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRefreshTokenExpired(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	live := RefreshToken{ExpiresAt: now.Add(time.Hour)}
	assert.False(t, live.Expired(now))

	past := RefreshToken{ExpiresAt: now.Add(-time.Minute)}
	assert.True(t, past.Expired(now))

	revoked := RefreshToken{ExpiresAt: now.Add(time.Hour), IsRevoked: true}
	assert.True(t, revoked.Expired(now), "revocation wins even before expiry")
}
