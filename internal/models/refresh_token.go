package models

import (
	"time"
)

// RefreshToken is one issued refresh credential. Tokens rotate on every
// refresh: the presented row is revoked and a fresh one written, so a stolen
// token dies as soon as the legitimate client refreshes.
type RefreshToken struct {
	BaseModel
	UserID    string    `gorm:"size:36;index" json:"userId"`
	Token     string    `gorm:"type:text;not null" json:"-"`
	ExpiresAt time.Time `json:"expiresAt"`
	IsRevoked bool      `gorm:"default:false" json:"isRevoked"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

// Expired reports whether the token can no longer be redeemed.
func (t *RefreshToken) Expired(now time.Time) bool {
	return t.IsRevoked || now.After(t.ExpiresAt)
}
