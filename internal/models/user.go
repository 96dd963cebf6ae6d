package models

import (
	"time"
)

type User struct {
	ID        string    `gorm:"primaryKey;type:text" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// ExternalID is the identity provider's stable subject for this user.
	// Profile fields below are synced from the provider on every login.
	ExternalID string `gorm:"uniqueIndex;type:text" json:"-"`

	Name  string `json:"name"`
	Email string `gorm:"uniqueIndex" json:"email"`
	Image string `json:"image"`

	// Presence - mutated on login/heartbeat only
	IsOnline bool      `gorm:"default:false" json:"isOnline"`
	LastSeen time.Time `json:"lastSeen"`
}
