package models

import "time"

// Session is one live browser session. The in-memory cache in the sessions
// package is a hint over these rows; the row is authoritative.
type Session struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"user_id" gorm:"not null;index"`
	User      User      `json:"-" gorm:"foreignKey:UserID"`
	Token     string    `json:"-" gorm:"uniqueIndex;not null"`
	CSRFToken string    `json:"-" gorm:"not null;default:''"`
	UserAgent string    `json:"user_agent"`
	IPAddress string    `json:"ip_address"`
	CreatedAt time.Time `json:"created_at"`
	LastSeen  time.Time `json:"last_seen"`
	ExpiresAt time.Time `json:"expires_at" gorm:"not null"`
	IsActive  bool      `json:"is_active" gorm:"default:true"`
}
