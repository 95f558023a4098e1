package models

import "time"

// Session is a server-side session row used by the database session backend.
type Session struct {
	ID        string    `gorm:"primaryKey;size:64"`
	Data      string    `gorm:"type:text;not null"`
	ExpiresAt time.Time `gorm:"not null;index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName specifies the table name for Session
func (Session) TableName() string {
	return "sessions"
}
