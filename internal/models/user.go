package models

import "time"

// User represents an account in the system
type User struct {
	ID          int        `json:"id" gorm:"primaryKey;autoIncrement"`
	Username    string     `json:"username" gorm:"size:150;uniqueIndex;not null"`
	Email       *string    `json:"email" gorm:"size:254;uniqueIndex"`
	Password    string     `json:"-" gorm:"not null;default:''"` // Never expose password in JSON
	FirstName   string     `json:"first_name" gorm:"size:150;not null;default:''"`
	LastName    string     `json:"last_name" gorm:"size:150;not null;default:''"`
	IsSuperuser bool       `json:"is_superuser" gorm:"not null;default:false"`
	IsStaff     bool       `json:"is_staff" gorm:"not null;default:false"`
	IsActive    bool       `json:"is_active" gorm:"not null;default:true"`
	DateJoined  time.Time  `json:"date_joined" gorm:"not null"`
	LastLogin   *time.Time `json:"last_login"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TableName specifies the table name for User
func (User) TableName() string {
	return "users"
}

// HasPassword reports whether the account can sign in with a password.
// Accounts created through an identity provider carry an empty hash.
func (u *User) HasPassword() bool {
	return u.Password != ""
}

// EmailAddress returns the e-mail or an empty string when none is set.
func (u *User) EmailAddress() string {
	if u.Email == nil {
		return ""
	}
	return *u.Email
}
