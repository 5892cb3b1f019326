package models

import (
	"time"

	"github.com/Skotchmaster/restaurant/pkg/roles"
)

type User struct {
	ID               string     `gorm:"primaryKey;size:36"                  json:"id"`
	FullName         string     `gorm:"size:255"                            json:"fullName"`
	Email            string     `gorm:"size:320;uniqueIndex;not null"       json:"email"`
	PasswordHash     string     `gorm:"not null"                            json:"-"`
	Role             roles.Role `gorm:"size:32;not null;default:customer"   json:"role"`
	RefreshTokenHash *string    `gorm:"size:64;index"                       json:"-"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// HasSession reports whether a refresh token hash is stored.
func (u *User) HasSession() bool {
	return u.RefreshTokenHash != nil && *u.RefreshTokenHash != ""
}
