package models

import (
	"strings"
	"time"
)

// Role identifies what a signed-in user may do.
type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// ParseRole normalises a stored or requested role. Anything unrecognised,
// including an empty selection, falls back to the teacher role.
func ParseRole(value string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(value))) {
	case RoleStudent:
		return RoleStudent
	default:
		return RoleTeacher
	}
}

// UserProfile is the role-tagged directory entry for a signed-in identity.
type UserProfile struct {
	UID          string    `gorm:"primaryKey;size:64" json:"uid"`
	Email        string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	DisplayName  string    `gorm:"size:255" json:"display_name"`
	Role         string    `gorm:"size:32;not null" json:"role"`
	PasswordHash string    `gorm:"size:255" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// EffectiveRole returns the profile's role with the teacher fallback applied.
func (p UserProfile) EffectiveRole() Role {
	return ParseRole(p.Role)
}
