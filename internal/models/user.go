package models

import (
	"time"
)

// Role names as stored in the users table
const (
	RoleAdmin   = "ADMIN"
	RoleTeacher = "TEACHER"
	RoleStudent = "STUDENT"
)

// roleLevels orders roles; a higher level includes every lower one
var roleLevels = map[string]int{
	RoleAdmin:   3,
	RoleTeacher: 2,
	RoleStudent: 1,
}

// RoleLevel returns the rank of a role, 0 for unknown roles
func RoleLevel(role string) int {
	return roleLevels[role]
}

// HasRole reports whether role is at least as privileged as required
func HasRole(role, required string) bool {
	level := RoleLevel(role)
	return level > 0 && level >= RoleLevel(required)
}

type User struct {
	ID           string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Role         string
	AvatarKey    *string // Object key in the avatar bucket
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PublicUser is the projection of a user that may leave the server
type PublicUser struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Role      string    `json:"role"`
	AvatarURL string    `json:"avatarUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Public returns the user without credentials
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

// FullName joins first and last name
func (u *User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
