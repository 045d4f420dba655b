package models

import (
	"time"
)

// UserRole defines the role of a user account.
type UserRole string

const (
	UserRoleAdmin  UserRole = "ADMIN"
	UserRolePlayer UserRole = "PLAYER"
)

// User represents a registered account. Admins host games; everyone else
// is projected into rooms as a player.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	FullName  string    `json:"full_name"`
	Nickname  *string   `json:"nickname,omitempty"`
	Avatar    *string   `json:"avatar,omitempty"`
	Role      UserRole  `json:"role"`
	TeamID    *int      `json:"team_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// IsAdmin reports whether the user may create and control rooms.
func (u *User) IsAdmin() bool {
	return u.Role == UserRoleAdmin
}
