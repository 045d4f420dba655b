package users

import (
	"github.com/quizbattle/backend/go/internal/models"
)

// CreateUserRequest carries the fields needed to insert a user, e.g. from
// the seed tool.
type CreateUserRequest struct {
	Username string          `json:"username"`
	Password string          `json:"password"`
	FullName string          `json:"full_name"`
	Nickname *string         `json:"nickname,omitempty"`
	Avatar   *string         `json:"avatar,omitempty"`
	Role     models.UserRole `json:"role"`
	TeamID   *int            `json:"team_id,omitempty"`
}
