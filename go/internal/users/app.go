package users

import (
	"context"
	"fmt"

	"github.com/quizbattle/backend/go/internal/models"
)

// UsersRepository defines what the app layer needs from the repository.
type UsersRepository interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
	ListPlayers(ctx context.Context) ([]*models.User, error)
}

// App handles users business logic.
type App struct {
	repo UsersRepository
}

// NewApp creates a new users App.
func NewApp(repo UsersRepository) *App {
	return &App{repo: repo}
}

// GetUser retrieves a user by ID.
func (a *App) GetUser(ctx context.Context, id int64) (*models.User, error) {
	user, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// ListPlayers returns the non-admin users that become a room's roster.
func (a *App) ListPlayers(ctx context.Context) ([]*models.User, error) {
	players, err := a.repo.ListPlayers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	return players, nil
}
