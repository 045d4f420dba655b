package rooms

import (
	"context"
	"fmt"

	"github.com/quizbattle/backend/go/internal/models"
)

// RoomsRepository defines what the app layer needs from the repository.
type RoomsRepository interface {
	CreateRoom(ctx context.Context, req CreateRoomRequest) (*models.RoomRecord, error)
	LatestRoomByHost(ctx context.Context, hostUserID int64) (*models.RoomRecord, error)
	RoomCodeExists(ctx context.Context, code string) (bool, error)
}

// App handles durable room record logic. It also backs the registry's
// code-uniqueness check.
type App struct {
	repo RoomsRepository
}

// NewApp creates a new rooms App.
func NewApp(repo RoomsRepository) *App {
	return &App{repo: repo}
}

// RecordRoom persists a freshly created room.
func (a *App) RecordRoom(ctx context.Context, code string, hostUserID int64) (*models.RoomRecord, error) {
	if code == "" {
		return nil, fmt.Errorf("validation failed: room code is required")
	}
	rec, err := a.repo.CreateRoom(ctx, CreateRoomRequest{Code: code, HostUserID: hostUserID})
	if err != nil {
		return nil, fmt.Errorf("failed to record room: %w", err)
	}
	return rec, nil
}

// LatestRoomByHost returns the host's most recent room record.
func (a *App) LatestRoomByHost(ctx context.Context, hostUserID int64) (*models.RoomRecord, error) {
	return a.repo.LatestRoomByHost(ctx, hostUserID)
}

// RoomCodeExists implements the registry's CodeStore collaborator.
func (a *App) RoomCodeExists(ctx context.Context, code string) (bool, error) {
	return a.repo.RoomCodeExists(ctx, code)
}
