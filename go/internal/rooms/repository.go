package rooms

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/quizbattle/backend/go/internal/models"
)

// ErrRoomNotFound is returned when no room record matches the lookup.
var ErrRoomNotFound = errors.New("room record not found")

// Repository implements durable room record access against Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new rooms repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreateRoomRequest carries the fields for a new durable room record.
type CreateRoomRequest struct {
	Code       string `json:"code"`
	HostUserID int64  `json:"host_user_id"`
}

// CreateRoom records a room durably.
func (r *Repository) CreateRoom(ctx context.Context, req CreateRoomRequest) (*models.RoomRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO rooms (code, host_user_id)
		VALUES ($1, $2)
		RETURNING code, host_user_id, created_at`,
		strings.ToUpper(req.Code), req.HostUserID)

	rec, err := scanRoom(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create room record: %w", err)
	}
	return rec, nil
}

// LatestRoomByHost returns the most recently created room record for a host.
func (r *Repository) LatestRoomByHost(ctx context.Context, hostUserID int64) (*models.RoomRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT code, host_user_id, created_at FROM rooms
		WHERE host_user_id = $1
		ORDER BY created_at DESC
		LIMIT 1`, hostUserID)

	rec, err := scanRoom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest room record: %w", err)
	}
	return rec, nil
}

// RoomCodeExists reports whether a durable record already claims the code.
func (r *Repository) RoomCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM rooms WHERE code = $1)`,
		strings.ToUpper(code)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check room code: %w", err)
	}
	return exists, nil
}

func scanRoom(row *sql.Row) (*models.RoomRecord, error) {
	var rec models.RoomRecord
	if err := row.Scan(&rec.Code, &rec.HostUserID, &rec.CreatedAt); err != nil {
		return nil, err
	}
	return &rec, nil
}
