package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/quizbattle/backend/go/internal/models"
	"github.com/quizbattle/backend/go/internal/sqlutil"
)

// ErrUserNotFound is returned when no user matches the lookup.
var ErrUserNotFound = errors.New("user not found")

// Repository implements user data access against Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new users repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const userColumns = "id, username, full_name, nickname, avatar, role, team_id, created_at"

// CreateUser inserts a new user.
func (r *Repository) CreateUser(ctx context.Context, req CreateUserRequest) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO users (username, password, full_name, nickname, avatar, role, team_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+userColumns,
		req.Username,
		req.Password,
		req.FullName,
		sqlutil.ToSqlString(req.Nickname),
		sqlutil.ToSqlString(req.Avatar),
		string(req.Role),
		sqlutil.ToSqlInt32(req.TeamID),
	)

	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// GetUser retrieves a user by ID.
func (r *Repository) GetUser(ctx context.Context, id int64) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE id = $1`, id)

	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// ListPlayers returns all non-admin users in id order — the roster a room
// loads at activation.
func (r *Repository) ListPlayers(ctx context.Context) ([]*models.User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE role <> $1 ORDER BY id`,
		string(models.UserRoleAdmin))
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	defer rows.Close()

	var out []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan player row: %w", err)
		}
		out = append(out, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate player rows: %w", err)
	}
	return out, nil
}

// CountUsers returns the number of users, used by the seed tool to stay
// idempotent.
func (r *Repository) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		user     models.User
		nickname sql.NullString
		avatar   sql.NullString
		teamID   sql.NullInt32
		role     string
	)
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.FullName,
		&nickname,
		&avatar,
		&role,
		&teamID,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	user.Nickname = sqlutil.FromSqlStringPtr(nickname)
	user.Avatar = sqlutil.FromSqlStringPtr(avatar)
	user.Role = models.UserRole(role)
	user.TeamID = sqlutil.FromSqlInt32(teamID)
	return &user, nil
}
