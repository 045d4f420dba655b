package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	_ "github.com/lib/pq"

	"github.com/quizbattle/backend/go/internal/dbconfig"
	"github.com/quizbattle/backend/go/internal/models"
	"github.com/quizbattle/backend/go/internal/sqlutil"
	"github.com/quizbattle/backend/go/internal/users"
)

// Seed mirrors the JSON snapshot structure
type Seed struct {
	Teams []SeedTeam `json:"teams"`
	Users []SeedUser `json:"users"`
}

type SeedTeam struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type SeedUser struct {
	Username string  `json:"username"`
	Password string  `json:"password"`
	FullName string  `json:"full_name"`
	Nickname *string `json:"nickname,omitempty"`
	Avatar   *string `json:"avatar,omitempty"`
	Role     string  `json:"role"`
	TeamID   *int    `json:"team_id,omitempty"`
}

func main() {
	// 1) Load the JSON snapshot
	data, err := os.ReadFile("go/internal/assets/users.json")
	if err != nil {
		fmt.Fprintf(os.Stderr, "read JSON: %v\n", err)
		os.Exit(1)
	}
	var seed Seed
	if err := json.Unmarshal(data, &seed); err != nil {
		fmt.Fprintf(os.Stderr, "unmarshal JSON: %v\n", err)
		os.Exit(1)
	}

	// 2) Connect using shared dbconfig
	cfg := dbconfig.NewConfigFromEnv()
	database, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()

	ctx := context.Background()
	repo := users.NewRepository(database)

	// 3) Skip entirely if users already exist so reruns are harmless
	count, err := repo.CountUsers(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "count users: %v\n", err)
		os.Exit(1)
	}
	if count > 0 {
		fmt.Printf("Users seed skipped: %d users already present\n", count)
		return
	}

	// 4) Insert teams first so user rows can reference them
	var teams int
	err = sqlutil.Run(ctx, database, func(tx *sql.Tx) error {
		for _, t := range seed.Teams {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO teams (id, name) VALUES ($1, $2)
				ON CONFLICT (id) DO NOTHING`,
				t.ID, t.Name,
			); err != nil {
				return fmt.Errorf("insert team %q: %w", t.Name, err)
			}
			teams++
		}
		return nil
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
		os.Exit(1)
	}

	// 5) Insert users through the repository
	var players int
	for _, u := range seed.Users {
		if _, err := repo.CreateUser(ctx, users.CreateUserRequest{
			Username: u.Username,
			Password: u.Password,
			FullName: u.FullName,
			Nickname: u.Nickname,
			Avatar:   u.Avatar,
			Role:     models.UserRole(u.Role),
			TeamID:   u.TeamID,
		}); err != nil {
			fmt.Fprintf(os.Stderr, "insert user %q: %v\n", u.Username, err)
			os.Exit(1)
		}
		players++
	}

	// 6) Print summary
	fmt.Printf("Seed complete: %d teams, %d users\n", teams, players)
}
