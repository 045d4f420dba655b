package orchestrator

import "errors"

var (
	// ErrNotAdmin rejects room creation by non-admin accounts.
	ErrNotAdmin = errors.New("only an admin can create rooms")

	// ErrNotHost rejects host-only commands from other sessions.
	ErrNotHost = errors.New("only the host can perform this action")

	// ErrRoomNotFound is returned for unknown room codes.
	ErrRoomNotFound = errors.New("room not found")

	// ErrPlayerNotFound is returned for unknown player ids.
	ErrPlayerNotFound = errors.New("player not found")
)
