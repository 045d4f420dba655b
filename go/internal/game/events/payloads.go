package events

import (
	"github.com/quizbattle/backend/go/internal/game"
	"github.com/quizbattle/backend/go/internal/models"
)

// RoomCreatedPayload is sent to the host after a room is created or
// reactivated.
type RoomCreatedPayload struct {
	RoomCode string        `json:"room_code"`
	Room     game.Snapshot `json:"room"`
}

// RoomStatePayload carries a full room snapshot, e.g. on join or on the
// get-room-state query.
type RoomStatePayload struct {
	Room game.Snapshot `json:"room"`
}

// PlayerJoinedPayload announces a player's session binding to the room.
type PlayerJoinedPayload struct {
	Player models.Player `json:"player"`
	Room   game.Snapshot `json:"room"`
}

// PlayerLeftPayload announces a player losing their connection.
type PlayerLeftPayload struct {
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
}

// RoundStartedPayload announces the round going ACTIVE.
type RoundStartedPayload struct {
	RoomCode string           `json:"room_code"`
	State    models.GameState `json:"game_state"`
}

// ButtonPressedPayload is the interim acknowledgement broadcast for every
// accepted press. It deliberately carries no winner fields: the winner is
// only revealed by ROUND_ENDED after the buffer window closes.
type ButtonPressedPayload struct {
	PlayerID   string               `json:"player_id"`
	PlayerName string               `json:"player_name"`
	Avatar     string               `json:"avatar"`
	Press      models.ButtonPress   `json:"press"`
	Presses    []models.ButtonPress `json:"button_presses"`
}

// RoundEndedPayload is the final outcome: winner plus the full press ledger.
type RoundEndedPayload struct {
	Room game.Snapshot `json:"room"`
}

// RoundResetPayload announces the room returning to WAITING.
type RoundResetPayload struct {
	Room game.Snapshot `json:"room"`
}

// ErrorPayload is surfaced to the originating session only.
type ErrorPayload struct {
	Message string `json:"message"`
}
