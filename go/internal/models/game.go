package models

// GameState defines the lifecycle state of a room's current round.
type GameState string

const (
	GameStateWaiting    GameState = "WAITING"
	GameStateActive     GameState = "ACTIVE"
	GameStateRoundEnded GameState = "ROUND_ENDED"
)

// Player is a room-scoped projection of a user. The ID is stable across
// reconnects; SessionID is rebound every time the client reconnects.
type Player struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Avatar    string `json:"avatar"`
	TeamID    *int   `json:"team_id,omitempty"`
	SessionID string `json:"-"`
	Connected bool   `json:"connected"`
	Stunned   bool   `json:"stunned"`
}

// ButtonPress is one entry in a round's press ledger. Timestamps are unix
// milliseconds. ClientTimestamp decides the winner; ServerReceiveTime only
// feeds the latency estimate; Position is display-only arrival order.
type ButtonPress struct {
	PlayerID          string `json:"player_id"`
	ClientTimestamp   int64  `json:"client_timestamp"`
	ServerReceiveTime int64  `json:"server_receive_time"`
	Position          int    `json:"position"`
}
