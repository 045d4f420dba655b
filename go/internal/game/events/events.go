package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GameEvent is the envelope for every outbound notification. Data holds the
// event-specific payload.
type GameEvent struct {
	ID        string          `json:"id"`
	RoomCode  string          `json:"room_code"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// EventType represents the type of game event.
type EventType string

const (
	EventTypeRoomCreated   EventType = "ROOM_CREATED"
	EventTypeRoomState     EventType = "ROOM_STATE"
	EventTypePlayerJoined  EventType = "PLAYER_JOINED"
	EventTypePlayerLeft    EventType = "PLAYER_LEFT"
	EventTypeRoundStarted  EventType = "ROUND_STARTED"
	EventTypeButtonPressed EventType = "BUTTON_PRESSED"
	EventTypeRoundEnded    EventType = "ROUND_ENDED"
	EventTypeRoundReset    EventType = "ROUND_RESET"
	EventTypeError         EventType = "ERROR"
)

// New wraps a payload in a GameEvent envelope.
func New(typ EventType, roomCode string, at time.Time, payload any) (*GameEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", typ, err)
	}
	return &GameEvent{
		ID:        uuid.New().String(),
		RoomCode:  roomCode,
		Type:      typ,
		Timestamp: at,
		Data:      data,
	}, nil
}
