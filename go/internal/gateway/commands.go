package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quizbattle/backend/go/internal/game/events"
	"github.com/quizbattle/backend/go/internal/game/orchestrator"
)

// CommandType identifies an inbound client command.
type CommandType string

const (
	CommandCreateRoom   CommandType = "CREATE_ROOM"
	CommandJoinRoom     CommandType = "JOIN_ROOM"
	CommandStartRound   CommandType = "START_ROUND"
	CommandPressButton  CommandType = "PRESS_BUTTON"
	CommandResetRound   CommandType = "RESET_ROUND"
	CommandStunPlayer   CommandType = "STUN_PLAYER"
	CommandGetRoomState CommandType = "GET_ROOM_STATE"
	CommandDeleteRoom   CommandType = "DELETE_ROOM"
)

// Command is the JSON envelope clients send over the WebSocket. Fields
// beyond Type are command-specific.
type Command struct {
	Type     CommandType `json:"type"`
	RoomCode string      `json:"room_code,omitempty"`

	// CREATE_ROOM
	HostUserID int64 `json:"host_user_id,omitempty"`
	ForceNew   bool  `json:"force_new,omitempty"`

	// JOIN_ROOM / STUN_PLAYER / PRESS_BUTTON
	PlayerID string `json:"player_id,omitempty"`

	// PRESS_BUTTON
	ClientTimestamp int64 `json:"client_timestamp,omitempty"`
}

// CommandRouter decodes inbound frames and dispatches them to the
// orchestrator. Implements CommandHandler for the connection manager.
type CommandRouter struct {
	orch *orchestrator.Orchestrator
	cm   *ConnectionManager
}

// NewCommandRouter creates a router over the given orchestrator.
func NewCommandRouter(orch *orchestrator.Orchestrator, cm *ConnectionManager) *CommandRouter {
	return &CommandRouter{orch: orch, cm: cm}
}

// HandleCommand processes one inbound frame from a connection.
func (r *CommandRouter) HandleCommand(ctx context.Context, conn *Connection, data []byte) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		log.Warn().
			Err(err).
			Str("session_id", conn.SessionID).
			Msg("failed to decode command")
		r.sendError(conn, "", "invalid command")
		return
	}

	log.Debug().
		Str("session_id", conn.SessionID).
		Str("command", string(cmd.Type)).
		Str("room_code", cmd.RoomCode).
		Msg("command received")

	switch cmd.Type {
	case CommandCreateRoom:
		r.handleCreateRoom(ctx, conn, cmd)
	case CommandJoinRoom:
		r.handleJoinRoom(conn, cmd)
	case CommandStartRound:
		if err := r.orch.StartRound(cmd.RoomCode, conn.SessionID); err != nil {
			r.sendError(conn, cmd.RoomCode, err.Error())
		}
	case CommandPressButton:
		// Rejections here are race losses, not client errors: stay silent.
		r.orch.PressButton(cmd.RoomCode, cmd.PlayerID, cmd.ClientTimestamp)
	case CommandResetRound:
		if err := r.orch.ResetRound(cmd.RoomCode, conn.SessionID); err != nil {
			r.sendError(conn, cmd.RoomCode, err.Error())
		}
	case CommandStunPlayer:
		if err := r.orch.StunPlayer(cmd.RoomCode, cmd.PlayerID, conn.SessionID); err != nil {
			r.sendError(conn, cmd.RoomCode, err.Error())
		}
	case CommandGetRoomState:
		if err := r.orch.SendRoomState(cmd.RoomCode, conn.SessionID); err != nil {
			r.sendError(conn, cmd.RoomCode, err.Error())
		}
	case CommandDeleteRoom:
		if err := r.orch.DeleteRoom(cmd.RoomCode, conn.SessionID); err != nil {
			r.sendError(conn, cmd.RoomCode, err.Error())
		} else {
			r.cm.UnbindRoom(conn)
		}
	default:
		r.sendError(conn, cmd.RoomCode, "unknown command type")
	}
}

// HandleDisconnect marks the session's player disconnected in the game.
func (r *CommandRouter) HandleDisconnect(sessionID string) {
	r.orch.Disconnect(sessionID)
}

func (r *CommandRouter) handleCreateRoom(ctx context.Context, conn *Connection, cmd Command) {
	room, err := r.orch.CreateRoom(ctx, cmd.HostUserID, conn.SessionID, cmd.ForceNew)
	if err != nil {
		log.Warn().
			Err(err).
			Int64("host_user_id", cmd.HostUserID).
			Msg("create room rejected")
		r.sendError(conn, "", err.Error())
		return
	}
	r.cm.BindRoom(conn, room.Code())
}

func (r *CommandRouter) handleJoinRoom(conn *Connection, cmd Command) {
	// Bind before joining so the session sees its own join broadcast.
	r.cm.BindRoom(conn, cmd.RoomCode)
	if _, err := r.orch.JoinRoom(cmd.RoomCode, cmd.PlayerID, conn.SessionID); err != nil {
		r.cm.UnbindRoom(conn)
		r.sendError(conn, cmd.RoomCode, err.Error())
	}
}

func (r *CommandRouter) sendError(conn *Connection, roomCode, message string) {
	event, err := events.New(events.EventTypeError, roomCode, time.Now(), events.ErrorPayload{Message: message})
	if err != nil {
		log.Error().Err(err).Msg("failed to build error event")
		return
	}
	r.cm.SendToSession(conn.SessionID, event)
}
