package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/quizbattle/backend/go/internal/game"
	"github.com/quizbattle/backend/go/internal/game/events"
	"github.com/quizbattle/backend/go/internal/models"
	"github.com/quizbattle/backend/go/internal/rooms"
)

// Clock is the interface we use for time operations.
// In production, use clockwork.NewRealClock(). In tests, a FakeClock.
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) clockwork.Timer
}

// UsersApp defines what the orchestrator needs from the user store.
type UsersApp interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
	ListPlayers(ctx context.Context) ([]*models.User, error)
}

// RoomsApp defines what the orchestrator needs from the durable room store.
type RoomsApp interface {
	RecordRoom(ctx context.Context, code string, hostUserID int64) (*models.RoomRecord, error)
	LatestRoomByHost(ctx context.Context, hostUserID int64) (*models.RoomRecord, error)
}

// Sink receives outbound notifications. Delivery is at-most-once; the
// orchestrator never blocks on it.
type Sink interface {
	BroadcastToRoom(roomCode string, event *events.GameEvent)
	SendToSession(sessionID string, event *events.GameEvent)
}

// Orchestrator receives game commands from the transport layer, drives the
// registry and rooms, and pushes notifications out through the sink.
type Orchestrator struct {
	registry *game.Registry
	users    UsersApp
	rooms    RoomsApp
	sink     Sink
	clock    Clock
}

// NewOrchestrator creates a game orchestrator.
func NewOrchestrator(registry *game.Registry, usersApp UsersApp, roomsApp RoomsApp, sink Sink, clock Clock) *Orchestrator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Orchestrator{
		registry: registry,
		users:    usersApp,
		rooms:    roomsApp,
		sink:     sink,
		clock:    clock,
	}
}

// CreateRoom creates a room for an admin host, or rebinds/reactivates the
// host's latest room when forceNew is false. The full roster is loaded from
// the user store at activation; the host is notified with code and state.
func (o *Orchestrator) CreateRoom(ctx context.Context, hostUserID int64, sessionID string, forceNew bool) (*game.Room, error) {
	host, err := o.users.GetUser(ctx, hostUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load host user: %w", err)
	}
	if !host.IsAdmin() {
		return nil, ErrNotAdmin
	}

	if !forceNew {
		if room, err := o.reuseLatestRoom(ctx, hostUserID, sessionID); err != nil {
			return nil, err
		} else if room != nil {
			o.sendRoomCreated(sessionID, room)
			return room, nil
		}
	}

	room, err := o.registry.Create(ctx, "", sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}
	if _, err := o.rooms.RecordRoom(ctx, room.Code(), hostUserID); err != nil {
		o.registry.Delete(room.Code())
		return nil, fmt.Errorf("failed to record room: %w", err)
	}
	if err := o.loadPlayers(ctx, room); err != nil {
		o.registry.Delete(room.Code())
		return nil, err
	}

	log.Info().
		Str("room_code", room.Code()).
		Int64("host_user_id", hostUserID).
		Str("session_id", sessionID).
		Bool("force_new", forceNew).
		Msg("created room")

	o.sendRoomCreated(sessionID, room)
	return room, nil
}

// reuseLatestRoom rebinds the host session to an already-active room, or
// reactivates the host's persisted room with a fresh roster. Returns nil
// when the host has no prior room.
func (o *Orchestrator) reuseLatestRoom(ctx context.Context, hostUserID int64, sessionID string) (*game.Room, error) {
	rec, err := o.rooms.LatestRoomByHost(ctx, hostUserID)
	if errors.Is(err, rooms.ErrRoomNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up latest room: %w", err)
	}

	if room := o.registry.Lookup(rec.Code); room != nil {
		room.SetHostSession(sessionID)
		log.Info().
			Str("room_code", rec.Code).
			Int64("host_user_id", hostUserID).
			Msg("host reconnected to existing room")
		return room, nil
	}

	room, err := o.registry.Create(ctx, rec.Code, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to reactivate room: %w", err)
	}
	if err := o.loadPlayers(ctx, room); err != nil {
		o.registry.Delete(room.Code())
		return nil, err
	}
	log.Info().
		Str("room_code", rec.Code).
		Int64("host_user_id", hostUserID).
		Msg("reactivated room from store")
	return room, nil
}

// loadPlayers projects the user store's non-admin users into the roster,
// capped at the room's player limit.
func (o *Orchestrator) loadPlayers(ctx context.Context, room *game.Room) error {
	players, err := o.users.ListPlayers(ctx)
	if err != nil {
		return fmt.Errorf("failed to load room roster: %w", err)
	}
	for _, u := range players {
		avatar := game.DefaultAvatar
		if u.Avatar != nil && *u.Avatar != "" {
			avatar = *u.Avatar
		}
		if !room.AddPlayer(&models.Player{
			ID:     strconv.FormatInt(u.ID, 10),
			Name:   u.FullName,
			Avatar: avatar,
			TeamID: u.TeamID,
		}) {
			break
		}
	}
	return nil
}

// JoinRoom binds a transport session to an existing player, sends the
// current room state to that session and announces the join to the room.
func (o *Orchestrator) JoinRoom(code, playerID, sessionID string) (models.Player, error) {
	room := o.registry.Lookup(code)
	if room == nil {
		return models.Player{}, ErrRoomNotFound
	}
	player, ok := room.ConnectPlayer(playerID, sessionID)
	if !ok {
		return models.Player{}, ErrPlayerNotFound
	}

	snap := room.Snapshot()
	o.send(sessionID, events.EventTypeRoomState, room.Code(), events.RoomStatePayload{Room: snap})
	o.broadcast(room.Code(), events.EventTypePlayerJoined, events.PlayerJoinedPayload{Player: player, Room: snap})

	log.Info().
		Str("room_code", room.Code()).
		Str("player_id", playerID).
		Str("session_id", sessionID).
		Msg("player connected")
	return player, nil
}

// StartRound transitions the room to ACTIVE. Host-only.
func (o *Orchestrator) StartRound(code, sessionID string) error {
	room := o.registry.Lookup(code)
	if room == nil {
		return ErrRoomNotFound
	}
	if !room.IsHostSession(sessionID) {
		return ErrNotHost
	}

	room.StartRound(o.clock.Now())
	o.broadcast(room.Code(), events.EventTypeRoundStarted, events.RoundStartedPayload{
		RoomCode: room.Code(),
		State:    models.GameStateActive,
	})
	log.Info().Str("room_code", room.Code()).Msg("round started")
	return nil
}

// PressButton registers a button press. Rejections (unknown room, inactive
// round, duplicate press, stunned player) are silent race losses: no error,
// no broadcast. An accepted press is acknowledged to the whole room right
// away, without revealing any winner; the first press of a round also arms
// the deferred winner resolution.
func (o *Orchestrator) PressButton(code, playerID string, clientTimestamp int64) (models.ButtonPress, bool) {
	room := o.registry.Lookup(code)
	if room == nil {
		return models.ButtonPress{}, false
	}

	press, ok := room.RegisterPress(playerID, clientTimestamp, o.clock.Now(), o.scheduleResolution(room))
	if !ok {
		return models.ButtonPress{}, false
	}

	player, _ := room.Player(playerID)
	o.broadcast(room.Code(), events.EventTypeButtonPressed, events.ButtonPressedPayload{
		PlayerID:   player.ID,
		PlayerName: player.Name,
		Avatar:     player.Avatar,
		Press:      press,
		Presses:    room.Snapshot().Presses,
	})

	log.Info().
		Str("room_code", room.Code()).
		Str("player_id", playerID).
		Int64("client_ts", clientTimestamp).
		Int64("server_ts", press.ServerReceiveTime).
		Int("position", press.Position).
		Msg("button pressed")
	return press, true
}

// ResetRound returns the room to WAITING and clears stuns. Host-only.
func (o *Orchestrator) ResetRound(code, sessionID string) error {
	room := o.registry.Lookup(code)
	if room == nil {
		return ErrRoomNotFound
	}
	if !room.IsHostSession(sessionID) {
		return ErrNotHost
	}

	room.ResetRound()
	o.broadcast(room.Code(), events.EventTypeRoundReset, events.RoundResetPayload{Room: room.Snapshot()})
	log.Info().Str("room_code", room.Code()).Msg("round reset")
	return nil
}

// StunPlayer blocks a player's button until the next reset. Host-only.
func (o *Orchestrator) StunPlayer(code, playerID, sessionID string) error {
	room := o.registry.Lookup(code)
	if room == nil {
		return ErrRoomNotFound
	}
	if !room.IsHostSession(sessionID) {
		return ErrNotHost
	}
	if !room.StunPlayer(playerID) {
		return ErrPlayerNotFound
	}

	o.broadcast(room.Code(), events.EventTypeRoomState, events.RoomStatePayload{Room: room.Snapshot()})
	log.Info().Str("room_code", room.Code()).Str("player_id", playerID).Msg("player stunned")
	return nil
}

// Disconnect marks the player bound to a session as not connected, in every
// room that knows the session. Players stay in the roster and rounds keep
// running.
func (o *Orchestrator) Disconnect(sessionID string) {
	for _, room := range o.registry.Rooms() {
		if player, ok := room.DisconnectSession(sessionID); ok {
			o.broadcast(room.Code(), events.EventTypePlayerLeft, events.PlayerLeftPayload{
				PlayerID:   player.ID,
				PlayerName: player.Name,
			})
			log.Info().
				Str("room_code", room.Code()).
				Str("player_id", player.ID).
				Msg("player disconnected")
		}
	}
}

// DeleteRoom drops a room from the registry. Host-only. The durable record
// stays so the host can reactivate later.
func (o *Orchestrator) DeleteRoom(code, sessionID string) error {
	room := o.registry.Lookup(code)
	if room == nil {
		return ErrRoomNotFound
	}
	if !room.IsHostSession(sessionID) {
		return ErrNotHost
	}
	room.ResetRound() // cancels any pending resolution task
	o.registry.Delete(code)
	log.Info().Str("room_code", room.Code()).Msg("room deleted")
	return nil
}

// SendRoomState pushes the current snapshot to one session.
func (o *Orchestrator) SendRoomState(code, sessionID string) error {
	room := o.registry.Lookup(code)
	if room == nil {
		return ErrRoomNotFound
	}
	o.send(sessionID, events.EventTypeRoomState, room.Code(), events.RoomStatePayload{Room: room.Snapshot()})
	return nil
}

// RoomSnapshot is a pure read used by the query surface.
func (o *Orchestrator) RoomSnapshot(code string) (game.Snapshot, bool) {
	room := o.registry.Lookup(code)
	if room == nil {
		return game.Snapshot{}, false
	}
	return room.Snapshot(), true
}

// PlayerStatus returns one player's roster entry, connection flag included.
func (o *Orchestrator) PlayerStatus(code, playerID string) (models.Player, bool) {
	room := o.registry.Lookup(code)
	if room == nil {
		return models.Player{}, false
	}
	return room.Player(playerID)
}

// IsHost reports whether a session controls the room.
func (o *Orchestrator) IsHost(code, sessionID string) bool {
	room := o.registry.Lookup(code)
	return room != nil && room.IsHostSession(sessionID)
}

// Avatars returns the avatar catalog.
func (o *Orchestrator) Avatars() []string {
	return game.Avatars
}

func (o *Orchestrator) sendRoomCreated(sessionID string, room *game.Room) {
	o.send(sessionID, events.EventTypeRoomCreated, room.Code(), events.RoomCreatedPayload{
		RoomCode: room.Code(),
		Room:     room.Snapshot(),
	})
}

func (o *Orchestrator) broadcast(roomCode string, typ events.EventType, payload any) {
	event, err := events.New(typ, roomCode, o.clock.Now(), payload)
	if err != nil {
		log.Error().Err(err).Str("room_code", roomCode).Msg("failed to build event")
		return
	}
	o.sink.BroadcastToRoom(roomCode, event)
}

func (o *Orchestrator) send(sessionID string, typ events.EventType, roomCode string, payload any) {
	event, err := events.New(typ, roomCode, o.clock.Now(), payload)
	if err != nil {
		log.Error().Err(err).Str("room_code", roomCode).Msg("failed to build event")
		return
	}
	o.sink.SendToSession(sessionID, event)
}
