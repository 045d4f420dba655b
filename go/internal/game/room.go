package game

import (
	"context"
	"sync"
	"time"

	"github.com/quizbattle/backend/go/internal/models"
)

// MaxPlayers caps how many players a room loads from the user store.
const MaxPlayers = 20

// ScheduleFunc schedules the deferred winner resolution for a round. It is
// invoked while the room lock is held, so scheduling can never race a
// concurrent reset. The returned cancel func stops the pending task.
type ScheduleFunc func(window time.Duration, epoch uint64) context.CancelFunc

// Room owns one game session: the round state machine, the player roster and
// the button-press ledger. Every mutating operation serializes through the
// room mutex; rooms never touch each other's state.
type Room struct {
	mu sync.Mutex

	code          string
	hostSessionID string

	state   models.GameState
	players []*models.Player
	byID    map[string]*models.Player

	presses        []models.ButtonPress
	winnerID       string
	roundStartTime time.Time
	firstPressAt   int64 // unix millis, server receive time of first press

	// epoch increments on every StartRound/ResetRound. A resolution task
	// captures the epoch it was scheduled under and becomes a no-op once
	// the epochs disagree, so a cancelled-but-already-running callback can
	// never mutate a newer round.
	epoch         uint64
	cancelResolve context.CancelFunc
}

// NewRoom creates a room in the WAITING state.
func NewRoom(code, hostSessionID string) *Room {
	return &Room{
		code:          code,
		hostSessionID: hostSessionID,
		state:         models.GameStateWaiting,
		byID:          make(map[string]*models.Player),
	}
}

// Code returns the immutable room code.
func (r *Room) Code() string {
	return r.code
}

// AddPlayer appends a player to the roster, preserving insertion order.
// Returns false when the room is full or the id is already taken.
func (r *Room) AddPlayer(p *models.Player) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.players) >= MaxPlayers {
		return false
	}
	if _, exists := r.byID[p.ID]; exists {
		return false
	}
	r.players = append(r.players, p)
	r.byID[p.ID] = p
	return true
}

// SetHostSession rebinds the controlling session, e.g. on host reconnect.
func (r *Room) SetHostSession(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hostSessionID = sessionID
}

// IsHostSession reports whether sessionID currently controls the room.
func (r *Room) IsHostSession(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hostSessionID == sessionID
}

// ConnectPlayer binds a transport session to an existing player. Returns a
// copy of the player, or false if the id is unknown.
func (r *Room) ConnectPlayer(playerID, sessionID string) (models.Player, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.byID[playerID]
	if !ok {
		return models.Player{}, false
	}
	p.SessionID = sessionID
	p.Connected = true
	return *p, true
}

// DisconnectSession marks the player bound to sessionID as not connected.
// The player stays in the roster and the round keeps going.
func (r *Room) DisconnectSession(sessionID string) (models.Player, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.players {
		if p.SessionID == sessionID {
			p.Connected = false
			return *p, true
		}
	}
	return models.Player{}, false
}

// Player returns a copy of the player with the given id.
func (r *Room) Player(playerID string) (models.Player, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.byID[playerID]
	if !ok {
		return models.Player{}, false
	}
	return *p, true
}

// StunPlayer blocks a player's button until the next reset clears the flag.
func (r *Room) StunPlayer(playerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.byID[playerID]
	if !ok {
		return false
	}
	p.Stunned = true
	return true
}

// StartRound transitions the room to ACTIVE, clears the previous round's
// ledger and winner, and cancels any still-pending resolution task.
func (r *Room) StartRound(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cancelPendingLocked()
	r.state = models.GameStateActive
	r.winnerID = ""
	r.roundStartTime = now
	r.firstPressAt = 0
	r.presses = nil
}

// ResetRound returns the room to WAITING, clears round state and every
// player's stunned flag, and cancels any pending resolution task.
func (r *Room) ResetRound() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cancelPendingLocked()
	r.state = models.GameStateWaiting
	r.winnerID = ""
	r.roundStartTime = time.Time{}
	r.firstPressAt = 0
	r.presses = nil
	for _, p := range r.players {
		p.Stunned = false
	}
}

// cancelPendingLocked bumps the epoch and cancels the outstanding resolution
// task, if any. Cancellation of an already-running callback is best effort;
// the epoch check in ResolveWinner is the real guard.
func (r *Room) cancelPendingLocked() {
	r.epoch++
	if r.cancelResolve != nil {
		r.cancelResolve()
		r.cancelResolve = nil
	}
}

// RegisterPress records a button press. The press is rejected when the round
// is not active, the player already pressed this round, or the player is
// stunned — all silent race losses, not errors.
//
// When the press is the first of the round, the buffer window is computed
// from the one-entry ledger and schedule is called under the room lock, so
// at most one resolution task is ever outstanding.
func (r *Room) RegisterPress(playerID string, clientTimestamp int64, now time.Time, schedule ScheduleFunc) (models.ButtonPress, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != models.GameStateActive {
		return models.ButtonPress{}, false
	}
	p, ok := r.byID[playerID]
	if !ok || p.Stunned {
		return models.ButtonPress{}, false
	}
	for _, bp := range r.presses {
		if bp.PlayerID == playerID {
			return models.ButtonPress{}, false
		}
	}

	press := models.ButtonPress{
		PlayerID:          playerID,
		ClientTimestamp:   clientTimestamp,
		ServerReceiveTime: now.UnixMilli(),
		Position:          len(r.presses) + 1,
	}
	r.presses = append(r.presses, press)

	if press.Position == 1 {
		r.firstPressAt = press.ServerReceiveTime
		if schedule != nil {
			r.cancelResolve = schedule(BufferWindow(r.presses), r.epoch)
		}
	}
	return press, true
}

// ResolveWinner commits the round outcome: the press with the smallest
// client timestamp wins, ties broken by server receive time, then player id.
// The call is a no-op unless the epoch still matches, the round is ACTIVE
// and the ledger is non-empty — a timer that fires after a reset already
// cleared the round must never mutate state.
func (r *Room) ResolveWinner(epoch uint64) (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if epoch != r.epoch || r.state != models.GameStateActive || len(r.presses) == 0 {
		return Snapshot{}, false
	}

	best := r.presses[0]
	for _, bp := range r.presses[1:] {
		if pressLess(bp, best) {
			best = bp
		}
	}
	r.winnerID = best.PlayerID
	r.state = models.GameStateRoundEnded
	r.cancelResolve = nil
	return r.snapshotLocked(), true
}

// pressLess orders presses by fairness: client timestamp, then server
// receive time, then player id.
func pressLess(a, b models.ButtonPress) bool {
	if a.ClientTimestamp != b.ClientTimestamp {
		return a.ClientTimestamp < b.ClientTimestamp
	}
	if a.ServerReceiveTime != b.ServerReceiveTime {
		return a.ServerReceiveTime < b.ServerReceiveTime
	}
	return a.PlayerID < b.PlayerID
}

// Snapshot is an immutable copy of room state safe to hand to the transport
// layer outside the room lock.
type Snapshot struct {
	Code           string               `json:"room_code"`
	State          models.GameState     `json:"game_state"`
	Players        []models.Player      `json:"players"`
	Presses        []models.ButtonPress `json:"button_presses"`
	RoundStartTime int64                `json:"round_start_time,omitempty"` // unix millis
	FirstPressAt   int64                `json:"first_press_at,omitempty"`   // unix millis
	WinnerID       string               `json:"winner_id,omitempty"`
	WinnerName     string               `json:"winner_name,omitempty"`
	WinnerAvatar   string               `json:"winner_avatar,omitempty"`
}

// Snapshot returns a copy of the current room state.
func (r *Room) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Room) snapshotLocked() Snapshot {
	snap := Snapshot{
		Code:         r.code,
		State:        r.state,
		Players:      make([]models.Player, 0, len(r.players)),
		Presses:      append([]models.ButtonPress(nil), r.presses...),
		FirstPressAt: r.firstPressAt,
	}
	if !r.roundStartTime.IsZero() {
		snap.RoundStartTime = r.roundStartTime.UnixMilli()
	}
	for _, p := range r.players {
		snap.Players = append(snap.Players, *p)
	}
	if r.winnerID != "" {
		snap.WinnerID = r.winnerID
		if w, ok := r.byID[r.winnerID]; ok {
			snap.WinnerName = w.Name
			snap.WinnerAvatar = w.Avatar
		}
	}
	return snap
}

// PlayerCount returns the roster size.
func (r *Room) PlayerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}
