package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/quizbattle/backend/go/internal/game"
	"github.com/quizbattle/backend/go/internal/game/events"
	"github.com/quizbattle/backend/go/internal/models"
	"github.com/quizbattle/backend/go/internal/rooms"
)

type fakeUsers struct {
	users   map[int64]*models.User
	players []*models.User
}

func (f *fakeUsers) GetUser(ctx context.Context, id int64) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, errors.New("user not found")
	}
	return u, nil
}

func (f *fakeUsers) ListPlayers(ctx context.Context) ([]*models.User, error) {
	return f.players, nil
}

type fakeRooms struct {
	latest   *models.RoomRecord
	recorded []string
}

func (f *fakeRooms) RecordRoom(ctx context.Context, code string, hostUserID int64) (*models.RoomRecord, error) {
	f.recorded = append(f.recorded, code)
	return &models.RoomRecord{Code: code, HostUserID: hostUserID}, nil
}

func (f *fakeRooms) LatestRoomByHost(ctx context.Context, hostUserID int64) (*models.RoomRecord, error) {
	if f.latest == nil {
		return nil, rooms.ErrRoomNotFound
	}
	return f.latest, nil
}

func (f *fakeRooms) RoomCodeExists(ctx context.Context, code string) (bool, error) {
	return false, nil
}

// recordingSink pushes every notification onto a channel so tests can wait
// for asynchronous deliveries.
type recordingSink struct {
	events chan *events.GameEvent
}

func newRecordingSink() *recordingSink {
	return &recordingSink{events: make(chan *events.GameEvent, 64)}
}

func (s *recordingSink) BroadcastToRoom(roomCode string, event *events.GameEvent) {
	s.events <- event
}

func (s *recordingSink) SendToSession(sessionID string, event *events.GameEvent) {
	s.events <- event
}

// waitForEvent drains the sink until an event of the wanted type arrives.
func waitForEvent(t *testing.T, sink *recordingSink, typ events.EventType) *events.GameEvent {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case evt := <-sink.events:
			if evt.Type == typ {
				return evt
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", typ)
			return nil
		}
	}
}

// expectNoEvent asserts that no event of the given type is already queued.
func expectNoEvent(t *testing.T, sink *recordingSink, typ events.EventType) {
	t.Helper()
	for {
		select {
		case evt := <-sink.events:
			if evt.Type == typ {
				t.Fatalf("unexpected %s event", typ)
			}
		default:
			return
		}
	}
}

type fixture struct {
	orch  *Orchestrator
	sink  *recordingSink
	clock *clockwork.FakeClock
	rooms *fakeRooms
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	avatar := "🦊"
	usersApp := &fakeUsers{
		users: map[int64]*models.User{
			1: {ID: 1, Username: "admin", FullName: "Game Master", Role: models.UserRoleAdmin},
			7: {ID: 7, Username: "mallory", FullName: "Mallory", Role: models.UserRolePlayer},
		},
		players: []*models.User{
			{ID: 10, Username: "alice", FullName: "Alice", Avatar: &avatar, Role: models.UserRolePlayer},
			{ID: 11, Username: "bruno", FullName: "Bruno", Role: models.UserRolePlayer},
			{ID: 12, Username: "chloe", FullName: "Chloé", Role: models.UserRolePlayer},
		},
	}
	roomsApp := &fakeRooms{}
	sink := newRecordingSink()
	clock := clockwork.NewFakeClockAt(time.UnixMilli(1_000_000))

	registry := game.NewRegistry(roomsApp)
	orch := NewOrchestrator(registry, usersApp, roomsApp, sink, clock)
	return &fixture{orch: orch, sink: sink, clock: clock, rooms: roomsApp}
}

func (f *fixture) createRoom(t *testing.T) *game.Room {
	t.Helper()
	room, err := f.orch.CreateRoom(context.Background(), 1, "host-session", true)
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	waitForEvent(t, f.sink, events.EventTypeRoomCreated)
	return room
}

func TestCreateRoomLoadsRosterAndRecords(t *testing.T) {
	f := newFixture(t)
	room := f.createRoom(t)

	if room.PlayerCount() != 3 {
		t.Fatalf("roster size = %d, want 3", room.PlayerCount())
	}
	if len(f.rooms.recorded) != 1 || f.rooms.recorded[0] != room.Code() {
		t.Fatalf("recorded rooms = %v, want [%s]", f.rooms.recorded, room.Code())
	}

	// Avatar falls back to the default when the user has none.
	p, ok := room.Player("11")
	if !ok {
		t.Fatal("player 11 missing from roster")
	}
	if p.Avatar != game.DefaultAvatar {
		t.Fatalf("avatar = %q, want default", p.Avatar)
	}
}

func TestCreateRoomRejectsNonAdmin(t *testing.T) {
	f := newFixture(t)
	if _, err := f.orch.CreateRoom(context.Background(), 7, "some-session", true); !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("err = %v, want ErrNotAdmin", err)
	}
}

func TestCreateRoomRebindsActiveRoom(t *testing.T) {
	f := newFixture(t)
	room := f.createRoom(t)

	f.rooms.latest = &models.RoomRecord{Code: room.Code(), HostUserID: 1}
	reused, err := f.orch.CreateRoom(context.Background(), 1, "new-host-session", false)
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if reused != room {
		t.Fatal("expected the active room to be reused")
	}
	if !room.IsHostSession("new-host-session") {
		t.Fatal("host session should be rebound")
	}
	if len(f.rooms.recorded) != 1 {
		t.Fatalf("reuse must not record a new room, got %v", f.rooms.recorded)
	}
}

func TestCreateRoomReactivatesPersistedRoom(t *testing.T) {
	f := newFixture(t)
	f.rooms.latest = &models.RoomRecord{Code: "AB2C", HostUserID: 1}

	room, err := f.orch.CreateRoom(context.Background(), 1, "host-session", false)
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if room.Code() != "AB2C" {
		t.Fatalf("code = %s, want AB2C", room.Code())
	}
	if room.PlayerCount() != 3 {
		t.Fatalf("reactivated roster size = %d, want 3", room.PlayerCount())
	}
}

func TestJoinRoomNotifiesSessionAndRoom(t *testing.T) {
	f := newFixture(t)
	room := f.createRoom(t)

	player, err := f.orch.JoinRoom(room.Code(), "10", "alice-session")
	if err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}
	if !player.Connected {
		t.Fatal("joined player should be connected")
	}
	waitForEvent(t, f.sink, events.EventTypeRoomState)
	waitForEvent(t, f.sink, events.EventTypePlayerJoined)

	if _, err := f.orch.JoinRoom(room.Code(), "nope", "s"); !errors.Is(err, ErrPlayerNotFound) {
		t.Fatalf("err = %v, want ErrPlayerNotFound", err)
	}
	if _, err := f.orch.JoinRoom("ZZZZ", "10", "s"); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("err = %v, want ErrRoomNotFound", err)
	}
}

func TestStartRoundIsHostOnly(t *testing.T) {
	f := newFixture(t)
	room := f.createRoom(t)

	if err := f.orch.StartRound(room.Code(), "not-the-host"); !errors.Is(err, ErrNotHost) {
		t.Fatalf("err = %v, want ErrNotHost", err)
	}
	if err := f.orch.StartRound(room.Code(), "host-session"); err != nil {
		t.Fatalf("StartRound: %v", err)
	}
	waitForEvent(t, f.sink, events.EventTypeRoundStarted)
}

func TestRoundResolvesEarliestClientTimestamp(t *testing.T) {
	f := newFixture(t)
	room := f.createRoom(t)
	if err := f.orch.StartRound(room.Code(), "host-session"); err != nil {
		t.Fatalf("StartRound: %v", err)
	}

	// Alice's press arrives first with 20ms latency: window clamps to 100ms.
	now := f.clock.Now().UnixMilli()
	if _, ok := f.orch.PressButton(room.Code(), "10", now-20); !ok {
		t.Fatal("first press should be accepted")
	}
	waitForEvent(t, f.sink, events.EventTypeButtonPressed)

	// Bruno's press arrives 50ms later but was earlier on his own clock.
	f.clock.Advance(50 * time.Millisecond)
	if _, ok := f.orch.PressButton(room.Code(), "11", now-25); !ok {
		t.Fatal("second press should be accepted")
	}
	waitForEvent(t, f.sink, events.EventTypeButtonPressed)

	f.clock.Advance(100 * time.Millisecond)
	evt := waitForEvent(t, f.sink, events.EventTypeRoundEnded)

	var payload events.RoundEndedPayload
	if err := json.Unmarshal(evt.Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.Room.WinnerID != "11" {
		t.Fatalf("winner = %s, want 11", payload.Room.WinnerID)
	}
	if payload.Room.State != models.GameStateRoundEnded {
		t.Fatalf("state = %s, want %s", payload.Room.State, models.GameStateRoundEnded)
	}

	// Presses after resolution are race losses.
	if _, ok := f.orch.PressButton(room.Code(), "12", now); ok {
		t.Fatal("press after round end should be rejected")
	}
}

func TestResetCancelsPendingResolution(t *testing.T) {
	f := newFixture(t)
	room := f.createRoom(t)
	if err := f.orch.StartRound(room.Code(), "host-session"); err != nil {
		t.Fatalf("StartRound: %v", err)
	}

	now := f.clock.Now().UnixMilli()
	if _, ok := f.orch.PressButton(room.Code(), "10", now-20); !ok {
		t.Fatal("press should be accepted")
	}
	waitForEvent(t, f.sink, events.EventTypeButtonPressed)

	if err := f.orch.ResetRound(room.Code(), "host-session"); err != nil {
		t.Fatalf("ResetRound: %v", err)
	}
	waitForEvent(t, f.sink, events.EventTypeRoundReset)

	// The armed window elapses after the reset; no outcome may be committed.
	f.clock.Advance(game.MaxBufferWindow)
	time.Sleep(50 * time.Millisecond) // give a buggy resolution a chance to fire
	expectNoEvent(t, f.sink, events.EventTypeRoundEnded)

	if snap := room.Snapshot(); snap.State != models.GameStateWaiting || snap.WinnerID != "" {
		t.Fatalf("room = %s winner=%q, want WAITING and no winner", snap.State, snap.WinnerID)
	}
}

func TestStunBlocksUntilReset(t *testing.T) {
	f := newFixture(t)
	room := f.createRoom(t)

	if err := f.orch.StunPlayer(room.Code(), "10", "not-the-host"); !errors.Is(err, ErrNotHost) {
		t.Fatalf("err = %v, want ErrNotHost", err)
	}
	if err := f.orch.StunPlayer(room.Code(), "10", "host-session"); err != nil {
		t.Fatalf("StunPlayer: %v", err)
	}
	waitForEvent(t, f.sink, events.EventTypeRoomState)

	if err := f.orch.StartRound(room.Code(), "host-session"); err != nil {
		t.Fatalf("StartRound: %v", err)
	}
	if _, ok := f.orch.PressButton(room.Code(), "10", f.clock.Now().UnixMilli()); ok {
		t.Fatal("stunned player's press should be rejected")
	}
}

func TestDisconnectScansAllRooms(t *testing.T) {
	f := newFixture(t)
	room := f.createRoom(t)

	if _, err := f.orch.JoinRoom(room.Code(), "10", "alice-session"); err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}
	waitForEvent(t, f.sink, events.EventTypePlayerJoined)

	f.orch.Disconnect("alice-session")
	waitForEvent(t, f.sink, events.EventTypePlayerLeft)

	p, _ := room.Player("10")
	if p.Connected {
		t.Fatal("player should be marked disconnected")
	}
}

func TestDeleteRoomKeepsDurableRecord(t *testing.T) {
	f := newFixture(t)
	room := f.createRoom(t)

	if err := f.orch.DeleteRoom(room.Code(), "not-the-host"); !errors.Is(err, ErrNotHost) {
		t.Fatalf("err = %v, want ErrNotHost", err)
	}
	if err := f.orch.DeleteRoom(room.Code(), "host-session"); err != nil {
		t.Fatalf("DeleteRoom: %v", err)
	}
	if _, ok := f.orch.RoomSnapshot(room.Code()); ok {
		t.Fatal("deleted room should be gone from the registry")
	}
}
