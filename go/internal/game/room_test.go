package game

import (
	"context"
	"testing"
	"time"

	"github.com/quizbattle/backend/go/internal/models"
)

func newTestRoom(t *testing.T, playerIDs ...string) *Room {
	t.Helper()
	room := NewRoom("TEST", "host-session")
	for _, id := range playerIDs {
		if !room.AddPlayer(&models.Player{ID: id, Name: "Player " + id, Avatar: DefaultAvatar}) {
			t.Fatalf("failed to add player %s", id)
		}
	}
	return room
}

func TestAddPlayerRejectsDuplicateAndOverflow(t *testing.T) {
	room := NewRoom("TEST", "host-session")
	if !room.AddPlayer(&models.Player{ID: "p1"}) {
		t.Fatal("first add should succeed")
	}
	if room.AddPlayer(&models.Player{ID: "p1"}) {
		t.Fatal("duplicate id should be rejected")
	}
	for i := 1; i < MaxPlayers; i++ {
		if !room.AddPlayer(&models.Player{ID: string(rune('A' + i))}) {
			t.Fatalf("add %d should succeed", i)
		}
	}
	if room.AddPlayer(&models.Player{ID: "overflow"}) {
		t.Fatal("add beyond capacity should be rejected")
	}
	if got := room.PlayerCount(); got != MaxPlayers {
		t.Fatalf("PlayerCount = %d, want %d", got, MaxPlayers)
	}
}

func TestRegisterPressRequiresActiveRound(t *testing.T) {
	room := newTestRoom(t, "p1")
	if _, ok := room.RegisterPress("p1", 1000, time.UnixMilli(1010), nil); ok {
		t.Fatal("press in WAITING state should be rejected")
	}

	room.StartRound(time.UnixMilli(1000))
	if _, ok := room.RegisterPress("p1", 1000, time.UnixMilli(1010), nil); !ok {
		t.Fatal("press in ACTIVE state should be accepted")
	}
}

func TestRegisterPressRejectsUnknownDuplicateAndStunned(t *testing.T) {
	room := newTestRoom(t, "p1", "p2")
	room.StartRound(time.UnixMilli(1000))

	if _, ok := room.RegisterPress("ghost", 1000, time.UnixMilli(1010), nil); ok {
		t.Fatal("unknown player should be rejected")
	}

	if _, ok := room.RegisterPress("p1", 1000, time.UnixMilli(1010), nil); !ok {
		t.Fatal("first press should be accepted")
	}
	if _, ok := room.RegisterPress("p1", 999, time.UnixMilli(1011), nil); ok {
		t.Fatal("second press from same player should be rejected")
	}

	room.StunPlayer("p2")
	if _, ok := room.RegisterPress("p2", 1000, time.UnixMilli(1012), nil); ok {
		t.Fatal("stunned player should be rejected")
	}
}

func TestRegisterPressAssignsArrivalPositions(t *testing.T) {
	room := newTestRoom(t, "p1", "p2", "p3")
	room.StartRound(time.UnixMilli(1000))

	first, _ := room.RegisterPress("p1", 1000, time.UnixMilli(1010), nil)
	second, _ := room.RegisterPress("p2", 990, time.UnixMilli(1020), nil)
	third, _ := room.RegisterPress("p3", 1005, time.UnixMilli(1030), nil)

	if first.Position != 1 || second.Position != 2 || third.Position != 3 {
		t.Fatalf("positions = %d,%d,%d, want 1,2,3",
			first.Position, second.Position, third.Position)
	}
}

func TestFirstPressSchedulesResolutionOnce(t *testing.T) {
	room := newTestRoom(t, "p1", "p2")
	room.StartRound(time.UnixMilli(1000))

	var calls int
	var window time.Duration
	schedule := func(w time.Duration, epoch uint64) context.CancelFunc {
		calls++
		window = w
		return func() {}
	}

	// 20ms latency doubles to 40ms, clamped up to the floor.
	room.RegisterPress("p1", 1000, time.UnixMilli(1020), schedule)
	room.RegisterPress("p2", 995, time.UnixMilli(1030), schedule)

	if calls != 1 {
		t.Fatalf("schedule called %d times, want 1", calls)
	}
	if window != MinBufferWindow {
		t.Fatalf("window = %v, want %v", window, MinBufferWindow)
	}
}

func TestResolveWinnerPicksEarliestClientTimestamp(t *testing.T) {
	room := newTestRoom(t, "p1", "p2", "p3")
	room.StartRound(time.UnixMilli(1000))

	var epoch uint64
	schedule := func(w time.Duration, e uint64) context.CancelFunc {
		epoch = e
		return func() {}
	}

	// p1 arrives first but p2 pressed earlier on its own clock.
	room.RegisterPress("p1", 1000, time.UnixMilli(1020), schedule)
	room.RegisterPress("p2", 995, time.UnixMilli(1040), nil)
	room.RegisterPress("p3", 1002, time.UnixMilli(1050), nil)

	snap, ok := room.ResolveWinner(epoch)
	if !ok {
		t.Fatal("resolution should commit")
	}
	if snap.WinnerID != "p2" {
		t.Fatalf("winner = %s, want p2", snap.WinnerID)
	}
	if snap.State != models.GameStateRoundEnded {
		t.Fatalf("state = %s, want %s", snap.State, models.GameStateRoundEnded)
	}
	if snap.WinnerName != "Player p2" {
		t.Fatalf("winner name = %q, want %q", snap.WinnerName, "Player p2")
	}
}

func TestResolveWinnerTieBreaks(t *testing.T) {
	room := newTestRoom(t, "a", "b", "c")
	room.StartRound(time.UnixMilli(1000))

	var epoch uint64
	schedule := func(w time.Duration, e uint64) context.CancelFunc {
		epoch = e
		return func() {}
	}

	// Same client timestamp: server receive time decides, then player id.
	room.RegisterPress("c", 1000, time.UnixMilli(1010), schedule)
	room.RegisterPress("b", 1000, time.UnixMilli(1010), nil)
	room.RegisterPress("a", 1000, time.UnixMilli(1020), nil)

	snap, ok := room.ResolveWinner(epoch)
	if !ok {
		t.Fatal("resolution should commit")
	}
	if snap.WinnerID != "b" {
		t.Fatalf("winner = %s, want b", snap.WinnerID)
	}
}

func TestResolveWinnerStaleEpochIsNoOp(t *testing.T) {
	room := newTestRoom(t, "p1")
	room.StartRound(time.UnixMilli(1000))

	var epoch uint64
	schedule := func(w time.Duration, e uint64) context.CancelFunc {
		epoch = e
		return func() {}
	}
	room.RegisterPress("p1", 1000, time.UnixMilli(1010), schedule)

	// Reset bumps the epoch; the captured one is now stale.
	room.ResetRound()
	if _, ok := room.ResolveWinner(epoch); ok {
		t.Fatal("stale resolution must not commit")
	}

	snap := room.Snapshot()
	if snap.State != models.GameStateWaiting {
		t.Fatalf("state = %s, want %s", snap.State, models.GameStateWaiting)
	}
	if snap.WinnerID != "" {
		t.Fatalf("winner = %q, want empty", snap.WinnerID)
	}
}

func TestResolveWinnerEmptyLedgerIsNoOp(t *testing.T) {
	room := newTestRoom(t, "p1")
	room.StartRound(time.UnixMilli(1000))
	if _, ok := room.ResolveWinner(0); ok {
		t.Fatal("resolution with no presses must not commit")
	}
}

func TestStartRoundCancelsPendingTask(t *testing.T) {
	room := newTestRoom(t, "p1")
	room.StartRound(time.UnixMilli(1000))

	cancelled := false
	schedule := func(w time.Duration, e uint64) context.CancelFunc {
		return func() { cancelled = true }
	}
	room.RegisterPress("p1", 1000, time.UnixMilli(1010), schedule)

	room.StartRound(time.UnixMilli(2000))
	if !cancelled {
		t.Fatal("restarting the round should cancel the pending task")
	}

	snap := room.Snapshot()
	if len(snap.Presses) != 0 {
		t.Fatalf("ledger should be cleared, got %d presses", len(snap.Presses))
	}
}

func TestResetRoundClearsStuns(t *testing.T) {
	room := newTestRoom(t, "p1", "p2")
	room.StunPlayer("p1")
	room.ResetRound()

	p, _ := room.Player("p1")
	if p.Stunned {
		t.Fatal("reset should clear the stunned flag")
	}

	room.StartRound(time.UnixMilli(1000))
	if _, ok := room.RegisterPress("p1", 1000, time.UnixMilli(1010), nil); !ok {
		t.Fatal("previously stunned player should press again after reset")
	}
}

func TestDisconnectSessionKeepsPlayerInRoster(t *testing.T) {
	room := newTestRoom(t, "p1")
	room.ConnectPlayer("p1", "session-1")

	p, ok := room.DisconnectSession("session-1")
	if !ok {
		t.Fatal("disconnect should find the bound player")
	}
	if p.ID != "p1" || p.Connected {
		t.Fatalf("player = %+v, want p1 disconnected", p)
	}
	if room.PlayerCount() != 1 {
		t.Fatal("player should stay in the roster")
	}

	if _, ok := room.DisconnectSession("unknown-session"); ok {
		t.Fatal("unknown session should not match")
	}
}

func TestSnapshotCarriesRoundTimes(t *testing.T) {
	room := newTestRoom(t, "p1")
	room.StartRound(time.UnixMilli(1000))
	room.RegisterPress("p1", 990, time.UnixMilli(1010), nil)

	snap := room.Snapshot()
	if snap.RoundStartTime != 1000 {
		t.Fatalf("round start = %d, want 1000", snap.RoundStartTime)
	}
	if snap.FirstPressAt != 1010 {
		t.Fatalf("first press at = %d, want 1010", snap.FirstPressAt)
	}

	room.ResetRound()
	snap = room.Snapshot()
	if snap.RoundStartTime != 0 || snap.FirstPressAt != 0 {
		t.Fatalf("round times = %d,%d after reset, want 0,0",
			snap.RoundStartTime, snap.FirstPressAt)
	}
}

func TestSnapshotIsDetachedCopy(t *testing.T) {
	room := newTestRoom(t, "p1")
	room.StartRound(time.UnixMilli(1000))
	room.RegisterPress("p1", 1000, time.UnixMilli(1010), nil)

	snap := room.Snapshot()
	snap.Players[0].Name = "mutated"
	snap.Presses[0].ClientTimestamp = 0

	fresh := room.Snapshot()
	if fresh.Players[0].Name != "Player p1" {
		t.Fatal("mutating a snapshot must not affect room state")
	}
	if fresh.Presses[0].ClientTimestamp != 1000 {
		t.Fatal("mutating a snapshot ledger must not affect room state")
	}
}
