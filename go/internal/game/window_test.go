package game

import (
	"testing"
	"time"

	"github.com/quizbattle/backend/go/internal/models"
)

func press(clientTs, serverTs int64) models.ButtonPress {
	return models.ButtonPress{ClientTimestamp: clientTs, ServerReceiveTime: serverTs}
}

func TestBufferWindowScalesWithLatency(t *testing.T) {
	// 120ms observed latency doubles to 240ms.
	got := BufferWindow([]models.ButtonPress{press(1000, 1120)})
	if want := 240 * time.Millisecond; got != want {
		t.Fatalf("BufferWindow = %v, want %v", got, want)
	}
}

func TestBufferWindowFloor(t *testing.T) {
	// 40ms latency would give 80ms; the floor keeps it at 100ms.
	got := BufferWindow([]models.ButtonPress{press(1000, 1040)})
	if got != MinBufferWindow {
		t.Fatalf("BufferWindow = %v, want floor %v", got, MinBufferWindow)
	}
}

func TestBufferWindowCeiling(t *testing.T) {
	// 400ms latency would give 800ms; the ceiling caps it at 500ms.
	got := BufferWindow([]models.ButtonPress{press(1000, 1400)})
	if got != MaxBufferWindow {
		t.Fatalf("BufferWindow = %v, want ceiling %v", got, MaxBufferWindow)
	}
}

func TestBufferWindowClockAheadOfServer(t *testing.T) {
	// Client clock ahead of the server counts as zero latency, not negative.
	got := BufferWindow([]models.ButtonPress{press(2000, 1500)})
	if got != MinBufferWindow {
		t.Fatalf("BufferWindow = %v, want %v", got, MinBufferWindow)
	}
}

func TestBufferWindowUsesWorstLatency(t *testing.T) {
	got := BufferWindow([]models.ButtonPress{
		press(1000, 1010),
		press(1000, 1150), // worst: 150ms
		press(1000, 1050),
	})
	if want := 300 * time.Millisecond; got != want {
		t.Fatalf("BufferWindow = %v, want %v", got, want)
	}
}
