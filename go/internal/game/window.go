package game

import (
	"time"

	"github.com/quizbattle/backend/go/internal/models"
)

// Bounds for the deferred-decision window after the first press of a round.
// The window scales with observed latency so slow connections get a fair
// shot, but never hangs a round or resolves suspiciously fast.
const (
	MinBufferWindow = 100 * time.Millisecond
	MaxBufferWindow = 500 * time.Millisecond
)

// BufferWindow computes how long to wait after the first accepted press
// before committing to a winner: twice the worst latency seen in the ledger,
// clamped to [MinBufferWindow, MaxBufferWindow]. Latency below zero (client
// clock ahead of the server) counts as zero.
func BufferWindow(presses []models.ButtonPress) time.Duration {
	var maxLatency int64
	for _, bp := range presses {
		latency := bp.ServerReceiveTime - bp.ClientTimestamp
		if latency < 0 {
			latency = 0
		}
		if latency > maxLatency {
			maxLatency = latency
		}
	}

	window := 2 * time.Duration(maxLatency) * time.Millisecond
	if window < MinBufferWindow {
		return MinBufferWindow
	}
	if window > MaxBufferWindow {
		return MaxBufferWindow
	}
	return window
}
