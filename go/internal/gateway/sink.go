package gateway

import (
	"github.com/quizbattle/backend/go/internal/game/events"
	"github.com/quizbattle/backend/go/internal/game/orchestrator"
)

// MultiSink fans every notification out to all configured sinks, so the
// WebSocket pools and the JetStream mirror see the same events.
type MultiSink struct {
	sinks []orchestrator.Sink
}

// NewMultiSink builds a fan-out sink. Nil entries are skipped.
func NewMultiSink(sinks ...orchestrator.Sink) *MultiSink {
	ms := &MultiSink{}
	for _, s := range sinks {
		if s != nil {
			ms.sinks = append(ms.sinks, s)
		}
	}
	return ms
}

func (ms *MultiSink) BroadcastToRoom(roomCode string, event *events.GameEvent) {
	for _, s := range ms.sinks {
		s.BroadcastToRoom(roomCode, event)
	}
}

func (ms *MultiSink) SendToSession(sessionID string, event *events.GameEvent) {
	for _, s := range ms.sinks {
		s.SendToSession(sessionID, event)
	}
}
