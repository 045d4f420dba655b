package orchestrator

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/quizbattle/backend/go/internal/game"
	"github.com/quizbattle/backend/go/internal/game/events"
)

// scheduleResolution returns the schedule callback a room invokes — under
// its own lock — when the first press of a round lands. It arms a one-shot
// timer for the buffer window; when the timer fires the round is resolved
// and the outcome broadcast. The returned cancel func is stored on the room
// and invoked by start/reset, so at most one live task exists per room.
//
// Cancellation of a callback that already started running is best effort:
// ResolveWinner re-checks the scheduling epoch and round state before
// touching anything.
func (o *Orchestrator) scheduleResolution(room *game.Room) game.ScheduleFunc {
	return func(window time.Duration, epoch uint64) context.CancelFunc {
		ctx, cancel := context.WithCancel(context.Background())
		timer := o.clock.NewTimer(window)

		log.Debug().
			Str("room_code", room.Code()).
			Dur("buffer_window", window).
			Uint64("epoch", epoch).
			Msg("scheduled winner resolution")

		go func() {
			select {
			case <-timer.Chan():
				snap, ok := room.ResolveWinner(epoch)
				if !ok {
					log.Debug().
						Str("room_code", room.Code()).
						Uint64("epoch", epoch).
						Msg("stale resolution timer fired - ignoring")
					return
				}
				log.Info().
					Str("room_code", room.Code()).
					Str("winner_id", snap.WinnerID).
					Int("presses", len(snap.Presses)).
					Msg("round resolved")
				o.broadcast(room.Code(), events.EventTypeRoundEnded, events.RoundEndedPayload{Room: snap})

			case <-ctx.Done():
				stopAndDrainTimer(timer)
				log.Debug().
					Str("room_code", room.Code()).
					Uint64("epoch", epoch).
					Msg("resolution timer cancelled")
			}
		}()

		return cancel
	}
}

// stopAndDrainTimer safely stops a timer and drains its channel to prevent
// goroutine leaks. This follows the pattern recommended in the
// time.Timer.Stop() documentation.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
