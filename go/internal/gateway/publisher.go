package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/quizbattle/backend/go/internal/game/events"
)

// StreamConfig configures the JetStream mirror of game events.
type StreamConfig struct {
	URL           string
	StreamName    string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
	MaxAge        time.Duration
}

// DefaultStreamConfig returns the stream defaults.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		URL:           nats.DefaultURL,
		StreamName:    "GAME_EVENTS",
		SubjectPrefix: "game.events",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
		MaxAge:        24 * time.Hour,
	}
}

// EventPublisher mirrors room broadcasts onto a JetStream stream, one
// subject per room code. Session-scoped messages are not mirrored.
// Implements the orchestrator's Sink.
type EventPublisher struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	config StreamConfig
}

// NewEventPublisher connects to NATS and ensures the event stream exists.
func NewEventPublisher(cfg StreamConfig) (*EventPublisher, error) {
	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	p := &EventPublisher{nc: nc, js: js, config: cfg}

	if err := p.ensureStream(context.Background()); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}
	return p, nil
}

func (p *EventPublisher) ensureStream(ctx context.Context) error {
	sc := jetstream.StreamConfig{
		Name:        p.config.StreamName,
		Description: "Mirror of per-room game events",
		Subjects:    []string{fmt.Sprintf("%s.>", p.config.SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      p.config.MaxAge,
		Storage:     jetstream.FileStorage,
	}

	if _, err := p.js.Stream(ctx, p.config.StreamName); err != nil {
		if _, err = p.js.CreateStream(ctx, sc); err != nil {
			return fmt.Errorf("create stream: %w", err)
		}
		log.Info().
			Str("stream", p.config.StreamName).
			Msg("created JetStream stream")
	}
	return nil
}

// BroadcastToRoom publishes the event to <prefix>.<room-code>.
func (p *EventPublisher) BroadcastToRoom(roomCode string, event *events.GameEvent) {
	subject := fmt.Sprintf("%s.%s", p.config.SubjectPrefix, roomCode)

	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("room_code", roomCode).Msg("failed to marshal event for NATS")
		return
	}

	// Async publish so a slow broker never stalls command handling.
	_, err = p.js.PublishMsgAsync(&nats.Msg{
		Subject: subject,
		Data:    data,
		Header: nats.Header{
			"Event-Type": []string{string(event.Type)},
			"Event-ID":   []string{event.ID},
		},
	}, jetstream.WithMsgID(event.ID))
	if err != nil {
		log.Error().
			Err(err).
			Str("subject", subject).
			Str("event_id", event.ID).
			Msg("failed to publish to JetStream")
		return
	}

	log.Debug().
		Str("subject", subject).
		Str("event_type", string(event.Type)).
		Msg("event mirrored to JetStream")
}

// SendToSession is a no-op: personal messages are not mirrored.
func (p *EventPublisher) SendToSession(sessionID string, event *events.GameEvent) {}

// Close drains the NATS connection.
func (p *EventPublisher) Close() {
	if p.nc != nil {
		p.nc.Close()
	}
}
