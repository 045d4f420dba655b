package main

import (
	"database/sql"

	"github.com/quizbattle/backend/go/internal/game"
	"github.com/quizbattle/backend/go/internal/game/orchestrator"
	"github.com/quizbattle/backend/go/internal/gateway"
	"github.com/quizbattle/backend/go/internal/rooms"
	"github.com/quizbattle/backend/go/internal/users"
)

type Services struct {
	Users        *users.App
	Rooms        *rooms.App
	Orchestrator *orchestrator.Orchestrator
	Connections  *gateway.ConnectionManager
	Publisher    *gateway.EventPublisher
}

func setupServices(database *sql.DB, config *Config) (*Services, error) {
	// Wire up dependency injection chain
	// Database layer → Repository layer → App layer → Orchestrator → Gateway

	userRepo := users.NewRepository(database)
	userApp := users.NewApp(userRepo)

	roomRepo := rooms.NewRepository(database)
	roomApp := rooms.NewApp(roomRepo)

	// The durable store backs the registry's code-uniqueness check.
	registry := game.NewRegistry(roomApp)

	connections := gateway.NewConnectionManager(gateway.DefaultConnectionConfig())

	var publisher *gateway.EventPublisher
	sinks := []orchestrator.Sink{connections}
	if getEnvAsBool("NATS_ENABLED", config.NATS.Enabled) {
		streamCfg := gateway.DefaultStreamConfig()
		if url := getEnv("NATS_URL", config.NATS.URL); url != "" {
			streamCfg.URL = url
		}
		if config.NATS.StreamName != "" {
			streamCfg.StreamName = config.NATS.StreamName
		}
		if config.NATS.SubjectPrefix != "" {
			streamCfg.SubjectPrefix = config.NATS.SubjectPrefix
		}
		p, err := gateway.NewEventPublisher(streamCfg)
		if err != nil {
			return nil, err
		}
		publisher = p
		sinks = append(sinks, p)
	}

	orch := orchestrator.NewOrchestrator(registry, userApp, roomApp, gateway.NewMultiSink(sinks...), nil)
	connections.SetHandler(gateway.NewCommandRouter(orch, connections))

	return &Services{
		Users:        userApp,
		Rooms:        roomApp,
		Orchestrator: orch,
		Connections:  connections,
		Publisher:    publisher,
	}, nil
}
