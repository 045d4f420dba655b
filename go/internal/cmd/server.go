package main

import (
	"fmt"
	"net/http"

	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/quizbattle/backend/go/internal/gateway"
)

func setupServer(services *Services, config *Config) *http.Server {
	mux := http.NewServeMux()

	// Setup CORS middleware
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	// Game WebSocket endpoint
	mux.Handle("/ws", gateway.NewWebSocketHandler(services.Connections))

	// Read-only query surface
	gateway.NewRESTHandler(services.Orchestrator, config.Server.ChaptersDir).Register(mux)

	setupHealthCheck(mux, services)

	port := getEnv("PORT", config.Server.Port)
	if port == "" {
		port = "8080"
	}

	return &http.Server{
		Addr:    fmt.Sprintf(":%s", port),
		Handler: c.Handler(mux),
	}
}

func setupHealthCheck(mux *http.ServeMux, services *Services) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})

	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		sessions, rooms := services.Connections.ConnectionStats()
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"sessions":%d,"active_rooms":%d}`, sessions, rooms)
	})
}
