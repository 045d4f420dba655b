package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/quizbattle/backend/go/internal/game/events"
)

// CommandHandler is what the connection manager needs from the command
// router: inbound frames and connection teardown.
type CommandHandler interface {
	HandleCommand(ctx context.Context, conn *Connection, data []byte)
	HandleDisconnect(sessionID string)
}

// ConnectionManager manages WebSocket connections. Each connection gets a
// session id at upgrade time; connections are pooled per room code once a
// create/join command binds them.
type ConnectionManager struct {
	mu        sync.RWMutex
	sessions  map[string]*Connection
	roomConns map[string]map[*Connection]bool

	upgrader websocket.Upgrader
	config   ConnectionConfig
	handler  CommandHandler

	broadcastCh chan broadcastMessage
}

// Connection represents a WebSocket connection to a client.
type Connection struct {
	SessionID string
	RoomCode  string // bound after a successful create/join; guarded by manager mu
	Conn      *websocket.Conn
	Send      chan []byte
	Manager   *ConnectionManager

	ConnectedAt time.Time

	// ctx lives as long as the connection, independent of the upgrade
	// request: net/http cancels the request context as soon as ServeHTTP
	// returns, long before the pumps are done with the socket.
	ctx    context.Context
	cancel context.CancelFunc
}

// ConnectionConfig holds configuration for WebSocket connections.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

type broadcastMessage struct {
	RoomCode  string
	SessionID string // if set, deliver to this session only
	Event     *events.GameEvent
}

// DefaultConnectionConfig returns default WebSocket configuration.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development - restrict in production
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager.
func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	return &ConnectionManager{
		sessions:  make(map[string]*Connection),
		roomConns: make(map[string]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan broadcastMessage, 1000),
	}
}

// SetHandler wires the command router in after construction; the router
// needs the orchestrator, which needs this manager as its sink.
func (cm *ConnectionManager) SetHandler(handler CommandHandler) {
	cm.handler = handler
}

// Start begins processing outbound messages until ctx is cancelled.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket and assigns it
// a fresh session id.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	connection := &Connection{
		SessionID:   uuid.New().String(),
		Conn:        conn,
		Send:        make(chan []byte, 256),
		Manager:     cm,
		ConnectedAt: time.Now(),
		ctx:         ctx,
		cancel:      cancel,
	}

	cm.mu.Lock()
	cm.sessions[connection.SessionID] = connection
	cm.mu.Unlock()

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("session_id", connection.SessionID).
		Msg("WebSocket connection established")
	return nil
}

// BindRoom adds a connection to a room's pool so broadcasts reach it.
// Codes are case-insensitive; pools are keyed by the canonical form.
func (cm *ConnectionManager) BindRoom(conn *Connection, roomCode string) {
	roomCode = strings.ToUpper(roomCode)

	cm.mu.Lock()
	defer cm.mu.Unlock()

	if conn.RoomCode == roomCode {
		return
	}
	cm.unbindRoomLocked(conn)
	conn.RoomCode = roomCode
	if cm.roomConns[roomCode] == nil {
		cm.roomConns[roomCode] = make(map[*Connection]bool)
	}
	cm.roomConns[roomCode][conn] = true
}

// UnbindRoom removes a connection from its room pool.
func (cm *ConnectionManager) UnbindRoom(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.unbindRoomLocked(conn)
}

func (cm *ConnectionManager) unbindRoomLocked(conn *Connection) {
	if conn.RoomCode == "" {
		return
	}
	if pool, ok := cm.roomConns[conn.RoomCode]; ok {
		delete(pool, conn)
		if len(pool) == 0 {
			delete(cm.roomConns, conn.RoomCode)
		}
	}
	conn.RoomCode = ""
}

// unregisterConnection removes a connection entirely and notifies the
// command handler so the game can mark the player disconnected.
func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	if _, exists := cm.sessions[conn.SessionID]; !exists {
		cm.mu.Unlock()
		return
	}
	delete(cm.sessions, conn.SessionID)
	cm.unbindRoomLocked(conn)
	close(conn.Send)
	conn.cancel()
	cm.mu.Unlock()

	if cm.handler != nil {
		cm.handler.HandleDisconnect(conn.SessionID)
	}
	log.Info().Str("session_id", conn.SessionID).Msg("connection unregistered")
}

// BroadcastToRoom queues an event for every connection bound to a room.
// Implements the orchestrator's Sink.
func (cm *ConnectionManager) BroadcastToRoom(roomCode string, event *events.GameEvent) {
	select {
	case cm.broadcastCh <- broadcastMessage{RoomCode: roomCode, Event: event}:
	default:
		log.Warn().Str("room_code", roomCode).Msg("broadcast channel full, dropping message")
	}
}

// SendToSession queues an event for one session only.
func (cm *ConnectionManager) SendToSession(sessionID string, event *events.GameEvent) {
	select {
	case cm.broadcastCh <- broadcastMessage{SessionID: sessionID, Event: event}:
	default:
		log.Warn().Str("session_id", sessionID).Msg("broadcast channel full, dropping message")
	}
}

func (cm *ConnectionManager) handleBroadcast(message broadcastMessage) {
	cm.mu.RLock()
	var targets []*Connection
	if message.SessionID != "" {
		if conn, ok := cm.sessions[message.SessionID]; ok {
			targets = append(targets, conn)
		}
	} else if pool, ok := cm.roomConns[message.RoomCode]; ok {
		for conn := range pool {
			targets = append(targets, conn)
		}
	}
	cm.mu.RUnlock()

	if len(targets) == 0 {
		return
	}

	data, err := json.Marshal(message.Event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for broadcast")
		return
	}

	for _, conn := range targets {
		select {
		case conn.Send <- data:
		default:
			// Connection is slow/dead, close it
			log.Warn().
				Str("session_id", conn.SessionID).
				Msg("connection send buffer full, closing connection")
			cm.unregisterConnection(conn)
			conn.Conn.Close()
		}
	}

	log.Debug().
		Str("event_type", string(message.Event.Type)).
		Str("room_code", message.Event.RoomCode).
		Int("connections", len(targets)).
		Msg("event delivered")
}

// ConnectionStats reports pool sizes for the stats endpoint.
func (cm *ConnectionManager) ConnectionStats() (totalSessions, activeRooms int) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.sessions), len(cm.roomConns)
}

// writePump handles sending messages to the WebSocket connection.
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("session_id", c.SessionID).
					Msg("failed to write message to WebSocket")
				c.Manager.unregisterConnection(c)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("session_id", c.SessionID).
					Msg("failed to send ping")
				c.Manager.unregisterConnection(c)
				return
			}
		}
	}
}

// readPump handles reading messages from the WebSocket connection.
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("session_id", c.SessionID).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		if c.Manager.handler != nil {
			c.Manager.handler.HandleCommand(c.ctx, c, message)
		}
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}
