package gateway

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// recordingHandler captures what the connection manager hands the router.
type recordingHandler struct {
	commands    chan error // ctx.Err() observed at handle time
	disconnects chan string
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{
		commands:    make(chan error, 8),
		disconnects: make(chan string, 8),
	}
}

func (h *recordingHandler) HandleCommand(ctx context.Context, conn *Connection, data []byte) {
	h.commands <- ctx.Err()
}

func (h *recordingHandler) HandleDisconnect(sessionID string) {
	h.disconnects <- sessionID
}

func dialTestServer(t *testing.T, cm *ConnectionManager) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(NewWebSocketHandler(cm))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestInboundCommandContextOutlivesUpgradeRequest(t *testing.T) {
	cm := NewConnectionManager(DefaultConnectionConfig())
	handler := newRecordingHandler()
	cm.SetHandler(handler)

	conn := dialTestServer(t, cm)

	// The upgrade request has long returned by the time this frame lands;
	// the handler context must still be alive or every DB-backed command
	// would fail with context.Canceled.
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"GET_ROOM_STATE"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case err := <-handler.commands:
		if err != nil {
			t.Fatalf("command handled with dead context: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for command")
	}
}

func TestCloseUnregistersAndNotifiesDisconnect(t *testing.T) {
	cm := NewConnectionManager(DefaultConnectionConfig())
	handler := newRecordingHandler()
	cm.SetHandler(handler)

	conn := dialTestServer(t, cm)
	conn.Close()

	select {
	case <-handler.disconnects:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for disconnect notification")
	}

	sessions, rooms := cm.ConnectionStats()
	if sessions != 0 || rooms != 0 {
		t.Fatalf("stats = %d sessions, %d rooms, want 0,0", sessions, rooms)
	}
}
