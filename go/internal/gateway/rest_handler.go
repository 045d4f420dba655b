package gateway

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/quizbattle/backend/go/internal/game"
	"github.com/quizbattle/backend/go/internal/game/orchestrator"
)

// RESTHandler serves the read-only HTTP query surface next to the
// WebSocket transport: room existence checks, snapshots, player status,
// the avatar catalog and chapter images.
type RESTHandler struct {
	orch        *orchestrator.Orchestrator
	chaptersDir string
}

// NewRESTHandler creates the query handler. chaptersDir may be empty, in
// which case the chapter endpoints report not found.
func NewRESTHandler(orch *orchestrator.Orchestrator, chaptersDir string) *RESTHandler {
	return &RESTHandler{orch: orch, chaptersDir: chaptersDir}
}

// Register mounts the query routes on a mux.
func (h *RESTHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/rooms/{code}", h.handleRoomInfo)
	mux.HandleFunc("GET /api/rooms/{code}/state", h.handleRoomState)
	mux.HandleFunc("GET /api/rooms/{code}/players/{playerID}", h.handlePlayerStatus)
	mux.HandleFunc("GET /api/avatars", h.handleAvatars)
	mux.HandleFunc("GET /api/chapters", h.handleChapterList)
	mux.HandleFunc("GET /api/chapters/{name}", h.handleChapterImage)
}

func (h *RESTHandler) handleRoomInfo(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	snap, ok := h.orch.RoomSnapshot(code)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"exists": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"exists":       true,
		"room_code":    snap.Code,
		"state":        snap.State,
		"player_count": len(snap.Players),
		"max_players":  game.MaxPlayers,
	})
}

func (h *RESTHandler) handleRoomState(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	snap, ok := h.orch.RoomSnapshot(code)
	if !ok {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *RESTHandler) handlePlayerStatus(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	playerID := r.PathValue("playerID")
	player, ok := h.orch.PlayerStatus(code, playerID)
	if !ok {
		http.Error(w, "player not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, player)
}

func (h *RESTHandler) handleAvatars(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"avatars": h.orch.Avatars()})
}

func (h *RESTHandler) handleChapterList(w http.ResponseWriter, r *http.Request) {
	if h.chaptersDir == "" {
		writeJSON(w, http.StatusOK, map[string]any{"chapters": []string{}})
		return
	}
	entries, err := os.ReadDir(h.chaptersDir)
	if err != nil {
		log.Error().Err(err).Str("dir", h.chaptersDir).Msg("failed to read chapters directory")
		http.Error(w, "failed to list chapters", http.StatusInternalServerError)
		return
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".png", ".jpg", ".jpeg", ".gif", ".webp":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	writeJSON(w, http.StatusOK, map[string]any{"chapters": names})
}

func (h *RESTHandler) handleChapterImage(w http.ResponseWriter, r *http.Request) {
	name := filepath.Base(r.PathValue("name"))
	if h.chaptersDir == "" || name == "." || name == ".." {
		http.Error(w, "chapter not found", http.StatusNotFound)
		return
	}
	path := filepath.Join(h.chaptersDir, name)
	if _, err := os.Stat(path); err != nil {
		http.Error(w, "chapter not found", http.StatusNotFound)
		return
	}
	http.ServeFile(w, r, path)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
