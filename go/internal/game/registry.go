package game

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// codeAlphabet excludes visually confusable characters (0/O, 1/I).
const (
	codeAlphabet    = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength      = 4
	maxCodeAttempts = 100
)

// ErrRoomExists is returned when a room with the requested code is already
// active in memory.
var ErrRoomExists = errors.New("room already exists")

// CodeStore is the persistence collaborator the registry consults so a
// generated code is unique across restarts, not just in memory.
type CodeStore interface {
	RoomCodeExists(ctx context.Context, code string) (bool, error)
}

// Registry is the process-scoped directory of active rooms, keyed by
// uppercase room code. It is safe for concurrent create/lookup/delete;
// each room's internal state is guarded separately by the room itself.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	store CodeStore
}

// NewRegistry creates an empty registry backed by the given code store.
func NewRegistry(store CodeStore) *Registry {
	return &Registry{
		rooms: make(map[string]*Room),
		store: store,
	}
}

// Create activates a new room. With an empty code a fresh collision-free
// code is generated; with an explicit code (reactivating a persisted room)
// the code is taken as-is.
//
// The uniqueness probe in generateCode runs outside the write lock, so a
// concurrent Create can claim the same candidate in between. The insert is
// the authority: on ErrRoomExists a generated code is simply regenerated
// rather than surfacing the collision to the caller.
func (g *Registry) Create(ctx context.Context, code, hostSessionID string) (*Room, error) {
	if code != "" {
		return g.insert(strings.ToUpper(code), hostSessionID)
	}

	for attempts := 0; attempts < maxCodeAttempts; attempts++ {
		candidate, err := g.generateCode(ctx)
		if err != nil {
			return nil, err
		}
		room, err := g.insert(candidate, hostSessionID)
		if errors.Is(err, ErrRoomExists) {
			continue
		}
		return room, err
	}
	return nil, errors.New("failed to generate unique room code")
}

// insert claims the code under the write lock.
func (g *Registry) insert(code, hostSessionID string) (*Room, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.rooms[code]; exists {
		return nil, ErrRoomExists
	}
	room := NewRoom(code, hostSessionID)
	g.rooms[code] = room
	return room, nil
}

// Lookup returns the room for a code, case-insensitively, or nil.
func (g *Registry) Lookup(code string) *Room {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.rooms[strings.ToUpper(code)]
}

// Delete removes a room from the registry.
func (g *Registry) Delete(code string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.rooms, strings.ToUpper(code))
}

// Rooms returns a snapshot of all active rooms, e.g. for the disconnect scan.
func (g *Registry) Rooms() []*Room {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]*Room, 0, len(g.rooms))
	for _, r := range g.rooms {
		out = append(out, r)
	}
	return out
}

// generateCode samples 4-char codes until one is free both in memory and in
// the durable room store.
func (g *Registry) generateCode(ctx context.Context) (string, error) {
	for attempts := 0; attempts < maxCodeAttempts; attempts++ {
		b := make([]byte, codeLength)
		if _, err := rand.Read(b); err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}

		code := make([]byte, codeLength)
		for i := range code {
			code[i] = codeAlphabet[int(b[i])%len(codeAlphabet)]
		}
		candidate := string(code)

		g.mu.RLock()
		_, taken := g.rooms[candidate]
		g.mu.RUnlock()
		if taken {
			continue
		}

		exists, err := g.store.RoomCodeExists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("failed to check room code: %w", err)
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", errors.New("failed to generate unique room code")
}
