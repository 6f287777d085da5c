// internal/pool/directory.go
package pool

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Handle identifies one open connection. Handles are compared by pointer, never by
// content.
type Handle struct {
	ID          uuid.UUID
	RemoteAddr  string
	ConnectedAt time.Time
}

// NewHandle returns a handle with a fresh id.
func NewHandle(remoteAddr string) *Handle {
	return &Handle{
		ID:          uuid.New(),
		RemoteAddr:  remoteAddr,
		ConnectedAt: time.Now(),
	}
}

// Directory tracks which connections are open per room. It does no message delivery.
type Directory struct {
	mu    sync.RWMutex
	rooms map[string][]*Handle
}

// NewDirectory returns an empty Directory.
func NewDirectory() *Directory {
	return &Directory{
		rooms: make(map[string][]*Handle),
	}
}

// Register adds h to the room's list.
func (d *Directory) Register(roomID string, h *Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rooms[roomID] = append(d.rooms[roomID], h)
}

// Deregister removes h from the room and drops the room entry once it is empty.
// Returns how many handles remain in the room.
func (d *Directory) Deregister(roomID string, h *Handle) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	handles, ok := d.rooms[roomID]
	if !ok {
		return 0
	}

	kept := handles[:0]
	for _, other := range handles {
		if other != h {
			kept = append(kept, other)
		}
	}
	if len(kept) == 0 {
		delete(d.rooms, roomID)
		return 0
	}
	d.rooms[roomID] = kept
	return len(kept)
}

// Count returns the number of open connections in a room.
func (d *Directory) Count(roomID string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.rooms[roomID])
}

// Rooms returns room id -> open connection count for every room with connections.
func (d *Directory) Rooms() map[string]int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make(map[string]int, len(d.rooms))
	for id, handles := range d.rooms {
		out[id] = len(handles)
	}
	return out
}
