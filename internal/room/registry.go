// internal/room/registry.go
package room

import (
	"slices"
	"sort"
	"sync"

	"github.com/jason-s-yu/caucus/internal/bus"
	"github.com/jason-s-yu/caucus/internal/models"
	"github.com/jason-s-yu/caucus/internal/names"
	"github.com/sirupsen/logrus"
)

// Publisher receives room snapshots. *bus.Bus satisfies it.
type Publisher interface {
	Publish(u bus.Update)
}

// Registry owns every room's state. All operations on a room are serialized by one
// RWMutex; callers only ever see deep copies.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*models.RoomState
	// highestWaiting is the largest waiting seat ever issued per room.
	highestWaiting map[string]int

	pub   Publisher
	names *names.Generator
	log   *logrus.Logger
}

// NewRegistry returns an empty registry that draws generated room names from gen.
func NewRegistry(gen *names.Generator, logger *logrus.Logger) *Registry {
	return &Registry{
		rooms:          make(map[string]*models.RoomState),
		highestWaiting: make(map[string]int),
		names:          gen,
		log:            logger,
	}
}

// SetPublisher makes every state change publish the resulting snapshot. Publishing
// happens while the registry lock is held, so a room's snapshots go out in the order
// they were applied. p must not block.
func (r *Registry) SetPublisher(p Publisher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pub = p
}

// publish sends a snapshot of st. Callers hold r.mu.
func (r *Registry) publish(roomID string, st *models.RoomState) {
	if r.pub != nil {
		r.pub.Publish(bus.Update{Room: roomID, State: st.Clone()})
	}
}

// guard recovers a panic raised inside a room operation. The deferred unlock still runs,
// so the registry stays usable and the caller gets the operation's zero result.
func (r *Registry) guard(op, roomID string) {
	if rec := recover(); rec != nil {
		r.log.WithFields(logrus.Fields{
			"op":    op,
			"room":  roomID,
			"panic": rec,
		}).Error("room operation aborted")
	}
}

// CreateRoom stores a fresh empty room under name, replacing whatever was there. An
// empty name is replaced by a generated one. Returns the room id.
func (r *Registry) CreateRoom(name string) (id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	defer r.guard("create", name)

	if name == "" {
		name = r.names.Next()
	}
	st := models.NewRoomState()
	r.rooms[name] = &st
	delete(r.highestWaiting, name)
	r.log.Debugf("Room %s created", name)
	r.publish(name, &st)
	return name
}

// State returns a snapshot of the room, or false if it does not exist.
func (r *Registry) State(roomID string) (snap models.RoomState, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defer r.guard("state", roomID)

	st, ok := r.rooms[roomID]
	if !ok {
		return models.RoomState{}, false
	}
	return st.Clone(), true
}

// Join seats a new participant and returns its seat id. A missing room is created and
// its first participant always gets seat 0.
func (r *Registry) Join(roomID string) (seat int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	defer r.guard("join", roomID)

	st, ok := r.rooms[roomID]
	if !ok {
		fresh := models.NewRoomState()
		st = &fresh
		r.rooms[roomID] = st
	}

	seat = nextSeat(st, r.highestWaiting[roomID])
	if models.IsWaiting(seat) {
		r.highestWaiting[roomID] = seat
	}
	st.Players = append(st.Players, models.PlayerState{
		PlayerID:   seat,
		PlayerName: models.DefaultPlayerName,
	})

	r.log.WithFields(logrus.Fields{"room": roomID, "seat": seat}).Info("Player joined")
	r.publish(roomID, st)
	return seat
}

// nextSeat picks the lowest free active seat while fewer than ActiveSeats are taken,
// otherwise WaitingSeatBase plus the room size, raised past highest (the largest waiting
// seat issued so far) so a waiting id is never handed out twice.
func nextSeat(st *models.RoomState, highest int) int {
	n := len(st.Players)
	if n >= models.ActiveSeats {
		return max(models.WaitingSeatBase+n, highest+1)
	}
	for i := 0; i < n; i++ {
		if st.Player(i) < 0 {
			return i
		}
	}
	return n
}

// Leave removes the participant at seatID and, when a waiting participant exists,
// promotes the first one (in list order) into the vacated seat. Unknown rooms and seats
// are ignored. A room left empty is deleted. Returns the post-departure snapshot and
// whether the room still exists.
func (r *Registry) Leave(roomID string, seatID int) (snap models.RoomState, exists bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	defer r.guard("leave", roomID)

	st, ok := r.rooms[roomID]
	if !ok {
		r.log.Debugf("Leave: room %s not found", roomID)
		return models.RoomState{}, false
	}

	idx := st.Player(seatID)
	if idx < 0 {
		r.log.Debugf("Leave: seat %d not present in room %s", seatID, roomID)
		return st.Clone(), true
	}
	st.Players = slices.Delete(st.Players, idx, idx+1)
	r.log.WithFields(logrus.Fields{"room": roomID, "seat": seatID}).Info("Player left")

	if waitingID, promoted := promote(st, seatID); promoted {
		st.NotifyChange = models.NotifyChange{CurrentID: waitingID, NewID: seatID}
		r.log.WithFields(logrus.Fields{"room": roomID, "from": waitingID, "to": seatID}).Info("Player promoted")
	} else {
		st.NotifyChange = models.NotifyChange{}
	}

	if len(st.Players) == 0 {
		delete(r.rooms, roomID)
		delete(r.highestWaiting, roomID)
		r.log.Debugf("Room %s is empty, removed", roomID)
		return st.Clone(), false
	}
	r.publish(roomID, st)
	return st.Clone(), true
}

// promote moves the first waiting participant into vacated. It only fires while the
// room still holds at least ActiveSeats participants. The promoted participant keeps
// its name, loses its value, and goes to the end of the list.
func promote(st *models.RoomState, vacated int) (int, bool) {
	if len(st.Players) < models.ActiveSeats {
		return 0, false
	}

	idx := slices.IndexFunc(st.Players, func(p models.PlayerState) bool {
		return models.IsWaiting(p.PlayerID)
	})
	if idx < 0 {
		return 0, false
	}

	waiting := st.Players[idx]
	st.Players = slices.Delete(st.Players, idx, idx+1)
	st.Players = append(st.Players, models.PlayerState{
		PlayerID:   vacated,
		PlayerName: waiting.PlayerName,
	})
	return waiting.PlayerID, true
}

// Apply runs a client message against the room, creating the room if needed, and
// returns the resulting snapshot. Messages naming an unknown seat change nothing.
func (r *Registry) Apply(roomID string, msg models.ClientMessage) (snap models.RoomState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	defer r.guard("apply", roomID)

	st, ok := r.rooms[roomID]
	if !ok {
		fresh := models.NewRoomState()
		st = &fresh
		r.rooms[roomID] = st
	}

	switch m := msg.(type) {
	case models.ChangeValue:
		if i := st.Player(m.PlayerID); i >= 0 {
			v := m.Value
			st.Players[i].Value = &v
		}

	case models.ChangeName:
		if i := st.Player(m.PlayerID); i >= 0 {
			st.Players[i].PlayerName = m.Name
		}

	case models.RevealNumbers:
		// Hiding again after a reveal starts a new round: chosen values drop to 0.
		if !m.Value && st.AllRevealed {
			for i := range st.Players {
				if st.Players[i].Value != nil {
					zero := uint8(0)
					st.Players[i].Value = &zero
				}
			}
		}
		st.AllRevealed = m.Value

	case models.Pong:
		// No liveness deadline is enforced; the pong is only acknowledged.
		r.log.Tracef("Room %s: seat %d ponged", roomID, m.PlayerID)

	default:
		r.log.Warnf("Room %s: unhandled message %T", roomID, msg)
	}

	r.publish(roomID, st)
	return st.Clone()
}

// Rooms lists the ids of all rooms, sorted.
func (r *Registry) Rooms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.rooms))
	for id := range r.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
