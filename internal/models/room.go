// internal/models/room.go
package models

// ActiveSeats is the number of primary seats (ids 0-5) in a room.
const ActiveSeats = 6

// WaitingSeatBase offsets waiting seat ids so they never collide with active seats.
const WaitingSeatBase = 10

// NotifyChange tells clients which waiting seat moved into which vacated seat after the
// last departure. The zero value means nothing was promoted.
type NotifyChange struct {
	CurrentID int `json:"current_id"`
	NewID     int `json:"new_id"`
}

// RoomState is the full state of a room as clients see it.
type RoomState struct {
	Players      []PlayerState `json:"players"`
	AllRevealed  bool          `json:"all_revealed"`
	NotifyChange NotifyChange  `json:"notify_change"`
}

// NewRoomState returns an empty room. Players is non-nil so it encodes as [].
func NewRoomState() RoomState {
	return RoomState{Players: []PlayerState{}}
}

// Clone deep-copies the room so the result can cross goroutines safely.
func (s RoomState) Clone() RoomState {
	players := make([]PlayerState, len(s.Players))
	for i, p := range s.Players {
		players[i] = p.Clone()
	}
	s.Players = players
	return s
}

// Player returns the index of the participant seated at seatID, or -1.
func (s *RoomState) Player(seatID int) int {
	for i, p := range s.Players {
		if p.PlayerID == seatID {
			return i
		}
	}
	return -1
}

// IsWaiting reports whether seatID belongs to the overflow queue.
func IsWaiting(seatID int) bool {
	return seatID > WaitingSeatBase
}
