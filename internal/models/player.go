package models

// DefaultPlayerName is given to every participant until they pick a name.
const DefaultPlayerName = "Delegate Unknown"

// PlayerState is one participant of a room. PlayerID is the seat id and is only unique
// within its room. Value is nil until the participant picks a number.
type PlayerState struct {
	PlayerID   int    `json:"player_id"`
	PlayerName string `json:"player_name"`
	Value      *uint8 `json:"value"`
}

// Clone returns a copy that shares no memory with p.
func (p PlayerState) Clone() PlayerState {
	if p.Value != nil {
		v := *p.Value
		p.Value = &v
	}
	return p
}
