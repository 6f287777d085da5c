// internal/models/messages.go
package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Client -> server message type discriminants.
const (
	TypeChangeValue   = "ChangeValue"
	TypeChangeName    = "ChangeName"
	TypeRevealNumbers = "RevealNumbers"
	TypePong          = "Pong"
)

// Server -> client message type discriminants.
const (
	TypeUpdateState    = "UpdateState"
	TypePlayerAssigned = "PlayerAssigned"
	TypeErrorMessage   = "ErrorMessage"
	TypePing           = "Ping"
)

// ErrMissingField is returned when a client frame omits a required field.
var ErrMissingField = errors.New("missing required field")

// ClientMessage is one of ChangeValue, ChangeName, RevealNumbers or Pong.
type ClientMessage interface {
	MessageType() string
}

type ChangeValue struct {
	PlayerID int
	Value    uint8
}

type ChangeName struct {
	PlayerID int
	Name     string
}

type RevealNumbers struct {
	Value bool
}

// Pong answers a server Ping. It carries no state change.
type Pong struct {
	PlayerID int
}

func (ChangeValue) MessageType() string   { return TypeChangeValue }
func (ChangeName) MessageType() string    { return TypeChangeName }
func (RevealNumbers) MessageType() string { return TypeRevealNumbers }
func (Pong) MessageType() string          { return TypePong }

// clientFrame is the raw shape of any client message. Pointers tell "absent" apart from
// zero values.
type clientFrame struct {
	Type     string  `json:"type"`
	PlayerID *uint   `json:"player_id"`
	Value    *uint8  `json:"value"`
	Name     *string `json:"name"`
}

// DecodeClientMessage parses a JSON text frame into a ClientMessage.
func DecodeClientMessage(data []byte) (ClientMessage, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("invalid frame: %w", err)
	}

	switch head.Type {
	case TypeRevealNumbers:
		var raw struct {
			Value *bool `json:"value"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", head.Type, err)
		}
		if raw.Value == nil {
			return nil, fmt.Errorf("%s.value: %w", head.Type, ErrMissingField)
		}
		return RevealNumbers{Value: *raw.Value}, nil

	case TypeChangeValue, TypeChangeName, TypePong:
		var f clientFrame
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", head.Type, err)
		}
		if f.PlayerID == nil {
			return nil, fmt.Errorf("%s.player_id: %w", head.Type, ErrMissingField)
		}
		seat := int(*f.PlayerID)

		switch head.Type {
		case TypeChangeValue:
			if f.Value == nil {
				return nil, fmt.Errorf("%s.value: %w", head.Type, ErrMissingField)
			}
			return ChangeValue{PlayerID: seat, Value: *f.Value}, nil
		case TypeChangeName:
			if f.Name == nil {
				return nil, fmt.Errorf("%s.name: %w", head.Type, ErrMissingField)
			}
			return ChangeName{PlayerID: seat, Name: *f.Name}, nil
		default:
			return Pong{PlayerID: seat}, nil
		}

	default:
		return nil, fmt.Errorf("unknown message type %q", head.Type)
	}
}

// ServerMessage is any frame the server writes to a client.
type ServerMessage interface {
	json.Marshaler
}

// UpdateState carries a full room snapshot. Its fields are inlined next to "type".
type UpdateState struct {
	State RoomState
}

type PlayerAssigned struct {
	PlayerID int
}

// ErrorMessage is part of the protocol but no code path sends it yet.
type ErrorMessage struct {
	Message string
}

type Ping struct {
	Data int
}

func (m UpdateState) MarshalJSON() ([]byte, error) {
	state := m.State
	if state.Players == nil {
		state.Players = []PlayerState{}
	}
	return json.Marshal(struct {
		Type string `json:"type"`
		RoomState
	}{TypeUpdateState, state})
}

func (m PlayerAssigned) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type     string `json:"type"`
		PlayerID int    `json:"player_id"`
	}{TypePlayerAssigned, m.PlayerID})
}

func (m ErrorMessage) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}{TypeErrorMessage, m.Message})
}

func (m Ping) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
		Data int    `json:"data"`
	}{TypePing, m.Data})
}
