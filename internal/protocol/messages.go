// Package protocol defines the JSON wire messages exchanged between the
// synchronization server and its clients. Every frame is an envelope with a
// "type" field; Decode dispatches on it.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"orrery/internal/orbital"
	"orrery/internal/sim"
)

// Version is the protocol version both sides must agree on during the
// hello/welcome handshake.
const Version = 1

// Message type tags.
const (
	TypeHello    = "hello"
	TypeWelcome  = "welcome"
	TypeSnapshot = "snapshot"
	TypeDelta    = "delta"
	TypeCommand  = "command"
	TypeAck      = "ack"
	TypeRejected = "rejected"
)

// Reject reason codes sent in Rejected messages.
const (
	RejectLeadTimeTooShort = "lead_time_too_short"
	RejectUnknownFleet     = "unknown_fleet"
	RejectNotOwner         = "not_owner"
	RejectQueueLimit       = "queue_limit"
	RejectVersionMismatch  = "version_mismatch"
	RejectMalformed        = "malformed"
)

// ErrMalformed is returned by Decode for frames that are not valid JSON, lack
// a type tag, or carry an unknown one.
var ErrMalformed = errors.New("malformed message")

// Hello is the first client frame after the websocket upgrade.
type Hello struct {
	Type    string `json:"type"`
	Version int    `json:"version"`
	Name    string `json:"name,omitempty"`
}

// Welcome answers a Hello and assigns the player its identity.
type Welcome struct {
	Type     string       `json:"type"`
	Version  int          `json:"version"`
	TickRate float64      `json:"tick_rate"`
	DT       float64      `json:"dt"`
	PlayerID sim.PlayerID `json:"player_id"`
	FleetID  sim.FleetID  `json:"fleet_id"`
}

// BodyDef carries the static definition of one body in a snapshot.
type BodyDef struct {
	ID     orbital.BodyID   `json:"id"`
	Name   string           `json:"name"`
	Parent orbital.BodyID   `json:"parent,omitempty"`
	Mass   float64          `json:"mass"`
	Radius float64          `json:"radius"`
	Orbit  orbital.Elements `json:"orbit"`
}

// FleetState is the wire form of one fleet's authoritative state.
type FleetState struct {
	ID        sim.FleetID    `json:"id"`
	Owner     sim.PlayerID   `json:"owner"`
	Tick      orbital.Tick   `json:"tick"`
	Pos       orbital.Vec3   `json:"pos"`
	Vel       orbital.Vec3   `json:"vel"`
	Maneuvers []sim.Maneuver `json:"maneuvers,omitempty"`
}

// Snapshot is the full authoritative state at one tick. Sent on connect and
// as a periodic keyframe.
type Snapshot struct {
	Type   string       `json:"type"`
	Tick   orbital.Tick `json:"tick"`
	Bodies []BodyDef    `json:"bodies,omitempty"`
	Fleets []FleetState `json:"fleets"`
}

// Delta carries only the fleets that changed during one tick.
type Delta struct {
	Type   string       `json:"type"`
	Tick   orbital.Tick `json:"tick"`
	Fleets []FleetState `json:"fleets,omitempty"`
}

// Command asks the server to commit a maneuver to one of the sender's
// fleets. Seq is echoed back in the Ack or Rejected reply.
type Command struct {
	Type     string       `json:"type"`
	Seq      uint64       `json:"seq"`
	FleetID  sim.FleetID  `json:"fleet_id"`
	Maneuver sim.Maneuver `json:"maneuver"`
	Cancel   bool         `json:"cancel,omitempty"`
	Index    int          `json:"index,omitempty"`
}

// Ack confirms a committed command.
type Ack struct {
	Type string       `json:"type"`
	Seq  uint64       `json:"seq"`
	Tick orbital.Tick `json:"tick"`
}

// Rejected refuses a command with a reason code.
type Rejected struct {
	Type   string       `json:"type"`
	Seq    uint64       `json:"seq"`
	Tick   orbital.Tick `json:"tick"`
	Reason string       `json:"reason"`
}

type envelope struct {
	Type string `json:"type"`
}

// Decode parses one frame and returns the concrete message struct. The
// returned value is one of *Hello, *Welcome, *Snapshot, *Delta, *Command,
// *Ack or *Rejected.
func Decode(data []byte) (any, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var msg any
	switch env.Type {
	case TypeHello:
		msg = &Hello{}
	case TypeWelcome:
		msg = &Welcome{}
	case TypeSnapshot:
		msg = &Snapshot{}
	case TypeDelta:
		msg = &Delta{}
	case TypeCommand:
		msg = &Command{}
	case TypeAck:
		msg = &Ack{}
	case TypeRejected:
		msg = &Rejected{}
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrMalformed, env.Type)
	}
	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return msg, nil
}

// Encode marshals a message, stamping its type tag from the concrete type so
// callers cannot send a frame with a mismatched envelope.
func Encode(msg any) ([]byte, error) {
	switch m := msg.(type) {
	case *Hello:
		m.Type = TypeHello
	case *Welcome:
		m.Type = TypeWelcome
	case *Snapshot:
		m.Type = TypeSnapshot
	case *Delta:
		m.Type = TypeDelta
	case *Command:
		m.Type = TypeCommand
	case *Ack:
		m.Type = TypeAck
	case *Rejected:
		m.Type = TypeRejected
	default:
		return nil, fmt.Errorf("protocol: cannot encode %T", msg)
	}
	return json.Marshal(msg)
}
