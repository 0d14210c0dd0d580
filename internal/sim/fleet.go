// Package sim advances fleets under gravity by discrete ticks and computes
// predicted trajectories. Celestial bodies follow the closed-form orbital
// model; only fleets are numerically integrated.
package sim

import (
	"errors"
	"fmt"
	"sort"

	"orrery/internal/orbital"
)

// FleetID is a stable, unique identifier for a fleet.
type FleetID string

// PlayerID identifies the owning player of a fleet.
type PlayerID string

// Maneuver is a scheduled instantaneous velocity change applied to a fleet
// at a specific tick.
type Maneuver struct {
	Tick   orbital.Tick `json:"tick"`
	DeltaV orbital.Vec3 `json:"deltaV"` // km per game day
	Label  string       `json:"label,omitempty"`
}

// Fleet is a player-controlled entity with explicit kinematic state at a
// reference tick and an ordered list of planned maneuvers.
type Fleet struct {
	ID    FleetID      `json:"id"`
	Owner PlayerID     `json:"owner"`
	Tick  orbital.Tick `json:"tick"` // reference tick of Pos/Vel
	Pos   orbital.Vec3 `json:"pos"`
	Vel   orbital.Vec3 `json:"vel"`

	// Maneuvers are kept sorted by strictly increasing tick.
	Maneuvers []Maneuver `json:"maneuvers,omitempty"`
}

var (
	// ErrManeuverInPast is returned when a maneuver is scheduled at or
	// before the fleet's reference tick.
	ErrManeuverInPast = errors.New("maneuver tick not after reference tick")
	// ErrManeuverConflict is returned when a maneuver is already scheduled
	// at the same tick.
	ErrManeuverConflict = errors.New("maneuver already scheduled at tick")
)

// ScheduleManeuver inserts a maneuver keeping the strictly-increasing tick
// invariant.
func (f *Fleet) ScheduleManeuver(m Maneuver) error {
	if m.Tick <= f.Tick {
		return fmt.Errorf("%w: maneuver at %d, fleet at %d", ErrManeuverInPast, m.Tick, f.Tick)
	}
	i := sort.Search(len(f.Maneuvers), func(i int) bool {
		return f.Maneuvers[i].Tick >= m.Tick
	})
	if i < len(f.Maneuvers) && f.Maneuvers[i].Tick == m.Tick {
		return fmt.Errorf("%w %d", ErrManeuverConflict, m.Tick)
	}
	f.Maneuvers = append(f.Maneuvers, Maneuver{})
	copy(f.Maneuvers[i+1:], f.Maneuvers[i:])
	f.Maneuvers[i] = m
	return nil
}

// CancelManeuver removes the maneuver at the given list index.
func (f *Fleet) CancelManeuver(index int) error {
	if index < 0 || index >= len(f.Maneuvers) {
		return fmt.Errorf("maneuver index %d out of range [0, %d)", index, len(f.Maneuvers))
	}
	f.Maneuvers = append(f.Maneuvers[:index], f.Maneuvers[index+1:]...)
	return nil
}

// Clone returns a deep copy, so predictions and client-side speculation
// never alias authoritative state.
func (f *Fleet) Clone() *Fleet {
	c := *f
	c.Maneuvers = append([]Maneuver(nil), f.Maneuvers...)
	return &c
}
