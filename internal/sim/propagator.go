package sim

import (
	"errors"
	"fmt"
	"sort"

	"orrery/internal/orbital"
)

var (
	// ErrTickBeforeBaseline is returned when a caller asks the propagator
	// to move to a tick before its authoritative baseline. The server
	// treats this as a contract violation; clients recover by falling back
	// to their cached authoritative snapshot.
	ErrTickBeforeBaseline = errors.New("requested tick before authoritative baseline")
	// ErrUnknownFleet is returned for operations on fleets the propagator
	// does not hold.
	ErrUnknownFleet = errors.New("unknown fleet")
	// ErrDuplicateFleet is returned when adding a fleet whose id exists.
	ErrDuplicateFleet = errors.New("fleet already exists")
)

// Propagator owns the authoritative tick counter and integrates fleet
// motion under the gravity of the orbital model. Bodies are never
// integrated; their states come from the closed-form model.
type Propagator struct {
	sys  *orbital.System
	tick orbital.Tick

	fleets map[FleetID]*Fleet
	// Trailing acceleration per fleet for the leapfrog velocity update.
	acc map[FleetID]orbital.Vec3
}

// NewPropagator creates a propagator with its baseline at start.
func NewPropagator(sys *orbital.System, start orbital.Tick) *Propagator {
	return &Propagator{
		sys:    sys,
		tick:   start,
		fleets: make(map[FleetID]*Fleet),
		acc:    make(map[FleetID]orbital.Vec3),
	}
}

// System returns the orbital model the propagator integrates against.
func (p *Propagator) System() *orbital.System { return p.sys }

// Tick returns the authoritative tick.
func (p *Propagator) Tick() orbital.Tick { return p.tick }

// BodyState delegates to the orbital model.
func (p *Propagator) BodyState(id orbital.BodyID, tick orbital.Tick) (orbital.State, error) {
	return p.sys.BodyState(id, tick)
}

// AddFleet registers a fleet. Its reference state is rebased to the current
// authoritative tick, which must equal the fleet's own reference tick.
func (p *Propagator) AddFleet(f *Fleet) error {
	if _, ok := p.fleets[f.ID]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateFleet, f.ID)
	}
	if f.Tick != p.tick {
		return fmt.Errorf("fleet %q at tick %d, propagator at %d", f.ID, f.Tick, p.tick)
	}
	c := f.Clone()
	p.fleets[c.ID] = c
	p.acc[c.ID] = gravity(p.sys, c.Pos, p.sys.StatesAt(p.tick))
	return nil
}

// RemoveFleet drops a fleet and its integration state.
func (p *Propagator) RemoveFleet(id FleetID) {
	delete(p.fleets, id)
	delete(p.acc, id)
}

// Fleet returns a copy of a fleet's authoritative state.
func (p *Propagator) Fleet(id FleetID) (Fleet, error) {
	f, ok := p.fleets[id]
	if !ok {
		return Fleet{}, fmt.Errorf("%w: %q", ErrUnknownFleet, id)
	}
	return *f.Clone(), nil
}

// Fleets returns copies of every fleet in stable id order.
func (p *Propagator) Fleets() []Fleet {
	ids := make([]FleetID, 0, len(p.fleets))
	for id := range p.fleets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]Fleet, 0, len(ids))
	for _, id := range ids {
		out = append(out, *p.fleets[id].Clone())
	}
	return out
}

// ScheduleManeuver adds a maneuver to a held fleet.
func (p *Propagator) ScheduleManeuver(id FleetID, m Maneuver) error {
	f, ok := p.fleets[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownFleet, id)
	}
	return f.ScheduleManeuver(m)
}

// SetFleetState overwrites a fleet's authoritative state, used by clients
// applying server snapshots and deltas. The propagator baseline follows the
// highest fleet reference tick it has seen.
func (p *Propagator) SetFleetState(f Fleet) {
	c := f.Clone()
	p.fleets[c.ID] = c
	states := p.sys.StatesAt(c.Tick)
	p.acc[c.ID] = gravity(p.sys, c.Pos, states)
	if c.Tick > p.tick {
		p.tick = c.Tick
	}
}

// AdvanceTo integrates every fleet from the authoritative baseline to the
// given tick with a fixed-step leapfrog scheme, applying maneuvers
// scheduled at intermediate ticks as instantaneous velocity deltas at their
// tick boundary. Deterministic for identical start state and maneuvers.
func (p *Propagator) AdvanceTo(tick orbital.Tick) error {
	if tick < p.tick {
		return fmt.Errorf("%w: %d < %d", ErrTickBeforeBaseline, tick, p.tick)
	}
	for p.tick < tick {
		next := p.tick + 1
		nextStates := p.sys.StatesAt(next)
		for id, f := range p.fleets {
			acc := p.acc[id]
			st := step(p.sys, fleetPoint{pos: f.Pos, vel: f.Vel, acc: acc, tick: p.tick}, f.Maneuvers, nextStates)
			f.Pos, f.Vel, f.Tick = st.pos, st.vel, next
			p.acc[id] = st.acc
			// Drop maneuvers that have been applied.
			for len(f.Maneuvers) > 0 && f.Maneuvers[0].Tick < next {
				f.Maneuvers = f.Maneuvers[1:]
			}
		}
		p.tick = next
	}
	return nil
}

// fleetPoint is the integrator state for one fleet at one tick.
type fleetPoint struct {
	pos  orbital.Vec3
	vel  orbital.Vec3
	acc  orbital.Vec3
	tick orbital.Tick
}

// step advances a fleet point by one tick: apply any maneuver scheduled at
// the current tick boundary, then one leapfrog update against the body
// states of the next tick. nextStates must be StatesAt(point.tick+1).
func step(sys *orbital.System, point fleetPoint, maneuvers []Maneuver, nextStates map[orbital.BodyID]orbital.State) fleetPoint {
	for _, m := range maneuvers {
		if m.Tick == point.tick {
			point.vel = point.vel.Add(m.DeltaV)
		}
		if m.Tick > point.tick {
			break
		}
	}
	dt := sys.DT()
	// x += (v + a·dt/2)·dt
	point.pos = point.pos.Add(point.vel.Add(point.acc.Scale(dt / 2)).Scale(dt))
	// v += (a_prev + a)·dt/2 with a recomputed at the new position.
	next := gravity(sys, point.pos, nextStates)
	point.vel = point.vel.Add(point.acc.Add(next).Scale(dt / 2))
	point.acc = next
	point.tick++
	return point
}

// gravity sums the gravitational acceleration from every body whose sphere
// of influence contains the position.
func gravity(sys *orbital.System, pos orbital.Vec3, states map[orbital.BodyID]orbital.State) orbital.Vec3 {
	inf := sys.Influencers(pos, states)
	var acc orbital.Vec3
	for _, id := range inf.Bodies {
		body, err := sys.Body(id)
		if err != nil {
			continue
		}
		r := pos.Sub(states[id].Pos)
		dist := r.Magnitude()
		if dist < 1e-6 {
			continue
		}
		acc = acc.Sub(r.Scale(orbital.G * body.Mass / (dist * dist * dist)))
	}
	return acc
}
