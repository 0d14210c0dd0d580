package orbital

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	// ErrUnknownBody is returned when a body id is not part of the system.
	ErrUnknownBody = errors.New("unknown body")
)

// System is the immutable set of celestial bodies for a session: a directed
// forest keyed by body id, where every non-root body orbits its parent.
// All lookups are pure functions of (body id, tick, static elements).
type System struct {
	dt       float64 // game days per tick
	bodies   map[BodyID]*Body
	children map[BodyID][]BodyID
	hill     map[BodyID]float64
	root     BodyID
	order    []BodyID // all ids, stable sort for deterministic iteration
}

// NewSystem validates the body definitions and builds the lookup structures.
// dt is the fixed tick duration in game days. The parent graph must be a
// tree rooted at a single parentless body.
func NewSystem(dt float64, bodies []Body) (*System, error) {
	if dt <= 0 {
		return nil, fmt.Errorf("tick duration must be positive, got %v", dt)
	}
	if len(bodies) == 0 {
		return nil, errors.New("universe has no bodies")
	}

	s := &System{
		dt:       dt,
		bodies:   make(map[BodyID]*Body, len(bodies)),
		children: make(map[BodyID][]BodyID),
		hill:     make(map[BodyID]float64, len(bodies)),
	}
	for i := range bodies {
		b := bodies[i]
		if b.ID == "" {
			return nil, fmt.Errorf("body %q has an empty id", b.Name)
		}
		if _, dup := s.bodies[b.ID]; dup {
			return nil, fmt.Errorf("duplicate body id %q", b.ID)
		}
		s.bodies[b.ID] = &b
		s.order = append(s.order, b.ID)
	}
	sort.Slice(s.order, func(i, j int) bool { return s.order[i] < s.order[j] })

	for _, id := range s.order {
		b := s.bodies[id]
		if b.Parent == "" {
			if s.root != "" {
				return nil, fmt.Errorf("multiple root bodies: %q and %q", s.root, id)
			}
			s.root = id
			continue
		}
		if _, ok := s.bodies[b.Parent]; !ok {
			return nil, fmt.Errorf("body %q orbits unknown parent %q", id, b.Parent)
		}
		if b.Orbit.Period <= 0 {
			return nil, fmt.Errorf("body %q has non-positive orbital period", id)
		}
		s.children[b.Parent] = append(s.children[b.Parent], id)
	}
	if s.root == "" {
		return nil, errors.New("no root body found")
	}
	for parent := range s.children {
		sort.Slice(s.children[parent], func(i, j int) bool {
			return s.children[parent][i] < s.children[parent][j]
		})
	}
	if err := s.checkAcyclic(); err != nil {
		return nil, err
	}
	s.computeHillRadii()
	return s, nil
}

// checkAcyclic walks every parent chain and rejects cycles. Chains are at
// most len(bodies) long in a valid forest.
func (s *System) checkAcyclic() error {
	for _, id := range s.order {
		seen := 0
		for cur := s.bodies[id]; cur.Parent != ""; cur = s.bodies[cur.Parent] {
			seen++
			if seen > len(s.order) {
				return fmt.Errorf("cycle in parent chain of body %q", id)
			}
		}
	}
	return nil
}

// computeHillRadii assigns each body the radius of its sphere of influence:
// a·(1-e)·(m/(3(M+m)))^(1/3), floored at the body's physical radius. The
// root's influence is unbounded.
func (s *System) computeHillRadii() {
	type entry struct {
		id         BodyID
		parentMass float64
	}
	queue := []entry{{s.root, 0}}
	for i := 0; i < len(queue); i++ {
		b := s.bodies[queue[i].id]
		if queue[i].id == s.root {
			s.hill[b.ID] = math.Inf(1)
		} else {
			r := b.Orbit.SemiMajorAxis * (1 - b.Orbit.Eccentricity) *
				math.Cbrt(b.Mass/(3*(queue[i].parentMass+b.Mass)))
			s.hill[b.ID] = math.Max(r, b.Radius)
		}
		for _, c := range s.children[b.ID] {
			queue = append(queue, entry{c, b.Mass})
		}
	}
}

// DT returns the fixed tick duration in game days.
func (s *System) DT() float64 { return s.dt }

// Time converts a tick to game days.
func (s *System) Time(tick Tick) float64 { return float64(tick) * s.dt }

// Root returns the id of the primary body.
func (s *System) Root() BodyID { return s.root }

// Body returns the static definition of a body.
func (s *System) Body(id BodyID) (Body, error) {
	b, ok := s.bodies[id]
	if !ok {
		return Body{}, fmt.Errorf("%w: %q", ErrUnknownBody, id)
	}
	return *b, nil
}

// Bodies returns every body definition in stable id order.
func (s *System) Bodies() []Body {
	out := make([]Body, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.bodies[id])
	}
	return out
}

// HillRadius returns the radius of a body's sphere of influence in km.
func (s *System) HillRadius(id BodyID) (float64, error) {
	r, ok := s.hill[id]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownBody, id)
	}
	return r, nil
}

// BodyState returns a body's position and velocity in the inertial frame at
// the given tick: the parent chain is resolved root-to-leaf, then the body's
// own elements are applied relative to the parent state at the same tick.
func (s *System) BodyState(id BodyID, tick Tick) (State, error) {
	b, ok := s.bodies[id]
	if !ok {
		return State{}, fmt.Errorf("%w: %q", ErrUnknownBody, id)
	}
	if b.Parent == "" {
		return State{}, nil
	}
	parent, err := s.BodyState(b.Parent, tick)
	if err != nil {
		return State{}, err
	}
	local := localState(b.Orbit, s.Time(tick))
	return State{
		Pos: parent.Pos.Add(local.Pos),
		Vel: parent.Vel.Add(local.Vel),
	}, nil
}

// StatesAt computes every body's state at the given tick in one root-to-leaf
// pass, so that each parent is evaluated exactly once.
func (s *System) StatesAt(tick Tick) map[BodyID]State {
	states := make(map[BodyID]State, len(s.order))
	queue := []BodyID{s.root}
	states[s.root] = State{}
	for i := 0; i < len(queue); i++ {
		id := queue[i]
		parent := states[id]
		for _, c := range s.children[id] {
			local := localState(s.bodies[c].Orbit, s.Time(tick))
			states[c] = State{
				Pos: parent.Pos.Add(local.Pos),
				Vel: parent.Vel.Add(local.Vel),
			}
			queue = append(queue, c)
		}
	}
	return states
}

// Influence is the set of bodies whose sphere of influence contains a point,
// with the body of smallest hill radius singled out as the main influencer.
type Influence struct {
	Bodies []BodyID
	Main   BodyID
}

// Influencers walks the forest from the root: a point outside a body's
// sphere of influence cannot be inside any of that body's children's either,
// so subtrees prune early. states must come from StatesAt for the same tick.
func (s *System) Influencers(pos Vec3, states map[BodyID]State) Influence {
	var inf Influence
	minHill := math.Inf(1)
	queue := []BodyID{s.root}
	for i := 0; i < len(queue); i++ {
		id := queue[i]
		hill := s.hill[id]
		if pos.Sub(states[id].Pos).Magnitude() >= hill {
			continue
		}
		inf.Bodies = append(inf.Bodies, id)
		if inf.Main == "" || hill < minHill {
			minHill = hill
			inf.Main = id
		}
		queue = append(queue, s.children[id]...)
	}
	return inf
}
