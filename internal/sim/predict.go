package sim

import (
	"fmt"

	"orrery/internal/orbital"
)

// Sample is one point of a predicted trajectory.
type Sample struct {
	Tick orbital.Tick `json:"tick"`
	Pos  orbital.Vec3 `json:"pos"`
	Vel  orbital.Vec3 `json:"vel"`
}

// Prediction is a lazy, restartable sequence of future fleet states,
// computed with the same integrator as the propagator but on a throwaway
// copy. It never mutates authoritative state; on any change to the fleet's
// maneuvers or reference state the caller discards it and predicts again.
type Prediction struct {
	sys     *orbital.System
	start   *Fleet
	horizon orbital.Tick
	stride  int

	cur fleetPoint
}

// Predict builds a prediction for the fleet from its reference tick up to
// horizon (exclusive of the reference tick itself). stride emits every
// stride-th integrated tick; integration granularity is always one tick.
func Predict(sys *orbital.System, f *Fleet, horizon orbital.Tick, stride int) (*Prediction, error) {
	if horizon <= f.Tick {
		return nil, fmt.Errorf("horizon %d not after reference tick %d", horizon, f.Tick)
	}
	if stride < 1 {
		stride = 1
	}
	p := &Prediction{
		sys:     sys,
		start:   f.Clone(),
		horizon: horizon,
		stride:  stride,
	}
	p.Reset()
	return p, nil
}

// Predict builds a prediction for one of the propagator's fleets, seeded
// from its current authoritative state.
func (p *Propagator) Predict(id FleetID, horizon orbital.Tick, stride int) (*Prediction, error) {
	f, ok := p.fleets[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFleet, id)
	}
	return Predict(p.sys, f, horizon, stride)
}

// Reset restarts the sequence from the fleet's reference state.
func (p *Prediction) Reset() {
	p.cur = fleetPoint{
		pos:  p.start.Pos,
		vel:  p.start.Vel,
		acc:  gravity(p.sys, p.start.Pos, p.sys.StatesAt(p.start.Tick)),
		tick: p.start.Tick,
	}
}

// Horizon returns the tick the prediction runs to.
func (p *Prediction) Horizon() orbital.Tick { return p.horizon }

// Next integrates forward and returns the next sample, or false when the
// horizon is reached.
func (p *Prediction) Next() (Sample, bool) {
	if p.cur.tick >= p.horizon {
		return Sample{}, false
	}
	for i := 0; i < p.stride && p.cur.tick < p.horizon; i++ {
		p.cur = step(p.sys, p.cur, p.start.Maneuvers, p.sys.StatesAt(p.cur.tick+1))
	}
	return Sample{Tick: p.cur.tick, Pos: p.cur.pos, Vel: p.cur.vel}, true
}

// Samples drains up to max samples from the current cursor.
func (p *Prediction) Samples(max int) []Sample {
	out := make([]Sample, 0, max)
	for len(out) < max {
		s, ok := p.Next()
		if !ok {
			break
		}
		out = append(out, s)
	}
	return out
}
