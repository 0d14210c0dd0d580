// Package query resolves spatial picks and name searches against the
// current simulation state: bodies at the current tick plus sampled points
// of predicted fleet trajectories.
package query

import (
	"sort"

	"github.com/sahilm/fuzzy"

	"orrery/internal/orbital"
	"orrery/internal/sim"
)

// TargetKind discriminates what a selection resolved to.
type TargetKind int

const (
	// TargetBody selects a celestial body.
	TargetBody TargetKind = iota
	// TargetPredictionPoint selects one sample of a fleet's predicted
	// trajectory.
	TargetPredictionPoint
)

// Target is a tagged variant over a body or a prediction point. Callers
// switch on Kind exhaustively.
type Target struct {
	Kind  TargetKind
	Body  orbital.BodyID
	Fleet sim.FleetID
	Tick  orbital.Tick
}

// Index is a snapshot of selectable candidates at one tick. It is rebuilt
// whenever the authoritative tick advances or a prediction changes.
type Index struct {
	sys         *orbital.System
	tick        orbital.Tick
	states      map[orbital.BodyID]orbital.State
	predictions map[sim.FleetID][]sim.Sample
	fleetOrder  []sim.FleetID
}

// NewIndex builds the candidate index for the given tick.
func NewIndex(sys *orbital.System, tick orbital.Tick) *Index {
	return &Index{
		sys:         sys,
		tick:        tick,
		states:      sys.StatesAt(tick),
		predictions: make(map[sim.FleetID][]sim.Sample),
	}
}

// AddPrediction registers a fleet's predicted samples as pick candidates.
func (ix *Index) AddPrediction(id sim.FleetID, samples []sim.Sample) {
	if _, seen := ix.predictions[id]; !seen {
		ix.fleetOrder = append(ix.fleetOrder, id)
		sort.Slice(ix.fleetOrder, func(i, j int) bool { return ix.fleetOrder[i] < ix.fleetOrder[j] })
	}
	ix.predictions[id] = samples
}

// Resolve picks the candidate nearest to point within tolerance. Ties break
// by distance first, then by stable id order, so identical input against
// identical state always selects the same target.
func (ix *Index) Resolve(point orbital.Vec3, tolerance float64) (Target, bool) {
	best := Target{}
	bestDist := 0.0
	found := false

	// Candidates are visited in stable order (bodies by id, then fleets by
	// id, then samples by tick), and only a strictly closer candidate
	// displaces the current best, so equal distances keep the earlier one.
	consider := func(t Target, d float64) {
		if d > tolerance {
			return
		}
		if !found || d < bestDist {
			best = t
			bestDist = d
			found = true
		}
	}

	for _, b := range ix.sys.Bodies() {
		consider(Target{Kind: TargetBody, Body: b.ID}, ix.states[b.ID].Pos.Sub(point).Magnitude())
	}
	for _, id := range ix.fleetOrder {
		for _, s := range ix.predictions[id] {
			consider(Target{Kind: TargetPredictionPoint, Fleet: id, Tick: s.Tick}, s.Pos.Sub(point).Magnitude())
		}
	}
	return best, found
}

// minSearchScore is the lowest fuzzy match score accepted; matches below it
// are treated as no result.
const minSearchScore = 0

// Search resolves a text query to a body by fuzzy name match, returning the
// best-scoring body at or above the minimum score.
func (ix *Index) Search(queryText string) (orbital.BodyID, bool) {
	if queryText == "" {
		return "", false
	}
	bodies := ix.sys.Bodies()
	names := make([]string, len(bodies))
	for i, b := range bodies {
		names[i] = b.Name
	}
	matches := fuzzy.Find(queryText, names)
	if len(matches) == 0 || matches[0].Score < minSearchScore {
		return "", false
	}
	return bodies[matches[0].Index].ID, true
}
