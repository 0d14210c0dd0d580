// Package client maintains a synchronized replica of the server simulation:
// an authoritative cache updated only by server messages, a private
// propagator for optimistic advance, and speculative maneuvers reconciled
// against acks.
package client

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"orrery/internal/orbital"
	"orrery/internal/protocol"
	"orrery/internal/query"
	"orrery/internal/sim"
)

// State is the session lifecycle state.
type State int

const (
	Connecting State = iota
	AwaitingInitialSnapshot
	Synced
	Diverged
	Disconnected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case AwaitingInitialSnapshot:
		return "awaiting_initial_snapshot"
	case Synced:
		return "synced"
	case Diverged:
		return "diverged"
	case Disconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// DefaultDivergenceTimeout is how many ticks a speculative maneuver may stay
// unacknowledged before the session declares itself diverged.
const DefaultDivergenceTimeout orbital.Tick = 64

var (
	ErrNotSynced = errors.New("session not synced")
	ErrNoSystem  = errors.New("no universe received yet")
)

// AuthoritativeCache is the last-known-good server state. It is overwritten
// only on receipt of server snapshots and deltas.
type AuthoritativeCache struct {
	Tick   orbital.Tick
	Fleets map[sim.FleetID]sim.Fleet
}

type speculation struct {
	seq    uint64
	cmd    protocol.Command
	issued orbital.Tick
}

// Session holds the client-side replica. Handlers are fed decoded server
// messages by the connection's read loop (or directly in tests).
type Session struct {
	log     *slog.Logger
	timeout orbital.Tick
	send    func([]byte) error

	mu            sync.Mutex
	state         State
	divergedCause string
	sys           *orbital.System
	dt            float64
	playerID      sim.PlayerID
	fleetID       sim.FleetID
	cache         AuthoritativeCache
	local         *sim.Propagator
	pending       []speculation
	nextSeq       uint64

	notify chan struct{}
}

// NewSession creates a session in the Connecting state. send transmits an
// encoded frame to the server; it may be swapped on reconnect.
func NewSession(log *slog.Logger, send func([]byte) error) *Session {
	return &Session{
		log:     log,
		timeout: DefaultDivergenceTimeout,
		send:    send,
		state:   Connecting,
		notify:  make(chan struct{}, 1),
	}
}

// Notify returns a coalescing channel that receives one signal per applied
// server tick. A presentation layer re-renders on it without polling.
func (s *Session) Notify() <-chan struct{} { return s.notify }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// PlayerID returns the identity assigned by the server's welcome.
func (s *Session) PlayerID() sim.PlayerID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playerID
}

// FleetID returns the player's flagship fleet id.
func (s *Session) FleetID() sim.FleetID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fleetID
}

// Cache returns a copy of the authoritative cache.
func (s *Session) Cache() AuthoritativeCache {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := AuthoritativeCache{Tick: s.cache.Tick, Fleets: make(map[sim.FleetID]sim.Fleet, len(s.cache.Fleets))}
	for id, f := range s.cache.Fleets {
		out.Fleets[id] = *f.Clone()
	}
	return out
}

// Handle dispatches one decoded server message.
func (s *Session) Handle(msg any) {
	switch m := msg.(type) {
	case *protocol.Welcome:
		s.handleWelcome(m)
	case *protocol.Snapshot:
		s.handleSnapshot(m)
	case *protocol.Delta:
		s.handleDelta(m)
	case *protocol.Ack:
		s.handleAck(m)
	case *protocol.Rejected:
		s.handleRejected(m)
	default:
		s.log.Warn("unexpected server message", "type", fmt.Sprintf("%T", msg))
	}
}

func (s *Session) handleWelcome(m *protocol.Welcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.Version != protocol.Version {
		s.log.Error("protocol version mismatch", "server", m.Version, "client", protocol.Version)
		s.state = Disconnected
		return
	}
	s.playerID = m.PlayerID
	s.fleetID = m.FleetID
	s.dt = m.DT
	s.state = AwaitingInitialSnapshot
	s.log.Info("welcome received", "player", m.PlayerID, "fleet", m.FleetID, "tick_rate", m.TickRate)
}

func (s *Session) handleSnapshot(m *protocol.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(m.Bodies) > 0 {
		bodies := make([]orbital.Body, 0, len(m.Bodies))
		for _, b := range m.Bodies {
			bodies = append(bodies, orbital.Body{
				ID:     b.ID,
				Name:   b.Name,
				Parent: b.Parent,
				Mass:   b.Mass,
				Radius: b.Radius,
				Orbit:  b.Orbit,
			})
		}
		sys, err := orbital.NewSystem(s.dt, bodies)
		if err != nil {
			s.log.Error("snapshot carries invalid universe", "error", err)
			s.state = Disconnected
			return
		}
		s.sys = sys
	}
	if s.sys == nil {
		s.log.Error("snapshot before universe definition")
		return
	}
	if s.state != AwaitingInitialSnapshot && m.Tick < s.cache.Tick {
		return // stale keyframe
	}

	s.applyAuthoritativeLocked(m.Tick, m.Fleets)
	s.state = Synced
	s.divergedCause = ""
	s.signalLocked()
}

func (s *Session) handleDelta(m *protocol.Delta) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sys == nil || s.state == Connecting || s.state == AwaitingInitialSnapshot {
		return // deltas before the initial snapshot carry no usable baseline
	}
	if m.Tick < s.cache.Tick {
		s.log.Debug("discarding stale delta", "tick", m.Tick, "cache", s.cache.Tick)
		return
	}

	s.applyAuthoritativeLocked(m.Tick, m.Fleets)
	s.checkDivergenceLocked(m.Tick)
	s.signalLocked()
}

// applyAuthoritativeLocked overwrites the cache with server state, rebuilds
// the private propagator from it, and reapplies unacknowledged speculation.
func (s *Session) applyAuthoritativeLocked(tick orbital.Tick, fleets []protocol.FleetState) {
	s.cache.Tick = tick
	s.cache.Fleets = make(map[sim.FleetID]sim.Fleet, len(fleets))
	for _, fs := range fleets {
		s.cache.Fleets[fs.ID] = sim.Fleet{
			ID:        fs.ID,
			Owner:     fs.Owner,
			Tick:      fs.Tick,
			Pos:       fs.Pos,
			Vel:       fs.Vel,
			Maneuvers: append([]sim.Maneuver(nil), fs.Maneuvers...),
		}
	}

	s.local = sim.NewPropagator(s.sys, tick)
	for _, f := range s.cache.Fleets {
		s.local.SetFleetState(f)
	}
	for _, spec := range s.pending {
		if spec.cmd.Cancel {
			continue // cancellation takes effect only when acknowledged
		}
		if err := s.local.ScheduleManeuver(spec.cmd.FleetID, spec.cmd.Maneuver); err != nil {
			s.log.Debug("speculative maneuver no longer applicable", "seq", spec.seq, "error", err)
		}
	}
}

// checkDivergenceLocked flips the session to Diverged when a speculative
// command has gone unacknowledged past the timeout. Speculation is cleared;
// the next snapshot resynchronizes.
func (s *Session) checkDivergenceLocked(tick orbital.Tick) {
	for _, spec := range s.pending {
		if tick >= spec.issued+s.timeout {
			s.divergedCause = fmt.Sprintf("command %d unacknowledged for %d ticks", spec.seq, tick-spec.issued)
			s.log.Warn("session diverged", "cause", s.divergedCause)
			s.state = Diverged
			s.pending = nil
			s.rebuildLocalLocked()
			return
		}
	}
}

// rebuildLocalLocked resets the private propagator to the bare cache, with
// no speculation applied.
func (s *Session) rebuildLocalLocked() {
	s.local = sim.NewPropagator(s.sys, s.cache.Tick)
	for _, f := range s.cache.Fleets {
		s.local.SetFleetState(f)
	}
}

func (s *Session) handleAck(m *protocol.Ack) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropSpeculationLocked(m.Seq)
}

func (s *Session) handleRejected(m *protocol.Rejected) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log.Info("command rejected", "seq", m.Seq, "reason", m.Reason)
	if s.dropSpeculationLocked(m.Seq) {
		// The optimistic maneuver never happened; rebuild without it.
		s.rebuildLocalLocked()
		for _, spec := range s.pending {
			if !spec.cmd.Cancel {
				s.local.ScheduleManeuver(spec.cmd.FleetID, spec.cmd.Maneuver)
			}
		}
		s.signalLocked()
	}
}

func (s *Session) dropSpeculationLocked(seq uint64) bool {
	for i, spec := range s.pending {
		if spec.seq == seq {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return true
		}
	}
	return false
}

func (s *Session) signalLocked() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// DivergedCause reports why the session left Synced, if it did.
func (s *Session) DivergedCause() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.divergedCause
}

// PlanManeuver optimistically schedules a maneuver on the local replica and
// sends the command. The returned sequence number matches the eventual ack.
func (s *Session) PlanManeuver(fleet sim.FleetID, m sim.Maneuver) (uint64, error) {
	s.mu.Lock()
	if s.state != Synced {
		s.mu.Unlock()
		return 0, fmt.Errorf("%w: %s", ErrNotSynced, s.state)
	}
	s.nextSeq++
	seq := s.nextSeq
	cmd := protocol.Command{Seq: seq, FleetID: fleet, Maneuver: m}
	if err := s.local.ScheduleManeuver(fleet, m); err != nil {
		s.mu.Unlock()
		return 0, err
	}
	s.pending = append(s.pending, speculation{seq: seq, cmd: cmd, issued: s.cache.Tick})
	send := s.send
	s.mu.Unlock()

	frame, err := protocol.Encode(&cmd)
	if err != nil {
		return 0, err
	}
	return seq, send(frame)
}

// CancelManeuver asks the server to drop a queued maneuver by index. The
// local replica is not touched until the server acknowledges.
func (s *Session) CancelManeuver(fleet sim.FleetID, index int) (uint64, error) {
	s.mu.Lock()
	if s.state != Synced {
		s.mu.Unlock()
		return 0, fmt.Errorf("%w: %s", ErrNotSynced, s.state)
	}
	s.nextSeq++
	seq := s.nextSeq
	cmd := protocol.Command{Seq: seq, FleetID: fleet, Cancel: true, Index: index}
	s.pending = append(s.pending, speculation{seq: seq, cmd: cmd, issued: s.cache.Tick})
	send := s.send
	s.mu.Unlock()

	frame, err := protocol.Encode(&cmd)
	if err != nil {
		return 0, err
	}
	return seq, send(frame)
}

// AdvanceLocal optimistically advances the private replica to the given
// tick. Fully discardable: the next server message rebuilds from the cache.
func (s *Session) AdvanceLocal(tick orbital.Tick) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.local == nil {
		return ErrNoSystem
	}
	return s.local.AdvanceTo(tick)
}

// LocalFleet returns the optimistic state of a fleet.
func (s *Session) LocalFleet(id sim.FleetID) (sim.Fleet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.local == nil {
		return sim.Fleet{}, ErrNoSystem
	}
	return s.local.Fleet(id)
}

// Predict runs the trajectory predictor for a fleet on the local replica.
func (s *Session) Predict(id sim.FleetID, horizon orbital.Tick, stride int) (*sim.Prediction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.local == nil {
		return nil, ErrNoSystem
	}
	return s.local.Predict(id, horizon, stride)
}

// SelectIndex builds a pick index over the local replica's current tick,
// with the given fleets' predictions registered as candidates.
func (s *Session) SelectIndex(horizon orbital.Tick, stride int, fleets ...sim.FleetID) (*query.Index, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.local == nil {
		return nil, ErrNoSystem
	}
	ix := query.NewIndex(s.sys, s.local.Tick())
	for _, id := range fleets {
		pred, err := s.local.Predict(id, horizon, stride)
		if err != nil {
			return nil, err
		}
		ix.AddPrediction(id, pred.Samples(int(horizon)))
	}
	return ix, nil
}

// Search resolves a body by fuzzy name match against the local universe.
func (s *Session) Search(q string) (orbital.BodyID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sys == nil {
		return "", false
	}
	return query.NewIndex(s.sys, s.cache.Tick).Search(q)
}

// markDisconnected is called when the transport drops. The authoritative
// cache, the local replica and any speculation are discarded with the
// connection; the next snapshot rebuilds them from scratch.
func (s *Session) markDisconnected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Disconnected
	s.cache = AuthoritativeCache{}
	s.local = nil
	s.pending = nil
	s.signalLocked()
}

// markReconnecting is called when the transport starts a new dial; the next
// welcome and snapshot resynchronize the replica.
func (s *Session) markReconnecting(send func([]byte) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Connecting
	s.pending = nil
	s.send = send
}
