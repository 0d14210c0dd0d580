// Package server runs the authoritative simulation: a fixed-rate tick loop
// over one propagator, a subscriber set, and a pending command queue drained
// once per tick. Network goroutines only enqueue commands and write frames;
// the tick loop is the single writer of simulation state.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"orrery/internal/orbital"
	"orrery/internal/protocol"
	"orrery/internal/sim"
)

// Config carries the hub's tunables. Zero values are replaced by defaults.
type Config struct {
	TickRate         float64      // simulation ticks per second
	MinLeadTicks     orbital.Tick // maneuvers must land beyond tick+lead
	KeyframeInterval orbital.Tick // full snapshot every N ticks
	MaxManeuvers     int          // per-fleet queued maneuver cap
	CommandRate      rate.Limit   // per-client command tokens per second
	CommandBurst     int
	HomeBody         orbital.BodyID // new fleets spawn in orbit around this body
	SpawnRadius      float64        // km from the home body's center
}

func (c Config) withDefaults() Config {
	if c.TickRate <= 0 {
		c.TickRate = 20
	}
	if c.MinLeadTicks == 0 {
		c.MinLeadTicks = 5
	}
	if c.KeyframeInterval == 0 {
		c.KeyframeInterval = 32
	}
	if c.MaxManeuvers == 0 {
		c.MaxManeuvers = 32
	}
	if c.CommandRate == 0 {
		c.CommandRate = 10
	}
	if c.CommandBurst == 0 {
		c.CommandBurst = 20
	}
	return c
}

type pendingCommand struct {
	player sim.PlayerID
	sub    *subscriber
	cmd    protocol.Command
}

type Hub struct {
	cfg     Config
	log     *slog.Logger
	metrics *MetricsCollector

	mu          sync.Mutex
	prop        *sim.Propagator
	subscribers map[sim.PlayerID]*subscriber
	nextPlayer  uint64

	commandsMu sync.Mutex // protects pending between network handlers and the tick loop
	pending    []pendingCommand
}

func NewHub(prop *sim.Propagator, cfg Config, log *slog.Logger, metrics *MetricsCollector) (*Hub, error) {
	cfg = cfg.withDefaults()
	if cfg.HomeBody == "" {
		return nil, fmt.Errorf("hub config: home body is required")
	}
	if _, err := prop.System().Body(cfg.HomeBody); err != nil {
		return nil, fmt.Errorf("hub config: %w", err)
	}
	if cfg.SpawnRadius <= 0 {
		home, _ := prop.System().Body(cfg.HomeBody)
		cfg.SpawnRadius = home.Radius * 3
	}
	return &Hub{
		cfg:         cfg,
		log:         log,
		metrics:     metrics,
		prop:        prop,
		subscribers: make(map[sim.PlayerID]*subscriber),
	}, nil
}

// Run drives the tick loop until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	interval := time.Duration(float64(time.Second) / h.cfg.TickRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	h.log.Info("tick loop started", "interval", interval, "dt", h.prop.System().DT())
	for {
		select {
		case <-ctx.Done():
			h.log.Info("tick loop stopped", "tick", h.Tick())
			return
		case <-ticker.C:
			start := time.Now()
			h.step()
			if h.metrics != nil {
				h.metrics.RecordTick(time.Since(start))
			}
		}
	}
}

// Tick returns the current authoritative tick.
func (h *Hub) Tick() orbital.Tick {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.prop.Tick()
}

// Join registers a connection, spawns its fleet in a circular orbit around
// the home body, and sends the welcome and initial snapshot. It returns the
// subscriber used by the read loop to enqueue commands.
func (h *Hub) Join(c conn, name string) (*subscriber, error) {
	h.mu.Lock()
	h.nextPlayer++
	player := sim.PlayerID(fmt.Sprintf("player-%d", h.nextPlayer))
	fleetID := sim.FleetID(string(player) + "-flagship")

	tick := h.prop.Tick()
	home, err := h.prop.BodyState(h.cfg.HomeBody, tick)
	if err != nil {
		h.mu.Unlock()
		return nil, err
	}
	body, _ := h.prop.System().Body(h.cfg.HomeBody)
	state := orbital.CircularOrbit(h.cfg.SpawnRadius, body.Mass, home)

	fleet := &sim.Fleet{ID: fleetID, Owner: player, Tick: tick, Pos: state.Pos, Vel: state.Vel}
	if err := h.prop.AddFleet(fleet); err != nil {
		h.mu.Unlock()
		return nil, err
	}

	sub := newSubscriber(player, fleetID, c, h.cfg.CommandRate, h.cfg.CommandBurst)
	h.subscribers[player] = sub

	welcome, _ := protocol.Encode(&protocol.Welcome{
		Version:  protocol.Version,
		TickRate: h.cfg.TickRate,
		DT:       h.prop.System().DT(),
		PlayerID: player,
		FleetID:  fleetID,
	})
	snapshot, _ := protocol.Encode(h.snapshotLocked(true))
	h.mu.Unlock()

	if err := sub.WriteMessage(welcome); err != nil {
		h.Leave(player)
		return nil, err
	}
	if err := sub.WriteMessage(snapshot); err != nil {
		h.Leave(player)
		return nil, err
	}
	if h.metrics != nil {
		h.metrics.ClientConnected()
	}
	h.log.Info("player joined", "player", player, "name", name, "fleet", fleetID, "tick", tick)
	return sub, nil
}

// Leave removes a player's subscriber and fleet. Pending commands from the
// player are dropped before they take effect.
func (h *Hub) Leave(player sim.PlayerID) {
	h.mu.Lock()
	sub, ok := h.subscribers[player]
	if ok {
		delete(h.subscribers, player)
		h.prop.RemoveFleet(sub.fleet)
	}
	h.mu.Unlock()
	if !ok {
		return
	}

	h.commandsMu.Lock()
	kept := h.pending[:0]
	for _, pc := range h.pending {
		if pc.player != player {
			kept = append(kept, pc)
		}
	}
	h.pending = kept
	h.commandsMu.Unlock()

	sub.conn.Close()
	if h.metrics != nil {
		h.metrics.ClientDisconnected()
	}
	h.log.Info("player left", "player", player)
}

// Enqueue stages a command for the next tick. Called from read loops.
func (h *Hub) Enqueue(sub *subscriber, cmd protocol.Command) {
	if !sub.limiter.Allow() {
		h.reject(sub, cmd.Seq, h.Tick(), protocol.RejectQueueLimit)
		return
	}
	h.commandsMu.Lock()
	h.pending = append(h.pending, pendingCommand{player: sub.player, sub: sub, cmd: cmd})
	h.commandsMu.Unlock()
}

// step runs one tick: drain and apply commands, advance the simulation,
// broadcast the delta or a keyframe snapshot.
func (h *Hub) step() {
	h.commandsMu.Lock()
	commands := h.pending
	h.pending = nil
	h.commandsMu.Unlock()

	h.mu.Lock()
	for _, pc := range commands {
		h.applyCommandLocked(pc)
	}

	next := h.prop.Tick() + 1
	if err := h.prop.AdvanceTo(next); err != nil {
		// Cannot happen for tick+1; log and keep the loop alive.
		h.mu.Unlock()
		h.log.Error("advance failed", "tick", next, "error", err)
		return
	}

	var frame []byte
	kind := "delta"
	if next%h.cfg.KeyframeInterval == 0 {
		frame, _ = protocol.Encode(h.snapshotLocked(false))
		kind = "keyframe"
	} else {
		frame, _ = protocol.Encode(h.deltaLocked())
	}
	subs := make([]*subscriber, 0, len(h.subscribers))
	for _, sub := range h.subscribers {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		if err := sub.WriteMessage(frame); err != nil {
			h.log.Warn("broadcast failed, dropping subscriber", "player", sub.player, "error", err)
			h.Leave(sub.player)
		}
	}
	if h.metrics != nil {
		h.metrics.TrackBroadcast(kind, len(frame)*len(subs))
	}
}

// applyCommandLocked validates one command against the authoritative state
// and replies with an ack or an explicit rejection. Per-command failures
// never abort the tick.
func (h *Hub) applyCommandLocked(pc pendingCommand) {
	tick := h.prop.Tick()
	cmd := pc.cmd

	fleet, err := h.prop.Fleet(cmd.FleetID)
	if err != nil {
		h.reject(pc.sub, cmd.Seq, tick, protocol.RejectUnknownFleet)
		return
	}
	if fleet.Owner != pc.player {
		h.reject(pc.sub, cmd.Seq, tick, protocol.RejectNotOwner)
		return
	}

	if cmd.Cancel {
		if err := h.cancelManeuverLocked(fleet, cmd.Index); err != nil {
			h.reject(pc.sub, cmd.Seq, tick, protocol.RejectMalformed)
			return
		}
		h.ack(pc.sub, cmd.Seq)
		return
	}

	if cmd.Maneuver.Tick <= tick+h.cfg.MinLeadTicks {
		h.reject(pc.sub, cmd.Seq, tick, protocol.RejectLeadTimeTooShort)
		return
	}
	if len(fleet.Maneuvers) >= h.cfg.MaxManeuvers {
		h.reject(pc.sub, cmd.Seq, tick, protocol.RejectQueueLimit)
		return
	}
	if err := h.prop.ScheduleManeuver(cmd.FleetID, cmd.Maneuver); err != nil {
		h.reject(pc.sub, cmd.Seq, tick, protocol.RejectLeadTimeTooShort)
		return
	}
	h.ack(pc.sub, cmd.Seq)
}

func (h *Hub) cancelManeuverLocked(fleet sim.Fleet, index int) error {
	if err := fleet.CancelManeuver(index); err != nil {
		return err
	}
	h.prop.SetFleetState(fleet)
	return nil
}

func (h *Hub) ack(sub *subscriber, seq uint64) {
	if h.metrics != nil {
		h.metrics.RecordCommand("ack")
	}
	frame, _ := protocol.Encode(&protocol.Ack{Seq: seq, Tick: h.prop.Tick()})
	if err := sub.WriteMessage(frame); err != nil {
		h.log.Warn("ack write failed", "player", sub.player, "error", err)
	}
}

// reject refuses a command with an explicit reply. Every rejection counts
// toward the commands metric, whichever path produced it. Callers holding
// h.mu pass h.prop.Tick() directly; others use h.Tick().
func (h *Hub) reject(sub *subscriber, seq uint64, tick orbital.Tick, reason string) {
	if h.metrics != nil {
		h.metrics.RecordCommand(reason)
	}
	frame, _ := protocol.Encode(&protocol.Rejected{Seq: seq, Tick: tick, Reason: reason})
	if err := sub.WriteMessage(frame); err != nil {
		h.log.Warn("reject write failed", "player", sub.player, "error", err)
	}
}

func (h *Hub) snapshotLocked(withBodies bool) *protocol.Snapshot {
	snap := &protocol.Snapshot{Tick: h.prop.Tick(), Fleets: h.fleetStatesLocked()}
	if withBodies {
		for _, b := range h.prop.System().Bodies() {
			snap.Bodies = append(snap.Bodies, protocol.BodyDef{
				ID:     b.ID,
				Name:   b.Name,
				Parent: b.Parent,
				Mass:   b.Mass,
				Radius: b.Radius,
				Orbit:  b.Orbit,
			})
		}
	}
	return snap
}

func (h *Hub) deltaLocked() *protocol.Delta {
	return &protocol.Delta{Tick: h.prop.Tick(), Fleets: h.fleetStatesLocked()}
}

func (h *Hub) fleetStatesLocked() []protocol.FleetState {
	fleets := h.prop.Fleets()
	out := make([]protocol.FleetState, 0, len(fleets))
	for _, f := range fleets {
		out = append(out, protocol.FleetState{
			ID:        f.ID,
			Owner:     f.Owner,
			Tick:      f.Tick,
			Pos:       f.Pos,
			Vel:       f.Vel,
			Maneuvers: f.Maneuvers,
		})
	}
	return out
}
