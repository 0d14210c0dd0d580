// Package main runs a headless client: it synchronizes with a server,
// reports state transitions, and can plan a single maneuver from flags.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"orrery/internal/client"
	"orrery/internal/config"
	"orrery/internal/orbital"
	"orrery/internal/sim"
)

func main() {
	configDir := flag.String("config", ".", "directory containing orrery.cfg.json")
	urlFlag := flag.String("url", "", "server websocket URL override")
	name := flag.String("name", "", "player name")
	search := flag.String("search", "", "resolve a body by fuzzy name and exit")
	planTick := flag.Uint64("plan-tick", 0, "tick to burn at (0 = no maneuver)")
	planX := flag.Float64("plan-dvx", 0, "burn delta-v x, km/day")
	planY := flag.Float64("plan-dvy", 0, "burn delta-v y, km/day")
	planZ := flag.Float64("plan-dvz", 0, "burn delta-v z, km/day")
	flag.Parse()

	if err := config.Load(*configDir); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	url := config.GetString("client.serverUrl")
	if *urlFlag != "" {
		url = *urlFlag
	}
	playerName := config.GetString("client.name")
	if *name != "" {
		playerName = *name
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := client.NewClient(url, playerName, log)
	if err := c.Connect(); err != nil {
		log.Error("connect failed", "url", url, "error", err)
		os.Exit(1)
	}
	defer c.Disconnect()

	if err := observe(ctx, c, *search, *planTick, *planX, *planY, *planZ); err != nil {
		log.Error("client exited", "error", err)
		os.Exit(1)
	}
}

func observe(ctx context.Context, c *client.Client, search string, planTick uint64, dvx, dvy, dvz float64) error {
	s := c.Session
	planned := false
	lastState := s.State()
	fmt.Printf("state: %s\n", lastState)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.Notify():
		case <-time.After(5 * time.Second):
			if s.State() == client.Disconnected {
				return fmt.Errorf("disconnected")
			}
			continue
		}

		if state := s.State(); state != lastState {
			lastState = state
			fmt.Printf("state: %s\n", state)
			if state == client.Diverged {
				fmt.Printf("cause: %s\n", s.DivergedCause())
			}
		}
		if s.State() != client.Synced {
			continue
		}

		if search != "" {
			id, ok := s.Search(search)
			if !ok {
				return fmt.Errorf("no body matches %q", search)
			}
			fmt.Printf("match: %s\n", id)
			return nil
		}

		cache := s.Cache()
		fleet, err := s.LocalFleet(s.FleetID())
		if err != nil {
			return err
		}
		fmt.Printf("tick %d fleet %s pos (%.1f, %.1f, %.1f) maneuvers %d\n",
			cache.Tick, fleet.ID, fleet.Pos.X, fleet.Pos.Y, fleet.Pos.Z, len(fleet.Maneuvers))

		if planTick > 0 && !planned {
			planned = true
			seq, err := s.PlanManeuver(s.FleetID(), sim.Maneuver{
				Tick:   orbital.Tick(planTick),
				DeltaV: orbital.Vec3{X: dvx, Y: dvy, Z: dvz},
				Label:  "manual burn",
			})
			if err != nil {
				return fmt.Errorf("plan maneuver: %w", err)
			}
			fmt.Printf("planned maneuver seq %d at tick %d\n", seq, planTick)
		}
	}
}
