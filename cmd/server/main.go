// Package main starts the authoritative simulation server.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/time/rate"

	"orrery/internal/config"
	"orrery/internal/orbital"
	"orrery/internal/server"
	"orrery/internal/sim"
	"orrery/internal/universe"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

func main() {
	configDir := flag.String("config", ".", "directory containing orrery.cfg.json")
	listenAddr := flag.String("listen", "", "listen address override")
	flag.Parse()

	if err := config.Load(*configDir); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if config.GetString("logLevel") == "debug" {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, log, *listenAddr); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, log *slog.Logger, listenOverride string) error {
	bodies, err := loadUniverse(log)
	if err != nil {
		return err
	}
	sys, err := orbital.NewSystem(config.GetFloat64("universe.dt"), bodies)
	if err != nil {
		return err
	}

	metrics := server.NewMetricsCollector(prometheus.DefaultRegisterer)
	hub, err := server.NewHub(sim.NewPropagator(sys, 0), server.Config{
		TickRate:         config.GetFloat64("server.tickRate"),
		MinLeadTicks:     orbital.Tick(config.GetInt("server.minLeadTicks")),
		KeyframeInterval: orbital.Tick(config.GetInt("server.keyframeInterval")),
		MaxManeuvers:     config.GetInt("server.maxManeuvers"),
		CommandRate:      rate.Limit(config.GetFloat64("server.commandRate")),
		CommandBurst:     config.GetInt("server.commandBurst"),
		HomeBody:         orbital.BodyID(config.GetString("server.homeBody")),
		SpawnRadius:      config.GetFloat64("server.spawnRadius"),
	}, log, metrics)
	if err != nil {
		return err
	}

	go func() {
		addr := config.GetString("server.metricsAddr")
		log.Info("metrics listening", "addr", addr)
		if err := server.ServeMetrics(addr); err != nil {
			log.Warn("metrics listener stopped", "error", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWS)

	addr := config.GetString("server.listenAddr")
	if listenOverride != "" {
		addr = listenOverride
	}
	srv := &http.Server{Addr: addr, Handler: mux}
	if config.GetBool("server.tls.enabled") {
		srv.TLSConfig = server.SetupTLS(
			config.GetString("server.tls.domain"),
			config.GetString("server.tls.certCacheDir"),
			log,
		)
	}

	go hub.Run(ctx)
	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	log.Info("server listening", "addr", addr, "tls", srv.TLSConfig != nil)
	if srv.TLSConfig != nil {
		err = srv.ListenAndServeTLS("", "")
	} else {
		err = srv.ListenAndServe()
	}
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// loadUniverse picks the body definitions: the sqlite store if configured,
// then a JSON file, then the embedded solar system seed.
func loadUniverse(log *slog.Logger) ([]orbital.Body, error) {
	if db := config.GetString("universe.db"); db != "" {
		zlog := zerolog.New(os.Stderr).With().Timestamp().Logger()
		store, err := universe.Open(db, zlog)
		if err != nil {
			return nil, err
		}
		n, err := store.Count()
		if err != nil {
			return nil, err
		}
		if n == 0 {
			// First run against an empty store: persist the seed.
			seed := universe.Seed()
			if err := store.Save(seed); err != nil {
				return nil, err
			}
			log.Info("seeded universe store", "path", db, "bodies", len(seed))
			return seed, nil
		}
		log.Info("loaded universe store", "path", db, "bodies", n)
		return store.Load()
	}
	if file := config.GetString("universe.file"); file != "" {
		log.Info("loading universe file", "path", file)
		return universe.LoadFile(file)
	}
	return universe.Seed(), nil
}
