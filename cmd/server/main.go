package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"slether-arena/internal/config"
	"slether-arena/internal/game"
	"slether-arena/internal/persistence/eventlog"
	"slether-arena/internal/persistence/scores"
	"slether-arena/internal/telemetry"
	"slether-arena/internal/transport/natsbridge"
	"slether-arena/internal/transport/ws"
)

func main() {
	var (
		configPath  = flag.String("config", "", "path to a YAML file overlaying the built-in defaults")
		addr        = flag.String("addr", "", "http listen address (overrides server.addr)")
		seed        = flag.Int64("seed", 0, "world seed, 0 seeds from the clock (overrides world.seed)")
		staticDir   = flag.String("static", "", "client files to serve at / (overrides server.static_dir)")
		eventsDir   = flag.String("events_dir", "", "directory for zstd event logs (empty to disable)")
		scoresDB    = flag.String("scores_db", "", "sqlite score archive path (empty to disable)")
		perfCSV     = flag.String("perf_csv", "", "append tick timing rows to this CSV file")
		natsURL     = flag.String("nats_url", "", "mirror outbound messages to this NATS server")
		natsSubject = flag.String("nats_subject", "arena", "subject prefix for the NATS mirror")
		natsBucket  = flag.String("nats_bucket", "", "JetStream KV bucket holding the latest leaderboard")
		debug       = flag.Bool("debug", false, "enable debug overlays and debug intents")
		dumpConfig  = flag.String("dump_config", "", "write the effective config to this path and exit")
	)
	flag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{
		Prefix:          "arena",
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.000",
	})

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("loading config", "err", err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *seed != 0 {
		cfg.World.Seed = *seed
	}
	if *staticDir != "" {
		cfg.Server.StaticDir = *staticDir
	}
	if *debug {
		cfg.Debug = true
	}
	if lvl, err := log.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(lvl)
	} else {
		logger.Warn("unknown log level, using info", "level", cfg.LogLevel)
	}

	if *dumpConfig != "" {
		if err := cfg.WriteYAML(*dumpConfig); err != nil {
			logger.Fatal("writing config", "err", err)
		}
		logger.Info("config written", "path", *dumpConfig)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	goRun := func(fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(ctx)
		}()
	}

	hub := ws.NewHub(logger.WithPrefix("hub"), cfg.Server.OutboundQueue)
	pubs := game.Publishers{hub}
	goRun(hub.Run)

	if *natsURL != "" {
		bridge, err := natsbridge.Connect(ctx, *natsURL, *natsSubject, *natsBucket, logger.WithPrefix("nats"))
		if err != nil {
			logger.Fatal("connecting to nats", "url", *natsURL, "err", err)
		}
		pubs = append(pubs, bridge)
		goRun(bridge.Run)
	}

	var sinks []game.DeathSink
	var closers []func() error
	if *eventsDir != "" {
		events, err := eventlog.Open(*eventsDir, logger.WithPrefix("events"))
		if err != nil {
			logger.Fatal("opening event log", "err", err)
		}
		sinks = append(sinks, events)
		closers = append(closers, events.Close)
	}
	var archive *scores.Archive
	if *scoresDB != "" {
		archive, err = scores.Open(*scoresDB, logger.WithPrefix("scores"))
		if err != nil {
			logger.Fatal("opening score archive", "path", *scoresDB, "err", err)
		}
		sinks = append(sinks, archive)
		closers = append(closers, archive.Close)
	}

	opts := game.Options{
		Logger:    logger.WithPrefix("world"),
		Publisher: pubs,
		Sinks:     sinks,
	}
	if *perfCSV != "" {
		perf, err := telemetry.NewCSVWriter(*perfCSV)
		if err != nil {
			logger.Fatal("opening perf csv", "err", err)
		}
		opts.Perf = perf
		closers = append(closers, perf.Close)
	}

	world := game.New(cfg, opts)
	worldDone := make(chan struct{})
	go func() {
		defer close(worldDone)
		if err := world.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("world stopped", "err", err)
		}
		stop()
	}()

	mux := http.NewServeMux()
	mux.HandleFunc(cfg.Server.WSPath, ws.NewServer(world, hub, cfg.Server, logger.WithPrefix("ws")).Handler())
	if archive != nil {
		mux.HandleFunc("/scores", archive.Handler())
	}
	if cfg.Server.StaticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(cfg.Server.StaticDir)))
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("listening",
		"addr", cfg.Server.Addr,
		"map", cfg.World.MapSize,
		"bots", cfg.Bot.Count,
		"tick_hz", cfg.World.TickRateHz,
		"debug", cfg.Debug)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server", "err", err)
		stop()
	}

	<-worldDone
	wg.Wait()
	for _, c := range closers {
		if err := c(); err != nil {
			logger.Warn("shutdown", "err", err)
		}
	}
	logger.Info("stopped", "tick", world.Tick())
}
