// Albion Sniffer - passive Albion Online event decoder.
//
// The sniffer receives framed game packets from a capture process, decodes
// them into typed events, keeps a picture of the surrounding world and
// publishes versioned event contracts over MQTT, Redis streams and a local
// sqlite journal.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/albionradar/sniffer/internal/api"
	"github.com/albionradar/sniffer/internal/cli"
	"github.com/albionradar/sniffer/internal/config"
	"github.com/albionradar/sniffer/internal/contracts"
	"github.com/albionradar/sniffer/internal/enrich"
	"github.com/albionradar/sniffer/internal/ingest"
	"github.com/albionradar/sniffer/internal/pipeline"
	"github.com/albionradar/sniffer/internal/profile"
	"github.com/albionradar/sniffer/internal/scheduler"
	"github.com/albionradar/sniffer/internal/schema"
	"github.com/albionradar/sniffer/internal/sniffer"
	"github.com/albionradar/sniffer/internal/telemetry"
	"github.com/albionradar/sniffer/internal/util"
	"github.com/albionradar/sniffer/internal/world"
)

const (
	AppName    = "Albion Sniffer"
	AppVersion = "0.4.0"
	Banner     = `
    _    _ _     _               ____        _  __  __
   / \  | | |__ (_) ___  _ __   / ___| _ __ (_)/ _|/ _| ___ _ __
  / _ \ | | '_ \| |/ _ \| '_ \  \___ \| '_ \| | |_| |_ / _ \ '__|
 / ___ \| | |_) | | (_) | | | |  ___) | | | | |  _|  _|  __/ |
/_/   \_\_|_.__/|_|\___/|_| |_| |____/|_| |_|_|_| |_|  \___|_|   v%s
`
)

func main() {
	fmt.Printf(Banner, AppVersion)
	fmt.Println()

	telemetry.AppVersion = AppVersion

	// Console only until the config says where log files go.
	log.Logger = util.ConsoleLogger("info")

	log.Info().
		Str("version", AppVersion).
		Str("platform", string(util.GetPlatform())).
		Str("arch", runtime.GOARCH).
		Int("cpus", runtime.NumCPU()).
		Msg("starting " + AppName)

	configDir := os.Getenv(config.EnvPrefix + "CONFIG_DIR")
	if configDir == "" {
		configDir = config.DefaultConfigDir
	}
	cfg, err := config.Load(configDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if err := config.ApplyEnv(cfg); err != nil {
		log.Fatal().Err(err).Msg("failed to apply environment overrides")
	}

	if logFile, err := util.InitLogger(cfg.Logging); err != nil {
		log.Warn().Err(err).Msg("failed to initialize file logging, using console only")
	} else {
		defer logFile.Close()
	}

	validation := config.Validate(cfg)
	for _, w := range validation.Warnings {
		log.Warn().Str("field", w.Field).Msg(w.Message)
	}
	if !validation.IsValid() {
		for _, e := range validation.Errors {
			log.Error().Str("field", e.Field).Msg(e.Message)
		}
		log.Fatal().Msg("configuration validation failed, please fix the errors above")
	}

	sysInfo := util.GetSystemInfo()
	log.Info().
		Str("hostname", sysInfo.Hostname).
		Str("os", sysInfo.OS).
		Str("cpu", sysInfo.CPUModel).
		Int("cores", sysInfo.CPUCores).
		Uint64("memory_mb", sysInfo.TotalMemory).
		Msg("system information")

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	tracer, err := telemetry.NewTracerProvider(ctx, cfg.Tracing)
	if err != nil {
		log.Warn().Err(err).Msg("failed to initialize tracing, continuing without it")
		tracer = nil
	}

	// Schema and profiles are required; nothing can be decoded or filtered
	// correctly without them.
	registry := schema.NewRegistry(util.ComponentLogger("schema"))
	if err := registry.Load(cfg.Schema.OffsetsFile, cfg.Schema.IndexesFile); err != nil {
		log.Fatal().Err(err).Msg("failed to load schema tables")
	}

	profiles, err := loadProfiles(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load profiles")
	}

	engine := sniffer.NewEngine(registry, util.ComponentLogger("engine"))

	state := world.New(util.ComponentLogger("world"))
	state.Register(engine.Dispatcher())

	chain := enrich.NewChain(util.ComponentLogger("enrich"),
		enrich.NewProfileFilter().WithLocal(state),
		enrich.NewTierColor(profile.NewPaletteSet()),
		enrich.NewProximityAlert(state, util.ComponentLogger("proximity")),
	)

	outputs := openPublishers(ctx, cfg)
	fanout := telemetry.NewFanout(util.ComponentLogger("publish"), outputs.publishers...)
	log.Info().Strs("publishers", fanout.Names()).Msg("contract publishers ready")

	pipe := pipeline.New(pipeline.Config{
		BufferSize:     cfg.Pipeline.BufferSize,
		Workers:        cfg.Pipeline.Workers,
		Backpressure:   cfg.Pipeline.Backpressure,
		PublishTimeout: cfg.Pipeline.PublishTimeout(),
	}, chain, contracts.NewDefaultRegistry(util.ComponentLogger("contracts")), fanout, profiles,
		util.ComponentLogger("pipeline"))

	// The pipeline outlives the root context so Stop can account for what
	// is still queued.
	if err := pipe.Start(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("failed to start pipeline")
	}
	engine.AttachPipeline(pipe)

	watcher := config.NewFileWatcher(config.DefaultDebounce, util.ComponentLogger("watcher"))
	watchFiles(cfg, watcher, engine, profiles)
	if err := watcher.Start(ctx); err != nil {
		log.Warn().Err(err).Msg("file watcher unavailable, hot reload disabled")
	}

	sched := scheduler.NewScheduler(util.ComponentLogger("scheduler"))
	sched.Add("metrics-log", cfg.Timers.MetricsLog(), scheduler.LogMetrics(util.ComponentLogger("metrics"), engine, pipe))
	sched.Add("world-eviction", cfg.Timers.WorldEviction(),
		scheduler.EvictWorld(util.ComponentLogger("world"), state, cfg.Timers.EntityTTLDuration()))
	sched.Add("disk-check", cfg.Timers.DiskCheck(),
		scheduler.CheckDisk(util.ComponentLogger("disk"), dataDir(cfg), util.GetDiskUsage))
	if outputs.journal != nil {
		sched.Add("journal-prune", cfg.Timers.JournalPrune(),
			scheduler.PruneJournal(util.ComponentLogger("journal"), outputs.journal, cfg.Journal.Retention()))
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Ingest.Enabled {
		listener := ingest.NewListener(cfg.Ingest, engine, util.ComponentLogger("ingest"))
		g.Go(func() error {
			if err := startWithRetry(gctx, "ingest", listener.Start, 5); err != nil {
				return fmt.Errorf("ingest listener: %w", err)
			}
			return nil
		})
	} else {
		log.Warn().Msg("ingest listener disabled, no packets will be received")
	}

	if cfg.API.Enabled {
		if cfg.API.TLSEnabled {
			created, err := util.EnsureSelfSignedCert(cfg.API.TLSCertFile, cfg.API.TLSKeyFile, "localhost", "127.0.0.1")
			if err != nil {
				log.Fatal().Err(err).Msg("failed to prepare API certificate")
			}
			if created {
				log.Info().Str("cert", cfg.API.TLSCertFile).Msg("generated self-signed API certificate")
			}
		}
		apiServer := api.NewServer(cfg.API, api.Deps{
			Engine:   engine,
			Pipeline: pipe,
			World:    state,
			Profiles: profiles,
			Journal:  outputs.journal,
			Config:   cfg,
		}, util.ComponentLogger("api"))
		g.Go(func() error {
			// Non-fatal: the sniffer keeps publishing without its status API.
			if err := startWithRetry(gctx, "api", apiServer.Start, 5); err != nil && !errors.Is(err, context.Canceled) {
				log.Warn().Err(err).Msg("status API failed after retries")
			}
			return nil
		})
	}

	g.Go(func() error {
		sched.Start(gctx)
		return nil
	})

	console := cli.NewCLI(cli.Deps{
		Engine:   engine,
		Pipeline: pipe,
		World:    state,
		Profiles: profiles,
		Config:   cfg,
	}, os.Stdin, os.Stdout, cancel, util.ComponentLogger("cli"))
	g.Go(func() error {
		console.Start(gctx)
		return nil
	})

	log.Info().Msg(AppName + " running")

	<-gctx.Done()
	if sigCtx.Err() != nil {
		log.Info().Msg("received shutdown signal")
	}
	log.Info().Msg("initiating graceful shutdown...")
	cancel()

	runErr := g.Wait()
	if runErr != nil {
		log.Error().Err(runErr).Msg("component failed")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	engine.DetachPipeline()
	engine.Stop()
	if err := pipe.Stop(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("pipeline stop incomplete")
	}
	if err := fanout.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close publishers")
	}
	watcher.Wait()
	if tracer != nil {
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("failed to flush traces")
		}
	}

	log.Info().Msg(AppName + " stopped")
	if runErr != nil {
		os.Exit(1)
	}
}
