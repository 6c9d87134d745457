package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/albionradar/sniffer/internal/config"
	"github.com/albionradar/sniffer/internal/db"
	"github.com/albionradar/sniffer/internal/profile"
	"github.com/albionradar/sniffer/internal/sniffer"
	"github.com/albionradar/sniffer/internal/telemetry"
	"github.com/albionradar/sniffer/internal/util"
)

// loadProfiles reads the profile file. A missing file is written out with
// the built-in default profile so it can be edited.
func loadProfiles(cfg *config.Config) (*profile.Manager, error) {
	path := cfg.Profiles.File
	logger := util.ComponentLogger("profiles")

	if path != "" && !util.FileExists(path) {
		def := profile.Default()
		f := &profile.File{Active: def.Name, Profiles: []profile.Profile{def}}
		if err := profile.SaveFile(path, f); err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("failed to write default profile file")
		} else {
			logger.Info().Str("path", path).Msg("profile file not found, wrote default")
		}
	}

	var (
		list   []profile.Profile
		active = cfg.ActiveProfile()
	)
	if path != "" && util.FileExists(path) {
		f, err := profile.LoadFile(path)
		if err != nil {
			return nil, err
		}
		list = f.Profiles
		if active == "" {
			active = f.Active
		}
	}

	m, err := profile.NewManager(list, active, logger)
	if errors.Is(err, profile.ErrProfileNotFound) {
		logger.Warn().Str("active", active).Msg("configured profile not found, using fallback")
		m, err = profile.NewManager(list, "", logger)
	}
	if err != nil {
		return nil, err
	}
	logger.Info().
		Int("profiles", len(m.List())).
		Str("active", m.Current().Name).
		Msg("profiles loaded")
	return m, nil
}

type publisherSet struct {
	publishers []telemetry.Publisher
	journal    *db.Journal
}

// openPublishers connects every enabled output. Outputs that fail to come
// up are logged and skipped. With none left, contracts go to the log.
func openPublishers(ctx context.Context, cfg *config.Config) publisherSet {
	var out publisherSet

	if cfg.MQTT.Enabled {
		mq, err := telemetry.NewMQTTPublisher(cfg.MQTT, util.ComponentLogger("mqtt"))
		if err == nil {
			connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err = mq.Connect(connectCtx)
			cancel()
		}
		if err != nil {
			log.Warn().Err(err).Msg("MQTT unavailable, contracts will not be sent to the broker")
		} else {
			out.publishers = append(out.publishers, mq)
		}
	}

	if cfg.Redis.Enabled {
		rp, err := telemetry.NewRedisPublisher(ctx, cfg.Redis, util.ComponentLogger("redis"))
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable, contracts will not be streamed")
		} else {
			out.publishers = append(out.publishers, rp)
		}
	}

	if cfg.Journal.Enabled {
		if j, err := openJournal(ctx, cfg.Journal); err != nil {
			log.Warn().Err(err).Msg("journal unavailable")
		} else {
			out.journal = j
			out.publishers = append(out.publishers, j)
		}
	}

	if cfg.Webhook.Enabled {
		out.publishers = append(out.publishers, telemetry.NewWebhookPublisher(cfg.Webhook, util.ComponentLogger("webhook")))
	}

	if len(out.publishers) == 0 {
		out.publishers = append(out.publishers, telemetry.NewLogPublisher(util.ComponentLogger("contracts")))
	}
	return out
}

func openJournal(ctx context.Context, cfg config.JournalConfig) (*db.Journal, error) {
	database, err := db.NewDatabase(cfg.Path, util.ComponentLogger("journal"))
	if err != nil {
		return nil, err
	}
	j, err := db.OpenJournal(ctx, database)
	if err != nil {
		database.Close()
		return nil, err
	}
	return j, nil
}

// watchFiles registers hot reload for the schema tables and the profile
// file.
func watchFiles(cfg *config.Config, w *config.FileWatcher, engine *sniffer.Engine, profiles *profile.Manager) {
	if cfg.Schema.Watch {
		reload := func(path string) error {
			if err := engine.ReloadSchema(); err != nil {
				return err
			}
			log.Info().Str("path", path).Uint64("version", engine.Registry().Version()).Msg("schema reloaded")
			return nil
		}
		for _, path := range []string{cfg.Schema.OffsetsFile, cfg.Schema.IndexesFile} {
			if err := w.Watch(path, reload); err != nil {
				log.Warn().Err(err).Str("path", path).Msg("cannot watch schema file")
			}
		}
	}

	if cfg.Profiles.Watch && cfg.Profiles.File != "" {
		err := w.Watch(cfg.Profiles.File, func(path string) error {
			if err := profiles.ReloadFrom(path); err != nil {
				return err
			}
			log.Info().Str("path", path).Str("active", profiles.Current().Name).Msg("profiles reloaded")
			return nil
		})
		if err != nil {
			log.Warn().Err(err).Msg("cannot watch profile file")
		}
	}
}

// dataDir is the directory whose volume the disk check watches: the journal
// directory when the journal is on, else the log directory.
func dataDir(cfg *config.Config) string {
	dir := cfg.Logging.Directory
	if cfg.Journal.Enabled && cfg.Journal.Path != "" {
		dir = filepath.Dir(cfg.Journal.Path)
	}
	if dir == "" || !util.FileExists(dir) {
		return "."
	}
	return dir
}

// startWithRetry retries startFn while the port is still held by a previous
// process.
func startWithRetry(ctx context.Context, name string, startFn func(context.Context) error, maxRetries int) error {
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = startFn(ctx)
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, os.ErrPermission) {
			return lastErr
		}
		if i < maxRetries {
			log.Warn().Err(lastErr).Str("component", name).Int("retry", i+1).Int("max", maxRetries).Msg("bind failed, retrying in 3s...")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(3 * time.Second):
			}
		}
	}
	return lastErr
}
