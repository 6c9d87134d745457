package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/albionradar/sniffer/internal/metrics"
	"github.com/albionradar/sniffer/internal/pipeline"
	"github.com/albionradar/sniffer/internal/sniffer"
	"github.com/albionradar/sniffer/internal/util"
	"github.com/albionradar/sniffer/internal/world"
)

// Pruner deletes stored rows older than a retention window.
type Pruner interface {
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}

// LogMetrics logs engine, pipeline and process counters. Either component
// may be nil.
func LogMetrics(logger zerolog.Logger, engine *sniffer.Engine, p *pipeline.Pipeline) TaskFunc {
	return func(context.Context) {
		ev := logger.Info()
		if engine != nil {
			st := engine.Stats()
			ev = ev.Uint64("received", st.Received).
				Uint64("decoded", st.Decoded).
				Uint64("unknown", st.Unknown).
				Uint64("malformed", st.Malformed).
				Bool("has_key", st.HasKey)
		}
		if p != nil {
			snap := p.Metrics().Snapshot()
			ev = ev.Uint64("processed", snap.Processed).
				Uint64("filtered", snap.Filtered).
				Uint64("dropped", snap.Dropped).
				Uint64("errors", snap.Errors).
				Float64("drop_rate", snap.DropRate).
				Float64("error_rate", snap.ErrorRate).
				Dur("avg_latency", snap.AverageLatency).
				Float64("buffer_usage", p.BufferUsage())
		}
		if usage, err := util.GetProcessUsage(); err == nil {
			ev = ev.Uint64("rss_mb", usage.RSSMB).Int("goroutines", usage.Goroutines)
		}
		ev.Msg("sniffer metrics")
	}
}

// EvictWorld drops entities not seen within ttl.
func EvictWorld(logger zerolog.Logger, w *world.World, ttl time.Duration) TaskFunc {
	return func(context.Context) {
		if n := w.Evict(ttl); n > 0 {
			logger.Debug().Int("evicted", n).Msg("world eviction completed")
		}
	}
}

// PruneJournal deletes journal rows older than retention.
func PruneJournal(logger zerolog.Logger, j Pruner, retention time.Duration) TaskFunc {
	return func(ctx context.Context) {
		n, err := j.Prune(ctx, retention)
		if err != nil {
			logger.Warn().Err(err).Msg("journal prune failed")
			return
		}
		logger.Info().
			Int64("deleted_rows", n).
			Dur("retention", retention).
			Msg("journal pruned")
	}
}

// DiskUsageFunc reports usage of the volume holding path.
type DiskUsageFunc func(path string) (*util.DiskUsage, error)

// diskLevel maps a used percentage to an alert level. Below 80% there is
// nothing to report.
func diskLevel(usedPercent float64) string {
	switch {
	case usedPercent >= 100:
		return "critical"
	case usedPercent >= 95:
		return "error"
	case usedPercent >= 90:
		return "warning"
	case usedPercent >= 80:
		return "info"
	}
	return ""
}

// CheckDisk watches the volume the journal and logs are written to.
func CheckDisk(logger zerolog.Logger, path string, usage DiskUsageFunc) TaskFunc {
	return func(context.Context) {
		u, err := usage(path)
		if err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("disk utilization check failed")
			return
		}
		metrics.DiskUsedPercent.Set(u.UsedPercent)

		level := diskLevel(u.UsedPercent)
		if level == "" {
			logger.Debug().Float64("used_percent", u.UsedPercent).Uint64("free_gb", u.Free).Msg("disk utilization")
			return
		}
		logger.Warn().
			Str("level", level).
			Str("path", path).
			Float64("used_percent", u.UsedPercent).
			Uint64("free_gb", u.Free).
			Uint64("total_gb", u.Total).
			Msg("disk space running low")
	}
}
