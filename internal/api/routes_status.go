package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/albionradar/sniffer/internal/telemetry"
	"github.com/albionradar/sniffer/internal/util"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "albion-sniffer",
		"version": telemetry.AppVersion,
	})
}

func (s *Server) handlePipeline(c *gin.Context) {
	p := s.deps.Pipeline
	if p == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "pipeline not running"})
		return
	}
	cfg := p.Config()
	c.JSON(http.StatusOK, gin.H{
		"state":        p.State(),
		"capacity":     p.Capacity(),
		"queue_length": p.QueueLength(),
		"buffer_usage": p.BufferUsage(),
		"workers":      cfg.Workers,
		"backpressure": cfg.Backpressure,
		"metrics":      p.Metrics().Snapshot(),
	})
}

// handleEngine reports decoder counters, the process footprint and host
// memory.
func (s *Server) handleEngine(c *gin.Context) {
	if s.deps.Engine == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "engine not running"})
		return
	}
	resp := gin.H{"engine": s.deps.Engine.Stats()}
	if usage, err := util.GetProcessUsage(); err == nil {
		resp["process"] = usage
	}
	if mem, err := util.GetMemoryUsage(); err == nil {
		resp["host_memory"] = mem
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleWorld(c *gin.Context) {
	if s.deps.World == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "world state not available"})
		return
	}
	c.JSON(http.StatusOK, s.deps.World.Snapshot())
}

// handleJournal returns the newest journal entries, optionally for one
// topic.
func (s *Server) handleJournal(c *gin.Context) {
	if s.deps.Journal == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "journal disabled"})
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 1000 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 1000"})
			return
		}
		limit = n
	}

	entries, err := s.deps.Journal.Recent(c.Request.Context(), c.Query("topic"), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("journal query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "journal query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"entries": entries,
		"total":   len(entries),
	})
}
