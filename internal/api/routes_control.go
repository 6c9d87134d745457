package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/albionradar/sniffer/internal/profile"
)

func (s *Server) handleProfiles(c *gin.Context) {
	if s.deps.Profiles == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "profiles not loaded"})
		return
	}
	active := ""
	if cur := s.deps.Profiles.Current(); cur != nil {
		active = cur.Name
	}
	c.JSON(http.StatusOK, gin.H{
		"active":   active,
		"profiles": s.deps.Profiles.List(),
	})
}

// handleActivateProfile switches the active profile and persists the choice
// when a config is attached.
func (s *Server) handleActivateProfile(c *gin.Context) {
	if s.deps.Profiles == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "profiles not loaded"})
		return
	}

	name := c.Param("name")
	if err := s.deps.Profiles.Switch(name); err != nil {
		if errors.Is(err, profile.ErrProfileNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "profile not found", "name": name})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if cfg := s.deps.Config; cfg != nil {
		cfg.SetActiveProfile(name)
		if err := cfg.Save(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to persist active profile")
		}
	}

	s.logger.Info().Str("profile", name).Msg("profile activated via API")
	c.JSON(http.StatusOK, gin.H{"active": name})
}

func (s *Server) handleSchemaReload(c *gin.Context) {
	if s.deps.Engine == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "engine not running"})
		return
	}
	if err := s.deps.Engine.ReloadSchema(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	reg := s.deps.Engine.Registry()
	c.JSON(http.StatusOK, gin.H{
		"version": reg.Version(),
		"schemas": reg.Len(),
	})
}
