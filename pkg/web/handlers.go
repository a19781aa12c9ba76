package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/davronbek/voiceboard/pkg/hub"
)

// handleStatus returns the connection/room summary.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	s.statusMu.RLock()
	status := s.currentStatusLocked()
	s.statusMu.RUnlock()
	return c.JSON(status)
}

// handleTranscript returns the visible conversation transcript.
func (s *Server) handleTranscript(c *fiber.Ctx) error {
	return c.JSON(s.source.Visible())
}

// handleLatency returns the per-conversation latency table.
func (s *Server) handleLatency(c *fiber.Ctx) error {
	return c.JSON(s.source.Metrics())
}

// handleFeedWS handles websocket connections for the live update feed.
func (s *Server) handleFeedWS(c *websocket.Conn) {
	client := hub.NewClient(s.feedHub, c)
	client.Run()
}
