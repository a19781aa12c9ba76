// Package web serves the live transcript dashboard: REST snapshots of the
// reconciled conversation plus a websocket feed of updates.
package web

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/davronbek/voiceboard/internal/log"
	"github.com/davronbek/voiceboard/pkg/hub"
	"github.com/davronbek/voiceboard/pkg/transcript"
)

// TranscriptSource supplies conversation snapshots for the dashboard.
type TranscriptSource interface {
	Visible() []transcript.Turn
	Metrics() []transcript.MetricsRecord
}

// Status is the dashboard's connection/room summary.
type Status struct {
	Room          string `json:"room"`
	Identity      string `json:"identity"`
	Connection    string `json:"connection"`
	MediaActive   bool   `json:"media_active"`
	TurnCount     int    `json:"turn_count"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// Server is the dashboard server.
type Server struct {
	app  *fiber.App
	addr string

	source TranscriptSource

	status   Status
	statusMu sync.RWMutex

	feedHub *hub.Hub

	startedAt time.Time
}

// NewServer creates a dashboard server reading snapshots from source.
func NewServer(addr string, source TranscriptSource) *Server {
	s := &Server{
		addr:      addr,
		source:    source,
		feedHub:   hub.New("feed"),
		startedAt: time.Now(),
	}

	app := fiber.New(fiber.Config{
		AppName:               "voiceboard",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	// Static files
	app.Static("/", "./web")

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/transcript", s.handleTranscript)
	api.Get("/latency", s.handleLatency)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/feed", websocket.New(s.handleFeedWS))

	s.app = app
	return s
}

// Start starts the server and blocks.
func (s *Server) Start() error {
	log.Info("dashboard listening", "addr", s.addr)
	go s.feedHub.Run()
	return s.app.Listen(s.addr)
}

// StartAsync starts the server in a goroutine.
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			log.Error("dashboard server stopped", "error", err)
		}
	}()
}

// UpdateStatus mutates the status summary and pushes it to feed clients.
func (s *Server) UpdateStatus(update func(*Status)) {
	s.statusMu.Lock()
	update(&s.status)
	status := s.currentStatusLocked()
	s.statusMu.Unlock()

	if u, err := hub.NewUpdate(hub.KindStatus, status); err == nil {
		s.feedHub.Broadcast(u)
	}
}

// Notify pushes fresh transcript and latency snapshots to feed clients.
// Wire it to the reconciler's change callback.
func (s *Server) Notify() {
	if u, err := hub.NewUpdate(hub.KindTranscript, s.source.Visible()); err == nil {
		s.feedHub.Broadcast(u)
	}
	if u, err := hub.NewUpdate(hub.KindLatency, s.source.Metrics()); err == nil {
		s.feedHub.Broadcast(u)
	}
}

// currentStatusLocked fills the derived fields. Callers hold statusMu.
func (s *Server) currentStatusLocked() Status {
	status := s.status
	status.TurnCount = len(s.source.Visible())
	status.UptimeSeconds = int64(time.Since(s.startedAt).Seconds())
	return status
}

// Shutdown gracefully stops the server and the feed hub.
func (s *Server) Shutdown() error {
	s.feedHub.Stop()
	return s.app.Shutdown()
}
