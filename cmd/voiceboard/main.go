// voiceboard - live transcript console for a real-time voice-agent room.
// It joins the room's side-channel, reconciles the event stream into an
// ordered transcript with per-stage latency, and serves a local dashboard.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pion/webrtc/v3"

	"github.com/davronbek/voiceboard/internal/config"
	"github.com/davronbek/voiceboard/internal/log"
	"github.com/davronbek/voiceboard/pkg/room"
	"github.com/davronbek/voiceboard/pkg/session"
	"github.com/davronbek/voiceboard/pkg/transcript"
	"github.com/davronbek/voiceboard/pkg/web"
)

func main() {
	cfg := parseFlags()
	log.Init(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		log.Error("voiceboard failed", "error", err)
		os.Exit(1)
	}
}

// parseFlags parses command line flags, then applies environment overrides.
func parseFlags() config.Config {
	cfg := config.Default()

	server := flag.String("server", "", "token endpoint base URL")
	roomName := flag.String("room", cfg.Room, "room name to join")
	identity := flag.String("identity", cfg.Identity, "participant identity")
	listen := flag.String("listen", cfg.ListenAddr, "dashboard listen address")
	logLevel := flag.String("log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	noMedia := flag.Bool("no-media", false, "side-channel only, no WebRTC media peer")
	flag.Parse()

	cfg.ServerURL = *server
	cfg.Room = *roomName
	cfg.Identity = *identity
	cfg.ListenAddr = *listen
	cfg.LogLevel = *logLevel
	cfg.NoMedia = *noMedia

	cfg.LoadEnv()
	return cfg
}

func run(cfg config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Room credentials.
	var opts []session.Option
	switch {
	case cfg.UseOAuth():
		opts = append(opts, session.WithClientCredentials(cfg.OAuthClientID, cfg.OAuthClientSecret, cfg.OAuthTokenURL))
	case cfg.APIKey != "":
		opts = append(opts, session.WithAPIKey(cfg.APIKey))
	}
	tokens := session.NewTokenClient(cfg.ServerURL, opts...)

	tctx, tcancel := context.WithTimeout(ctx, 15*time.Second)
	defer tcancel()
	creds, err := tokens.FetchToken(tctx, cfg.Room, cfg.Identity)
	if err != nil {
		return fmt.Errorf("fetch room token: %w", err)
	}
	log.Info("room token issued", "room", cfg.Room, "url", creds.URL)

	// Ask the backend to send the agent into the room. Failure here is not
	// fatal; the agent may already be present.
	if _, err := tokens.Dispatch(ctx, session.DispatchRequest{Room: cfg.Room}); err != nil {
		log.Warn("agent dispatch failed", "error", err)
	}

	recon := transcript.NewReconciler()
	server := web.NewServer(cfg.ListenAddr, recon)
	recon.OnChange(server.Notify)

	client := room.NewClient(creds.URL,
		room.WithToken(creds.Token),
		room.WithRoom(cfg.Room, cfg.Identity),
	)
	client.OnData = recon.Handle
	client.OnStateChange = func(s room.ConnectionState) {
		log.Info("room state", "state", s.String())
		server.UpdateStatus(func(st *web.Status) { st.Connection = s.String() })
	}
	client.OnError = func(err error) {
		log.Warn("room error", "error", err)
	}
	client.OnParticipant = func(ev room.ParticipantEvent) {
		log.Info("participant", "identity", ev.Identity, "joined", ev.Joined)
	}

	var peer *room.MediaPeer
	if !cfg.NoMedia {
		peer, err = room.NewMediaPeer()
		if err != nil {
			return fmt.Errorf("media peer: %w", err)
		}
		peer.OnAudioStart = func(at time.Time) {
			recon.ObserveAgentAudio(at)
			server.UpdateStatus(func(st *web.Status) { st.MediaActive = true })
		}
		peer.OnCandidate = func(init webrtc.ICECandidateInit) {
			if err := client.SendCandidate(init); err != nil {
				log.Debug("send candidate failed", "error", err)
			}
		}
		client.OnOffer = func(sdp string) {
			answer, err := peer.HandleOffer(sdp)
			if err != nil {
				log.Warn("media offer failed", "error", err)
				return
			}
			if err := client.SendAnswer(answer); err != nil {
				log.Warn("send answer failed", "error", err)
			}
		}
		client.OnCandidate = func(init webrtc.ICECandidateInit) {
			if err := peer.AddCandidate(init); err != nil {
				log.Debug("remote candidate rejected", "error", err)
			}
		}
	}

	server.UpdateStatus(func(st *web.Status) {
		st.Room = cfg.Room
		st.Identity = cfg.Identity
		st.Connection = room.StateDisconnected.String()
	})

	if err := client.Connect(); err != nil {
		return fmt.Errorf("connect room: %w", err)
	}
	server.StartAsync()

	<-ctx.Done()
	log.Info("shutting down")

	client.Close()
	if peer != nil {
		peer.Close()
	}
	return server.Shutdown()
}
