package room

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v3"
)

var upgrader = websocket.Upgrader{}

// wsServer starts a test room server that hands the upgraded connection to fn.
func wsServer(t *testing.T, fn func(*websocket.Conn, *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer ws.Close()
		fn(ws, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestClientConnect(t *testing.T) {
	t.Run("delivers enveloped data payloads", func(t *testing.T) {
		srv := wsServer(t, func(ws *websocket.Conn, r *http.Request) {
			ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"data","ts":1000,"data":{"type":"user_speech","text":"hello"}}`))
			time.Sleep(200 * time.Millisecond)
		})

		c := NewClient(wsURL(srv))
		got := make(chan []byte, 1)
		c.OnData = func(payload []byte) { got <- payload }

		if err := c.Connect(); err != nil {
			t.Fatalf("connect failed: %v", err)
		}
		defer c.Close()

		select {
		case payload := <-got:
			if !strings.Contains(string(payload), `"user_speech"`) {
				t.Errorf("envelope not unwrapped: %s", payload)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("no payload delivered")
		}
	})

	t.Run("passes query and bearer token on the handshake", func(t *testing.T) {
		seen := make(chan *http.Request, 1)
		srv := wsServer(t, func(ws *websocket.Conn, r *http.Request) {
			seen <- r
		})

		c := NewClient(wsURL(srv), WithToken("tok123"), WithRoom("demo", "console"))
		if err := c.Connect(); err != nil {
			t.Fatalf("connect failed: %v", err)
		}
		defer c.Close()

		select {
		case r := <-seen:
			if got := r.Header.Get("Authorization"); got != "Bearer tok123" {
				t.Errorf("authorization header: %q", got)
			}
			q := r.URL.Query()
			if q.Get("room") != "demo" || q.Get("identity") != "console" {
				t.Errorf("query params: %v", q)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("server never saw the handshake")
		}
	})

	t.Run("reports connected state", func(t *testing.T) {
		srv := wsServer(t, func(ws *websocket.Conn, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		})

		c := NewClient(wsURL(srv))
		if c.State() != StateDisconnected {
			t.Errorf("initial state should be disconnected, got %s", c.State())
		}
		if err := c.Connect(); err != nil {
			t.Fatalf("connect failed: %v", err)
		}
		defer c.Close()

		if c.State() != StateConnected {
			t.Errorf("expected connected, got %s", c.State())
		}
		if err := c.Connect(); err != ErrAlreadyConnected {
			t.Errorf("second connect should fail, got %v", err)
		}
	})

	t.Run("missing URL is rejected", func(t *testing.T) {
		c := NewClient("")
		if err := c.Connect(); err != ErrMissingURL {
			t.Errorf("expected ErrMissingURL, got %v", err)
		}
	})

	t.Run("closed client cannot reconnect", func(t *testing.T) {
		c := NewClient("ws://127.0.0.1:1")
		c.Close()
		c.Close() // idempotent
		if err := c.Connect(); err != ErrClosed {
			t.Errorf("expected ErrClosed, got %v", err)
		}
	})

	t.Run("send before connect fails", func(t *testing.T) {
		c := NewClient("ws://127.0.0.1:1")
		if err := c.SendData([]byte(`{}`)); err != ErrNotConnected {
			t.Errorf("expected ErrNotConnected, got %v", err)
		}
	})
}

func TestDispatch(t *testing.T) {
	t.Run("participant events", func(t *testing.T) {
		c := NewClient("ws://example")
		var ev ParticipantEvent
		c.OnParticipant = func(e ParticipantEvent) { ev = e }

		c.dispatch([]byte(`{"type":"participant_joined","identity":"agent","ts":5000}`))
		if !ev.Joined || ev.Identity != "agent" || ev.At.UnixMilli() != 5000 {
			t.Errorf("join event mismatch: %+v", ev)
		}

		c.dispatch([]byte(`{"type":"participant_left","identity":"agent","ts":9000}`))
		if ev.Joined || ev.At.UnixMilli() != 9000 {
			t.Errorf("leave event mismatch: %+v", ev)
		}
	})

	t.Run("offer and ice frames route to signalling callbacks", func(t *testing.T) {
		c := NewClient("ws://example")
		var sdp string
		var cand webrtc.ICECandidateInit
		c.OnOffer = func(s string) { sdp = s }
		c.OnCandidate = func(i webrtc.ICECandidateInit) { cand = i }

		c.dispatch([]byte(`{"type":"offer","sdp":"v=0 fake"}`))
		if sdp != "v=0 fake" {
			t.Errorf("offer not routed: %q", sdp)
		}

		c.dispatch([]byte(`{"type":"ice","candidate":{"candidate":"candidate:1 1 udp"}}`))
		if cand.Candidate != "candidate:1 1 udp" {
			t.Errorf("candidate not routed: %+v", cand)
		}
	})

	t.Run("non-enveloped frames pass through unchanged", func(t *testing.T) {
		c := NewClient("ws://example")
		var got []byte
		c.OnData = func(p []byte) { got = p }

		raw := []byte(`{"kind":"something-else"}`)
		c.dispatch(raw)
		if string(got) != string(raw) {
			t.Errorf("raw frame altered: %s", got)
		}
	})

	t.Run("unknown envelope types pass through for downstream classification", func(t *testing.T) {
		c := NewClient("ws://example")
		var got []byte
		c.OnData = func(p []byte) { got = p }

		raw := []byte(`{"type":"agent_reply","text":"hi"}`)
		c.dispatch(raw)
		if string(got) != string(raw) {
			t.Errorf("expected full frame, got %s", got)
		}
	})
}

func TestConnectionStateString(t *testing.T) {
	states := map[ConnectionState]string{
		StateDisconnected:   "disconnected",
		StateConnecting:     "connecting",
		StateConnected:      "connected",
		StateReconnecting:   "reconnecting",
		ConnectionState(42): "unknown",
	}
	for s, want := range states {
		if s.String() != want {
			t.Errorf("state %d: expected %s, got %s", int(s), want, s.String())
		}
	}
}
