// Package room connects to a real-time voice-agent room: a websocket
// side-channel carrying conversation events plus an optional receive-only
// WebRTC peer used to observe the agent's audio-track lifecycle.
package room

import (
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v3"

	"github.com/davronbek/voiceboard/internal/log"
)

// ParticipantEvent reports a participant joining or leaving the room.
type ParticipantEvent struct {
	Identity string
	Joined   bool
	At       time.Time
}

// envelope is the room server's wire frame. Conversation payloads ride in
// Data; signalling and membership frames use the dedicated fields.
type envelope struct {
	Type      string                   `json:"type"`
	TS        int64                    `json:"ts,omitempty"` // epoch milliseconds
	Identity  string                   `json:"identity,omitempty"`
	SDP       string                   `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit `json:"candidate,omitempty"`
	Data      json.RawMessage          `json:"data,omitempty"`
}

// Client manages the websocket connection to the room server. Callbacks
// must be set before Connect and are invoked from the client's read
// goroutine, one at a time.
type Client struct {
	cfg *Config

	ws   *websocket.Conn
	wsMu sync.Mutex

	mu     sync.Mutex
	state  ConnectionState
	closed bool
	done   chan struct{}

	// Callbacks
	OnData        func(payload []byte)
	OnParticipant func(ev ParticipantEvent)
	OnOffer       func(sdp string)
	OnCandidate   func(init webrtc.ICECandidateInit)
	OnStateChange func(state ConnectionState)
	OnError       func(err error)
}

// NewClient creates a room client for the given websocket URL.
func NewClient(serverURL string, opts ...Option) *Client {
	cfg := DefaultConfig()
	cfg.URL = serverURL
	cfg.Apply(opts...)
	return &Client{
		cfg:  cfg,
		done: make(chan struct{}),
	}
}

// Connect establishes the websocket connection and starts the read and
// keepalive goroutines.
func (c *Client) Connect() error {
	if err := c.cfg.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state == StateConnected || c.state == StateConnecting {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.state = StateConnecting
	c.mu.Unlock()

	ws, err := c.dial()
	if err != nil {
		c.setState(StateDisconnected)
		return &ConnectionError{Reason: "dial failed", Cause: err, Retryable: true}
	}

	c.wsMu.Lock()
	c.ws = ws
	c.wsMu.Unlock()
	c.setState(StateConnected)

	go c.readLoop()
	go c.keepAlive()

	return nil
}

func (c *Client) dial() (*websocket.Conn, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	if c.cfg.Room != "" {
		q.Set("room", c.cfg.Room)
	}
	if c.cfg.Identity != "" {
		q.Set("identity", c.cfg.Identity)
	}
	u.RawQuery = q.Encode()

	header := http.Header{}
	if c.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: c.cfg.HandshakeTimeout,
	}
	ws, _, err := dialer.Dial(u.String(), header)
	if err != nil {
		return nil, err
	}

	ws.SetPingHandler(func(appData string) error {
		c.wsMu.Lock()
		defer c.wsMu.Unlock()
		return ws.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(5*time.Second))
	})

	return ws, nil
}

// readLoop reads frames until the client is closed or reconnection gives up.
func (c *Client) readLoop() {
	for {
		ws := c.conn()
		if ws == nil {
			return
		}

		ws.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		_, message, err := ws.ReadMessage()
		if err != nil {
			if c.isClosed() {
				return
			}
			if c.OnError != nil {
				c.OnError(&ConnectionError{Reason: "read failed", Cause: err, Retryable: true})
			}
			if !c.reconnect() {
				c.setState(StateDisconnected)
				return
			}
			continue
		}

		c.dispatch(message)
	}
}

// dispatch routes one inbound frame. Frames without a recognized envelope
// are handed to OnData unchanged; the downstream consumer drops what it
// cannot classify.
func (c *Client) dispatch(message []byte) {
	var env envelope
	if err := json.Unmarshal(message, &env); err != nil || env.Type == "" {
		if c.OnData != nil {
			c.OnData(message)
		}
		return
	}

	switch env.Type {
	case "data":
		if c.OnData != nil && len(env.Data) > 0 {
			c.OnData(env.Data)
		}

	case "participant_joined", "participant_left":
		if c.OnParticipant != nil {
			c.OnParticipant(ParticipantEvent{
				Identity: env.Identity,
				Joined:   env.Type == "participant_joined",
				At:       envTime(env.TS),
			})
		}

	case "offer":
		if c.OnOffer != nil && env.SDP != "" {
			c.OnOffer(env.SDP)
		}

	case "ice":
		if c.OnCandidate != nil && env.Candidate != nil {
			c.OnCandidate(*env.Candidate)
		}

	default:
		if c.OnData != nil {
			c.OnData(message)
		}
	}
}

// keepAlive sends periodic pings to keep the connection alive.
func (c *Client) keepAlive() {
	ticker := time.NewTicker(c.cfg.KeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.wsMu.Lock()
			ws := c.ws
			if ws != nil {
				if err := ws.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(c.cfg.WriteTimeout)); err != nil {
					log.Debug("keepalive ping failed", "error", err)
				}
			}
			c.wsMu.Unlock()
		}
	}
}

// reconnect runs the bounded reconnection loop. It returns true once a new
// connection is established.
func (c *Client) reconnect() bool {
	for attempt := 1; attempt <= c.cfg.ReconnectAttempts; attempt++ {
		if c.isClosed() {
			return false
		}
		c.setState(StateReconnecting)
		time.Sleep(c.cfg.ReconnectDelay)

		ws, err := c.dial()
		if err != nil {
			log.Warn("reconnect attempt failed", "attempt", attempt, "error", err)
			continue
		}

		c.wsMu.Lock()
		c.ws = ws
		c.wsMu.Unlock()
		c.setState(StateConnected)
		log.Info("reconnected to room", "attempt", attempt)
		return true
	}

	if c.OnError != nil {
		c.OnError(ErrReconnectExhausted)
	}
	return false
}

// SendData publishes a JSON payload on the side-channel.
func (c *Client) SendData(payload json.RawMessage) error {
	return c.writeJSON(envelope{Type: "data", TS: time.Now().UnixMilli(), Data: payload})
}

// SendAnswer sends the local SDP answer produced for a media offer.
func (c *Client) SendAnswer(sdp string) error {
	return c.writeJSON(envelope{Type: "answer", SDP: sdp})
}

// SendCandidate sends a local ICE candidate to the remote peer.
func (c *Client) SendCandidate(init webrtc.ICECandidateInit) error {
	return c.writeJSON(envelope{Type: "ice", Candidate: &init})
}

func (c *Client) writeJSON(v any) error {
	c.wsMu.Lock()
	defer c.wsMu.Unlock()

	if c.ws == nil {
		return ErrNotConnected
	}
	c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return c.ws.WriteJSON(v)
}

// State returns the current connection state.
func (c *Client) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) setState(s ConnectionState) {
	c.mu.Lock()
	if c.state == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	fn := c.OnStateChange
	c.mu.Unlock()

	if fn != nil {
		fn(s)
	}
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Client) conn() *websocket.Conn {
	c.wsMu.Lock()
	defer c.wsMu.Unlock()
	return c.ws
}

// Close tears the connection down. It is safe to call more than once.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.state = StateDisconnected
	close(c.done)
	c.mu.Unlock()

	c.wsMu.Lock()
	if c.ws != nil {
		c.ws.Close()
	}
	c.wsMu.Unlock()
}

func envTime(ts int64) time.Time {
	if ts > 0 {
		return time.UnixMilli(ts)
	}
	return time.Now()
}
