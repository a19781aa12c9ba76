package room

import "time"

// Config holds configuration for the room client.
type Config struct {
	// URL is the websocket address of the room server.
	URL string

	// Token is the bearer session token sent on the handshake.
	Token string

	// Room is the room name joined on connect.
	Room string

	// Identity is this participant's identity in the room.
	Identity string

	// HandshakeTimeout bounds the websocket dial.
	HandshakeTimeout time.Duration

	// ReadTimeout is the idle deadline reset on every inbound message.
	ReadTimeout time.Duration

	// WriteTimeout bounds each outbound write.
	WriteTimeout time.Duration

	// KeepAlive is the ping interval.
	KeepAlive time.Duration

	// ReconnectAttempts is the number of reconnection attempts after an
	// established connection drops.
	ReconnectAttempts int

	// ReconnectDelay is the delay between reconnection attempts.
	ReconnectDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		HandshakeTimeout:  10 * time.Second,
		ReadTimeout:       120 * time.Second,
		WriteTimeout:      10 * time.Second,
		KeepAlive:         30 * time.Second,
		ReconnectAttempts: 3,
		ReconnectDelay:    time.Second,
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks the configuration for required fields.
func (c *Config) Validate() error {
	if c.URL == "" {
		return ErrMissingURL
	}
	return nil
}

// Option configures the room client.
type Option func(*Config)

// WithToken sets the bearer session token.
func WithToken(token string) Option {
	return func(c *Config) { c.Token = token }
}

// WithRoom sets the room name and participant identity.
func WithRoom(room, identity string) Option {
	return func(c *Config) {
		c.Room = room
		c.Identity = identity
	}
}

// WithReconnect sets the reconnection policy.
func WithReconnect(attempts int, delay time.Duration) Option {
	return func(c *Config) {
		c.ReconnectAttempts = attempts
		c.ReconnectDelay = delay
	}
}

// WithHandshakeTimeout bounds the websocket dial.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(c *Config) { c.HandshakeTimeout = d }
}

// WithKeepAlive sets the ping interval.
func WithKeepAlive(d time.Duration) Option {
	return func(c *Config) { c.KeepAlive = d }
}
