// Package hub provides a thread-safe websocket broadcast hub
// using the idiomatic Go channel-based fan-out pattern.
package hub

import (
	"encoding/json"
	"time"
)

// Kind labels what a dashboard update carries.
type Kind string

const (
	// KindTranscript carries the visible transcript snapshot.
	KindTranscript Kind = "transcript"
	// KindLatency carries the per-conversation latency table.
	KindLatency Kind = "latency"
	// KindStatus carries connection/room status.
	KindStatus Kind = "status"
)

// Update is one dashboard feed message.
type Update struct {
	Kind Kind            `json:"kind"`
	TS   int64           `json:"ts"` // epoch milliseconds
	Data json.RawMessage `json:"data"`
}

// NewUpdate encodes v as an update of the given kind.
func NewUpdate(kind Kind, v any) (Update, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Update{}, err
	}
	return Update{Kind: kind, TS: time.Now().UnixMilli(), Data: data}, nil
}

// encode renders the update as one websocket text frame.
func (u Update) encode() ([]byte, error) {
	return json.Marshal(u)
}
