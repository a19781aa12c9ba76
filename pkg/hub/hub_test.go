package hub

import (
	"encoding/json"
	"testing"
	"time"
)

// testClient registers a bare client with the hub, bypassing the websocket
// pumps so broadcast behavior can be observed on the send channel.
func testClient(t *testing.T, h *Hub, buffer int) *Client {
	t.Helper()
	c := &Client{hub: h, send: make(chan []byte, buffer)}
	h.register <- c
	return c
}

func recvFrame(t *testing.T, c *Client) Update {
	t.Helper()
	select {
	case frame, ok := <-c.send:
		if !ok {
			t.Fatal("send channel closed")
		}
		var u Update
		if err := json.Unmarshal(frame, &u); err != nil {
			t.Fatalf("bad frame: %v", err)
		}
		return u
	case <-time.After(2 * time.Second):
		t.Fatal("no frame received")
	}
	return Update{}
}

func TestHubBroadcast(t *testing.T) {
	h := New("test")
	go h.Run()
	defer h.Stop()

	c1 := testClient(t, h, 16)
	c2 := testClient(t, h, 16)

	u, err := NewUpdate(KindStatus, map[string]string{"state": "connected"})
	if err != nil {
		t.Fatalf("new update: %v", err)
	}
	if err := h.Broadcast(u); err != nil {
		t.Fatalf("broadcast: %v", err)
	}

	for _, c := range []*Client{c1, c2} {
		got := recvFrame(t, c)
		if got.Kind != KindStatus {
			t.Errorf("kind mismatch: %s", got.Kind)
		}
		var data map[string]string
		json.Unmarshal(got.Data, &data)
		if data["state"] != "connected" {
			t.Errorf("data mismatch: %v", data)
		}
	}
}

func TestHubReplay(t *testing.T) {
	h := New("test")
	go h.Run()
	defer h.Stop()

	u1, _ := NewUpdate(KindTranscript, []string{"hello"})
	u2, _ := NewUpdate(KindLatency, map[string]float64{"llm_ms": 300})
	h.Broadcast(u1)
	h.Broadcast(u2)

	// Wait for the run loop to drain both updates into the replay ring
	// before connecting.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		h.mu.RLock()
		ringed := len(h.recent)
		h.mu.RUnlock()
		if ringed == 2 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	late := testClient(t, h, 16)
	first := recvFrame(t, late)
	second := recvFrame(t, late)
	if first.Kind != KindTranscript || second.Kind != KindLatency {
		t.Errorf("replay order mismatch: %s, %s", first.Kind, second.Kind)
	}
}

func TestHubDropsSlowClient(t *testing.T) {
	h := New("test")
	go h.Run()
	defer h.Stop()

	slow := testClient(t, h, 0)
	_ = slow

	u, _ := NewUpdate(KindStatus, "x")
	h.Broadcast(u)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.ClientCount() == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Errorf("slow client not dropped, %d still connected", h.ClientCount())
}

func TestHubUnregister(t *testing.T) {
	h := New("test")
	go h.Run()
	defer h.Stop()

	c := testClient(t, h, 16)
	deadline := time.Now().Add(2 * time.Second)
	for h.ClientCount() != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	h.unregister <- c
	for time.Now().Before(deadline) {
		if h.ClientCount() == 0 {
			if _, ok := <-c.send; ok {
				t.Error("send channel should be closed")
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Error("client never unregistered")
}
