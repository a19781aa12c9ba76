package room

import (
	"fmt"
	"sync"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"

	"github.com/davronbek/voiceboard/internal/log"
)

// MediaPeer is a receive-only WebRTC peer connection. It never renders
// audio; its sole job is observing the agent's remote audio track so the
// first RTP packet's arrival can stand in for "the agent started speaking".
type MediaPeer struct {
	pc *webrtc.PeerConnection

	mu     sync.Mutex
	closed bool

	// OnAudioStart fires once per remote audio track, at the arrival of
	// the track's first RTP packet.
	OnAudioStart func(at time.Time)

	// OnCandidate receives local ICE candidates for signalling.
	OnCandidate func(init webrtc.ICECandidateInit)
}

// NewMediaPeer creates the peer connection with a receive-only audio
// transceiver.
func NewMediaPeer() (*MediaPeer, error) {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return nil, fmt.Errorf("room: create peer connection: %w", err)
	}

	p := &MediaPeer{pc: pc}

	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		pc.Close()
		return nil, fmt.Errorf("room: add audio transceiver: %w", err)
	}

	pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		log.Debug("remote track added", "kind", track.Kind().String(), "codec", track.Codec().MimeType)
		if track.Kind() == webrtc.RTPCodecTypeAudio {
			go p.readTrack(track)
		}
	})

	pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate == nil {
			return
		}
		if p.OnCandidate != nil {
			p.OnCandidate(candidate.ToJSON())
		}
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		log.Debug("media peer state", "state", state.String())
	})

	return p, nil
}

// HandleOffer applies the remote SDP offer and returns the local answer.
func (p *MediaPeer) HandleOffer(sdp string) (string, error) {
	offer := webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  sdp,
	}
	if err := p.pc.SetRemoteDescription(offer); err != nil {
		return "", fmt.Errorf("room: set remote description: %w", err)
	}

	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return "", fmt.Errorf("room: create answer: %w", err)
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return "", fmt.Errorf("room: set local description: %w", err)
	}
	return answer.SDP, nil
}

// AddCandidate applies a remote ICE candidate.
func (p *MediaPeer) AddCandidate(init webrtc.ICECandidateInit) error {
	if err := p.pc.AddICECandidate(init); err != nil {
		return fmt.Errorf("room: add ice candidate: %w", err)
	}
	return nil
}

// readTrack drains RTP packets from the remote track. The first packet's
// arrival time is reported; the rest are discarded.
func (p *MediaPeer) readTrack(track *webrtc.TrackRemote) {
	var first *rtp.Packet

	for !p.isClosed() {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			return
		}
		if first == nil {
			first = pkt
			log.Debug("first audio packet", "ssrc", pkt.SSRC, "seq", pkt.SequenceNumber)
			if p.OnAudioStart != nil {
				p.OnAudioStart(time.Now())
			}
		}
	}
}

func (p *MediaPeer) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Close tears the peer connection down.
func (p *MediaPeer) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	if p.pc != nil {
		p.pc.Close()
	}
}
