package whep

import (
	"time"

	"github.com/pion/webrtc/v3"
)

type SDP = webrtc.SessionDescription

type Transceiver struct {
	Mid  string
	Kind string // "audio" or "video"
}

// PeerConnection is the transport the client negotiates for.
// peer.Conn binds it to a pion *webrtc.PeerConnection.
type PeerConnection interface {
	CreateOffer() (SDP, error)
	CreateRestartOffer() (SDP, error)
	SetLocalDescription(SDP) error
	SetRemoteDescription(SDP) error
	RemoteDescription() *SDP
	Transceivers() []Transceiver
	Configuration() webrtc.Configuration
	SetConfiguration(webrtc.Configuration) error
	RestartICE() error

	// OnICECandidate handlers receive nil once gathering is complete.
	OnICECandidate(func(*webrtc.ICECandidateInit))
	OnConnectionStateChange(func(webrtc.PeerConnectionState))

	Close() error
}

// Scheduler runs a task on a later tick.
type Scheduler interface {
	Schedule(task func())
}

// FlushDelay is how long the default scheduler waits before a trickle
// flush, so a burst of gathered candidates goes out as one fragment.
const FlushDelay = 20 * time.Millisecond

type delayScheduler struct {
	delay time.Duration
}

func (s delayScheduler) Schedule(task func()) { time.AfterFunc(s.delay, task) }
