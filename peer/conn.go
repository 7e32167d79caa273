package peer

import (
	"github.com/pion/webrtc/v3"
	"github.com/shynome/whep"
)

// Conn is a *webrtc.PeerConnection as seen by whep.Client.
type Conn struct {
	pc *webrtc.PeerConnection
}

var _ whep.PeerConnection = (*Conn)(nil)

func NewConn(pc *webrtc.PeerConnection) *Conn {
	return &Conn{pc: pc}
}

// PeerConnection exposes the underlying connection for tracks and stats.
func (c *Conn) PeerConnection() *webrtc.PeerConnection { return c.pc }

func (c *Conn) CreateOffer() (whep.SDP, error) { return c.pc.CreateOffer(nil) }

func (c *Conn) CreateRestartOffer() (whep.SDP, error) {
	return c.pc.CreateOffer(&webrtc.OfferOptions{ICERestart: true})
}

func (c *Conn) SetLocalDescription(sdp whep.SDP) error  { return c.pc.SetLocalDescription(sdp) }
func (c *Conn) SetRemoteDescription(sdp whep.SDP) error { return c.pc.SetRemoteDescription(sdp) }
func (c *Conn) RemoteDescription() *whep.SDP            { return c.pc.RemoteDescription() }

func (c *Conn) Transceivers() (ts []whep.Transceiver) {
	for _, t := range c.pc.GetTransceivers() {
		ts = append(ts, whep.Transceiver{Mid: t.Mid(), Kind: t.Kind().String()})
	}
	return
}

func (c *Conn) Configuration() webrtc.Configuration { return c.pc.GetConfiguration() }

func (c *Conn) SetConfiguration(config webrtc.Configuration) error {
	return c.pc.SetConfiguration(config)
}

// RestartICE is a no-op: pion restarts ICE when it applies a restart
// offer, which the client creates right after.
func (c *Conn) RestartICE() error { return nil }

func (c *Conn) OnICECandidate(fn func(*webrtc.ICECandidateInit)) {
	c.pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand == nil {
			fn(nil)
			return
		}
		ci := cand.ToJSON()
		fn(&ci)
	})
}

func (c *Conn) OnConnectionStateChange(fn func(webrtc.PeerConnectionState)) {
	c.pc.OnConnectionStateChange(fn)
}

func (c *Conn) Close() error { return c.pc.Close() }
