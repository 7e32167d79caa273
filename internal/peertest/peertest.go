// Package peertest has an in-memory whep.PeerConnection and a scheduler
// that runs tasks only when told to.
package peertest

import (
	"fmt"
	"sync"

	"github.com/pion/sdp/v3"
	"github.com/pion/webrtc/v3"
	"github.com/shynome/whep"
)

type PeerConnection struct {
	mu sync.Mutex

	transceivers []whep.Transceiver
	config       webrtc.Configuration
	offers       int

	Local        []whep.SDP // every SetLocalDescription
	Remote       []whep.SDP // every SetRemoteDescription
	RestartCalls int
	Closed       bool

	// fail the matching call when set
	SetRemoteErr error
	SetConfigErr error

	onCandidate func(*webrtc.ICECandidateInit)
	onState     func(webrtc.PeerConnectionState)
}

var _ whep.PeerConnection = (*PeerConnection)(nil)

// New has one transceiver per kind, with mids "0", "1", ...
func New(kinds ...string) *PeerConnection {
	pc := &PeerConnection{}
	for i, k := range kinds {
		pc.transceivers = append(pc.transceivers, whep.Transceiver{Mid: fmt.Sprint(i), Kind: k})
	}
	return pc
}

// Credentials returns the ice credentials of the n-th created offer.
func Credentials(n int) (ufrag, pwd string) {
	return fmt.Sprintf("ufrag%d", n), fmt.Sprintf("password%d0123456789abcd", n)
}

// Description builds a session description with one recvonly/sendonly
// section per transceiver.
func Description(transceivers []whep.Transceiver, direction, ufrag, pwd string) string {
	desc := sdp.SessionDescription{
		Origin: sdp.Origin{
			Username:       "-",
			SessionID:      1,
			SessionVersion: 2,
			NetworkType:    "IN",
			AddressType:    "IP4",
			UnicastAddress: "127.0.0.1",
		},
		SessionName: "-",
		TimeDescriptions: []sdp.TimeDescription{
			{Timing: sdp.Timing{StartTime: 0, StopTime: 0}},
		},
	}
	for _, t := range transceivers {
		format := "96"
		if t.Kind == "audio" {
			format = "111"
		}
		desc.MediaDescriptions = append(desc.MediaDescriptions, &sdp.MediaDescription{
			MediaName: sdp.MediaName{
				Media:   t.Kind,
				Port:    sdp.RangedPort{Value: 9},
				Protos:  []string{"UDP", "TLS", "RTP", "SAVPF"},
				Formats: []string{format},
			},
			ConnectionInformation: &sdp.ConnectionInformation{
				NetworkType: "IN",
				AddressType: "IP4",
				Address:     &sdp.Address{Address: "0.0.0.0"},
			},
			Attributes: []sdp.Attribute{
				sdp.NewAttribute("ice-ufrag", ufrag),
				sdp.NewAttribute("ice-pwd", pwd),
				sdp.NewAttribute("mid", t.Mid),
				sdp.NewPropertyAttribute(direction),
			},
		})
	}
	raw, err := desc.Marshal()
	if err != nil {
		panic(err)
	}
	return string(raw)
}

func (pc *PeerConnection) offer() whep.SDP {
	pc.offers++
	u, p := Credentials(pc.offers)
	return whep.SDP{Type: webrtc.SDPTypeOffer, SDP: Description(pc.transceivers, "recvonly", u, p)}
}

func (pc *PeerConnection) CreateOffer() (whep.SDP, error) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.offer(), nil
}

func (pc *PeerConnection) CreateRestartOffer() (whep.SDP, error) {
	return pc.CreateOffer()
}

// Offers is how many offers were created.
func (pc *PeerConnection) Offers() int {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.offers
}

func (pc *PeerConnection) SetLocalDescription(d whep.SDP) error {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.Local = append(pc.Local, d)
	return nil
}

func (pc *PeerConnection) SetRemoteDescription(d whep.SDP) error {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if pc.SetRemoteErr != nil {
		return pc.SetRemoteErr
	}
	pc.Remote = append(pc.Remote, d)
	return nil
}

func (pc *PeerConnection) RemoteDescription() *whep.SDP {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if len(pc.Remote) == 0 {
		return nil
	}
	d := pc.Remote[len(pc.Remote)-1]
	return &d
}

func (pc *PeerConnection) Transceivers() []whep.Transceiver {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return append([]whep.Transceiver(nil), pc.transceivers...)
}

func (pc *PeerConnection) Configuration() webrtc.Configuration {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.config
}

func (pc *PeerConnection) SetConfiguration(cfg webrtc.Configuration) error {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if pc.SetConfigErr != nil {
		return pc.SetConfigErr
	}
	pc.config = cfg
	return nil
}

func (pc *PeerConnection) RestartICE() error {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.RestartCalls++
	return nil
}

func (pc *PeerConnection) OnICECandidate(fn func(*webrtc.ICECandidateInit)) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.onCandidate = fn
}

func (pc *PeerConnection) OnConnectionStateChange(fn func(webrtc.PeerConnectionState)) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.onState = fn
}

func (pc *PeerConnection) Close() error {
	pc.mu.Lock()
	if pc.Closed {
		pc.mu.Unlock()
		return nil
	}
	pc.Closed = true
	pc.mu.Unlock()
	pc.SetState(webrtc.PeerConnectionStateClosed)
	return nil
}

func (pc *PeerConnection) IsClosed() bool {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.Closed
}

// Candidate reports a gathered candidate on m-line index.
func (pc *PeerConnection) Candidate(mid string, index uint16, candidate string) {
	pc.mu.Lock()
	fn := pc.onCandidate
	pc.mu.Unlock()
	if fn == nil {
		return
	}
	fn(&webrtc.ICECandidateInit{Candidate: candidate, SDPMid: &mid, SDPMLineIndex: &index})
}

// EndOfCandidates reports that gathering is complete.
func (pc *PeerConnection) EndOfCandidates() {
	pc.mu.Lock()
	fn := pc.onCandidate
	pc.mu.Unlock()
	if fn != nil {
		fn(nil)
	}
}

func (pc *PeerConnection) SetState(s webrtc.PeerConnectionState) {
	pc.mu.Lock()
	fn := pc.onState
	pc.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}

// Scheduler queues tasks until Run.
type Scheduler struct {
	mu    sync.Mutex
	tasks []func()
}

var _ whep.Scheduler = (*Scheduler)(nil)

func (s *Scheduler) Schedule(task func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, task)
}

func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Run runs the queued tasks, and the ones they queue, until none is left.
// It returns how many ran.
func (s *Scheduler) Run() (n int) {
	for {
		s.mu.Lock()
		tasks := s.tasks
		s.tasks = nil
		s.mu.Unlock()
		if len(tasks) == 0 {
			return
		}
		for _, task := range tasks {
			task()
			n++
		}
	}
}
