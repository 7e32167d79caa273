package peer_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/lainio/err2/assert"
	"github.com/lainio/err2/try"
	"github.com/pion/webrtc/v3"
	"github.com/rs/zerolog"
	"github.com/shynome/whep"
	"github.com/shynome/whep/peer"
	"github.com/shynome/whep/sdpfrag"
)

func newAPI(t *testing.T) *peer.API {
	api := try.To1(peer.NewAPI(
		peer.WithLogger(zerolog.Nop()),
		peer.WithSettings(func(se *webrtc.SettingEngine) {
			se.SetNetworkTypes([]webrtc.NetworkType{webrtc.NetworkTypeUDP4})
		}),
	))
	t.Cleanup(func() { api.Close() })
	return api
}

// sender answers WHEP offers with a video track and applies trickled
// candidates.
type sender struct {
	api *peer.API

	mu      sync.Mutex
	pc      *webrtc.PeerConnection
	deleted bool
}

func (s *sender) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/whep":
		s.answer(w, r)
	case r.Method == http.MethodPatch && r.URL.Path == "/resource":
		body := try.To1(io.ReadAll(r.Body))
		f := try.To1(sdpfrag.Parse(string(body)))
		s.mu.Lock()
		pc := s.pc
		s.mu.Unlock()
		for _, m := range f.Media {
			mid := m.Mid
			for _, cand := range m.Candidates {
				pc.AddICECandidate(webrtc.ICECandidateInit{Candidate: cand, SDPMid: &mid})
			}
		}
		w.WriteHeader(http.StatusNoContent)
	case r.Method == http.MethodDelete && r.URL.Path == "/resource":
		s.mu.Lock()
		s.deleted = true
		s.pc.Close()
		s.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (s *sender) answer(w http.ResponseWriter, r *http.Request) {
	offer := try.To1(io.ReadAll(r.Body))
	pc := try.To1(s.api.NewConn(webrtc.Configuration{})).PeerConnection()
	track := try.To1(webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", "whep",
	))
	try.To1(pc.AddTrack(track))

	try.To(pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: string(offer)}))
	gatherComplete := webrtc.GatheringCompletePromise(pc)
	try.To(pc.SetLocalDescription(try.To1(pc.CreateAnswer(nil))))
	<-gatherComplete

	s.mu.Lock()
	s.pc = pc
	s.mu.Unlock()

	w.Header().Set("Location", "/resource")
	w.Header().Set("Content-Type", "application/sdp")
	w.WriteHeader(http.StatusCreated)
	io.WriteString(w, pc.LocalDescription().SDP)
}

func (s *sender) isDeleted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleted
}

func TestConnTransceivers(t *testing.T) {
	conn := try.To1(newAPI(t).NewConn(webrtc.Configuration{}, webrtc.RTPCodecTypeVideo, webrtc.RTPCodecTypeAudio))
	defer conn.Close()

	ts := conn.Transceivers()
	assert.Equal(len(ts), 2)
	assert.Equal(ts[0].Kind, "video")
	assert.Equal(ts[1].Kind, "audio")

	offer := try.To1(conn.CreateOffer())
	assert.Equal(offer.Type, webrtc.SDPTypeOffer)
	try.To1(sdpfrag.ICECredentials(offer.SDP))
}

func TestView(t *testing.T) {
	if testing.Short() {
		t.Skip("opens real ICE sessions")
	}
	ctx := context.Background()
	api := newAPI(t)
	s := &sender{api: api}
	srv := httptest.NewServer(s)
	defer srv.Close()

	conn := try.To1(api.NewConn(webrtc.Configuration{}, webrtc.RTPCodecTypeVideo))
	c := whep.New(whep.WithLogger(zerolog.Nop()))
	connected := make(chan struct{})
	var once sync.Once
	c.AddListener(whep.EventConnectionState, func(ev whep.Event) {
		if ev.ConnectionState == webrtc.PeerConnectionStateConnected {
			once.Do(func() { close(connected) })
		}
	})

	try.To(c.View(ctx, conn, srv.URL+"/whep", ""))
	assert.Equal(c.State(), whep.StateActive)
	assert.Equal(c.ResourceURL().String(), srv.URL+"/resource")

	select {
	case <-connected:
	case <-time.After(10 * time.Second):
		t.Fatal("peer connection never connected")
	}

	try.To(c.Stop(ctx))
	assert.That(s.isDeleted())
	assert.Equal(c.State(), whep.StateClosed)
}
