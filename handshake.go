package whep

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
	"github.com/pion/webrtc/v3"
	"github.com/shynome/whep/linkrel"
	"github.com/shynome/whep/sdpfrag"
)

// View negotiates a receive session for pc with the WHEP endpoint. token,
// when set, is sent as a bearer credential on every request. A Client views
// at most once; on failure it keeps pc, which Stop closes.
func (c *Client) View(ctx context.Context, pc PeerConnection, endpoint string, token string) (err error) {
	c.mu.Lock()
	if c.pc != nil {
		c.mu.Unlock()
		return ErrAlreadyViewing
	}
	c.pc = pc
	c.token = token
	c.mu.Unlock()

	c.transition(ctx, evView)
	pc.OnConnectionStateChange(c.onConnectionState)
	pc.OnICECandidate(c.onICECandidate)

	ext, err := c.negotiate(ctx, pc, endpoint)
	if err != nil {
		if !errors.Is(err, ErrClosed) {
			c.transition(ctx, evFail)
		}
		return err
	}
	c.transition(ctx, evEstablish)

	if ext.eventsURL != nil {
		go c.subscribe(ext.eventsURL, ext.events)
	}
	return nil
}

type extensions struct {
	eventsURL *url.URL
	events    []string
	layerURL  *url.URL
}

func (c *Client) negotiate(ctx context.Context, pc PeerConnection, endpoint string) (ext extensions, err error) {
	defer err2.Handle(&err)

	base := try.To1(url.Parse(endpoint))
	offer := try.To1(pc.CreateOffer())

	req := try.To1(c.newReq(ctx, http.MethodPost, base.String(), mimeSDP, strings.NewReader(offer.SDP)))
	res := try.To1(c.doReq(opOffer, req))
	defer res.Body.Close()

	loc := res.Header.Get("Location")
	if loc == "" {
		return ext, ErrMissingLocation
	}
	resource := try.To1(base.Parse(loc))
	if !c.setResource(resource) {
		c.release(resource)
		return ext, ErrClosed
	}
	answer := try.To1(io.ReadAll(res.Body))

	links, skipped := linkrel.Parse(strings.Join(res.Header.Values("Link"), ", "))
	for _, e := range skipped {
		c.log.Warn().Err(e).Msg("link header")
	}
	if sse, ok := links.First(RelServerSentEvents); ok {
		ext.eventsURL = c.extensionURL(base, sse)
		ext.events = supportedEvents(sse.Params)
	}
	if layer, ok := links.First(RelLayer); ok {
		ext.layerURL = c.extensionURL(base, layer)
	}

	// servers configured by the caller win over advertised ones
	cfg := pc.Configuration()
	if len(cfg.ICEServers) == 0 && links.Has(RelICEServer) {
		if servers := c.iceServers(links.Get(RelICEServer)); len(servers) > 0 {
			cfg.ICEServers = servers
			try.To(pc.SetConfiguration(cfg))
		}
	}

	try.To(pc.SetLocalDescription(offer))
	local, err := sdpfrag.ICECredentials(offer.SDP)
	if err != nil {
		return ext, fmt.Errorf("%w: offer: %w", ErrProtocol, err)
	}
	try.To(pc.SetRemoteDescription(SDP{Type: webrtc.SDPTypeAnswer, SDP: string(answer)}))
	remote, _ := sdpfrag.ICECredentials(string(answer))

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return ext, ErrClosed
	}
	c.layerURL = ext.layerURL
	c.local = local
	c.remote = remote
	c.established = true
	// candidates gathered during the exchange are waiting for this
	c.scheduleFlushLocked()
	return ext, nil
}

// extensionURL resolves an advertised extension, nil when its URL is
// malformed. Extensions are optional, so this never fails the handshake.
func (c *Client) extensionURL(base *url.URL, r linkrel.Relation) *url.URL {
	u, err := base.Parse(r.URL)
	if err != nil {
		c.log.Warn().Err(err).Str("rel", r.Type).Msg("ignore extension")
		return nil
	}
	return u
}

// setResource records the resource location unless the client was stopped.
func (c *Client) setResource(u *url.URL) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return false
	}
	c.resource = u
	return true
}

// release deletes a resource created after Stop.
func (c *Client) release(resource *url.URL) {
	if err := c.terminate(context.Background(), resource); err != nil {
		c.log.Warn().Err(err).Str("resource", resource.String()).Msg("release resource")
	}
}

func (c *Client) onConnectionState(s webrtc.PeerConnectionState) {
	if c.isStopped() {
		return
	}
	c.events.emit(Event{Name: EventConnectionState, ConnectionState: s})
	switch s {
	case webrtc.PeerConnectionStateFailed:
		c.transition(context.Background(), evFail)
	case webrtc.PeerConnectionStateClosed:
		c.transition(context.Background(), evClose)
	}
}
