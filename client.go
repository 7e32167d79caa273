// Package whep is a WebRTC-HTTP Egress Protocol viewer client.
//
// A Client negotiates one receive session with a WHEP endpoint, trickles
// local ICE candidates to the created resource and controls it (mute,
// layer selection, ICE restart, teardown).
package whep

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sync"

	"github.com/donovanhide/eventsource"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
	"github.com/looplab/fsm"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shynome/whep/sdpfrag"
)

// Link relations a WHEP server may advertise.
const (
	RelServerSentEvents = "urn:ietf:params:whep:ext:core:server-sent-events"
	RelLayer            = "urn:ietf:params:whep:ext:core:layer"
	RelICEServer        = "ice-server"
)

type Client struct {
	http    *http.Client
	log     zerolog.Logger
	metrics *Metrics
	sched   Scheduler
	fsm     *fsm.FSM
	events  emitter

	mu          sync.Mutex
	pc          PeerConnection
	token       string
	resource    *url.URL
	layerURL    *url.URL
	local       sdpfrag.Credentials
	remote      sdpfrag.Credentials
	established bool
	stopped     bool
	trickle     trickle
	stream      *eventsource.Stream
	done        chan struct{}

	flushMu sync.Mutex
}

type Option func(*Client)

// WithHTTPClient sets the client used for every signaling request.
// Requests carry the caller's context; there is no timeout of our own.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithScheduler sets where trickle flushes run. The default runs each
// flush on its own goroutine after FlushDelay.
func WithScheduler(s Scheduler) Option {
	return func(c *Client) { c.sched = s }
}

func New(opts ...Option) *Client {
	c := &Client{
		http:  &http.Client{},
		log:   log.With().Str("component", "whep").Logger(),
		sched: delayScheduler{delay: FlushDelay},
		fsm:   newStateMachine(),
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ResourceURL is nil until the server created the session resource.
func (c *Client) ResourceURL() *url.URL {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneURL(c.resource)
}

// LayerURL is nil when the server has no layer selection extension.
func (c *Client) LayerURL() *url.URL {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneURL(c.layerURL)
}

func (c *Client) LocalCredentials() sdpfrag.Credentials {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.local
}

func (c *Client) RemoteCredentials() sdpfrag.Credentials {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remote
}

func cloneURL(u *url.URL) *url.URL {
	if u == nil {
		return nil
	}
	v := *u
	return &v
}

func (c *Client) isStopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

// Mute asks the server to pause (true) or resume (false) media.
func (c *Client) Mute(ctx context.Context, muted bool) (err error) {
	defer err2.Handle(&err)

	c.mu.Lock()
	resource, stopped := c.resource, c.stopped
	c.mu.Unlock()
	if stopped {
		return ErrClosed
	}
	if resource == nil {
		return ErrResourceUnavailable
	}
	body := try.To1(json.Marshal(muted))
	req := try.To1(c.newReq(ctx, http.MethodPost, resource.String(), mimeJSON, bytes.NewReader(body)))
	return c.send(opMute, req)
}

// Layer selects a simulcast encoding or SVC layer. Unset fields are omitted.
type Layer struct {
	MediaID            string `json:"mediaId,omitempty"`
	EncodingID         string `json:"encodingId,omitempty"`
	SpatialLayerID     *int   `json:"spatialLayerId,omitempty"`
	TemporalLayerID    *int   `json:"temporalLayerId,omitempty"`
	MaxSpatialLayerID  *int   `json:"maxSpatialLayerId,omitempty"`
	MaxTemporalLayerID *int   `json:"maxTemporalLayerId,omitempty"`
	MaxWidth           int    `json:"maxWidth,omitempty"`
	MaxHeight          int    `json:"maxHeight,omitempty"`
}

func (c *Client) layerEndpoint() (*url.URL, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return nil, ErrClosed
	}
	if c.layerURL == nil {
		return nil, ErrLayerUnsupported
	}
	return c.layerURL, nil
}

func (c *Client) SelectLayer(ctx context.Context, layer Layer) (err error) {
	defer err2.Handle(&err)

	target := try.To1(c.layerEndpoint())
	body := try.To1(json.Marshal(layer))
	req := try.To1(c.newReq(ctx, http.MethodPost, target.String(), mimeJSON, bytes.NewReader(body)))
	return c.send(opLayer, req)
}

// UnselectLayer returns layer choice to the server.
func (c *Client) UnselectLayer(ctx context.Context) (err error) {
	defer err2.Handle(&err)

	target := try.To1(c.layerEndpoint())
	req := try.To1(c.newReq(ctx, http.MethodDelete, target.String(), "", nil))
	return c.send(opUnlayer, req)
}

// Restart requests an ICE restart on the next trickle flush.
func (c *Client) Restart() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pc == nil || c.stopped {
		return
	}
	c.trickle.restart = true
	c.scheduleFlushLocked()
}

// Stop closes the peer connection and deletes the server resource.
// It is a no-op before View and after a previous Stop. The peer connection
// is closed even when there is no resource to delete.
func (c *Client) Stop(ctx context.Context) (err error) {
	c.mu.Lock()
	if c.pc == nil || c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	pc, stream, resource := c.pc, c.stream, c.resource
	c.trickle.cancel()
	close(c.done)
	c.mu.Unlock()

	if cerr := pc.Close(); cerr != nil {
		c.log.Warn().Err(cerr).Msg("close peer connection")
	}
	if stream != nil {
		stream.Close()
	}
	c.transition(ctx, evClose)

	if resource == nil {
		return ErrResourceUnavailable
	}
	return c.terminate(ctx, resource)
}

func (c *Client) terminate(ctx context.Context, resource *url.URL) (err error) {
	req, err := c.newReq(ctx, http.MethodDelete, resource.String(), "", nil)
	if err != nil {
		return
	}
	return c.send(opTerminate, req)
}
