// Package peer runs WHEP sessions on pion/webrtc.
package peer

import (
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
	"github.com/pion/ice/v2"
	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// API creates receive-only peer connections sharing one media setup and,
// optionally, one UDP port.
type API struct {
	api *webrtc.API
	mux ice.UDPMux
}

type options struct {
	port     uint16
	log      zerolog.Logger
	settings []func(*webrtc.SettingEngine)
}

type Option func(*options)

// WithUDPPort serves ICE of every connection on port. Zero keeps
// pion's ephemeral ports.
func WithUDPPort(port uint16) Option {
	return func(o *options) { o.port = port }
}

func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithSettings edits the setting engine before the API is built.
func WithSettings(fn func(*webrtc.SettingEngine)) Option {
	return func(o *options) { o.settings = append(o.settings, fn) }
}

func NewAPI(opts ...Option) (a *API, err error) {
	defer err2.Handle(&err)

	o := options{log: log.With().Str("component", "pion").Logger()}
	for _, opt := range opts {
		opt(&o)
	}

	m := &webrtc.MediaEngine{}
	try.To(m.RegisterDefaultCodecs())
	registry := &interceptor.Registry{}
	try.To(webrtc.RegisterDefaultInterceptors(m, registry))

	se := webrtc.SettingEngine{LoggerFactory: NewLoggerFactory(o.log)}
	for _, fn := range o.settings {
		fn(&se)
	}
	a = &API{}
	if o.port != 0 && withUDPMux != nil {
		a.mux = try.To1(withUDPMux(&se, o.port))
	}
	a.api = webrtc.NewAPI(
		webrtc.WithMediaEngine(m),
		webrtc.WithInterceptorRegistry(registry),
		webrtc.WithSettingEngine(se),
	)
	return
}

// NewConn opens a connection with one receive-only transceiver per kind,
// in order, so the first kind owns the first m-line.
func (a *API) NewConn(config webrtc.Configuration, kinds ...webrtc.RTPCodecType) (c *Conn, err error) {
	var pc *webrtc.PeerConnection
	defer func() {
		if err != nil && pc != nil {
			pc.Close()
		}
	}()
	defer err2.Handle(&err)

	pc = try.To1(a.api.NewPeerConnection(config))
	for _, kind := range kinds {
		try.To1(pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionRecvonly,
		}))
	}
	return NewConn(pc), nil
}

// Close releases the shared UDP port. Connections must be closed first.
func (a *API) Close() error {
	if a.mux != nil {
		return a.mux.Close()
	}
	return nil
}
