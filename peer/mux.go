package peer

import (
	"github.com/pion/ice/v2"
	"github.com/pion/webrtc/v3"
)

// withUDPMux binds every ICE agent of se to one UDP port. It is nil on
// platforms without UDP sockets.
var withUDPMux func(se *webrtc.SettingEngine, port uint16) (ice.UDPMux, error)
