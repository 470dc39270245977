package webrtc

import "github.com/pion/webrtc/v3"

var defaultSTUNServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
	"stun:stun2.l.google.com:19302",
}

// DefaultSTUNConfig is the ICE configuration used when the caller does not
// provide STUN servers of its own.
func DefaultSTUNConfig() webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{URLs: defaultSTUNServers},
		},
		ICETransportPolicy: webrtc.ICETransportPolicyAll,
	}
}

// DefaultDataChannelConfig configures the ordered channel the handshake
// frames travel on. Ordering is required: frames must reach the engine in
// arrival order.
func DefaultDataChannelConfig() *webrtc.DataChannelInit {
	protocolName := "smp"
	ordered := true
	return &webrtc.DataChannelInit{
		Ordered:        &ordered,
		MaxRetransmits: nil,
		Protocol:       &protocolName,
	}
}
