package netstack

import (
	"sync"

	"netstack/internal/errs"
)

// ICEServer is one STUN/TURN server entry of an RTCConfiguration.
type ICEServer struct {
	URLs       []string
	Username   string
	Credential string
}

// RTCConfiguration configures a peer connection's ICE gathering.
type RTCConfiguration struct {
	ICEServers []ICEServer
}

// ConnectionState mirrors the coarse lifecycle a WebRTC consumer observes.
type ConnectionState int

const (
	ConnectionNew ConnectionState = iota
	ConnectionConnecting
	ConnectionConnected
	ConnectionClosed
	ConnectionFailed
)

// RTCPeerConnection is an opaque handle: it tracks configuration and
// coarse connection state but implements no media pipeline, ICE gathering,
// or SDP negotiation. Real-time media (audio/video/data channels) sits
// outside the core network stack's scope; this type exists so callers that
// expect a peer-connection handle in the fetch/websocket/webrtc trio get one
// rather than a missing method.
type RTCPeerConnection struct {
	mu     sync.Mutex
	config RTCConfiguration
	state  ConnectionState
}

// CreatePeerConnection returns a new, unconnected RTCPeerConnection handle.
func (ns *NetworkStack) CreatePeerConnection(config RTCConfiguration) (*RTCPeerConnection, error) {
	return &RTCPeerConnection{config: config, state: ConnectionNew}, nil
}

func (pc *RTCPeerConnection) State() ConnectionState {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.state
}

func (pc *RTCPeerConnection) Configuration() RTCConfiguration {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.config
}

// Close transitions the handle to closed. There is no underlying transport
// to tear down since no media pipeline was ever established.
func (pc *RTCPeerConnection) Close() error {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.state = ConnectionClosed
	return nil
}

// CreateOffer always fails: SDP negotiation is not implemented.
func (pc *RTCPeerConnection) CreateOffer() (string, error) {
	return "", errs.WebRTC("SDP offer/answer negotiation is not implemented")
}
