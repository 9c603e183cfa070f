package peer

import (
	"fmt"
	"io"

	"pairdesk/native/internal/domain"

	pion "github.com/pion/webrtc/v4"
)

// Factory creates the session's peer connections. It implements
// domain.LinkFactory.
type Factory struct {
	iceServers  []pion.ICEServer
	remoteVideo io.Writer
}

// NewFactory creates a factory using the given STUN/TURN URLs. Remote
// H264 video is written to remoteVideo as an Annex-B stream; nil
// discards it.
func NewFactory(stunURLs []string, remoteVideo io.Writer) *Factory {
	var servers []pion.ICEServer
	for _, u := range stunURLs {
		servers = append(servers, pion.ICEServer{URLs: []string{u}})
	}
	return &Factory{iceServers: servers, remoteVideo: remoteVideo}
}

// NewDataLink creates the data connection.
func (f *Factory) NewDataLink(events domain.DataEvents) (domain.DataLink, error) {
	pc, err := pion.NewPeerConnection(pion.Configuration{ICEServers: f.iceServers})
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}
	return newDataLink(pc, events), nil
}

// NewMediaCall creates the audio/video connection. stream may be nil
// when local capture is absent; the call then only receives.
func (f *Factory) NewMediaCall(stream domain.Stream, events domain.CallEvents) (domain.MediaCall, error) {
	return newMediaCall(f, stream, events)
}
