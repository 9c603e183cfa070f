package peer

import (
	"fmt"
	"io"
	"log"
	"sync/atomic"

	"pairdesk/native/internal/domain"
	"pairdesk/native/internal/media"

	"github.com/pion/interceptor"
	"github.com/pion/interceptor/pkg/nack"
	pion "github.com/pion/webrtc/v4"
)

// MediaCall is the audio/video connection placed alongside the data
// link. Remote H264 video is depacketized and written to the configured
// sink; remote audio is drained.
type MediaCall struct {
	negotiation
	events domain.CallEvents

	remoteActive atomic.Bool
}

func newMediaCall(f *Factory, stream domain.Stream, events domain.CallEvents) (*MediaCall, error) {
	pc, err := newMediaPeerConnection(f.iceServers)
	if err != nil {
		return nil, err
	}

	c := &MediaCall{
		negotiation: newNegotiation(pc),
		events:      events,
	}

	// Attach local tracks when a capture stream is held; otherwise add
	// receive-only transceivers so the remote stream still arrives.
	local, _ := stream.(*media.Stream)
	if local != nil && local.AudioTrack() != nil {
		if _, err := pc.AddTrack(local.AudioTrack()); err != nil {
			pc.Close()
			return nil, fmt.Errorf("add audio track: %w", err)
		}
	} else {
		if _, err := pc.AddTransceiverFromKind(pion.RTPCodecTypeAudio, pion.RTPTransceiverInit{
			Direction: pion.RTPTransceiverDirectionRecvonly,
		}); err != nil {
			pc.Close()
			return nil, fmt.Errorf("add audio transceiver: %w", err)
		}
	}
	if local != nil && local.VideoTrack() != nil {
		if _, err := pc.AddTrack(local.VideoTrack()); err != nil {
			pc.Close()
			return nil, fmt.Errorf("add video track: %w", err)
		}
	} else {
		if _, err := pc.AddTransceiverFromKind(pion.RTPCodecTypeVideo, pion.RTPTransceiverInit{
			Direction: pion.RTPTransceiverDirectionRecvonly,
		}); err != nil {
			pc.Close()
			return nil, fmt.Errorf("add video transceiver: %w", err)
		}
	}

	pc.OnTrack(func(track *pion.TrackRemote, receiver *pion.RTPReceiver) {
		codec := track.Codec()
		log.Printf("[call] got track: kind=%s codec=%s", track.Kind(), codec.MimeType)

		if !c.remoteActive.Swap(true) && c.events.OnRemoteStream != nil {
			c.events.OnRemoteStream()
		}

		if track.Kind() == pion.RTPCodecTypeVideo {
			go readVideoTrack(track, f.remoteVideo)
		} else {
			go drainTrack(track)
		}
	})

	pc.OnICEConnectionStateChange(func(state pion.ICEConnectionState) {
		log.Printf("[call] ICE connection state: %s", state.String())
	})

	c.forwardCandidates("call", func(cand domain.ICECandidatePayload) {
		if c.events.OnCandidate != nil {
			c.events.OnCandidate(cand)
		}
	})

	return c, nil
}

// Offer creates the local SDP offer for an outbound call.
func (c *MediaCall) Offer() (string, error) {
	return c.createOffer()
}

// Answer applies an inbound call's offer and produces the local answer.
func (c *MediaCall) Answer(remoteSDP string) (string, error) {
	return c.applyOfferAndAnswer(remoteSDP)
}

// AcceptAnswer applies the remote answer to a placed call.
func (c *MediaCall) AcceptAnswer(remoteSDP string) error {
	return c.acceptAnswer(remoteSDP)
}

// AddRemoteCandidate adds a relayed remote ICE candidate once the remote
// description is set.
func (c *MediaCall) AddRemoteCandidate(cand domain.ICECandidatePayload) error {
	return c.addRemoteCandidate(cand)
}

// RemoteActive reports whether the far end's stream has arrived.
func (c *MediaCall) RemoteActive() bool {
	return c.remoteActive.Load()
}

// Close shuts down the call's peer connection.
func (c *MediaCall) Close() {
	c.pc.Close()
}

// newMediaPeerConnection builds a PeerConnection with minimal codec
// registration (H264 video, PCMU audio) and a NACK responder.
func newMediaPeerConnection(iceServers []pion.ICEServer) (*pion.PeerConnection, error) {
	m := &pion.MediaEngine{}

	h264Codec := pion.RTPCodecParameters{
		RTPCodecCapability: pion.RTPCodecCapability{
			MimeType:    pion.MimeTypeH264,
			ClockRate:   90000,
			SDPFmtpLine: "level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=42e01f",
		},
		PayloadType: 102,
	}
	if err := m.RegisterCodec(h264Codec, pion.RTPCodecTypeVideo); err != nil {
		return nil, fmt.Errorf("register H264: %w", err)
	}

	pcmuCodec := pion.RTPCodecParameters{
		RTPCodecCapability: pion.RTPCodecCapability{
			MimeType:  pion.MimeTypePCMU,
			ClockRate: 8000,
			Channels:  1,
		},
		PayloadType: 0,
	}
	if err := m.RegisterCodec(pcmuCodec, pion.RTPCodecTypeAudio); err != nil {
		return nil, fmt.Errorf("register PCMU: %w", err)
	}

	i := &interceptor.Registry{}
	responderFactory, err := nack.NewResponderInterceptor()
	if err != nil {
		return nil, fmt.Errorf("create nack responder: %w", err)
	}
	i.Add(responderFactory)

	api := pion.NewAPI(
		pion.WithMediaEngine(m),
		pion.WithInterceptorRegistry(i),
	)

	pc, err := api.NewPeerConnection(pion.Configuration{
		ICEServers:   iceServers,
		BundlePolicy: pion.BundlePolicyMaxBundle,
	})
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}
	return pc, nil
}

// readVideoTrack depacketizes remote H264 and writes Annex-B NAL units
// to the sink.
func readVideoTrack(track *pion.TrackRemote, w io.Writer) {
	if w == nil {
		drainTrack(track)
		return
	}

	startCode := []byte{0x00, 0x00, 0x00, 0x01}
	depack := NewH264Depacketizer()

	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			log.Printf("[call] video track read error: %v", err)
			return
		}

		for _, nalu := range depack.Depacketize(pkt.Payload) {
			if len(nalu) == 0 {
				continue
			}
			w.Write(startCode)
			w.Write(nalu)
		}
	}
}

func drainTrack(track *pion.TrackRemote) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := track.Read(buf); err != nil {
			return
		}
	}
}
