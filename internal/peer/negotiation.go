// Package peer wraps pion PeerConnections as the two links of a session:
// the data link carrying workspace sync messages and the media call
// carrying the audio/video stream pair. Both use trickle ICE through the
// rendezvous relay.
package peer

import (
	"fmt"
	"log"
	"strings"
	"sync"

	"pairdesk/native/internal/domain"

	pion "github.com/pion/webrtc/v4"
)

// negotiation is the SDP/ICE handshake state shared by the data link and
// the media call.
type negotiation struct {
	pc             *pion.PeerConnection
	remoteDescSet  chan struct{}
	remoteDescOnce sync.Once
}

func newNegotiation(pc *pion.PeerConnection) negotiation {
	return negotiation{pc: pc, remoteDescSet: make(chan struct{})}
}

// createOffer creates an SDP offer and sets it as the local description.
func (n *negotiation) createOffer() (string, error) {
	offer, err := n.pc.CreateOffer(nil)
	if err != nil {
		return "", fmt.Errorf("create offer: %w", err)
	}
	if err := n.pc.SetLocalDescription(offer); err != nil {
		return "", fmt.Errorf("set local description: %w", err)
	}
	return offer.SDP, nil
}

// applyOfferAndAnswer sets the remote offer and produces the local answer.
func (n *negotiation) applyOfferAndAnswer(remoteSDP string) (string, error) {
	offer := pion.SessionDescription{Type: pion.SDPTypeOffer, SDP: remoteSDP}
	if err := n.pc.SetRemoteDescription(offer); err != nil {
		return "", fmt.Errorf("set remote description: %w", err)
	}
	n.markRemoteDescSet()

	answer, err := n.pc.CreateAnswer(nil)
	if err != nil {
		return "", fmt.Errorf("create answer: %w", err)
	}
	if err := n.pc.SetLocalDescription(answer); err != nil {
		return "", fmt.Errorf("set local description: %w", err)
	}
	return answer.SDP, nil
}

// acceptAnswer sets the remote answer and unblocks remote candidate addition.
func (n *negotiation) acceptAnswer(remoteSDP string) error {
	answer := pion.SessionDescription{Type: pion.SDPTypeAnswer, SDP: remoteSDP}
	if err := n.pc.SetRemoteDescription(answer); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	n.markRemoteDescSet()
	return nil
}

func (n *negotiation) markRemoteDescSet() {
	n.remoteDescOnce.Do(func() { close(n.remoteDescSet) })
}

// addRemoteCandidate waits for the remote description to be set, then adds
// the candidate. Callers run it off the event path.
func (n *negotiation) addRemoteCandidate(candidate domain.ICECandidatePayload) error {
	<-n.remoteDescSet

	sdpMLineIndex := uint16(candidate.SDPMLineIndex)
	init := pion.ICECandidateInit{
		Candidate:     candidate.Candidate,
		SDPMid:        &candidate.SDPMid,
		SDPMLineIndex: &sdpMLineIndex,
	}
	if err := n.pc.AddICECandidate(init); err != nil {
		return fmt.Errorf("add ice candidate: %w", err)
	}
	return nil
}

// forwardCandidates registers the callback for locally discovered ICE
// candidates, filtering loopback addresses.
func (n *negotiation) forwardCandidates(label string, send func(domain.ICECandidatePayload)) {
	n.pc.OnICECandidate(func(c *pion.ICECandidate) {
		if c == nil {
			log.Printf("[%s] ICE gathering complete", label)
			return
		}

		j := c.ToJSON()
		if isLoopback(j.Candidate) {
			return
		}

		sdpMid := ""
		if j.SDPMid != nil {
			sdpMid = *j.SDPMid
		}
		sdpMLineIndex := 0
		if j.SDPMLineIndex != nil {
			sdpMLineIndex = int(*j.SDPMLineIndex)
		}

		send(domain.ICECandidatePayload{
			SDPMid:        sdpMid,
			SDPMLineIndex: sdpMLineIndex,
			Candidate:     j.Candidate,
		})
	})
}

func isLoopback(candidate string) bool {
	return strings.Contains(candidate, "127.0.0.1") || strings.Contains(candidate, "::1 ")
}
