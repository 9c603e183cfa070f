package session

import (
	"log"

	"pairdesk/native/internal/domain"

	"github.com/google/uuid"
)

// Compile-time interface check.
var _ domain.SignalHandler = (*Context)(nil)

// OnAssignedID records the identity the rendezvous service assigned us.
func (c *Context) OnAssignedID(id string) {
	c.mu.Lock()
	c.localID = id
	c.mu.Unlock()
	c.observer.IdentityAssigned(id)
}

// OnRemoteOffer handles an inbound negotiation: the data connection from
// a joiner, or the media call from either side.
func (c *Context) OnRemoteOffer(sig domain.RemoteSignal) {
	switch sig.Kind {
	case domain.ConnData:
		c.acceptDataOffer(sig)
	case domain.ConnMedia:
		c.answerCall(sig)
	default:
		log.Printf("[session] ignoring offer of unknown kind %q", sig.Kind)
	}
}

// acceptDataOffer answers a joiner's data connection. Only the Initiator
// receives these; it never dials out itself.
func (c *Context) acceptDataOffer(sig domain.RemoteSignal) {
	c.mu.Lock()
	if c.closed || c.role != domain.RoleInitiator {
		c.mu.Unlock()
		log.Printf("[session] ignoring data offer from %s", sig.PeerID)
		return
	}
	if c.data != nil {
		// Sessions are strictly two-party; a second joiner is ignored.
		c.mu.Unlock()
		log.Printf("[session] already have a peer, ignoring offer from %s", sig.PeerID)
		return
	}
	c.pendingRemote = sig.PeerID
	c.dataConnID = sig.ConnID
	c.mu.Unlock()

	link, err := c.links.NewDataLink(c.dataEvents(sig.ConnID, sig.PeerID))
	if err != nil {
		log.Printf("[session] create data link: %v", err)
		return
	}

	answer, err := link.Answer(sig.SDP)
	if err != nil {
		log.Printf("[session] answer data offer: %v", err)
		link.Close()
		return
	}

	c.mu.Lock()
	c.data = link
	c.mu.Unlock()

	c.signaler.SendAnswer(sig.PeerID, sig.ConnID, domain.ConnData, answer)
}

// OnRemoteAnswer completes a negotiation this side initiated.
func (c *Context) OnRemoteAnswer(sig domain.RemoteSignal) {
	c.mu.Lock()
	var link interface{ AcceptAnswer(string) error }
	switch {
	case sig.Kind == domain.ConnData && c.data != nil && sig.ConnID == c.dataConnID:
		link = c.data
	case sig.Kind == domain.ConnMedia && c.call != nil && sig.ConnID == c.callConnID:
		link = c.call
	}
	c.mu.Unlock()

	if link == nil {
		log.Printf("[session] stray answer from %s (%s)", sig.PeerID, sig.Kind)
		return
	}
	if err := link.AcceptAnswer(sig.SDP); err != nil {
		log.Printf("[session] accept %s answer: %v", sig.Kind, err)
		if sig.Kind == domain.ConnData {
			c.enterError()
		}
	}
}

// OnRemoteCandidate routes a trickled candidate to the matching link.
// Addition waits for the remote description, so it runs off this event
// path.
func (c *Context) OnRemoteCandidate(sig domain.RemoteSignal) {
	if sig.Candidate == nil {
		return
	}

	c.mu.Lock()
	var link interface {
		AddRemoteCandidate(domain.ICECandidatePayload) error
	}
	switch {
	case sig.Kind == domain.ConnData && c.data != nil && sig.ConnID == c.dataConnID:
		link = c.data
	case sig.Kind == domain.ConnMedia && c.call != nil && sig.ConnID == c.callConnID:
		link = c.call
	}
	c.mu.Unlock()

	if link == nil {
		return
	}
	cand := *sig.Candidate
	go func() {
		if err := link.AddRemoteCandidate(cand); err != nil {
			log.Printf("[session] add remote candidate: %v", err)
		}
	}()
}

// OnSignalError surfaces rendezvous failures. A failure while dialing
// makes the attempt fail; otherwise the session continues (the local
// identity simply stays unset or the relay goes quiet).
func (c *Context) OnSignalError(err error) {
	log.Printf("[session] signaling: %v", err)
	c.enterError()
}

// placeCall is the Joiner's second step, run only after the data channel
// has opened. If the transport closed meanwhile the call is skipped.
func (c *Context) placeCall() {
	c.mu.Lock()
	if c.closed || c.state != domain.StateConnected || c.call != nil {
		c.mu.Unlock()
		return
	}
	stream := c.acquireStreamLocked()
	remoteID := c.remoteID
	connID := uuid.NewString()
	c.callConnID = connID
	c.mu.Unlock()

	call, err := c.links.NewMediaCall(stream, c.callEvents(connID, remoteID))
	if err != nil {
		// Media failure is never fatal; the session continues data-only.
		log.Printf("[session] create media call: %v", err)
		return
	}

	offer, err := call.Offer()
	if err != nil {
		log.Printf("[session] media offer: %v", err)
		call.Close()
		return
	}

	c.mu.Lock()
	if c.closed || c.state != domain.StateConnected {
		c.mu.Unlock()
		call.Close()
		return
	}
	c.call = call
	c.mu.Unlock()

	c.signaler.SendOffer(remoteID, connID, domain.ConnMedia, offer)
}

// answerCall answers an inbound media call with the local stream,
// acquiring one first if not already held.
func (c *Context) answerCall(sig domain.RemoteSignal) {
	c.mu.Lock()
	if c.closed || c.call != nil {
		c.mu.Unlock()
		log.Printf("[session] ignoring media offer from %s", sig.PeerID)
		return
	}
	stream := c.acquireStreamLocked()
	c.callConnID = sig.ConnID
	c.mu.Unlock()

	call, err := c.links.NewMediaCall(stream, c.callEvents(sig.ConnID, sig.PeerID))
	if err != nil {
		log.Printf("[session] create media call: %v", err)
		return
	}

	answer, err := call.Answer(sig.SDP)
	if err != nil {
		log.Printf("[session] answer media offer: %v", err)
		call.Close()
		return
	}

	c.mu.Lock()
	c.call = call
	c.mu.Unlock()

	c.signaler.SendAnswer(sig.PeerID, sig.ConnID, domain.ConnMedia, answer)
}

func (c *Context) callEvents(connID, remoteID string) domain.CallEvents {
	return domain.CallEvents{
		OnRemoteStream: func() {
			log.Printf("[session] remote stream arrived")
			c.observer.RemoteStreamChanged()
		},
		OnCandidate: func(cand domain.ICECandidatePayload) {
			c.signaler.SendCandidate(remoteID, connID, domain.ConnMedia, cand)
		},
	}
}

// acquireStreamLocked acquires the local capture stream once and shares
// it between call placing and answering. Denial leaves the stream
// absent; that is not an error. Callers hold c.mu.
func (c *Context) acquireStreamLocked() domain.Stream {
	if c.captureTried {
		return c.stream
	}
	c.captureTried = true

	if c.capture == nil {
		return nil
	}
	stream, err := c.capture.Acquire()
	if err != nil {
		log.Printf("[session] local capture unavailable: %v", err)
		return nil
	}
	c.stream = stream
	return stream
}
