package peer

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"pairdesk/native/internal/domain"

	pion "github.com/pion/webrtc/v4"
)

const dataChannelLabel = "workspace"

// DataLink is the single ordered, reliable data channel over which
// SyncMessages flow. The offering side creates the channel in Offer; the
// answering side adopts the inbound channel via OnDataChannel. Either
// way bind wires the same handlers, so the protocol above is symmetric.
type DataLink struct {
	negotiation
	events domain.DataEvents

	mu sync.Mutex
	dc *pion.DataChannel

	open      atomic.Bool
	closeDone atomic.Bool
}

func newDataLink(pc *pion.PeerConnection, events domain.DataEvents) *DataLink {
	l := &DataLink{
		negotiation: newNegotiation(pc),
		events:      events,
	}

	pc.OnDataChannel(func(dc *pion.DataChannel) {
		if dc.Label() != dataChannelLabel {
			log.Printf("[data] ignoring unexpected channel %q", dc.Label())
			return
		}
		l.bind(dc)
	})

	pc.OnConnectionStateChange(func(state pion.PeerConnectionState) {
		log.Printf("[data] peer connection state: %s", state.String())
		switch state {
		case pion.PeerConnectionStateFailed,
			pion.PeerConnectionStateClosed,
			pion.PeerConnectionStateDisconnected:
			l.fireClose()
		}
	})

	l.forwardCandidates("data", func(c domain.ICECandidatePayload) {
		if l.events.OnCandidate != nil {
			l.events.OnCandidate(c)
		}
	})

	return l
}

// Offer creates the data channel and the local SDP offer (Joiner side).
func (l *DataLink) Offer() (string, error) {
	dc, err := l.pc.CreateDataChannel(dataChannelLabel, nil)
	if err != nil {
		return "", fmt.Errorf("create data channel: %w", err)
	}
	l.bind(dc)
	return l.createOffer()
}

// Answer applies the remote offer and produces the local answer
// (Initiator side). The data channel arrives via OnDataChannel.
func (l *DataLink) Answer(remoteSDP string) (string, error) {
	return l.applyOfferAndAnswer(remoteSDP)
}

// AcceptAnswer applies the remote answer to a previously created offer.
func (l *DataLink) AcceptAnswer(remoteSDP string) error {
	return l.acceptAnswer(remoteSDP)
}

// AddRemoteCandidate adds a relayed remote ICE candidate once the remote
// description is set.
func (l *DataLink) AddRemoteCandidate(c domain.ICECandidatePayload) error {
	return l.addRemoteCandidate(c)
}

func (l *DataLink) bind(dc *pion.DataChannel) {
	l.mu.Lock()
	l.dc = dc
	l.mu.Unlock()

	dc.OnOpen(func() {
		log.Printf("[data] channel opened")
		l.open.Store(true)
		if l.events.OnOpen != nil {
			l.events.OnOpen()
		}
	})
	dc.OnMessage(func(msg pion.DataChannelMessage) {
		decoded, err := domain.DecodeSyncMessage(msg.Data)
		if err != nil {
			log.Printf("[data] dropping message: %v", err)
			return
		}
		if l.events.OnMessage != nil {
			l.events.OnMessage(decoded)
		}
	})
	dc.OnClose(func() {
		log.Printf("[data] channel closed")
		l.fireClose()
	})
}

// Send transmits a SyncMessage. It silently drops when the channel is
// not open; delivery is never guaranteed.
func (l *DataLink) Send(m domain.SyncMessage) {
	l.mu.Lock()
	dc := l.dc
	l.mu.Unlock()

	if dc == nil || !l.open.Load() || dc.ReadyState() != pion.DataChannelStateOpen {
		return
	}

	data, err := m.Encode()
	if err != nil {
		log.Printf("[data] encode error: %v", err)
		return
	}
	if err := dc.SendText(string(data)); err != nil {
		log.Printf("[data] send error: %v", err)
	}
}

// fireClose notifies OnClose at most once. Guarded by a flag rather than
// sync.Once so Close may be re-entered from inside the callback itself.
func (l *DataLink) fireClose() {
	if !l.closeDone.CompareAndSwap(false, true) {
		return
	}
	l.open.Store(false)
	if l.events.OnClose != nil {
		l.events.OnClose()
	}
}

// Close shuts down the data channel and its peer connection.
func (l *DataLink) Close() {
	l.mu.Lock()
	dc := l.dc
	l.mu.Unlock()

	if dc != nil {
		dc.Close()
	}
	l.pc.Close()
	l.fireClose()
}
