// Package session is the peer session synchronization layer: it owns the
// lifecycle state machine, the shared workspace state, and the
// convergence rules applied to messages exchanged with the remote peer.
package session

import (
	"fmt"
	"log"
	"sync"

	"pairdesk/native/internal/domain"

	"github.com/google/uuid"
)

// ViewMode selects which communication pane the user-facing layer shows.
type ViewMode string

const (
	ViewChat  ViewMode = "chat"
	ViewVideo ViewMode = "video"
)

// Observer receives session change notifications. Implementations must
// not block; they may call back into the Context's accessors.
type Observer interface {
	IdentityAssigned(id string)
	ConnectionStateChanged(state domain.ConnectionState)
	WorkspaceUpdated()
	RemoteStreamChanged()
	PeerDisconnected()
}

// initialProblem is shown before the interviewer selects anything.
func initialProblem() domain.Problem {
	return domain.Problem{
		ID:          "waiting",
		Title:       "Waiting for Problem",
		Description: "The interviewer has not selected a problem yet.",
		Difficulty:  domain.DifficultyMedium,
		Tags:        []string{},
		Examples:    []domain.ProblemExample{},
		StarterCode: "// Wait for interviewer...",
	}
}

// Context owns one session: identity, role, connection state, both peer
// links, the local capture stream, and the shared workspace state. All
// mutation happens under one mutex; every shared-state update is a
// wholesale replacement, so interleaved events resolve by last write
// wins with no partial-update states.
type Context struct {
	signaler domain.Signaler
	links    domain.LinkFactory
	capture  domain.Capture
	oracle   domain.Oracle
	observer Observer

	mu      sync.Mutex
	role    domain.SessionRole
	state   domain.ConnectionState
	localID string
	// remoteID is recorded for display once connected and cleared on
	// disconnect.
	remoteID string
	// pendingRemote is the identity the data link is being negotiated
	// with, promoted to remoteID on channel open.
	pendingRemote string

	data       domain.DataLink
	dataConnID string
	call       domain.MediaCall
	callConnID string

	stream       domain.Stream
	captureTried bool

	problem   domain.Problem
	code      string
	chat      []domain.ChatEntry
	result    *domain.ExecutionResult
	executing bool
	viewMode  ViewMode

	closed bool
}

// New creates an idle session context.
func New(signaler domain.Signaler, links domain.LinkFactory, capture domain.Capture, oracle domain.Oracle, observer Observer) *Context {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Context{
		signaler: signaler,
		links:    links,
		capture:  capture,
		oracle:   oracle,
		observer: observer,
		state:    domain.StateIdle,
		problem:  initialProblem(),
		viewMode: ViewChat,
	}
}

// StartAsInitiator fixes the Initiator role and enters the workspace,
// waiting for a joiner. The local capture stream is acquired eagerly;
// denial leaves the session data-only.
func (c *Context) StartAsInitiator() error {
	c.mu.Lock()
	if c.role != domain.RoleNone {
		c.mu.Unlock()
		return fmt.Errorf("role already chosen: %s", c.role)
	}
	c.role = domain.RoleInitiator
	c.state = domain.StateConnecting
	c.mu.Unlock()

	c.observer.ConnectionStateChanged(domain.StateConnecting)

	go func() {
		c.mu.Lock()
		c.acquireStreamLocked()
		c.mu.Unlock()
	}()

	return nil
}

// Join fixes the Joiner role and dials the initiator's identity. On
// failure the state is Error and Join may be re-invoked with a new
// identity.
func (c *Context) Join(remoteID string) error {
	if remoteID == "" {
		return fmt.Errorf("remote identity must not be empty")
	}

	c.mu.Lock()
	if c.role == domain.RoleInitiator {
		c.mu.Unlock()
		return fmt.Errorf("initiator cannot dial out")
	}
	if c.state == domain.StateConnecting || c.state == domain.StateConnected {
		c.mu.Unlock()
		return fmt.Errorf("join already in progress")
	}
	if c.state.Terminal() {
		c.mu.Unlock()
		return fmt.Errorf("session is over; start a new one")
	}
	c.role = domain.RoleJoiner
	c.state = domain.StateConnecting
	c.pendingRemote = remoteID
	connID := uuid.NewString()
	c.dataConnID = connID
	c.mu.Unlock()

	c.observer.ConnectionStateChanged(domain.StateConnecting)

	link, err := c.links.NewDataLink(c.dataEvents(connID, remoteID))
	if err != nil {
		c.enterError()
		return fmt.Errorf("create data link: %w", err)
	}

	offer, err := link.Offer()
	if err != nil {
		link.Close()
		c.enterError()
		return fmt.Errorf("create offer: %w", err)
	}

	c.mu.Lock()
	c.data = link
	c.mu.Unlock()

	c.signaler.SendOffer(remoteID, connID, domain.ConnData, offer)
	return nil
}

// dataEvents wires a data link's lifecycle into the session. The
// attempt's connID identifies the link in open/close events, so a late
// event from an abandoned attempt cannot disturb a newer one.
func (c *Context) dataEvents(connID, remoteID string) domain.DataEvents {
	return domain.DataEvents{
		OnOpen:    func() { c.onDataOpen(connID) },
		OnMessage: c.applySync,
		OnClose:   func() { c.onDataClose(connID) },
		OnCandidate: func(cand domain.ICECandidatePayload) {
			c.signaler.SendCandidate(remoteID, connID, domain.ConnData, cand)
		},
	}
}

// onDataOpen runs when the data channel opens: the session is connected
// and the Joiner proceeds to place the media call.
func (c *Context) onDataOpen(connID string) {
	c.mu.Lock()
	if c.closed || c.data == nil || connID != c.dataConnID {
		c.mu.Unlock()
		return
	}
	c.state = domain.StateConnected
	c.remoteID = c.pendingRemote
	placeCall := c.role == domain.RoleJoiner
	c.mu.Unlock()

	log.Printf("[session] connected to %s", c.RemoteID())
	c.observer.ConnectionStateChanged(domain.StateConnected)

	if placeCall {
		go c.placeCall()
	}
}

// onDataClose runs when the transport closes or fails. While connecting
// this is a failed attempt (Error, retryable); while connected it is a
// terminal disconnect. Events from a link that is no longer the current
// attempt are dropped.
func (c *Context) onDataClose(connID string) {
	c.mu.Lock()
	if c.closed || connID != c.dataConnID {
		c.mu.Unlock()
		return
	}
	switch c.state {
	case domain.StateConnecting:
		c.state = domain.StateError
		link := c.data
		c.data = nil
		c.mu.Unlock()
		if link != nil {
			// Off the event path: this may run inside the link's own
			// close callback.
			go link.Close()
		}
		log.Printf("[session] connection attempt failed")
		c.observer.ConnectionStateChanged(domain.StateError)

	case domain.StateConnected:
		c.state = domain.StateDisconnected
		c.remoteID = ""
		c.pendingRemote = ""
		link := c.data
		c.data = nil
		c.chat = append(c.chat, domain.ChatEntry{
			ID:        uuid.NewString(),
			Sender:    domain.SenderSystem,
			Text:      "Peer disconnected.",
			Timestamp: nowMillis(),
		})
		c.mu.Unlock()
		if link != nil {
			go link.Close()
		}
		log.Printf("[session] peer disconnected")
		c.observer.ConnectionStateChanged(domain.StateDisconnected)
		c.observer.PeerDisconnected()
		c.observer.WorkspaceUpdated()

	default:
		// Duplicate close events are ignored.
		c.mu.Unlock()
	}
}

// enterError fails the current connection attempt. The attempt's link is
// released so a fresh Join starts from a clean slate.
func (c *Context) enterError() {
	c.mu.Lock()
	if c.closed || c.state != domain.StateConnecting {
		c.mu.Unlock()
		return
	}
	c.state = domain.StateError
	link := c.data
	c.data = nil
	c.mu.Unlock()

	if link != nil {
		link.Close()
	}
	c.observer.ConnectionStateChanged(domain.StateError)
}

// Close tears down both links, the capture stream, and marks the
// session finished. It does not close the signaler, which the caller
// owns.
func (c *Context) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	data, call, stream := c.data, c.call, c.stream
	c.data, c.call, c.stream = nil, nil, nil
	c.mu.Unlock()

	if call != nil {
		call.Close()
	}
	if data != nil {
		data.Close()
	}
	if stream != nil {
		stream.Close()
	}
}

type nopObserver struct{}

func (nopObserver) IdentityAssigned(string)                        {}
func (nopObserver) ConnectionStateChanged(domain.ConnectionState)  {}
func (nopObserver) WorkspaceUpdated()                              {}
func (nopObserver) RemoteStreamChanged()                           {}
func (nopObserver) PeerDisconnected()                              {}
