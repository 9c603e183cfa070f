package domain

import "context"

// Signaler manages the connection to the rendezvous/identity service.
// The service assigns the local peer identity and relays SDP and ICE
// between identities; its own wire protocol is not part of the core.
type Signaler interface {
	Connect() error
	SendOffer(remoteID, connID string, kind ConnKind, sdp string)
	SendAnswer(remoteID, connID string, kind ConnKind, sdp string)
	SendCandidate(remoteID, connID string, kind ConnKind, c ICECandidatePayload)
	Close()
}

// SignalHandler receives rendezvous events.
type SignalHandler interface {
	OnAssignedID(id string)
	OnRemoteOffer(sig RemoteSignal)
	OnRemoteAnswer(sig RemoteSignal)
	OnRemoteCandidate(sig RemoteSignal)
	OnSignalError(err error)
}

// DataEvents are the callbacks a DataLink fires as the channel moves
// through its lifecycle. OnClose fires at most once.
type DataEvents struct {
	OnOpen      func()
	OnMessage   func(SyncMessage)
	OnClose     func()
	OnCandidate func(ICECandidatePayload)
}

// DataLink is the bidirectional ordered channel to the remote peer over
// which SyncMessages flow. Delivery is in-order and at-most-once; there
// is no buffering of messages sent before the channel opens.
type DataLink interface {
	// Offer creates the local SDP offer (Joiner side).
	Offer() (string, error)
	// Answer applies a remote offer and produces the answer (Initiator side).
	Answer(remoteSDP string) (string, error)
	// AcceptAnswer applies the remote answer to a previously sent offer.
	AcceptAnswer(remoteSDP string) error
	AddRemoteCandidate(c ICECandidatePayload) error
	// Send transmits a message. It is a silent no-op when the channel is
	// not open; callers must not assume delivery.
	Send(m SyncMessage)
	Close()
}

// CallEvents are the callbacks a MediaCall fires.
type CallEvents struct {
	OnRemoteStream func()
	OnCandidate    func(ICECandidatePayload)
}

// MediaCall is the audio/video connection negotiated alongside the data
// link. Failure to negotiate is never fatal to the session.
type MediaCall interface {
	Offer() (string, error)
	Answer(remoteSDP string) (string, error)
	AcceptAnswer(remoteSDP string) error
	AddRemoteCandidate(c ICECandidatePayload) error
	// RemoteActive reports whether the far end's stream has arrived.
	RemoteActive() bool
	Close()
}

// LinkFactory creates peer connections. The production implementation
// wraps pion; tests substitute in-memory links.
type LinkFactory interface {
	NewDataLink(events DataEvents) (DataLink, error)
	NewMediaCall(stream Stream, events CallEvents) (MediaCall, error)
}

// Stream is a local audio/video capture stream. The mic/cam toggles
// mutate only enabled flags on the underlying tracks; capture is never
// stopped and restarted, so toggling is immediate and reversible.
type Stream interface {
	SetMicEnabled(enabled bool)
	SetCamEnabled(enabled bool)
	MicEnabled() bool
	CamEnabled() bool
	Close()
}

// Capture acquires the local media stream. Acquisition may be refused
// by the platform; callers treat an error as "local stream absent",
// not as a session failure. A single acquired stream is shared between
// call placing and call answering.
type Capture interface {
	Acquire() (Stream, error)
}

// Oracle is the external problem-generation and code-evaluation engine.
// Both calls always produce a well-formed value: any failure (network,
// credentials, malformed output) degrades to a fixed fallback rather
// than an error.
type Oracle interface {
	GenerateProblem(ctx context.Context, difficulty Difficulty) Problem
	EvaluateCode(ctx context.Context, problem Problem, code string) ExecutionResult
}
