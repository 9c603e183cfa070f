package domain

// ConnKind tags a negotiated peer connection on the rendezvous relay.
// The data connection and the media call share peer identities but are
// negotiated independently.
type ConnKind string

const (
	ConnData  ConnKind = "data"
	ConnMedia ConnKind = "media"
)

// ICECandidatePayload is the JSON structure for relayed ICE candidates.
type ICECandidatePayload struct {
	SDPMid        string `json:"sdpMid"`
	SDPMLineIndex int    `json:"sdpMLineIndex"`
	Candidate     string `json:"candidate"`
}

// RemoteSignal is one relayed signaling event from the remote peer: an
// SDP offer/answer or a trickled ICE candidate for one connection.
type RemoteSignal struct {
	PeerID    string
	ConnID    string
	Kind      ConnKind
	SDP       string
	Candidate *ICECandidatePayload
}
