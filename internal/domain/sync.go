package domain

import (
	"encoding/json"
	"fmt"
)

// SyncKind discriminates the payload carried by a SyncMessage.
type SyncKind string

const (
	SyncProblem SyncKind = "PROBLEM"
	SyncCode    SyncKind = "CODE"
	SyncChat    SyncKind = "CHAT"
	SyncResult  SyncKind = "RESULT"
)

// SyncMessage is the unit of exchange on the data channel: a tagged union
// over the four update kinds. Messages carry no sequence numbers or
// timestamps; the channel's delivery order is the convergence order.
type SyncMessage struct {
	Kind    SyncKind        `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// NewProblemUpdate wraps a problem for transmission.
func NewProblemUpdate(p Problem) SyncMessage {
	return mustSync(SyncProblem, p)
}

// NewCodeUpdate wraps the full code buffer for transmission.
func NewCodeUpdate(code string) SyncMessage {
	return mustSync(SyncCode, code)
}

// NewChatMessage wraps a chat entry for transmission.
func NewChatMessage(entry ChatEntry) SyncMessage {
	return mustSync(SyncChat, entry)
}

// NewResultUpdate wraps an evaluation result for transmission.
func NewResultUpdate(r ExecutionResult) SyncMessage {
	return mustSync(SyncResult, r)
}

func mustSync(kind SyncKind, payload any) SyncMessage {
	data, err := json.Marshal(payload)
	if err != nil {
		// All payload types are plain JSON-able structs, so this cannot
		// fail at runtime.
		panic(fmt.Sprintf("marshal %s payload: %v", kind, err))
	}
	return SyncMessage{Kind: kind, Payload: data}
}

// DecodeSyncMessage validates raw bytes from the transport into a
// SyncMessage. Unknown kinds are rejected here, at the boundary, so
// untyped data never propagates inward.
func DecodeSyncMessage(data []byte) (SyncMessage, error) {
	var msg SyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return SyncMessage{}, fmt.Errorf("unmarshal sync message: %w", err)
	}
	switch msg.Kind {
	case SyncProblem, SyncCode, SyncChat, SyncResult:
	default:
		return SyncMessage{}, fmt.Errorf("unknown sync kind %q", msg.Kind)
	}
	return msg, nil
}

// ProblemPayload decodes the payload of a PROBLEM message.
func (m SyncMessage) ProblemPayload() (Problem, error) {
	var p Problem
	if err := json.Unmarshal(m.Payload, &p); err != nil {
		return Problem{}, fmt.Errorf("decode problem payload: %w", err)
	}
	return p, nil
}

// CodePayload decodes the payload of a CODE message.
func (m SyncMessage) CodePayload() (string, error) {
	var code string
	if err := json.Unmarshal(m.Payload, &code); err != nil {
		return "", fmt.Errorf("decode code payload: %w", err)
	}
	return code, nil
}

// ChatPayload decodes the payload of a CHAT message.
func (m SyncMessage) ChatPayload() (ChatEntry, error) {
	var entry ChatEntry
	if err := json.Unmarshal(m.Payload, &entry); err != nil {
		return ChatEntry{}, fmt.Errorf("decode chat payload: %w", err)
	}
	return entry, nil
}

// ResultPayload decodes the payload of a RESULT message.
func (m SyncMessage) ResultPayload() (ExecutionResult, error) {
	var r ExecutionResult
	if err := json.Unmarshal(m.Payload, &r); err != nil {
		return ExecutionResult{}, fmt.Errorf("decode result payload: %w", err)
	}
	return r, nil
}

// Encode serializes the message for the wire.
func (m SyncMessage) Encode() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal sync message: %w", err)
	}
	return data, nil
}
