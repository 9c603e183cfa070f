package session

import (
	"context"
	"log"
	"time"

	"pairdesk/native/internal/domain"

	"github.com/google/uuid"
)

// applySync applies one received message to the local workspace. Every
// rule is a wholesale replacement: the last delivered message wins, in
// transport order. Decode failures drop the message at the boundary.
func (c *Context) applySync(m domain.SyncMessage) {
	switch m.Kind {
	case domain.SyncCode:
		code, err := m.CodePayload()
		if err != nil {
			log.Printf("[session] %v", err)
			return
		}
		c.mu.Lock()
		c.code = code
		c.mu.Unlock()

	case domain.SyncProblem:
		p, err := m.ProblemPayload()
		if err != nil {
			log.Printf("[session] %v", err)
			return
		}
		// The problem and the candidate's starter-code reset land under
		// one lock so no intermediate state is observable.
		c.mu.Lock()
		c.problem = p
		if c.role == domain.RoleJoiner {
			c.code = p.StarterCode
		}
		c.mu.Unlock()

	case domain.SyncChat:
		entry, err := m.ChatPayload()
		if err != nil {
			log.Printf("[session] %v", err)
			return
		}
		entry.Sender = domain.SenderRemote
		c.mu.Lock()
		c.chat = append(c.chat, entry)
		c.mu.Unlock()

	case domain.SyncResult:
		r, err := m.ResultPayload()
		if err != nil {
			log.Printf("[session] %v", err)
			return
		}
		c.mu.Lock()
		c.result = &r
		c.mu.Unlock()
	}

	c.observer.WorkspaceUpdated()
}

// send transmits best-effort: a silent no-op when no link exists or the
// channel is not open. Local state is never blocked on transmission.
func (c *Context) send(m domain.SyncMessage) {
	c.mu.Lock()
	link := c.data
	c.mu.Unlock()

	if link != nil {
		link.Send(m)
	}
}

// SetCode replaces the shared code buffer with the local edit and
// broadcasts it. Concurrent edits by both peers resolve by last write
// wins with no merge; simultaneous typing will overwrite.
func (c *Context) SetCode(code string) {
	c.mu.Lock()
	c.code = code
	c.mu.Unlock()

	c.send(domain.NewCodeUpdate(code))
	c.observer.WorkspaceUpdated()
}

// SendChat appends a local chat entry immediately, regardless of
// transport state, and broadcasts it.
func (c *Context) SendChat(text string) domain.ChatEntry {
	entry := domain.ChatEntry{
		ID:        uuid.NewString(),
		Sender:    domain.SenderUser,
		Text:      text,
		Timestamp: nowMillis(),
	}

	c.mu.Lock()
	c.chat = append(c.chat, entry)
	c.mu.Unlock()

	c.send(domain.NewChatMessage(entry))
	c.observer.WorkspaceUpdated()
	return entry
}

// GenerateProblem asks the oracle for a new problem, installs it locally
// together with its starter code, and broadcasts both. Available in any
// connection state; sync is best-effort.
func (c *Context) GenerateProblem(ctx context.Context, difficulty domain.Difficulty) domain.Problem {
	p := c.oracle.GenerateProblem(ctx, difficulty)

	c.mu.Lock()
	c.problem = p
	c.code = p.StarterCode
	c.mu.Unlock()

	c.send(domain.NewProblemUpdate(p))
	c.send(domain.NewCodeUpdate(p.StarterCode))
	c.observer.WorkspaceUpdated()
	return p
}

// RunCode submits the current buffer to the evaluation oracle and
// broadcasts the verdict. The executing flag is observable while the
// call is in flight; an in-flight call cannot be cancelled, only its
// result ignored.
func (c *Context) RunCode(ctx context.Context) domain.ExecutionResult {
	c.mu.Lock()
	problem := c.problem
	code := c.code
	c.executing = true
	c.mu.Unlock()
	c.observer.WorkspaceUpdated()

	result := c.oracle.EvaluateCode(ctx, problem, code)

	c.mu.Lock()
	c.result = &result
	c.executing = false
	c.mu.Unlock()

	c.send(domain.NewResultUpdate(result))
	c.observer.WorkspaceUpdated()
	return result
}

// SetMicEnabled toggles the local microphone track, if capture is held.
func (c *Context) SetMicEnabled(enabled bool) {
	c.mu.Lock()
	stream := c.stream
	c.mu.Unlock()
	if stream != nil {
		stream.SetMicEnabled(enabled)
	}
}

// SetCamEnabled toggles the local camera track, if capture is held.
func (c *Context) SetCamEnabled(enabled bool) {
	c.mu.Lock()
	stream := c.stream
	c.mu.Unlock()
	if stream != nil {
		stream.SetCamEnabled(enabled)
	}
}

// SetViewMode switches the communication pane.
func (c *Context) SetViewMode(mode ViewMode) {
	c.mu.Lock()
	c.viewMode = mode
	c.mu.Unlock()
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
