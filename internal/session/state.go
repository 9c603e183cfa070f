package session

import "pairdesk/native/internal/domain"

// Accessors expose the observable state the user-facing layer renders.
// Each returns a snapshot; slices are copied.

func (c *Context) Role() domain.SessionRole {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.role
}

func (c *Context) State() domain.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Context) LocalID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.localID
}

func (c *Context) RemoteID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remoteID
}

func (c *Context) Problem() domain.Problem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.problem
}

func (c *Context) Code() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.code
}

func (c *Context) Chat() []domain.ChatEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.ChatEntry, len(c.chat))
	copy(out, c.chat)
	return out
}

// Result returns the most recent evaluation verdict, or nil if none yet.
func (c *Context) Result() *domain.ExecutionResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.result == nil {
		return nil
	}
	r := *c.result
	return &r
}

func (c *Context) Executing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.executing
}

func (c *Context) ViewMode() ViewMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewMode
}

// HasLocalStream reports whether local capture was acquired.
func (c *Context) HasLocalStream() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stream != nil
}

// RemoteStreamActive reports whether the far end's media stream has
// arrived. False also covers "waiting for peer video" after a failed
// or absent media negotiation.
func (c *Context) RemoteStreamActive() bool {
	c.mu.Lock()
	call := c.call
	c.mu.Unlock()
	return call != nil && call.RemoteActive()
}

// MicEnabled reports the local microphone toggle; true has no effect
// when no stream is held.
func (c *Context) MicEnabled() bool {
	c.mu.Lock()
	stream := c.stream
	c.mu.Unlock()
	return stream != nil && stream.MicEnabled()
}

// CamEnabled reports the local camera toggle.
func (c *Context) CamEnabled() bool {
	c.mu.Lock()
	stream := c.stream
	c.mu.Unlock()
	return stream != nil && stream.CamEnabled()
}
