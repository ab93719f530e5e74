package registration

import "sync"

// ChallengeSlot receives the bot-challenge token exactly once.
type ChallengeSlot struct {
	mu    sync.Mutex
	token string
	done  chan struct{}
}

// NewChallengeSlot returns an unresolved slot.
func NewChallengeSlot() *ChallengeSlot {
	return &ChallengeSlot{done: make(chan struct{})}
}

// Resolve stores token if the slot is still empty. It reports whether the
// token was accepted; empty tokens and second solves are ignored.
func (c *ChallengeSlot) Resolve(token string) bool {
	if token == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" {
		return false
	}
	c.token = token
	close(c.done)
	return true
}

// Token returns the current token and whether the slot is resolved.
func (c *ChallengeSlot) Token() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token, c.token != ""
}

// Done is closed once a token has been accepted.
func (c *ChallengeSlot) Done() <-chan struct{} {
	return c.done
}
