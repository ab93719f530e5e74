package registration

import "sync"

// SubmissionState is the in-flight status of a session.
type SubmissionState struct {
	Loading           bool
	ChallengeToken    string
	HasChallengeToken bool
}

// Session owns the form input and submission state of one visitor.
type Session struct {
	mu        sync.Mutex
	flags     DeploymentFlags
	input     Input
	loading   bool
	phase     Phase
	challenge *ChallengeSlot
}

// NewSession starts an idle session gated by flags.
func NewSession(flags DeploymentFlags) *Session {
	return &Session{
		flags:     flags,
		phase:     PhaseIdle,
		challenge: NewChallengeSlot(),
	}
}

// Flags returns the deployment flags the session was created with.
func (s *Session) Flags() DeploymentFlags {
	return s.flags
}

// Challenge exposes the slot completed by the challenge widget.
func (s *Session) Challenge() *ChallengeSlot {
	return s.challenge
}

// SetField replaces one field of the input.
func (s *Session) SetField(name Field, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := SetField(s.input, name, value)
	if err != nil {
		return err
	}
	s.input = next
	return nil
}

// Input returns a snapshot of the form values.
func (s *Session) Input() Input {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input
}

// State returns a snapshot of the submission state.
func (s *Session) State() SubmissionState {
	token, ok := s.challenge.Token()
	s.mu.Lock()
	defer s.mu.Unlock()
	return SubmissionState{Loading: s.loading, ChallengeToken: token, HasChallengeToken: ok}
}

// Phase returns the current phase of the submit flow.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *Session) fire(e Event) (Phase, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, ok := Next(s.phase, e)
	s.phase = next
	return next, ok
}

func (s *Session) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
}

// captureAffiliate stores code unless a code is already held.
func (s *Session) captureAffiliate(code string) bool {
	if code == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.input.AffiliateCode != "" {
		return false
	}
	s.input.AffiliateCode = code
	return true
}
