package registration

// Phase is a state of the registration submit flow.
type Phase string

const (
	PhaseIdle              Phase = "idle"
	PhaseValidating        Phase = "validating"
	PhaseRejected          Phase = "rejected"
	PhaseAwaitingChallenge Phase = "awaiting_challenge"
	PhaseSubmitting        Phase = "submitting"
	PhaseSucceeded         Phase = "succeeded"
)

// Event drives a phase transition.
type Event string

const (
	EventSubmit           Event = "submit"
	EventInvalid          Event = "invalid"
	EventIncomplete       Event = "incomplete"
	EventChallengeMissing Event = "challenge_missing"
	EventValid            Event = "valid"
	EventSettle           Event = "settle"
	EventAccepted         Event = "accepted"
	EventFailed           Event = "failed"
)

var transitions = map[Phase]map[Event]Phase{
	PhaseIdle: {
		EventSubmit: PhaseValidating,
	},
	PhaseValidating: {
		EventInvalid:          PhaseRejected,
		EventIncomplete:       PhaseIdle,
		EventChallengeMissing: PhaseAwaitingChallenge,
		EventValid:            PhaseSubmitting,
	},
	PhaseRejected: {
		EventSettle: PhaseIdle,
	},
	PhaseAwaitingChallenge: {
		EventSettle: PhaseIdle,
	},
	PhaseSubmitting: {
		EventAccepted: PhaseSucceeded,
		EventFailed:   PhaseIdle,
	},
}

// Next returns the phase reached from p on e. Unknown transitions leave p
// unchanged and report false.
func Next(p Phase, e Event) (Phase, bool) {
	next, ok := transitions[p][e]
	if !ok {
		return p, false
	}
	return next, true
}
