package registration

import "sync"

// User-facing texts emitted by the controller.
const (
	AdvisoryPasswordTooShort = "password must be at least 8 characters"
	AdvisoryPasswordMismatch = "passwords do not match"
	AdvisoryChallengePending = "environment check in progress, please retry in a few seconds"
	MessageRegistered        = "registration successful"
	MessageVerificationSent  = "verification code sent, check your inbox"
)

// Level classifies a notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notification is one message shown to the user.
type Notification struct {
	Level   Level
	Message string
}

// Notifier displays notifications.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

// Navigator moves the user to the login view.
type Navigator interface {
	NavigateToLogin()
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func()

func (f NavigatorFunc) NavigateToLogin() { f() }

// Recorder buffers notifications until they are drained.
type Recorder struct {
	mu    sync.Mutex
	items []Notification
}

// Notify appends n.
func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	r.items = append(r.items, n)
	r.mu.Unlock()
}

// Drain returns the buffered notifications and empties the buffer.
func (r *Recorder) Drain() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.items
	r.items = nil
	return out
}

type noopNavigator struct{}

func (noopNavigator) NavigateToLogin() {}

type noopNotifier struct{}

func (noopNotifier) Notify(Notification) {}
