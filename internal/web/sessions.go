package web

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/octobees/signup/internal/client"
	"github.com/octobees/signup/internal/registration"
	"github.com/octobees/signup/internal/storage"
)

// visitorSession is the registration state of one browser.
type visitorSession struct {
	controller *registration.Controller
	notes      *registration.Recorder

	mu       sync.Mutex
	redirect bool
	lastSeen time.Time
}

func (v *visitorSession) session() *registration.Session {
	return v.controller.Session()
}

// takeRedirect reports whether the controller asked for the login view.
func (v *visitorSession) takeRedirect() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	r := v.redirect
	v.redirect = false
	return r
}

// Default limits of a SessionRegistry.
const (
	DefaultSessionTTL  = 30 * time.Minute
	DefaultMaxSessions = 10000
)

// RegistryOptions bound how many sessions a registry holds and for how long.
type RegistryOptions struct {
	// TTL evicts sessions and flashes not touched for this long.
	TTL time.Duration
	// MaxSessions caps live sessions; the least recently seen one is evicted first.
	MaxSessions int
}

type flash struct {
	notes []registration.Notification
	at    time.Time
}

// SessionRegistry keeps one registration session per visitor.
type SessionRegistry struct {
	api    client.RegistrationAPI
	store  storage.Store
	logger logrus.FieldLogger
	ttl    time.Duration
	max    int
	now    func() time.Time

	mu        sync.Mutex
	visitors  map[string]*visitorSession
	flashes   map[string]flash
	lastSweep time.Time
}

// NewSessionRegistry builds a registry whose sessions share api and store.
// Zero options fall back to DefaultSessionTTL and DefaultMaxSessions.
func NewSessionRegistry(api client.RegistrationAPI, store storage.Store, logger logrus.FieldLogger, opts RegistryOptions) *SessionRegistry {
	if opts.TTL <= 0 {
		opts.TTL = DefaultSessionTTL
	}
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = DefaultMaxSessions
	}
	return &SessionRegistry{
		api:      api,
		store:    store,
		logger:   logger,
		ttl:      opts.TTL,
		max:      opts.MaxSessions,
		now:      time.Now,
		visitors: make(map[string]*visitorSession),
		flashes:  make(map[string]flash),
	}
}

// Get returns the visitor's session, activating a new one when needed.
// Deployment flags are read from the cached status once per activation.
func (r *SessionRegistry) Get(ctx context.Context, visitorID string) (*visitorSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	r.sweep(now)
	if v, ok := r.visitors[visitorID]; ok {
		v.lastSeen = now
		return v, nil
	}

	flags := registration.LoadFlags(ctx, r.store)
	v := &visitorSession{notes: &registration.Recorder{}, lastSeen: now}
	toLogin := registration.NavigatorFunc(func() {
		v.mu.Lock()
		v.redirect = true
		v.mu.Unlock()
	})
	controller, err := registration.NewController(registration.NewSession(flags), registration.Deps{
		API:       r.api,
		Store:     storage.Scoped(r.store, "visitor:"+visitorID),
		Notifier:  v.notes,
		Navigator: toLogin,
		Logger:    r.logger.WithField("visitor_id", visitorID),
	})
	if err != nil {
		return nil, err
	}
	v.controller = controller
	if len(r.visitors) >= r.max {
		r.evictOldest()
	}
	r.visitors[visitorID] = v
	return v, nil
}

// Len reports the number of live sessions.
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.visitors)
}

// sweep drops idle sessions and stale flashes. It runs at most once per
// tenth of the TTL. Callers hold r.mu.
func (r *SessionRegistry) sweep(now time.Time) {
	if now.Sub(r.lastSweep) < r.ttl/10 {
		return
	}
	r.lastSweep = now
	cutoff := now.Add(-r.ttl)
	for id, v := range r.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(r.visitors, id)
		}
	}
	for id, f := range r.flashes {
		if f.at.Before(cutoff) {
			delete(r.flashes, id)
		}
	}
}

func (r *SessionRegistry) evictOldest() {
	var (
		oldestID string
		oldest   time.Time
	)
	for id, v := range r.visitors {
		if oldestID == "" || v.lastSeen.Before(oldest) {
			oldestID, oldest = id, v.lastSeen
		}
	}
	if oldestID != "" {
		r.logger.WithField("visitor_id", oldestID).Debug("session registry full, evicting")
		delete(r.visitors, oldestID)
	}
}

// Finish drops the visitor's session and keeps its pending notifications
// for the next page.
func (r *SessionRegistry) Finish(visitorID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.visitors[visitorID]
	if !ok {
		return
	}
	delete(r.visitors, visitorID)
	if notes := v.notes.Drain(); len(notes) > 0 {
		f := r.flashes[visitorID]
		r.flashes[visitorID] = flash{notes: append(f.notes, notes...), at: r.now()}
	}
}

// PopFlash returns and clears notifications left by Finish.
func (r *SessionRegistry) PopFlash(visitorID string) []registration.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	f := r.flashes[visitorID]
	delete(r.flashes, visitorID)
	return f.notes
}
