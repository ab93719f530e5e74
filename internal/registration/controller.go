package registration

import (
	"context"
	"errors"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/octobees/signup/internal/client"
	"github.com/octobees/signup/internal/dto"
	"github.com/octobees/signup/internal/storage"
)

const minPasswordLength = 8

// Outcome summarises what a controller operation did.
type Outcome string

const (
	OutcomeNoop              Outcome = "noop"
	OutcomeRejected          Outcome = "rejected"
	OutcomeAwaitingChallenge Outcome = "awaiting_challenge"
	OutcomeSucceeded         Outcome = "succeeded"
	OutcomeFailed            Outcome = "failed"
	OutcomeSent              Outcome = "sent"
)

// Deps are the collaborators a Controller drives.
type Deps struct {
	API       client.RegistrationAPI
	Store     storage.Store
	Notifier  Notifier
	Navigator Navigator
	Logger    logrus.FieldLogger
}

// Controller runs the submit and verification-code flows of one session.
type Controller struct {
	session   *Session
	api       client.RegistrationAPI
	store     storage.Store
	notifier  Notifier
	navigator Navigator
	log       logrus.FieldLogger
}

// NewController binds session to its collaborators.
func NewController(session *Session, deps Deps) (*Controller, error) {
	if session == nil {
		return nil, errors.New("session must not be nil")
	}
	if deps.API == nil {
		return nil, errors.New("registration api must not be nil")
	}
	c := &Controller{
		session:   session,
		api:       deps.API,
		store:     deps.Store,
		notifier:  deps.Notifier,
		navigator: deps.Navigator,
		log:       deps.Logger,
	}
	if c.store == nil {
		c.store = storage.NewMemoryStore()
	}
	if c.notifier == nil {
		c.notifier = noopNotifier{}
	}
	if c.navigator == nil {
		c.navigator = noopNavigator{}
	}
	if c.log == nil {
		c.log = logrus.StandardLogger()
	}
	return c, nil
}

// Session returns the session driven by c.
func (c *Controller) Session() *Session {
	return c.session
}

// CaptureReferral records a referral code seen on activation. The code is
// persisted for later visits and held by the session unless one is already set.
func (c *Controller) CaptureReferral(ctx context.Context, code string) {
	if code == "" {
		return
	}
	if err := c.store.Set(ctx, storage.KeyAffiliate, code); err != nil {
		c.log.WithError(err).Warn("persist affiliate code")
	}
	c.session.captureAffiliate(code)
}

// Submit validates the form and issues the registration request.
func (c *Controller) Submit(ctx context.Context) Outcome {
	if _, ok := c.session.fire(EventSubmit); !ok {
		c.log.WithField("phase", c.session.Phase()).Debug("submit ignored")
		return OutcomeNoop
	}

	in := c.session.Input()
	switch {
	case utf8.RuneCountInString(in.Password) < minPasswordLength:
		return c.reject(AdvisoryPasswordTooShort)
	case in.Password != in.PasswordConfirm:
		return c.reject(AdvisoryPasswordMismatch)
	case in.Username == "" || in.Password == "":
		c.session.fire(EventIncomplete)
		return OutcomeNoop
	}

	token, ok := c.challengeToken()
	if !ok {
		c.session.fire(EventChallengeMissing)
		c.info(AdvisoryChallengePending)
		c.session.fire(EventSettle)
		return OutcomeAwaitingChallenge
	}

	c.resolveAffiliate(ctx)
	payload := c.session.Input().request()

	c.session.fire(EventValid)
	c.session.setLoading(true)
	defer c.session.setLoading(false)

	res, err := c.api.Register(ctx, payload, token)
	if failed, msg := failure(res, err); failed {
		c.session.fire(EventFailed)
		c.logFailure("register", err, msg)
		c.notifier.Notify(Notification{Level: LevelError, Message: msg})
		return OutcomeFailed
	}

	c.session.fire(EventAccepted)
	c.log.WithFields(logrus.Fields{"operation": "register", "outcome": OutcomeSucceeded}).Info("registration accepted")
	c.navigator.NavigateToLogin()
	c.notifier.Notify(Notification{Level: LevelSuccess, Message: MessageRegistered})
	return OutcomeSucceeded
}

// SendVerificationCode asks the server to mail a one-time code to the
// session's email. It never changes the submit phase.
func (c *Controller) SendVerificationCode(ctx context.Context) Outcome {
	email := c.session.Input().Email
	if email == "" {
		return OutcomeNoop
	}

	token, ok := c.challengeToken()
	if !ok {
		c.info(AdvisoryChallengePending)
		return OutcomeAwaitingChallenge
	}

	c.session.setLoading(true)
	defer c.session.setLoading(false)

	res, err := c.api.SendVerification(ctx, email, token)
	if failed, msg := failure(res, err); failed {
		c.logFailure("verification", err, msg)
		c.notifier.Notify(Notification{Level: LevelError, Message: msg})
		return OutcomeFailed
	}

	c.notifier.Notify(Notification{Level: LevelSuccess, Message: MessageVerificationSent})
	return OutcomeSent
}

// challengeToken returns the token to send and whether the request may go out.
func (c *Controller) challengeToken() (string, bool) {
	token, ok := c.session.Challenge().Token()
	if c.session.Flags().ChallengeRequired && !ok {
		return "", false
	}
	return token, true
}

func (c *Controller) resolveAffiliate(ctx context.Context) {
	if c.session.Input().AffiliateCode != "" {
		return
	}
	code, err := c.store.Get(ctx, storage.KeyAffiliate)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			c.log.WithError(err).Warn("read affiliate code")
		}
		return
	}
	c.session.captureAffiliate(code)
}

func (c *Controller) reject(advisory string) Outcome {
	c.session.fire(EventInvalid)
	c.info(advisory)
	c.session.fire(EventSettle)
	return OutcomeRejected
}

func (c *Controller) logFailure(operation string, err error, msg string) {
	entry := c.log.WithFields(logrus.Fields{"operation": operation, "outcome": OutcomeFailed})
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Warn(msg)
}

func (c *Controller) info(msg string) {
	c.notifier.Notify(Notification{Level: LevelInfo, Message: msg})
}

func failure(res dto.APIResponse, err error) (bool, string) {
	if err != nil {
		return true, err.Error()
	}
	if !res.Success {
		return true, res.Message
	}
	return false, ""
}
