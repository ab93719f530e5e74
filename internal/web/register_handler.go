package web

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	middlewarepkg "github.com/octobees/signup/internal/middleware"
	"github.com/octobees/signup/internal/registration"
)

// ChallengeResponseField is the form field the Turnstile widget fills in.
const ChallengeResponseField = "cf-turnstile-response"

const (
	messageBusy      = "a request is already in progress, please wait"
	messageThrottled = "too many verification code requests, please wait a minute and try again"
)

// RegisterHandler serves the registration form.
type RegisterHandler struct {
	sessions *SessionRegistry
	metrics  *Metrics
	loginURL string
}

// NewRegisterHandler constructs a RegisterHandler. loginURL is where the
// login page sends users after a successful registration.
func NewRegisterHandler(sessions *SessionRegistry, metrics *Metrics, loginURL string) *RegisterHandler {
	return &RegisterHandler{sessions: sessions, metrics: metrics, loginURL: loginURL}
}

type formView struct {
	Flags         registration.DeploymentFlags
	Input         registration.Input
	Loading       bool
	Notifications []registration.Notification
}

type loginView struct {
	LoginURL      string
	Notifications []registration.Notification
}

type challengeRequest struct {
	Token string `json:"token" form:"token"`
}

// Show handles GET /register. An aff query parameter is captured as referral.
func (h *RegisterHandler) Show(c echo.Context) error {
	v, err := h.visitor(c)
	if err != nil {
		return Error(c, http.StatusInternalServerError, "unable to start registration")
	}
	if aff := c.QueryParam("aff"); aff != "" {
		v.controller.CaptureReferral(c.Request().Context(), aff)
	}
	return h.render(c, http.StatusOK, v)
}

// Submit handles POST /register.
func (h *RegisterHandler) Submit(c echo.Context) error {
	v, err := h.visitor(c)
	if err != nil {
		return Error(c, http.StatusInternalServerError, "unable to start registration")
	}
	if v.session().State().Loading {
		v.notes.Notify(registration.Notification{Level: registration.LevelInfo, Message: messageBusy})
		return h.render(c, http.StatusConflict, v)
	}
	if err := bindForm(c, v.session()); err != nil {
		return Error(c, http.StatusBadRequest, "invalid form")
	}

	outcome := v.controller.Submit(c.Request().Context())
	h.metrics.observe("register", outcome)

	if v.takeRedirect() {
		h.sessions.Finish(middlewarepkg.VisitorIDFromContext(c))
		return c.Redirect(http.StatusSeeOther, "/login")
	}
	return h.render(c, http.StatusOK, v)
}

// SendCode handles POST /register/verification.
func (h *RegisterHandler) SendCode(c echo.Context) error {
	v, err := h.visitor(c)
	if err != nil {
		return Error(c, http.StatusInternalServerError, "unable to start registration")
	}
	if v.session().State().Loading {
		v.notes.Notify(registration.Notification{Level: registration.LevelInfo, Message: messageBusy})
		return h.render(c, http.StatusConflict, v)
	}
	if err := bindForm(c, v.session()); err != nil {
		return Error(c, http.StatusBadRequest, "invalid form")
	}

	outcome := v.controller.SendVerificationCode(c.Request().Context())
	h.metrics.observe("verification", outcome)
	return h.render(c, http.StatusOK, v)
}

// Throttled re-renders the form with a notice when the verification-code
// rate limit rejects a request.
func (h *RegisterHandler) Throttled(c echo.Context) error {
	v, err := h.visitor(c)
	if err != nil {
		return Error(c, http.StatusTooManyRequests, messageThrottled)
	}
	if err := bindForm(c, v.session()); err != nil {
		return Error(c, http.StatusBadRequest, "invalid form")
	}
	v.notes.Notify(registration.Notification{Level: registration.LevelInfo, Message: messageThrottled})
	return h.render(c, http.StatusTooManyRequests, v)
}

// Challenge handles POST /register/challenge, the widget's solve callback.
func (h *RegisterHandler) Challenge(c echo.Context) error {
	v, err := h.visitor(c)
	if err != nil {
		return Error(c, http.StatusInternalServerError, "unable to start registration")
	}
	var req challengeRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "invalid payload")
	}
	if req.Token == "" {
		return Error(c, http.StatusBadRequest, "token is required")
	}
	if !v.session().Challenge().Resolve(req.Token) {
		return Success(c, http.StatusOK, "challenge already solved", nil)
	}
	return Success(c, http.StatusOK, "challenge solved", nil)
}

// Login handles GET /login, the page shown after a successful registration.
func (h *RegisterHandler) Login(c echo.Context) error {
	notes := h.sessions.PopFlash(middlewarepkg.VisitorIDFromContext(c))
	return c.Render(http.StatusOK, "login.html", loginView{LoginURL: h.loginURL, Notifications: notes})
}

func (h *RegisterHandler) visitor(c echo.Context) (*visitorSession, error) {
	id := middlewarepkg.VisitorIDFromContext(c)
	if id == "" {
		return nil, errors.New("missing visitor id")
	}
	return h.sessions.Get(c.Request().Context(), id)
}

func (h *RegisterHandler) render(c echo.Context, status int, v *visitorSession) error {
	s := v.session()
	return c.Render(status, "register.html", formView{
		Flags:         s.Flags(),
		Input:         s.Input(),
		Loading:       s.State().Loading,
		Notifications: v.notes.Drain(),
	})
}

// bindForm copies the posted fields into the session and hands a widget
// token, when present, to the challenge slot.
func bindForm(c echo.Context, s *registration.Session) error {
	if _, err := c.FormParams(); err != nil {
		return err
	}
	for _, field := range registration.Fields {
		if err := s.SetField(field, c.FormValue(string(field))); err != nil {
			return err
		}
	}
	if token := c.FormValue(ChallengeResponseField); token != "" {
		s.Challenge().Resolve(token)
	}
	return nil
}
