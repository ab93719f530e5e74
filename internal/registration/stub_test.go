package registration

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus/hooks/test"

	"github.com/octobees/signup/internal/dto"
	"github.com/octobees/signup/internal/storage"
)

type registerCall struct {
	payload   dto.RegisterRequest
	turnstile string
}

type verificationCall struct {
	email     string
	turnstile string
}

type apiStub struct {
	res           dto.APIResponse
	err           error
	registers     []registerCall
	verifications []verificationCall
	// observed is set to the session's loading flag during a call.
	session  *Session
	observed []bool
}

func (s *apiStub) Register(ctx context.Context, payload dto.RegisterRequest, turnstile string) (dto.APIResponse, error) {
	s.registers = append(s.registers, registerCall{payload: payload, turnstile: turnstile})
	s.observe()
	return s.res, s.err
}

func (s *apiStub) SendVerification(ctx context.Context, email, turnstile string) (dto.APIResponse, error) {
	s.verifications = append(s.verifications, verificationCall{email: email, turnstile: turnstile})
	s.observe()
	return s.res, s.err
}

func (s *apiStub) calls() int {
	return len(s.registers) + len(s.verifications)
}

func (s *apiStub) observe() {
	if s.session != nil {
		s.observed = append(s.observed, s.session.State().Loading)
	}
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) (string, error) {
	return "", errors.New("store offline")
}

func (failingStore) Set(context.Context, string, string) error {
	return errors.New("store offline")
}

type fixture struct {
	session    *Session
	controller *Controller
	api        *apiStub
	store      storage.Store
	notes      *Recorder
	logs       *test.Hook
	navigated  int
}

func newFixture(flags DeploymentFlags, res dto.APIResponse) *fixture {
	f := &fixture{
		session: NewSession(flags),
		api:     &apiStub{res: res},
		store:   storage.NewMemoryStore(),
		notes:   &Recorder{},
	}
	f.api.session = f.session

	logger, hook := test.NewNullLogger()
	f.logs = hook

	c, err := NewController(f.session, Deps{
		API:       f.api,
		Store:     f.store,
		Notifier:  f.notes,
		Navigator: NavigatorFunc(func() { f.navigated++ }),
		Logger:    logger,
	})
	if err != nil {
		panic(err)
	}
	f.controller = c
	return f
}

func (f *fixture) fill(fields map[Field]string) {
	for name, value := range fields {
		if err := f.session.SetField(name, value); err != nil {
			panic(err)
		}
	}
}
