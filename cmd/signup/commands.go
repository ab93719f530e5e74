package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/octobees/signup/internal/client"
	"github.com/octobees/signup/internal/config"
	"github.com/octobees/signup/internal/registration"
	"github.com/octobees/signup/internal/storage"
	"github.com/octobees/signup/internal/web"
)

type app struct {
	cfg    *config.Config
	logger *logrus.Logger
	out    io.Writer
}

func rootCmd() *cobra.Command {
	a := &app{out: os.Stdout}
	var logLevel string

	cmd := &cobra.Command{
		Use:           "signup",
		Short:         "Self-registration client for the account API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if logLevel != "" {
				cfg.LogLevel = strings.ToLower(logLevel)
			}
			a.cfg = cfg
			a.logger = newLogger(cfg.LogLevel, os.Stderr)
			a.out = cmd.OutOrStdout()
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides LOG_LEVEL")

	cmd.AddCommand(a.registerCmd(), a.sendCodeCmd(), a.statusCmd(), a.serveCmd())
	return cmd
}

func (a *app) registerCmd() *cobra.Command {
	var (
		username, password, confirm string
		email, code, aff, token     string
	)
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a new account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("SIGNUP_PASSWORD")
			}
			if confirm == "" {
				confirm = password
			}
			fields := map[registration.Field]string{
				registration.FieldUsername:         username,
				registration.FieldPassword:         password,
				registration.FieldPasswordConfirm:  confirm,
				registration.FieldEmail:            email,
				registration.FieldVerificationCode: code,
			}
			return a.withController(cmd.Context(), fields, aff, token, func(ctx context.Context, c *registration.Controller) error {
				switch outcome := c.Submit(ctx); outcome {
				case registration.OutcomeSucceeded:
					return nil
				case registration.OutcomeNoop:
					return errors.New("username and password are required")
				default:
					return fmt.Errorf("registration %s", outcome)
				}
			})
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "Username, at most 12 characters")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password, 8 to 20 characters (or SIGNUP_PASSWORD)")
	cmd.Flags().StringVar(&confirm, "password-confirm", "", "Repeated password (defaults to --password)")
	cmd.Flags().StringVar(&email, "email", "", "Email address, when verification is required")
	cmd.Flags().StringVar(&code, "code", "", "Verification code received by email")
	cmd.Flags().StringVar(&aff, "aff", "", "Referral code")
	cmd.Flags().StringVar(&token, "turnstile-token", "", "Solved Turnstile token, when the challenge is required")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func (a *app) sendCodeCmd() *cobra.Command {
	var email, token string
	cmd := &cobra.Command{
		Use:   "send-code",
		Short: "Email a verification code",
		RunE: func(cmd *cobra.Command, args []string) error {
			fields := map[registration.Field]string{registration.FieldEmail: email}
			return a.withController(cmd.Context(), fields, "", token, func(ctx context.Context, c *registration.Controller) error {
				if outcome := c.SendVerificationCode(ctx); outcome != registration.OutcomeSent {
					return fmt.Errorf("verification code %s", outcome)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&token, "turnstile-token", "", "Solved Turnstile token, when the challenge is required")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (a *app) statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Inspect the cached deployment status",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := openStore(cmd.Context(), a.cfg)
			if err != nil {
				return err
			}
			defer closeStore()
			a.printFlags(registration.LoadFlags(cmd.Context(), store))
			return nil
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "sync",
		Short: "Fetch /api/status and cache it",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := openStore(cmd.Context(), a.cfg)
			if err != nil {
				return err
			}
			defer closeStore()
			api, err := a.apiClient()
			if err != nil {
				return err
			}
			if err := syncStatus(cmd.Context(), api, store); err != nil {
				return err
			}
			a.printFlags(registration.LoadFlags(cmd.Context(), store))
			return nil
		},
	})
	return cmd
}

func (a *app) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the registration form over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	store, closeStore, err := openStore(ctx, a.cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	api, err := a.apiClient()
	if err != nil {
		return err
	}
	syncCtx, cancel := context.WithTimeout(ctx, a.cfg.HTTPTimeout)
	if err := syncStatus(syncCtx, api, store); err != nil {
		a.logger.WithError(err).Warn("status sync failed, using cached status")
	}
	cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	sessions := web.NewSessionRegistry(api, store, a.logger, web.RegistryOptions{
		TTL:         a.cfg.SessionTTL,
		MaxSessions: a.cfg.MaxSessions,
	})
	handler := web.NewRegisterHandler(sessions, web.NewMetrics(reg), a.cfg.APIBaseURL+"/login")
	e, err := web.NewServer(a.cfg, a.logger, reg, web.Handlers{Register: handler})
	if err != nil {
		return err
	}

	serverErr := make(chan error, 1)
	go func() {
		a.logger.WithField("port", a.cfg.Port).Info("serving registration form")
		serverErr <- e.Start(":" + a.cfg.Port)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		a.logger.Infof("received signal %s, shutting down", sig)
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Warn("graceful shutdown failed")
	}
	return nil
}

// withController builds a one-shot session from the cached status and runs fn.
func (a *app) withController(ctx context.Context, fields map[registration.Field]string, aff, token string, fn func(context.Context, *registration.Controller) error) error {
	store, closeStore, err := openStore(ctx, a.cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	api, err := a.apiClient()
	if err != nil {
		return err
	}

	session := registration.NewSession(registration.LoadFlags(ctx, store))
	controller, err := registration.NewController(session, registration.Deps{
		API:       api,
		Store:     store,
		Notifier:  a.notifier(),
		Navigator: registration.NavigatorFunc(func() { fmt.Fprintf(a.out, "Continue at %s/login\n", a.cfg.APIBaseURL) }),
		Logger:    a.logger,
	})
	if err != nil {
		return err
	}

	controller.CaptureReferral(ctx, aff)
	for _, field := range registration.Fields {
		if err := session.SetField(field, fields[field]); err != nil {
			return err
		}
	}
	session.Challenge().Resolve(token)

	return fn(ctx, controller)
}

func (a *app) apiClient() (*client.APIClient, error) {
	return client.NewAPIClient(nil, a.cfg.APIBaseURL, client.Options{
		Timeout:         a.cfg.HTTPTimeout,
		IDTokenAudience: a.cfg.IDTokenAudience,
	})
}

func (a *app) notifier() registration.Notifier {
	return registration.NotifierFunc(func(n registration.Notification) {
		fmt.Fprintf(a.out, "[%s] %s\n", n.Level, n.Message)
	})
}

func (a *app) printFlags(flags registration.DeploymentFlags) {
	fmt.Fprintf(a.out, "email verification: %t\n", flags.EmailVerificationRequired)
	fmt.Fprintf(a.out, "turnstile check:    %t\n", flags.ChallengeRequired)
	if flags.ChallengeRequired {
		fmt.Fprintf(a.out, "turnstile site key: %s\n", flags.ChallengeSiteKey)
	}
}

func syncStatus(ctx context.Context, api *client.APIClient, store storage.Store) error {
	raw, err := api.Status(ctx)
	if err != nil {
		return fmt.Errorf("fetch status: %w", err)
	}
	if err := store.Set(ctx, storage.KeyStatus, string(raw)); err != nil {
		return fmt.Errorf("cache status: %w", err)
	}
	return nil
}

// openStore picks postgres when DATABASE_URL is set and the file store otherwise.
func openStore(ctx context.Context, cfg *config.Config) (storage.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		store, err := storage.NewFileStore(cfg.StorePath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := storage.Connect(connectCtx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect database: %w", err)
	}
	store := storage.NewPostgresStore(pool)
	if err := store.EnsureSchema(connectCtx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return store, pool.Close, nil
}

func newLogger(level string, w io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}
