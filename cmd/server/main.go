package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/goliatone/go-router"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	auth "github.com/goliatone/go-auth-tokens"
	"github.com/goliatone/go-auth-tokens/email"
	"github.com/goliatone/go-auth-tokens/middleware/jwtware"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Caller().Logger()

	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	authCfg, err := cfg.authConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	logger := auth.NewZerologLogger(log.Logger)

	sender, err := newSender(cfg, logger)
	if err != nil {
		return err
	}
	mailer := email.NewService(sender, authCfg.EmailFrom, authCfg.ResetURL,
		email.WithAppName(cfg.AppName),
		email.WithLogger(logger),
	)

	repo := auth.NewRepositoryManager(db)
	auther := auth.NewAuthenticator(repo, authCfg).
		WithLogger(logger).
		WithMailer(mailer).
		WithActivitySink(activityLogger(logger))

	srv, app := newServer(auther, logger)

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("listening")
		errc <- srv.Serve(cfg.HTTPAddr)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

type server interface {
	Serve(address string) error
}

// newServer wires the account routes on a fiber backed router. The fiber app
// is returned as well for shutdown.
func newServer(auther *auth.Auther, logger auth.Logger) (server, *fiber.App) {
	var app *fiber.App
	srv := router.NewFiberAdapter(func(*fiber.App) *fiber.App {
		app = fiber.New(fiber.Config{
			AppName:               "auth-tokens",
			ErrorHandler:          auth.NewFiberErrorHandler(logger),
			DisableStartupMessage: true,
		})
		app.Use(recover.New())
		app.Use(fiberlogger.New())
		return app
	})

	errorHandler := auth.NewErrorHandler(logger)

	auth.RegisterAuthRoutes(srv.Router(),
		auth.WithAuther(auther),
		auth.WithControllerLogger(logger),
		auth.WithControllerErrorHandler(errorHandler),
		auth.WithProtectedRoute(jwtware.New(jwtware.Config{
			TokenValidator: auther,
			ErrorHandler:   errorHandler,
		})),
	)

	return srv, app
}

func newSender(cfg *serverConfig, logger auth.Logger) (email.Sender, error) {
	if cfg.SMTPHost == "" {
		logger.Warn("SMTP_HOST not set, emails are written to the log")
		return email.NewLogSender(logger), nil
	}
	return email.NewSMTPSender(cfg.smtpConfig())
}

func activityLogger(logger auth.Logger) auth.ActivitySink {
	return auth.ActivitySinkFunc(func(_ context.Context, event auth.ActivityEvent) error {
		logger.Info("activity", "event", event.EventType, "user_id", event.UserID)
		return nil
	})
}
