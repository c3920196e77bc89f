package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/uptrace/bun"

	users "github.com/ogehub/go-users"
	"github.com/ogehub/go-users/activitymap"
	"github.com/ogehub/go-users/config"
	"github.com/ogehub/go-users/middleware/jwtware"
	"github.com/ogehub/go-users/notify"
	"github.com/ogehub/go-users/persistence"
)

const shutdownTimeout = 15 * time.Second

// apiPrefix is where the account routes are mounted. PUBLIC_URL must end
// with it for emailed links to resolve.
const apiPrefix = "/api"

type App struct {
	config     config.Config
	logger     *users.SlogLogger
	db         *bun.DB
	repo       users.RepositoryManager
	dispatcher *notify.Dispatcher
	identity   *users.IdentityService
	srv        *fiber.App
}

func (a *App) GetLogger(name string) users.Logger {
	return a.logger.With("component", name)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})
	app := &App{
		config: cfg,
		logger: users.NewSlogLogger(slog.New(handler)),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := WithPersistence(ctx, app); err != nil {
		app.logger.Error("failed to initialize persistence", "error", err)
		os.Exit(1)
	}

	if err := WithNotifier(ctx, app); err != nil {
		app.logger.Error("failed to initialize notifier", "error", err)
		os.Exit(1)
	}

	WithIdentity(app)
	WithHTTPServer(app)

	errc := make(chan error, 1)
	go func() {
		app.logger.Info("users service listening", "addr", cfg.Addr())
		errc <- app.srv.Listen(cfg.Addr())
	}()

	select {
	case <-ctx.Done():
		app.logger.Info("shutdown signal received")
	case err := <-errc:
		if err != nil {
			app.logger.Error("http server stopped", "error", err)
		}
	}

	Shutdown(app)
}

func WithPersistence(ctx context.Context, app *App) error {
	db, err := persistence.Open(ctx, persistence.Options{
		DSN:    app.config.DatabaseURL,
		Debug:  app.config.DatabaseDebug,
		Logger: app.GetLogger("persistence"),
	})
	if err != nil {
		return err
	}

	app.db = db
	app.repo = users.NewRepositoryManager(db)
	app.repo.MustValidate()
	return nil
}

func WithNotifier(_ context.Context, app *App) error {
	var next users.Notifier
	if app.config.EmailEnabled() {
		smtp, err := notify.NewSMTPNotifier(notify.SMTPConfig{
			Host:       app.config.SMTPHost,
			User:       app.config.SMTPUser,
			Password:   app.config.SMTPPassword,
			Sender:     app.config.SenderEmail,
			SkipVerify: app.config.SMTPSkipVerify,
		})
		if err != nil {
			return err
		}
		next = smtp
	} else {
		app.logger.Warn("SMTP_HOST not set, notifications are written to the log")
		next = notify.NewLogNotifier(app.GetLogger("notify"))
	}

	app.dispatcher = notify.NewDispatcher(
		next,
		app.config.NotifyQueueSize,
		app.config.NotifyWorkers,
		app.GetLogger("notify"),
	)
	return nil
}

func WithIdentity(app *App) {
	tokens := users.NewTokenServiceFromConfig(app.config, app.GetLogger("tokens"))
	app.identity = users.NewIdentityService(app.repo, tokens, app.config).
		WithLogger(app.GetLogger("identity")).
		WithNotifier(app.dispatcher).
		WithActivitySink(activitymap.LogSink(app.GetLogger("activity")))
}

func WithHTTPServer(app *App) {
	logger := app.GetLogger("http")

	app.srv = fiber.New(fiber.Config{
		AppName:               "users",
		ErrorHandler:          users.ErrorHandler(logger),
		DisableStartupMessage: true,
	})

	app.srv.Get("/", users.Welcome).Name("root")

	gate := jwtware.New(jwtware.FromConfig(app.config, app.identity, app.GetLogger("gate")))
	controller := users.NewAccountController(app.identity,
		users.WithControllerLogger(logger),
		users.WithControllerContextKey(app.config.GetContextKey()),
	)

	api := app.srv.Group(apiPrefix)
	users.RegisterRoutes(api, gate, controller.Routes()...)
}

func Shutdown(app *App) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := app.srv.ShutdownWithContext(ctx); err != nil {
		app.logger.Error("http shutdown", "error", err)
	}

	if err := app.dispatcher.Close(ctx); err != nil {
		app.logger.Error("notification drain", "error", err)
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("database close", "error", err)
	}

	app.logger.Info("users service stopped")
}
