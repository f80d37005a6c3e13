package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/goliatone/go-router"
	"github.com/uptrace/bun"

	auth "github.com/patientipr/portal-auth"
	"github.com/patientipr/portal-auth/config"
	"github.com/patientipr/portal-auth/metrics"
)

type App struct {
	cfg      *config.Config
	logger   *auth.ZerologLogger
	db       *bun.DB
	backend  *auth.Backend
	tokens   *auth.TokenServiceImpl
	recorder *metrics.Recorder
	srv      router.Server[*fiber.App]
	web      *fiber.App
}

func (a *App) GetLogger(name string) auth.Logger {
	return a.logger.With(name)
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	app := &App{
		cfg:      cfg,
		logger:   auth.NewRootLogger(cfg.LogLevel, cfg.LogPretty),
		recorder: metrics.NewRecorder(),
	}

	if err := WithPersistence(ctx, app); err != nil {
		app.logger.Error("persistence setup failed", "error", err)
		os.Exit(1)
	}
	defer app.db.Close()

	WithBackend(app)
	WithHTTPServer(app)

	go func() {
		app.logger.Info("listening", "addr", cfg.Addr(), "env", cfg.Env)
		if err := app.web.Listen(cfg.Addr()); err != nil {
			app.logger.Error("server stopped", "error", err)
		}
	}()

	sig := WaitExitSignal()
	app.logger.Info("shutting down", "signal", sig.String())

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := app.web.ShutdownWithContext(shutdownCtx); err != nil {
		app.logger.Error("shutdown failed", "error", err)
	}
}

func WithPersistence(ctx context.Context, app *App) error {
	db, err := auth.OpenSQLite(app.cfg.DatabaseDSN)
	if err != nil {
		return err
	}

	group, err := auth.Migrate(ctx, db)
	if err != nil {
		db.Close()
		return err
	}
	if !group.IsZero() {
		app.logger.Info("applied migrations", "group", group.String())
	}

	if app.cfg.SeedDemoAccounts {
		if err := auth.SeedDemoAccounts(ctx, auth.NewAccountsRepository(db), app.GetLogger("seed")); err != nil {
			db.Close()
			return err
		}
	}

	app.db = db
	return nil
}

func WithBackend(app *App) {
	app.tokens = auth.NewTokenServiceFromConfig(app.cfg, app.GetLogger("tokens")).
		WithClaimsDecorator(auth.ClaimsDecoratorFunc(func(_ *auth.Account, claims *auth.SessionClaims) error {
			claims.Metadata = map[string]any{"env": app.cfg.Env}
			return nil
		}))

	app.backend = auth.NewBackend(
		auth.NewAccountsRepository(app.db),
		auth.NewPasswordResetsRepository(app.db),
		app.tokens,
		auth.WithBackendLogger(app.GetLogger("backend")),
		auth.WithBackendActivitySink(app.recorder),
		auth.WithBackendTimeout(app.cfg.GetRequestTimeout()),
		auth.WithResetTokenTTL(app.cfg.GetResetTokenTTL()),
		auth.WithResetNotifier(auth.LogResetNotifier{Logger: app.GetLogger("reset")}),
	)
}

func WithHTTPServer(app *App) {
	srv, web := auth.NewHTTPServer(fiber.Config{
		AppName:               "patientipr-portal",
		DisableStartupMessage: true,
		ReadTimeout:           app.cfg.GetRequestTimeout(),
		WriteTimeout:          app.cfg.GetRequestTimeout(),
	})

	web.Use(recover.New())
	web.Use(requestid.New())
	web.Use(requestLogger(app.GetLogger("http")))
	web.Get("/metrics", adaptor.HTTPHandler(app.recorder.Handler()))

	r := srv.Router()
	r.Get("/healthz", func(c router.Context) error {
		if err := app.db.PingContext(c.Context()); err != nil {
			return c.JSON(fiber.StatusServiceUnavailable, fiber.Map{"status": "unavailable"})
		}
		return c.JSON(fiber.StatusOK, fiber.Map{"status": "ok"})
	}).SetName("healthz")

	guard := auth.NewAccessGuard(auth.WithGuardConfig(app.cfg))

	controller := auth.NewAuthController(
		app.backend,
		app.tokens,
		app.cfg,
		auth.WithControllerLogger(app.GetLogger("auth")),
		auth.WithControllerGuard(guard),
		auth.WithSecureCookies(app.cfg.SecureCookies),
		auth.WithControllerActivitySink(app.recorder),
	)
	auth.RegisterAuthRoutes(r.Group("/auth"), controller)

	routes := auth.NewRouteGuard(
		guard,
		app.tokens,
		app.cfg,
		auth.WithRouteGuardLogger(app.GetLogger("guard")),
		auth.WithRouteGuardActivitySink(app.recorder),
		auth.WithRouteGuardSecureCookies(app.cfg.SecureCookies),
	)

	r.Get("/*", PageShow(app), routes.Middleware()).SetName("pages")

	app.srv = srv
	app.web = web
}

// PageShow stands in for the portal pages. It reports which page was
// reached and for whom.
func PageShow(app *App) router.HandlerFunc {
	return func(c router.Context) error {
		res := fiber.Map{"page": c.Path()}
		if session, err := auth.GetRouterSession(c, app.cfg.GetContextKey()); err == nil {
			res["role"] = session.Role
			res["profile"] = session.Profile
		}
		return c.JSON(fiber.StatusOK, res)
	}
}

func requestLogger(logger auth.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		logger.Debug("request",
			"id", c.GetRespHeader(fiber.HeaderXRequestID),
			"method", c.Method(),
			"path", c.Path(),
			"status", c.Response().StatusCode(),
			"duration", time.Since(start).String(),
		)
		return err
	}
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
