package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/askweb/config"
	"github.com/mohammad-safakhou/askweb/internal/logger"
	"github.com/mohammad-safakhou/askweb/internal/runtime"
	"github.com/mohammad-safakhou/askweb/internal/store"
	"github.com/mohammad-safakhou/askweb/session"
)

// Deps are the collaborators the HTTP layer talks to.
type Deps struct {
	Chain   Asker
	History session.Store
	Runs    RunLister
	Metrics *runtime.Metrics
	Logger  *zap.Logger
}

// New builds the echo instance with every route mounted.
func New(cfg *config.Config, secret []byte, deps Deps) *echo.Echo {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(logger.EchoLogger(log.Named("http")))
	// Unified HTTP error handler with structured JSON
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		if code >= http.StatusInternalServerError {
			log.Error("request failed", zap.Int("status", code), zap.String("path", c.Request().URL.Path), zap.Error(err))
		}
		if !c.Response().Committed {
			if c.Request().Method == http.MethodHead {
				_ = c.NoContent(code)
				return
			}
			_ = c.JSON(code, HTTPError{Error: msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.Server.AllowOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderContentType, echo.HeaderAuthorization, "Cookie"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	if cfg.Telemetry.Enabled && cfg.Telemetry.MetricsPort == 0 && deps.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(deps.Metrics.Handler()))
	}

	api := e.Group("/api")
	auth := &AuthHandler{
		Secret:       secret,
		CookieDomain: cfg.Server.CookieDomain,
		Secure:       !cfg.General.Debug,
		Logger:       log.Named("auth"),
	}
	auth.Register(api.Group("/auth"))

	protected := runtime.EchoAuthMiddleware(secret)
	chat := &ChatHandler{Chain: deps.Chain, History: deps.History, Logger: log.Named("chat")}
	chat.Register(api.Group("/chat", protected))

	runs := NewRunsHandler(deps.Runs)
	runs.Register(api.Group("/searches", protected))
	return e
}

// NewMetricsServer returns a listener for /metrics on its own port, or nil
// when metrics are disabled or share the API port.
func NewMetricsServer(cfg *config.Config, metrics *runtime.Metrics) *echo.Echo {
	if !cfg.Telemetry.Enabled || cfg.Telemetry.MetricsPort == 0 || metrics == nil {
		return nil
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
	return e
}

// Run serves app until ctx is cancelled, with the maintenance scheduler
// running alongside when enabled.
func Run(ctx context.Context, app *App) error {
	cfg := app.Config
	secret, err := runtime.LoadJWTSecret(cfg)
	if err != nil {
		return err
	}
	deps := Deps{
		Chain:   app.Chain,
		History: app.History,
		Metrics: app.Metrics,
		Logger:  app.Logger,
	}
	if app.Store != nil {
		deps.Runs = app.Store
	}
	e := New(cfg, secret, deps)
	e.Server.ReadHeaderTimeout = 10 * time.Second
	e.Server.WriteTimeout = cfg.Server.WriteTimeout

	if cfg.Scheduler.Enabled {
		sched := &Scheduler{Jobs: app.Jobs(), Rdb: app.Redis, Logger: app.Logger.Named("scheduler")}
		sched.Start(ctx)
		defer sched.Stop()
	}

	errCh := make(chan error, 2)
	go func() {
		app.Logger.Info("listening", zap.String("addr", cfg.Server.Address))
		if err := e.Start(cfg.Server.Address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	ms := NewMetricsServer(cfg, app.Metrics)
	if ms != nil {
		addr := fmt.Sprintf(":%d", cfg.Telemetry.MetricsPort)
		go func() {
			app.Logger.Info("metrics listening", zap.String("addr", addr))
			if err := ms.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case runErr = <-errCh:
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if ms != nil {
		if err := ms.Shutdown(shutdownCtx); err != nil {
			app.Logger.Warn("metrics shutdown", zap.Error(err))
		}
	}
	if err := e.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

var _ RunLister = (*store.Store)(nil)
