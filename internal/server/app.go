// Package server wires the credkeeper server together: configuration,
// storage backends, the auth core and its gRPC and HTTP transports.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/credkeeper/internal/logging"
	"github.com/dmitrijs2005/credkeeper/internal/server/auth"
	"github.com/dmitrijs2005/credkeeper/internal/server/config"
	gs "github.com/dmitrijs2005/credkeeper/internal/server/grpc"
	hs "github.com/dmitrijs2005/credkeeper/internal/server/http"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/credkeeper/internal/server/services"
	"github.com/dmitrijs2005/credkeeper/internal/telemetry"
	"golang.org/x/sync/errgroup"
)

const serviceName = "credkeeper"

type App struct {
	config          *config.Config
	logger          logging.Logger
	stores          *repomanager.Stores
	authService     *services.AuthService
	userService     *services.UserService
	janitor         *services.SessionJanitor
	tracingShutdown telemetry.ShutdownFunc
}

var (
	openStores   = repomanager.Open
	setupTracing = telemetry.Setup
)

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.New(os.Stdout, c.LogLevel, c.LogFormat)
	return newApp(ctx, c, logger)
}

func newApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	shutdown, err := setupTracing(ctx, serviceName, c.OTLPEndpoint)
	if err != nil {
		return nil, fmt.Errorf("tracing init error: %w", err)
	}

	hasher, err := auth.NewBcryptHasher(c.BcryptCost)
	if err != nil {
		_ = shutdown(ctx)
		return nil, err
	}

	issuer, err := auth.NewTokenIssuer(
		[]byte(c.AccessTokenSecret),
		[]byte(c.RefreshTokenSecret),
		c.AccessTokenValidityDuration,
		c.RefreshTokenValidityDuration,
	)
	if err != nil {
		_ = shutdown(ctx)
		return nil, err
	}

	stores, err := openStores(ctx, repomanager.Options{
		StorageBackend: c.StorageBackend,
		SessionBackend: c.SessionBackend,
		DSN:            c.DatabaseDSN,
		RedisAddr:      c.RedisAddr,
		RedisPassword:  c.RedisPassword,
		RedisDB:        c.RedisDB,
	}, logger)
	if err != nil {
		_ = shutdown(ctx)
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	app := &App{
		config:          c,
		logger:          logger,
		stores:          stores,
		authService:     services.NewAuthService(stores.Users, stores.Sessions, hasher, issuer, logger),
		userService:     services.NewUserService(stores.Users, logger),
		tracingShutdown: shutdown,
	}
	if c.JanitorInterval > 0 {
		app.janitor = services.NewSessionJanitor(stores.Sessions, c.JanitorInterval, logger)
	}
	return app, nil
}

// Run serves until ctx is cancelled, SIGINT/SIGTERM arrives or one of the
// servers fails, then releases the stores.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app.logger.Info(ctx, "Starting app...")

	g, ctx := errgroup.WithContext(ctx)

	if app.config.EndpointAddrGRPC != "" {
		s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.authService, app.userService, app.config.InternalKey)
		g.Go(func() error { return s.Run(ctx) })
	}

	if app.config.EndpointAddrHTTP != "" {
		h := hs.NewHandler(app.authService, app.userService, app.stores, app.logger, app.config.InternalKey)
		router := hs.NewRouter(h, app.config.CORSAllowedOrigins, app.logger)
		s := hs.NewServer(app.config.EndpointAddrHTTP, router, app.logger, app.config.ShutdownTimeout)
		g.Go(func() error { return s.Run(ctx) })
	}

	if app.janitor != nil {
		g.Go(func() error { return app.janitor.Run(ctx) })
	}

	err := g.Wait()
	if err != nil {
		app.logger.Error(ctx, "server stopped with error", "error", err)
	}

	app.close(context.WithoutCancel(ctx))
	app.logger.Info(ctx, "App stopped")
	return err
}

func (app *App) close(ctx context.Context) {
	if err := app.stores.Close(); err != nil {
		app.logger.Error(ctx, "error closing stores", "error", err)
	}

	ctx, cancel := context.WithTimeout(ctx, app.config.ShutdownTimeout)
	defer cancel()
	if err := app.tracingShutdown(ctx); err != nil {
		app.logger.Error(ctx, "error flushing traces", "error", err)
	}
}
