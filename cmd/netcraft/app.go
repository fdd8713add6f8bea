package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nkiryanov/netcraft/internal/db"
	"github.com/nkiryanov/netcraft/internal/handlers"
	"github.com/nkiryanov/netcraft/internal/logger"
	"github.com/nkiryanov/netcraft/internal/repository/postgres"
	"github.com/nkiryanov/netcraft/internal/repository/redisrepo"
	"github.com/nkiryanov/netcraft/internal/service/auth"
	"github.com/nkiryanov/netcraft/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/netcraft/internal/service/cleanup"
	"github.com/nkiryanov/netcraft/internal/service/mailer"
	"github.com/nkiryanov/netcraft/internal/service/otp"
	"github.com/nkiryanov/netcraft/internal/service/passwordreset"
	"github.com/nkiryanov/netcraft/internal/service/project"
	"github.com/nkiryanov/netcraft/internal/service/revocation"
	"github.com/nkiryanov/netcraft/internal/service/user"
)

const shutdownTimeout = 5 * time.Second

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler
	Scheduler  *cleanup.Scheduler

	logger logger.Logger

	// Release connections; called in reverse order when server stopped
	closers []func()
}

func NewServerApp(ctx context.Context, c *Config) (_ *ServerApp, err error) {
	app := &ServerApp{ListenAddr: c.ListenAddr}

	// Release what was acquired if app can't be built
	defer func() {
		if err != nil {
			app.close()
		}
	}()

	// Initialize logger
	app.logger, err = logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	// Connect to the database and run migrations. Database may start later than us
	pool, err := db.ConnectAndMigrateWithRetry(ctx, c.DatabaseDSN, db.RetryConfig{}, app.logger)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}
	app.closers = append(app.closers, pool.Close)

	// Initialize repositories
	var opts []postgres.StorageOption
	if c.RevocationBackend == RevocationBackendRedis {
		client := redis.NewClient(&redis.Options{Addr: c.RedisAddr})
		app.closers = append(app.closers, func() { _ = client.Close() })

		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("error while connecting to redis. Err: %w", err)
		}
		opts = append(opts, postgres.WithRevokedTokenRepo(redisrepo.NewRevokedTokenRepo(client)))
	}
	storage := postgres.NewStorage(pool, opts...)
	app.logger.Info("Storage ready", "revocation_backend", c.RevocationBackend)

	// Initialize services
	tokenManager, err := tokenmanager.New(tokenmanager.Config{
		SecretKey:  c.SecretKey,
		AccessTTL:  c.AccessTokenTTL,
		RefreshTTL: c.RefreshTokenTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("error while creating token manager. Err: %w", err)
	}

	ledger := revocation.NewLedger(storage.RevokedToken(), app.logger)
	userService := user.NewService(user.DefaultHasher, storage)
	authService, err := auth.NewService(auth.Config{}, tokenManager, ledger, userService, app.logger)
	if err != nil {
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}

	var sender mailer.Sender
	mailgunCfg := mailer.MailgunConfig{APIKey: c.MailgunAPIKey, Domain: c.MailgunDomain, BaseURL: c.MailgunBaseURL}
	if mailgunCfg.Configured() {
		sender = mailer.NewMailgunSender(mailgunCfg, app.logger)
	} else {
		app.logger.Warn("Mailgun is not configured, reset codes will not be delivered")
		sender = mailer.NewLogSender(app.logger)
	}

	codes := otp.New(storage, app.logger)
	resetService := passwordreset.NewService(passwordreset.Config{CodeTTL: c.ResetCodeTTL}, storage, codes, userService, sender, app.logger)
	projectService := project.NewService(storage, app.logger)

	app.Scheduler = cleanup.NewScheduler(cleanup.Config{Interval: c.CleanupInterval}, app.logger, ledger, codes)
	app.Handler = handlers.NewRouter(authService, userService, resetService, projectService, app.logger)

	return app, nil
}

func (s *ServerApp) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// Run starts http server and cleanup scheduler, closes them gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	defer s.close()

	httpServer := &http.Server{
		Addr:    s.ListenAddr,
		Handler: s.Handler,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	schedulerStopped := s.Scheduler.Run(srvCtx)

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); errors.Is(err, context.DeadlineExceeded) {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		s.logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	s.logger.Info("Starting server", "address", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed
	<-schedulerStopped

	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
