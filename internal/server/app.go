// Package server wires the identity services together and runs them until
// the process is signalled to stop.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/gophauth/internal/cryptox"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/mail"
	"github.com/dmitrijs2005/gophauth/internal/server/providers"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/dmitrijs2005/gophauth/internal/telemetry"
	"github.com/dmitrijs2005/gophauth/internal/timex"

	gs "github.com/dmitrijs2005/gophauth/internal/server/grpc"
)

const serviceName = "gophauth"

func warnInsecureDefaults(ctx context.Context, logger logging.Logger, c *config.Config) {
	if c.UsesDefaultSecret() {
		logger.Warn(ctx, "tokens are signed with the built-in development secret; set GOPHAUTH_SECRET_KEY or -s")
	}
}

type App struct {
	config       *config.Config
	logger       logging.Logger
	db           *sql.DB
	tokens       *auth.TokenService
	dispatcher   *mail.Dispatcher
	verification *services.VerificationService
	users        *services.UserService
	federation   *services.FederationService
	bootstrapper *services.Bootstrapper
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)
	warnInsecureDefaults(ctx, logger, c)

	db, err := repomanager.OpenDB(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}
	store := dbx.NewSQLStore(db, nil)

	hasher, err := cryptox.NewPasswordHasher(c.PasswordParams())
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	clock := timex.SystemClock
	tokens, err := auth.NewTokenService(c.SecretKey, c.AccessTokenValidityDuration, c.RefreshTokenValidityDuration, clock)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	var sender mail.Sender
	if smtpCfg, ok := c.SMTP(); ok {
		sender = mail.NewSMTPSender(smtpCfg)
	} else {
		logger.Warn(ctx, "SMTP host not configured, verification mail is only logged")
		sender = mail.NewLogSender(logger)
	}
	dispatcher := mail.NewDispatcher(sender, logger, c.Dispatcher())

	verification := services.NewVerificationService(store, rm, dispatcher, logger, c, clock)
	users := services.NewUserService(store, rm, tokens, hasher, verification, logger, c, clock)
	federation := services.NewFederationService(store, rm, tokens, providers.NewClient(c.Providers()), logger, clock)

	return &App{
		config:       c,
		logger:       logger,
		db:           db,
		tokens:       tokens,
		dispatcher:   dispatcher,
		verification: verification,
		users:        users,
		federation:   federation,
		bootstrapper: services.NewBootstrapper(store, rm, hasher, logger, c, clock),
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.users, app.federation, app.tokens)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run blocks until a signal arrives or the gRPC server fails. Background
// workers are drained before the database is closed.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()
	defer app.db.Close()

	app.logger.Info(ctx, "Starting app...")
	app.initSignalHandler(cancelFunc)

	shutdown, err := telemetry.Setup(ctx, serviceName, app.config.OTLPEndpoint)
	if err != nil {
		app.logger.Warn(ctx, "tracing disabled", "error", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			app.logger.Warn(context.Background(), "tracing shutdown", "error", err)
		}
	}()

	if err := app.bootstrapper.Run(ctx); err != nil {
		return fmt.Errorf("bootstrap error: %w", err)
	}

	var wg sync.WaitGroup

	wg.Add(3)
	go func() {
		defer wg.Done()
		app.dispatcher.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		app.verification.RunSweeper(ctx, app.config.SweepInterval)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()
	app.logger.Info(context.Background(), "App stopped")
	return nil
}
