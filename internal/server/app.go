// Package server wires the credential engine together: the directory
// backend, secret store, global policy, authorities, throttle and the
// network endpoints. It also owns startup and graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/credengine/internal/cryptox"
	"github.com/dmitrijs2005/credengine/internal/logging"
	"github.com/dmitrijs2005/credengine/internal/server/authority"
	"github.com/dmitrijs2005/credengine/internal/server/config"
	"github.com/dmitrijs2005/credengine/internal/server/metrics"
	"github.com/dmitrijs2005/credengine/internal/server/policy"
	"github.com/dmitrijs2005/credengine/internal/server/repositories/directory"
	"github.com/dmitrijs2005/credengine/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/credengine/internal/server/repositories/secrets"
	"github.com/dmitrijs2005/credengine/internal/server/services"
	"github.com/dmitrijs2005/credengine/internal/server/throttle"
	"golang.org/x/sync/errgroup"

	gs "github.com/dmitrijs2005/credengine/internal/server/grpc"
)

const sweepInterval = time.Minute

type App struct {
	config  *config.Config
	logger  logging.Logger
	audit   *logging.ZapLogger
	db      *sql.DB
	suite   *cryptox.Suite
	globals *policy.Globals
	limiter *throttle.Throttle
	metrics *metrics.Metrics
	service *services.CredentialService
}

// openDirectory picks the directory backend: PostgreSQL when a DSN is set,
// otherwise an empty in-memory directory.
func openDirectory(ctx context.Context, dsn string) (repomanager.RepositoryManager, *sql.DB, error) {
	if dsn == "" {
		return repomanager.NewMemoryRepositoryManager(directory.NewMemoryRepository()), nil, nil
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("db open error: %w", err)
	}

	rm, err := repomanager.NewPostgresRepositoryManager(db)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("db init error: %w", err)
	}

	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migrations error: %w", err)
	}

	return rm, db, nil
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.NewJSONSlogLogger(os.Stdout, slog.LevelInfo)

	rm, db, err := openDirectory(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, err
	}

	app, err := newApp(c, logger, rm.Directory())
	if err != nil {
		if db != nil {
			_ = db.Close()
		}
		return nil, err
	}
	app.db = db

	return app, nil
}

// newApp builds everything above the directory backend.
func newApp(c *config.Config, logger logging.Logger, dir directory.Repository) (*App, error) {

	algs, err := cryptox.ParseHashList(c.DefaultHashList)
	if err != nil {
		return nil, fmt.Errorf("default hash list: %w", err)
	}

	store, err := secrets.NewStore(c.SecretsDir)
	if err != nil {
		return nil, fmt.Errorf("secret store init error: %w", err)
	}

	globals, err := policy.LoadGlobals(c.GlobalPolicyPath)
	if err != nil {
		return nil, fmt.Errorf("global policy load error: %w", err)
	}

	zl, err := logging.NewAuditLogger(c.AuditLogPath)
	if err != nil {
		return nil, err
	}
	audit := logging.NewAuditor(zl)

	m := metrics.New()
	suite := cryptox.NewSuite([]byte(c.RecoverableKey))

	limiter := throttle.New(throttle.Config{
		FreeAttempts: c.ThrottleFreeAttempts,
		BaseDelay:    c.ThrottleBaseDelay,
		QuietPeriod:  c.ThrottleQuietPeriod,
		MaxDelay:     c.ThrottleMaxDelay,
	})
	m.TrackThrottle(limiter.Len)

	local := authority.NewLocal(authority.LocalConfig{
		Suite:             suite,
		Store:             store,
		Globals:           globals,
		Dir:               dir,
		AdminGroup:        c.AdminGroup,
		DefaultAlgorithms: algs,
		Audit:             audit,
		Log:               logger.With("module", "local_authority"),
	})

	dispatcher := authority.NewDispatcher(dir, authority.Handlers{
		Local:          local,
		PasswordServer: authority.Unsupported{},
		Kerberos:       authority.Unsupported{},
	}, local, audit, m, logger.With("module", "dispatcher"))

	service := services.NewCredentialService(services.Deps{
		Directory:  dir,
		Dispatcher: dispatcher,
		Globals:    globals,
		Throttle:   limiter,
		AdminGroup: c.AdminGroup,
		Audit:      audit,
		Metrics:    m,
		Log:        logger.With("module", "credential_service"),
	})

	return &App{
		config:  c,
		logger:  logger,
		audit:   zl,
		suite:   suite,
		globals: globals,
		limiter: limiter,
		metrics: m,
		service: service,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context) error {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.service, app.config.SecretKey)
	return s.Run(ctx)
}

func (app *App) startMetricsServer(ctx context.Context) error {
	srv := &http.Server{
		Addr:              app.config.MetricsAddr,
		Handler:           app.metrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		app.logger.Info(ctx, "Stopping metrics server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	app.logger.Info(ctx, "Starting metrics server", "address", app.config.MetricsAddr)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Run serves until a signal arrives, ctx is cancelled or one of the
// servers fails, then flushes state and releases resources.
func (app *App) Run(ctx context.Context) error {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return app.startGRPCServer(gctx) })

	if app.config.MetricsAddr != "" {
		g.Go(func() error { return app.startMetricsServer(gctx) })
	}

	g.Go(func() error { return app.limiter.RunSweeper(gctx, sweepInterval) })

	err := g.Wait()
	if err != nil {
		app.logger.Error(ctx, "server stopped with error", "error", err)
	}

	return errors.Join(err, app.shutdown(ctx))
}

// shutdown persists the global policy and closes what NewApp opened.
func (app *App) shutdown(ctx context.Context) error {
	var errs []error

	if err := app.globals.Flush(); err != nil {
		app.logger.Error(ctx, "global policy flush failed", "error", err)
		errs = append(errs, err)
	}

	app.suite.Close()

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	_ = app.audit.Sync()

	app.logger.Info(ctx, "App stopped")

	return errors.Join(errs...)
}
