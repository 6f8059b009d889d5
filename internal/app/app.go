package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	_ "github.com/lib/pq"

	"invasivewatch/dashboard/internal/audit"
	"invasivewatch/dashboard/internal/auth"
	"invasivewatch/dashboard/internal/config"
	"invasivewatch/dashboard/internal/httpserver"
	"invasivewatch/dashboard/internal/kvstore"
	"invasivewatch/dashboard/internal/observability"
	"invasivewatch/dashboard/internal/reports"
	"invasivewatch/dashboard/internal/seed"
	"invasivewatch/dashboard/internal/species"
)

type App struct {
	cfg     config.Config
	log     *slog.Logger
	db      *sql.DB
	clients *httpserver.Clients
	server  *httpserver.Server
}

func New(cfg config.Config) (*App, error) {
	logger := observability.NewLogger(cfg.LogLevel)

	db, medium, err := openMedium(cfg, logger)
	if err != nil {
		return nil, err
	}
	closeDB := func() {
		if db != nil {
			_ = db.Close()
		}
	}

	authService, err := auth.NewService(auth.NewInMemoryUserStore(), auth.ServiceConfig{BcryptCost: cfg.BcryptCost})
	if err != nil {
		closeDB()
		return nil, fmt.Errorf("create auth service: %w", err)
	}
	usersYAML, err := seed.Users(cfg.Seed.UsersFile)
	if err != nil {
		closeDB()
		return nil, err
	}
	nUsers, err := authService.SeedUsers(usersYAML)
	if err != nil {
		closeDB()
		return nil, fmt.Errorf("seed users: %w", err)
	}

	speciesYAML, err := seed.Species(cfg.Seed.SpeciesFile)
	if err != nil {
		closeDB()
		return nil, err
	}
	catalog, err := species.Parse(speciesYAML)
	if err != nil {
		closeDB()
		return nil, err
	}

	reportsYAML, err := seed.Reports(cfg.Seed.ReportsFile)
	if err != nil {
		closeDB()
		return nil, err
	}
	seeded, err := reports.ParseSeed(reportsYAML, time.Now())
	if err != nil {
		closeDB()
		return nil, err
	}
	repo := reports.NewRepository()
	if err := repo.Seed(seeded...); err != nil {
		closeDB()
		return nil, fmt.Errorf("seed reports: %w", err)
	}
	logger.Info("seed data loaded", "users", nUsers, "species", len(catalog.List(0)), "reports", repo.Len())

	auditLogger := audit.NewLogger(cfg.AuditLogFile)
	activity := auth.NewActivityLog(medium, auth.ActivityLogLimit)
	dashboard := httpserver.NewDashboard(repo)

	clients, err := httpserver.NewClients(httpserver.ClientsConfig{
		Medium:   medium,
		Activity: activity,
		Reports:  repo,
		Audit:    auditLogger,
		Logger:   logger,
		OnVerified: func(r reports.Report) {
			dashboard.Refresh()
			logger.Debug("dashboard refreshed", "report_id", r.ID, "status", r.VerificationStatus)
		},
	})
	if err != nil {
		closeDB()
		return nil, fmt.Errorf("create client registry: %w", err)
	}

	server := httpserver.New(cfg.HTTP, httpserver.Deps{
		Auth:      authService,
		Clients:   clients,
		Reports:   repo,
		Species:   catalog,
		Dashboard: dashboard,
		Activity:  activity,
		Audit:     auditLogger,
		Logger:    logger,
	})

	return &App{
		cfg:     cfg,
		log:     logger,
		db:      db,
		clients: clients,
		server:  server,
	}, nil
}

// openMedium picks where client session state lives: Postgres when
// DATABASE_URL is set, else the state file, else memory.
func openMedium(cfg config.Config, logger *slog.Logger) (*sql.DB, kvstore.Store, error) {
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}
		if err := kvstore.WaitForPostgres(context.Background(), db, cfg.PostgresWaitTimeout, 2*time.Second); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("ping database: %w", err)
		}
		store, err := kvstore.NewPostgresStore(db)
		if err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("create postgres state store: %w", err)
		}
		logger.Info("session medium ready", "kind", "postgres")
		return db, store, nil
	}
	if cfg.Session.StateFile != "" {
		store, err := kvstore.NewFileStore(cfg.Session.StateFile)
		if err != nil {
			return nil, nil, fmt.Errorf("create file state store: %w", err)
		}
		logger.Info("session medium ready", "kind", "file", "path", cfg.Session.StateFile)
		return nil, store, nil
	}
	logger.Warn("session medium is in memory; sessions end on restart")
	return nil, kvstore.NewMemoryStore(), nil
}

func (a *App) Run(ctx context.Context) error {
	defer func() {
		if a.db != nil {
			_ = a.db.Close()
		}
	}()

	errCh := make(chan error, 1)

	go func() {
		a.log.Info("http server starting", "addr", a.cfg.HTTP.Addr)
		errCh <- a.server.Start()
	}()

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go a.sweepSessions(sweepCtx)

	select {
	case <-ctx.Done():
		a.log.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server exited: %w", err)
	}
}

// sweepSessions is the periodic expiry check for every signed-in client.
func (a *App) sweepSessions(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.Session.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.clients.Sweep()
		}
	}
}
