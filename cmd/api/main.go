package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"labportal/internal/auth"
	"labportal/internal/config"
	"labportal/internal/httpserver"
	"labportal/internal/logger"
	"labportal/internal/models"
	"labportal/internal/services/labreport"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var envFile string

func main() {
	root := &cobra.Command{
		Use:           "api",
		Short:         "Lab report portal API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	root.PersistentFlags().StringVar(&envFile, "env", "", "path to a .env file (default ./.env)")
	root.AddCommand(
		&cobra.Command{Use: "serve", Short: "Migrate, seed and serve HTTP", RunE: runServe},
		&cobra.Command{Use: "migrate", Short: "Apply the database schema", RunE: runMigrate},
		&cobra.Command{Use: "seed", Short: "Create roles and the default manager", RunE: runSeed},
	)
	if err := root.Execute(); err != nil {
		lg := logger.New("info")
		lg.Errorw("command failed", "error", err)
		_ = lg.Sync()
		os.Exit(1)
	}
}

type app struct {
	cfg *config.Config
	lg  *zap.SugaredLogger
	db  *gorm.DB
}

func setup(needTokens bool) (*app, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}
	if needTokens {
		if err := cfg.RequireServer(); err != nil {
			return nil, err
		}
	} else if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is empty")
	}
	lg := logger.New(cfg.LogLevel)
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, lg: lg, db: db}, nil
}

func (a *app) migrate() error {
	if err := models.Migrate(a.db); err != nil {
		return err
	}
	a.lg.Infow("schema migrated")
	return nil
}

func (a *app) seed(ctx context.Context) error {
	if err := auth.EnsureRoles(ctx, a.db); err != nil {
		return err
	}
	if a.cfg.Seed.Password == "" {
		a.lg.Warnw("seed.password not set, skipping default manager")
		return nil
	}
	created, err := auth.EnsureUser(ctx, a.db, a.cfg.Seed.Username, a.cfg.Seed.Password, auth.RoleManager)
	if err != nil {
		return err
	}
	if created {
		a.lg.Infow("seeded default manager", "username", a.cfg.Seed.Username)
	}
	return nil
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	a, err := setup(false)
	if err != nil {
		return err
	}
	defer a.lg.Sync()
	return a.migrate()
}

func runSeed(cmd *cobra.Command, _ []string) error {
	a, err := setup(false)
	if err != nil {
		return err
	}
	defer a.lg.Sync()
	return a.seed(cmd.Context())
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := setup(true)
	if err != nil {
		return err
	}
	defer a.lg.Sync()
	if err := a.migrate(); err != nil {
		return err
	}
	if err := a.seed(cmd.Context()); err != nil {
		return err
	}

	tokens := auth.NewTokens(a.cfg.JWT.Secret, a.cfg.JWT.ExpiresIn)
	router := httpserver.NewRouter(a.db, a.lg, tokens, labreport.WithTerminalLock(a.cfg.Workflow.LockTerminal))
	srv := &http.Server{
		Addr:              ":" + a.cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	errc := make(chan error, 1)
	go func() {
		a.lg.Infow("listening", "port", a.cfg.HTTPPort, "lock_terminal", a.cfg.Workflow.LockTerminal)
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	a.lg.Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
