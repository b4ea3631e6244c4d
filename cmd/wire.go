package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/bnema/askdb/internal/adapters/backend"
	memfile "github.com/bnema/askdb/internal/adapters/memory/file"
	memoryrender "github.com/bnema/askdb/internal/adapters/render/memory"
	tomlrepo "github.com/bnema/askdb/internal/adapters/repo/toml"
	boltstore "github.com/bnema/askdb/internal/adapters/store/bolt"
	"github.com/bnema/askdb/internal/application"
	"github.com/bnema/askdb/internal/config"
	"github.com/bnema/askdb/internal/domain"
	"github.com/bnema/askdb/internal/logger"
	"github.com/bnema/askdb/internal/metrics"
	"github.com/bnema/askdb/internal/ports"
	"github.com/bnema/askdb/internal/tools"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type app struct {
	cfg          config.Config
	logger       zerolog.Logger
	registry     *prometheus.Registry
	metrics      *metrics.Metrics
	backend      *backend.Client
	cache        *memfile.Cache
	store        *boltstore.Store
	sessions     *tomlrepo.Repository
	orchestrator *application.Orchestrator

	renderSummaries func([]domain.RecordSummary, memoryrender.RenderOptions) (string, error)
	renderBackups   func([]domain.BackupRecord, memoryrender.RenderOptions) (string, error)
	now             func() time.Time
}

// cliState wires the app lazily so persistent flags are parsed first and
// commands like version never touch the data directory.
type cliState struct {
	v          *viper.Viper
	configFile string
	app        *app
}

func (s *cliState) load(cmd *cobra.Command) (*app, error) {
	if s.app != nil {
		return s.app, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}
	if s.configFile != "" {
		s.v.SetConfigFile(s.configFile)
	}

	cfg, err := config.Load(s.v, homeDir)
	if err != nil {
		return nil, err
	}

	wired, err := wireApp(cmd.Context(), cfg, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	s.app = wired
	return wired, nil
}

func (s *cliState) close() error {
	if s.app == nil {
		return nil
	}
	err := s.app.close()
	s.app = nil
	return err
}

func wireApp(ctx context.Context, cfg config.Config, logOutput io.Writer) (*app, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	log := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, Output: logOutput})
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	clock := ports.SystemClock{}

	validator := backend.NewValidator(cfg.Backend.MaxResponseBytes, cfg.Backend.WarnResponseBytes, logger.Component(log, "validator"), m)
	client, err := backend.New(backend.Options{
		Dialect:       cfg.Backend.Dialect,
		BaseURL:       cfg.Backend.URL,
		Model:         cfg.Backend.Model,
		APIKey:        cfg.Backend.APIKey,
		Timeout:       cfg.Backend.Timeout,
		HealthTimeout: cfg.Backend.HealthTimeout,
		Validator:     validator,
		Logger:        logger.Component(log, "backend"),
		Metrics:       m,
	})
	if err != nil {
		return nil, fmt.Errorf("wire backend: %w", err)
	}

	cache, err := memfile.New(ctx, memfile.Options{
		Dir:     cfg.Memory.Dir,
		TTL:     cfg.Memory.TTL,
		Clock:   clock,
		Logger:  logger.Component(log, "memory"),
		Metrics: m,
	})
	if err != nil {
		return nil, fmt.Errorf("wire memory cache: %w", err)
	}

	store, err := boltstore.Open(cfg.Store.Path, cfg.Store.BackupDir, boltstore.Options{
		Clock:  clock,
		Logger: logger.Component(log, "store"),
	})
	if err != nil {
		return nil, fmt.Errorf("wire record store: %w", err)
	}

	sessions, err := tomlrepo.NewRepository(cfg.SessionsDir)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("wire session repository: %w", err)
	}

	catalog, err := tools.New(tools.Options{
		Store:     store,
		Cache:     cache,
		ExportDir: cfg.ExportDir,
		Logger:    logger.Component(log, "tools"),
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("wire tools: %w", err)
	}
	toolRegistry, err := catalog.Registry()
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("wire tool registry: %w", err)
	}

	orchestrator, err := application.NewOrchestrator(application.Options{
		Backend:        client,
		Registry:       toolRegistry,
		Interceptor:    application.NewBackupInterceptor(store, logger.Component(log, "backup"), m),
		Repository:     sessions,
		Logger:         logger.Component(log, "orchestrator"),
		Metrics:        m,
		Clock:          clock,
		MaxRounds:      cfg.Orchestrator.MaxRounds,
		ToolTimeout:    cfg.Orchestrator.ToolTimeout,
		BackendTimeout: cfg.Backend.Timeout,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("wire orchestrator: %w", err)
	}

	return &app{
		cfg:             cfg,
		logger:          log,
		registry:        registry,
		metrics:         m,
		backend:         client,
		cache:           cache,
		store:           store,
		sessions:        sessions,
		orchestrator:    orchestrator,
		renderSummaries: memoryrender.RenderSummaries,
		renderBackups:   memoryrender.RenderBackups,
		now:             time.Now,
	}, nil
}

func (a *app) close() error {
	if a.store == nil {
		return nil
	}
	if err := a.store.Close(); err != nil {
		return fmt.Errorf("close record store: %w", err)
	}
	return nil
}
