package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/jholhewres/threadrouter/pkg/threadrouter/channels/discord"
	"github.com/jholhewres/threadrouter/pkg/threadrouter/database"
	"github.com/jholhewres/threadrouter/pkg/threadrouter/gateway"
	"github.com/jholhewres/threadrouter/pkg/threadrouter/menu"
	"github.com/jholhewres/threadrouter/pkg/threadrouter/settings"
)

// Service owns every long-lived component of a threadrouter process.
type Service struct {
	cfg    *Config
	logger *slog.Logger

	hub      *database.Hub
	settings *settings.Manager
	metrics  *prometheus.Registry
	router   *menu.Router
	sweeper  *menu.Sweeper
	discord  *discord.Discord
	gateway  *gateway.Gateway
}

// OpenSettings opens the storage hub and loads the menu configuration.
// The caller closes the hub.
func OpenSettings(ctx context.Context, cfg *Config, logger *slog.Logger) (*settings.Manager, *database.Hub, error) {
	if logger == nil {
		logger = slog.Default()
	}
	hub, err := database.NewHub(ctx, cfg.Database, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	mgr := settings.NewManager(settings.NewDocumentStore(hub.Documents(), ""), cfg.Menu.Effective().MaxCategories, logger)
	if err := mgr.Load(ctx); err != nil {
		hub.Close()
		return nil, nil, fmt.Errorf("loading menu configuration: %w", err)
	}
	return mgr, hub, nil
}

// New builds the service. Nothing connects until Start.
func New(ctx context.Context, cfg *Config, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	mgr, hub, err := OpenSettings(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	menuCfg := cfg.Menu.Effective()
	strategy := menuCfg.Strategy()

	dc := discord.New(cfg.Discord, logger)
	dc.SetComponentTTL(menuCfg.Timeout)

	router := menu.NewRouter(menu.Deps{
		Transport: dc,
		Resolver:  menu.NewResolver(mgr, dc, logger),
		Registry:  menu.NewRegistry(),
		Metrics:   menu.NewMetrics(reg),
		Logger:    logger,
		Timeout:   menuCfg.Timeout,
	}, mgr, strategy)

	dc.SetInputHandler(router)
	cmds := discord.NewCommands(mgr, strategy, dc, cfg.Discord.AdminRoles, logger)
	cmds.SetPreviewRoles(cfg.Discord.PreviewRoles)
	dc.SetCommands(cmds)

	s := &Service{
		cfg:      cfg,
		logger:   logger.With("component", "service"),
		hub:      hub,
		settings: mgr,
		metrics:  reg,
		router:   router,
		discord:  dc,
	}
	if !strings.EqualFold(menuCfg.SweepSchedule, "off") {
		s.sweeper = menu.NewSweeper(router, menuCfg.SweepSchedule, menuCfg.SweepMaxAge, logger)
	}
	if cfg.Gateway.Enabled {
		s.gateway = gateway.New(cfg.Gateway, router, mgr, reg, s.Health, logger)
	}
	return s, nil
}

// Router returns the menu engine.
func (s *Service) Router() *menu.Router { return s.router }

// Settings returns the configuration manager.
func (s *Service) Settings() *settings.Manager { return s.settings }

// Hub returns the storage hub.
func (s *Service) Hub() *database.Hub { return s.hub }

// Metrics returns the prometheus registry.
func (s *Service) Metrics() *prometheus.Registry { return s.metrics }

// Gateway returns the HTTP gateway, or nil when disabled.
func (s *Service) Gateway() *gateway.Gateway { return s.gateway }

// Start connects Discord, then starts the sweeper and the gateway.
func (s *Service) Start(ctx context.Context) error {
	if err := s.discord.Connect(ctx); err != nil {
		return err
	}

	var g errgroup.Group
	if s.sweeper != nil {
		g.Go(func() error { return s.sweeper.Start(ctx) })
	}
	if s.gateway != nil {
		g.Go(func() error { return s.gateway.Start(ctx) })
	}
	if err := g.Wait(); err != nil {
		if s.sweeper != nil {
			s.sweeper.Stop()
		}
		s.discord.Disconnect()
		return err
	}

	s.logger.Info("threadrouter started",
		"variant", s.router.Strategy().Name(),
		"backend", s.cfg.Database.Effective().Backend,
		"gateway", s.gateway != nil,
	)
	return nil
}

// Stop shuts everything down in reverse order. Active menus are disbanded
// without a selection so no orphaned displays stay behind.
func (s *Service) Stop(ctx context.Context) error {
	var errs []error
	if s.gateway != nil {
		if err := s.gateway.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stopping gateway: %w", err))
		}
	}
	if s.sweeper != nil {
		s.sweeper.Stop()
	}
	s.router.Shutdown(ctx)
	if err := s.discord.Disconnect(); err != nil {
		errs = append(errs, fmt.Errorf("disconnecting discord: %w", err))
	}
	if err := s.hub.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Health reports storage and channel health for the gateway.
func (s *Service) Health(ctx context.Context) map[string]any {
	return map[string]any{
		"database": s.hub.Status(ctx),
		"discord":  s.discord.Health(),
		"menu": map[string]any{
			"variant": s.router.Strategy().Name(),
			"enabled": s.settings.Snapshot().Enabled,
		},
	}
}
