// Package gateway provides the HTTP surface of threadrouter: lifecycle
// webhooks from the modmail host, the configuration API, health and metrics.
package gateway

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jholhewres/threadrouter/pkg/threadrouter/menu"
	"github.com/jholhewres/threadrouter/pkg/threadrouter/settings"
)

// Config holds gateway configuration.
type Config struct {
	// Enabled starts the HTTP server.
	Enabled bool `yaml:"enabled"`

	// Address is the listen address (default: "127.0.0.1:8087").
	Address string `yaml:"address"`

	// AuthToken is the bearer token required on every route but /health.
	AuthToken string `yaml:"auth_token"`
}

// Router is the menu engine the lifecycle webhooks drive.
type Router interface {
	OnThreadReady(ctx context.Context, ev menu.ThreadReady) (*menu.Menu, error)
	OnThreadClosed(ctx context.Context, threadID string) bool
	OnThreadReplied(ctx context.Context, threadID, messageID string, fromOperator bool) bool
	Registry() *menu.Registry
	Strategy() menu.Strategy
}

// HealthFunc reports component health for GET /health.
type HealthFunc func(ctx context.Context) map[string]any

// Gateway is the HTTP API gateway.
type Gateway struct {
	router   Router
	settings *settings.Manager
	health   HealthFunc
	gatherer prometheus.Gatherer

	config    Config
	server    *http.Server
	logger    *slog.Logger
	startedAt time.Time
}

// New creates a new Gateway. gatherer may be nil to disable /metrics.
func New(cfg Config, router Router, mgr *settings.Manager, gatherer prometheus.Gatherer, health HealthFunc, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Address == "" {
		cfg.Address = "127.0.0.1:8087"
	}
	return &Gateway{
		router:    router,
		settings:  mgr,
		health:    health,
		gatherer:  gatherer,
		config:    cfg,
		logger:    logger.With("component", "gateway"),
		startedAt: time.Now(),
	}
}

// Handler builds the routed handler with middleware applied.
func (g *Gateway) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", g.handleHealth).Methods(http.MethodGet)

	r.HandleFunc("/v1/threads/{id}/ready", g.handleThreadReady).Methods(http.MethodPost)
	r.HandleFunc("/v1/threads/{id}/closed", g.handleThreadClosed).Methods(http.MethodPost)
	r.HandleFunc("/v1/threads/{id}/replied", g.handleThreadReplied).Methods(http.MethodPost)

	r.HandleFunc("/api/menus", g.handleListMenus).Methods(http.MethodGet)
	r.HandleFunc("/api/config", g.handleGetConfig).Methods(http.MethodGet)
	r.HandleFunc("/api/config/toggle", g.handleToggle).Methods(http.MethodPost)
	r.HandleFunc("/api/config/reset", g.handleReset).Methods(http.MethodPost)
	r.HandleFunc("/api/config/categories", g.handleToggleCategory).Methods(http.MethodPost)
	r.HandleFunc("/api/config/categories/{id}", g.handleEditCategory).Methods(http.MethodPut)
	r.HandleFunc("/api/config/categories/{id}/mentions", g.handleSetMentions).Methods(http.MethodPut)
	r.HandleFunc("/api/config/description", g.handleSetDescription).Methods(http.MethodPut)
	r.HandleFunc("/api/config/preview", g.handlePreview).Methods(http.MethodGet)

	if g.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(g.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.writeError(w, "not found", http.StatusNotFound)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.writeError(w, "method not allowed", http.StatusMethodNotAllowed)
	})
	return g.requestIDMiddleware(g.securityHeadersMiddleware(g.authMiddleware(r)))
}

// Start starts the HTTP server in the background.
func (g *Gateway) Start(ctx context.Context) error {
	g.startedAt = time.Now()
	g.server = &http.Server{
		Addr:              g.config.Address,
		Handler:           g.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Warn when the gateway has no auth token and is bound to a non-loopback address.
	if g.config.AuthToken == "" {
		host, _, _ := net.SplitHostPort(g.config.Address)
		if host == "" {
			host = "0.0.0.0"
		}
		ip := net.ParseIP(host)
		if !(ip != nil && ip.IsLoopback()) && host != "localhost" {
			g.logger.Warn("SECURITY: gateway has no auth token and is bound to a non-loopback address",
				"address", g.config.Address)
		}
	}

	ln, err := net.Listen("tcp", g.config.Address)
	if err != nil {
		return err
	}
	go func() {
		if err := g.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			g.logger.Error("gateway server error", "error", err)
		}
	}()
	g.logger.Info("gateway started", "address", ln.Addr().String())
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}
	g.logger.Info("gateway stopping")
	return g.server.Shutdown(ctx)
}
