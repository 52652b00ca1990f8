// Package app wires magpie's components together and manages their lifetime:
// health tracker, circuit breakers, connector, tool registry, invocation
// guard, search client, the twitter facade, the optional LLM agent, and the
// operational HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/magpie-ai/magpie/internal/agent"
	"github.com/magpie-ai/magpie/internal/config"
	"github.com/magpie-ai/magpie/internal/health"
	"github.com/magpie-ai/magpie/internal/httpapi"
	"github.com/magpie-ai/magpie/internal/mcp"
	"github.com/magpie-ai/magpie/internal/mcp/mcphost"
	"github.com/magpie-ai/magpie/internal/observe"
	"github.com/magpie-ai/magpie/internal/registry"
	"github.com/magpie-ai/magpie/internal/resilience"
	"github.com/magpie-ai/magpie/internal/search"
	"github.com/magpie-ai/magpie/internal/twitter"
)

// options holds test seams for [New].
type options struct {
	dialer    mcp.Dialer
	completer agent.Completer
}

// Option customises app construction. Used by tests to substitute doubles for
// the MCP dialer and the LLM backend.
type Option func(*options)

// WithDialer replaces the production MCP dialer.
func WithDialer(d mcp.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

// WithCompleter replaces the production LLM backend.
func WithCompleter(c agent.Completer) Option {
	return func(o *options) { o.completer = c }
}

// App is the assembled application.
type App struct {
	cfg      *config.Config
	registry *registry.Registry
	facade   *twitter.Facade
	server   *http.Server

	stopOnce sync.Once
}

// New builds the full component graph from cfg. It performs no I/O; provider
// connections happen lazily on first use (or eagerly via the prewarm in Run).
func New(cfg *config.Config, metrics *observe.Metrics, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	dialer := o.dialer
	if dialer == nil {
		dialer = mcphost.NewDialer()
	}

	res := cfg.MCP.Resilience
	tracker := health.NewTracker()
	breakers := resilience.NewBreakerSet(resilience.BreakerConfig{
		Threshold: res.BreakerThreshold,
		Cooldown:  res.BreakerCooldown.Std(),
	})

	connector := registry.NewConnector(dialer, tracker, breakers, metrics, registry.ConnectorConfig{
		MaxRetries:     res.MaxRetries,
		BaseDelay:      res.BaseDelay.Std(),
		MaxDelay:       res.MaxDelay.Std(),
		ConnectTimeout: res.ConnectTimeout.Std(),
	})

	reg := registry.New(connector, cfg.MCP.Servers, cfg.MCP.RequiredTools, tracker, metrics, registry.RegistryConfig{
		TTL:            res.CacheTTL.Std(),
		RefreshTimeout: res.RefreshTimeout.Std(),
	})

	usage := observe.NewUsageStats()
	guard := registry.NewGuard(res.ExecTimeout.Std(), metrics, usage)

	var searchOpts []search.Option
	if cfg.Search.MaxResults > 0 {
		searchOpts = append(searchOpts, search.WithMaxResults(cfg.Search.MaxResults))
	}
	sc := search.New(cfg.Search.APIKey, searchOpts...)
	if !sc.Configured() {
		slog.Warn("no search API key configured; web_search will report unavailable")
	}

	facade := twitter.New(reg, guard, sc, tracker, usage, cfg.Twitter.UserID)

	var ag *agent.Agent
	completer := o.completer
	if completer == nil && cfg.Agent.Provider != "" {
		var llmOpts []anyllmlib.Option
		if cfg.Agent.APIKey != "" {
			llmOpts = append(llmOpts, anyllmlib.WithAPIKey(cfg.Agent.APIKey))
		}
		llm, err := agent.NewAnyLLM(cfg.Agent.Provider, cfg.Agent.Model, llmOpts...)
		if err != nil {
			return nil, fmt.Errorf("app: create llm backend: %w", err)
		}
		completer = llm
	}
	if completer != nil {
		ag = agent.New(completer, facade, cfg.Agent.SystemPrompt, cfg.Agent.MaxTurns)
	} else {
		slog.Info("no agent configured; serving operational API only")
	}

	probes := health.NewHandler(
		health.Checker{
			Name: "registry",
			Check: func(ctx context.Context) error {
				if st := reg.Status(); !st.HasCache || st.ToolCount == 0 {
					return errors.New("no tools cached")
				}
				return nil
			},
		},
		health.Checker{
			Name: "providers",
			Check: func(ctx context.Context) error {
				if tracker.AnyFailing() {
					return errors.New("a provider is failing")
				}
				return nil
			},
		},
	)

	api := httpapi.New(facade, ag, probes, metrics)

	return &App{
		cfg:      cfg,
		registry: reg,
		facade:   facade,
		server: &http.Server{
			Addr:              cfg.Server.ListenAddr,
			Handler:           api.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Facade exposes the tool surface, for tests and embedding.
func (a *App) Facade() *twitter.Facade { return a.facade }

// Run prewarms the registry, starts the HTTP server, and blocks until ctx is
// cancelled or the server fails. Shutdown is performed before returning.
func (a *App) Run(ctx context.Context) error {
	a.registry.Prewarm(ctx)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
		return a.Shutdown(context.Background())
	case err := <-errCh:
		sderr := a.Shutdown(context.Background())
		return errors.Join(fmt.Errorf("app: http server: %w", err), sderr)
	}
}

// Shutdown stops the HTTP server and closes all provider sessions. Safe to
// call more than once.
func (a *App) Shutdown(ctx context.Context) error {
	var err error
	a.stopOnce.Do(func() {
		sctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		err = a.server.Shutdown(sctx)
		a.registry.Close()
		slog.Info("shutdown complete")
	})
	return err
}
