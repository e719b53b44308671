// Package main provides an interactive command-line pharmacy assistant.
// It answers questions about medications, stock and prescriptions by
// streaming a model that calls lookup tools.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Cyclone1070/pharmassist/internal/audit"
	"github.com/Cyclone1070/pharmassist/internal/config"
	"github.com/Cyclone1070/pharmassist/internal/correlation"
	"github.com/Cyclone1070/pharmassist/internal/logging"
	"github.com/Cyclone1070/pharmassist/internal/metrics"
	"github.com/Cyclone1070/pharmassist/internal/orchestrator"
	"github.com/Cyclone1070/pharmassist/internal/orchestrator/models"
	"github.com/Cyclone1070/pharmassist/internal/pharmacy"
	"github.com/Cyclone1070/pharmassist/internal/provider/gemini"
	provider "github.com/Cyclone1070/pharmassist/internal/provider/models"
	"github.com/Cyclone1070/pharmassist/internal/provider/openai"
	"github.com/Cyclone1070/pharmassist/internal/ratelimit"
	"github.com/Cyclone1070/pharmassist/internal/tool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Dependencies holds the components required to run the application.
type Dependencies struct {
	Config          *config.Config
	Logger          *zap.Logger
	Registry        *prometheus.Registry
	ProviderFactory func(context.Context) (provider.Provider, error)
	In              io.Reader
	Out             io.Writer
}

// options are the command-line flags.
type options struct {
	username string
	events   bool
}

func createProviderFactory(cfg config.ProviderConfig) func(context.Context) (provider.Provider, error) {
	return func(ctx context.Context) (provider.Provider, error) {
		switch cfg.Name {
		case "openai", "":
			apiKey := os.Getenv("OPENAI_API_KEY")
			if apiKey == "" {
				return nil, fmt.Errorf("OPENAI_API_KEY environment variable is required")
			}
			timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
			return openai.New(openai.NewClient(apiKey, cfg.BaseURL, timeout), cfg.Model), nil
		case "gemini":
			apiKey := os.Getenv("GEMINI_API_KEY")
			if apiKey == "" {
				return nil, fmt.Errorf("GEMINI_API_KEY environment variable is required")
			}
			client, err := gemini.NewClient(ctx, apiKey)
			if err != nil {
				return nil, fmt.Errorf("failed to create Gemini client: %w", err)
			}
			return gemini.New(client, cfg.Model), nil
		default:
			return nil, fmt.Errorf("unknown provider %q", cfg.Name)
		}
	}
}

// createAuditor opens the audit file. Failing to open it disables auditing
// rather than stopping the assistant.
func createAuditor(cfg config.AuditConfig, log *zap.Logger) *audit.Logger {
	if !cfg.Enabled {
		return audit.Disabled()
	}
	auditor, err := audit.Open(cfg.Dir, audit.WithDiagnostics(log))
	if err != nil {
		log.Warn("audit logging disabled", zap.String("dir", cfg.Dir), zap.Error(err))
		return audit.Disabled()
	}
	return auditor
}

func createRegistry(cfg *config.Config, catalog *pharmacy.Catalog, auditor tool.Auditor, m *metrics.Metrics, log *zap.Logger) (*tool.Registry, error) {
	limiter := ratelimit.New(ratelimit.Limits{
		PerMinute:   cfg.RateLimit.PerMinute,
		PerDay:      cfg.RateLimit.PerDay,
		Consecutive: cfg.RateLimit.Consecutive,
	})
	return tool.NewRegistry(pharmacy.Tools(catalog), tool.Dependencies{
		Limiter:       limiter,
		Auditor:       auditor,
		Metrics:       m,
		Logger:        log,
		IdentityTools: pharmacy.IdentityTools,
	})
}

// resolveIdentity logs the session in as a catalog user. An empty username
// is an anonymous session.
func resolveIdentity(catalog *pharmacy.Catalog, username string) (models.Identity, error) {
	if username == "" {
		return models.Identity{}, nil
	}
	user, ok := catalog.UserByUsername(username)
	if !ok {
		return models.Identity{}, fmt.Errorf("unknown user %q", username)
	}
	return models.Identity{UserID: user.ID, Username: user.Username}, nil
}

func serveMetrics(addr string, reg *prometheus.Registry, log *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server stopped", zap.Error(err))
		}
	}()
	log.Info("serving metrics", zap.String("addr", addr))
	return srv
}

func main() {
	var opts options
	flag.StringVar(&opts.username, "user", "", "log in as this catalog username")
	flag.BoolVar(&opts.events, "events", false, "show tool calls as they happen")
	flag.Parse()

	// A missing .env is normal; the environment may already hold the keys
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v\n", err)
		fmt.Fprintf(os.Stderr, "Using default configuration.\n")
		cfg = config.DefaultConfig()
	}

	log, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	deps := Dependencies{
		Config:          cfg,
		Logger:          log,
		Registry:        prometheus.NewRegistry(),
		ProviderFactory: createProviderFactory(cfg.Provider),
		In:              os.Stdin,
		Out:             os.Stdout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, deps, opts); err != nil {
		log.Error("pharmassist exited", zap.Error(err))
		os.Exit(1)
	}
}

// run wires every component once and drives the session until input ends
// or ctx is cancelled.
func run(ctx context.Context, deps Dependencies, opts options) error {
	cfg, log := deps.Config, logging.OrNop(deps.Logger)

	m, err := metrics.New(deps.Registry)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	if cfg.Metrics.Addr != "" {
		srv := serveMetrics(cfg.Metrics.Addr, deps.Registry, log)
		defer func() { _ = srv.Close() }()
	}

	catalog, err := pharmacy.LoadCatalog(cfg.Pharmacy.CatalogPath)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	identity, err := resolveIdentity(catalog, opts.username)
	if err != nil {
		return err
	}

	auditor := createAuditor(cfg.Audit, log)
	defer func() { _ = auditor.Close() }()

	registry, err := createRegistry(cfg, catalog, auditor, m, log)
	if err != nil {
		return fmt.Errorf("build tool registry: %w", err)
	}

	p, err := deps.ProviderFactory(ctx)
	if err != nil {
		return fmt.Errorf("initialize provider: %w", err)
	}

	orch, err := orchestrator.New(cfg.Orchestrator, cfg.History, orchestrator.Dependencies{
		Provider: p,
		Tools:    registry,
		Auditor:  auditor,
		IDs:      correlation.Generator{},
		Metrics:  m,
		Logger:   log,
	})
	if err != nil {
		return fmt.Errorf("build orchestrator: %w", err)
	}

	callerID := orchestrator.AnonymousCaller
	if identity.Authenticated() {
		callerID = identity.UserID
	}
	log.Info("session started",
		zap.String("provider", p.Name()),
		zap.String("model", cfg.Provider.Model),
		zap.String("caller", callerID))

	s := &session{
		orch:     orch,
		out:      deps.Out,
		callerID: callerID,
		identity: identity,
		events:   opts.events,
	}
	if identity.Authenticated() {
		fmt.Fprintf(deps.Out, "Logged in as %s.\n", identity.Username)
	}
	fmt.Fprintln(deps.Out, strings.TrimSpace(welcome))
	return s.loop(ctx, deps.In)
}

const welcome = `
Ask about medications, stock availability or prescriptions. Type "exit" to quit.
`
