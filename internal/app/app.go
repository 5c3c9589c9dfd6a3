// Package app wires the leadline subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run executes background maintenance until the context is
// cancelled, and Shutdown tears everything down in order.
//
// For testing, inject doubles via functional options (WithStore,
// WithNotifiers, WithMetrics). When an option is not provided, New creates
// real implementations from the config.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lucasbarrios/leadline/internal/capture"
	"github.com/lucasbarrios/leadline/internal/config"
	"github.com/lucasbarrios/leadline/internal/dispatch"
	"github.com/lucasbarrios/leadline/internal/gate"
	"github.com/lucasbarrios/leadline/internal/goals"
	"github.com/lucasbarrios/leadline/internal/intent"
	"github.com/lucasbarrios/leadline/internal/lead"
	leadpg "github.com/lucasbarrios/leadline/internal/lead/postgres"
	"github.com/lucasbarrios/leadline/internal/observe"
	"github.com/lucasbarrios/leadline/internal/respond"
	"github.com/lucasbarrios/leadline/internal/summary"
	"github.com/lucasbarrios/leadline/pkg/provider/embeddings"
	"github.com/lucasbarrios/leadline/pkg/provider/llm"
)

// maintenanceInterval is how often idle sessions and stale rate-limiter
// entries are pruned.
const maintenanceInterval = 5 * time.Minute

// sessionMaxIdle is how long an idle conversation is kept before eviction.
const sessionMaxIdle = 30 * time.Minute

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured; the core degrades to deterministic behaviour.
// Populated by main.go via the config registry.
type Providers struct {
	LLM        llm.Provider
	Embeddings embeddings.Provider
}

// App owns all subsystem lifetimes.
type App struct {
	providers *Providers

	mu       sync.Mutex
	cfg      *config.Config
	pipeline *Pipeline

	// Long-lived parts that survive config reloads.
	sessions *Sessions
	limiter  *gate.SlidingWindow
	backend  dispatch.Backend
	store    lead.Store
	notifs   []lead.Notifier
	metrics  *observe.Metrics

	// closers are called in reverse order during Shutdown.
	closers  []func() error
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a lead store instead of creating one from config.
func WithStore(s lead.Store) Option {
	return func(a *App) { a.store = s }
}

// WithNotifiers injects delivery notifiers instead of creating them from config.
func WithNotifiers(n ...lead.Notifier) Option {
	return func(a *App) { a.notifs = n }
}

// WithMetrics injects a metrics instance instead of the package default.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry).
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil {
		providers = &Providers{}
	}
	a := &App{
		providers: providers,
		cfg:       cfg,
	}
	for _, o := range opts {
		o(a)
	}

	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	a.sessions = NewSessions(WithSessionsMetrics(a.metrics))
	a.limiter = gate.NewSlidingWindow(cfg.Gate.RateLimit.Window.Std(), cfg.Gate.RateLimit.MaxRequests)

	if err := a.initDelivery(ctx); err != nil {
		return nil, fmt.Errorf("app: init delivery: %w", err)
	}

	a.pipeline = a.buildPipeline(cfg)
	return a, nil
}

// initDelivery sets up the lead store, notifiers, and the delivery fan-out.
func (a *App) initDelivery(ctx context.Context) error {
	if a.store == nil {
		if dsn := a.cfg.Leads.PostgresDSN; dsn != "" {
			store, err := leadpg.NewStore(ctx, dsn, a.cfg.Leads.EmbeddingDimensions, a.providers.Embeddings)
			if err != nil {
				return err
			}
			a.store = store
			a.closers = append(a.closers, func() error {
				store.Close()
				return nil
			})
			slog.Info("lead store ready", "backend", "postgres")
		} else {
			a.store = lead.NewFileStore(a.cfg.Leads.FilePath)
			slog.Info("lead store ready", "backend", "file", "path", a.cfg.Leads.FilePath)
		}
	}

	if a.notifs == nil && a.cfg.Leads.WebhookURL != "" {
		a.notifs = []lead.Notifier{lead.NewWebhookNotifier(a.cfg.Leads.WebhookURL, &http.Client{Timeout: 10 * time.Second})}
	}

	a.backend = lead.NewDelivery(a.store, a.notifs...)
	return nil
}

// buildPipeline assembles the per-message processing chain from cfg. Called
// at startup and again on hot reload; the session registry, rate limiter,
// and delivery backend are reused so reloads never drop in-flight state.
func (a *App) buildPipeline(cfg *config.Config) *Pipeline {
	registry := goals.NewRegistry(goals.Messages{
		NameTooShort:    cfg.Prompts.ErrNameTooShort,
		InvalidEmail:    cfg.Prompts.ErrInvalidEmail,
		ProjectTooShort: cfg.Prompts.ErrProjectTooShort,
	})

	classifier := intent.NewKeywordClassifier(intent.Config{
		StrongPhrases:   cfg.Intent.StrongPhrases,
		Affirmations:    cfg.Intent.Affirmations,
		ContextKeywords: cfg.Intent.ContextKeywords,
		ContextWindow:   cfg.Intent.ContextWindow,
	})

	machine := capture.NewMachine(registry, capture.Config{
		Cooldown:       cfg.Capture.Cooldown.Std(),
		Affirmations:   cfg.Capture.Affirmations,
		Negatives:      cfg.Capture.Negatives,
		SkipKeywords:   cfg.Capture.SkipKeywords,
		FuzzyThreshold: cfg.Capture.FuzzyThreshold,
		Prompts: capture.Prompts{
			ConfirmCapture: cfg.Prompts.ConfirmCapture,
			AskName:        cfg.Prompts.AskName,
			AskEmail:       cfg.Prompts.AskEmail,
			AskPhone:       cfg.Prompts.AskPhone,
			AskProject:     cfg.Prompts.AskProject,
			ConfirmSend:    cfg.Prompts.ConfirmSend,
			Completed:      cfg.Prompts.Completed,
			Declined:       cfg.Prompts.Declined,
			Ambiguous:      cfg.Prompts.Ambiguous,
		},
	})

	summariser := summary.NewService(a.providers.LLM, summary.Config{
		Temperature: cfg.Summary.Temperature,
		MaxTokens:   cfg.Summary.MaxTokens,
	})

	dispatcher := dispatch.New(classifier, machine, registry, summariser, a.backend)

	responder := respond.New(a.providers.LLM, cfg.Prompts.System, respond.ErrorTexts{
		Busy:          cfg.Prompts.ErrServiceBusy,
		Misconfigured: cfg.Prompts.ErrServiceMisconfigured,
		Generic:       cfg.Prompts.ErrServiceGeneric,
	})

	return NewPipeline(PipelineConfig{
		Sessions:   a.sessions,
		Validator:  gate.NewValidator(cfg.Gate.MaxMessageLen),
		Limiter:    a.limiter,
		Captcha:    gate.NewCaptcha(cfg.Gate.Captcha.Enabled, nil),
		Dispatcher: dispatcher,
		Responder:  responder,
		Metrics:    a.metrics,
	})
}

// Pipeline returns the current message pipeline. The pointer is swapped
// atomically on hot reload; callers must not cache it across requests.
func (a *App) Pipeline() *Pipeline {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pipeline
}

// Sessions returns the session registry.
func (a *App) Sessions() *Sessions {
	return a.sessions
}

// Metrics returns the app's metrics instance.
func (a *App) Metrics() *observe.Metrics {
	return a.metrics
}

// Store returns the lead store, for readiness checks and admin surfaces.
func (a *App) Store() lead.Store {
	return a.store
}

// Responder returns the current free-form responder, for streaming surfaces.
func (a *App) Responder() *respond.Responder {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pipeline.responder
}

// ApplyConfig hot-reloads the parts of cfg that are safe to swap at runtime.
// Intended as the config watcher's onChange callback.
func (a *App) ApplyConfig(old, cfg *config.Config) {
	d := config.Diff(old, cfg)
	if !d.Any() {
		return
	}

	if d.LogLevelChanged {
		slog.Info("log level change requires restart of the log handler; ignoring", "new", d.NewLogLevel)
	}

	a.mu.Lock()
	a.cfg = cfg
	a.pipeline = a.buildPipeline(cfg)
	a.mu.Unlock()

	slog.Info("configuration applied",
		"intent", d.IntentChanged,
		"capture_tuning", d.CaptureTuningChanged,
		"prompts", d.PromptsChanged,
	)
}

// Run executes background maintenance until ctx is cancelled: idle-session
// eviction and rate-limiter pruning. Returns ctx.Err() on cancellation.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ticker := time.NewTicker(maintenanceInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if n := a.sessions.Evict(sessionMaxIdle); n > 0 {
					slog.Debug("evicted idle sessions", "count", n)
				}
				a.limiter.Prune()
			}
		}
	})

	slog.Info("app running")
	return g.Wait()
}

// Shutdown tears down all subsystems in reverse-init order. It respects the
// context deadline: if ctx expires before all closers finish, the remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		for i := len(a.closers) - 1; i >= 0; i-- {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", i+1)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := a.closers[i](); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
