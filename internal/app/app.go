// Package app wires configuration into a running classifier: repository,
// classifier backend, notifier, chain, pipeline and worker pool.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"call-classifier/internal/api"
	"call-classifier/internal/chain"
	"call-classifier/internal/classification"
	"call-classifier/internal/config"
	"call-classifier/internal/gateway"
	"call-classifier/internal/pipeline"
	"call-classifier/internal/storage"
	"call-classifier/pkg/logger"
	"call-classifier/pkg/validator"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var ErrNotInitialized = errors.New("app is not initialized")

type App struct {
	Config     *config.Config
	Repository classification.Repository
	Service    *classification.Service
	Pipeline   *pipeline.Pipeline
	Dispatcher *pipeline.Dispatcher
	Validator  pipeline.Validator
	Registry   *prometheus.Registry

	closers []func() error
}

// Init builds every component named by cfg. On error anything already
// opened is closed again.
func Init(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	log := logger.Get()
	a := &App{Config: cfg, Validator: &validator.BasicValidator{}}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	repo, err := a.openRepository(ctx)
	if err != nil {
		return nil, err
	}
	a.Repository = repo

	classifier, err := newClassifier(cfg)
	if err != nil {
		return nil, err
	}

	var notifier classification.Notifier
	if cfg.NotifyURL != "" {
		notifier = gateway.NewWebhookNotifier(cfg.NotifyURL, cfg.NotifyTimeout)
	}
	a.Service = classification.NewService(repo, classifier, notifier)

	c, err := pipeline.NewChain(a.Service)
	if err != nil {
		return nil, fmt.Errorf("build chain: %w", err)
	}

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.Pipeline = pipeline.New(c, pipeline.NewMetrics(a.Registry))
	a.Dispatcher = pipeline.NewDispatcher(a.Pipeline, a.Validator, cfg.WorkerCount, cfg.QueueSize)
	a.closers = append(a.closers, func() error {
		a.Dispatcher.Shutdown()
		return nil
	})

	log.Infow("app initialized",
		"repository", cfg.RepositoryBackend,
		"classifier", cfg.ClassifierBackend,
		"notify", notifier != nil,
		"worker_count", cfg.WorkerCount,
		"queue_size", cfg.QueueSize,
	)
	return a, nil
}

func (a *App) openRepository(ctx context.Context) (classification.Repository, error) {
	cfg := a.Config
	switch cfg.RepositoryBackend {
	case "memory":
		return storage.NewMemoryRepository(), nil
	case "mysql", "sqlite":
		dialect, dsn := storage.DialectMySQL, cfg.DSN()
		if cfg.RepositoryBackend == "sqlite" {
			dialect, dsn = storage.DialectSQLite, cfg.SQLitePath
		}
		repo, err := storage.NewSQLRepository(ctx, dialect, dsn)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, repo.Close)
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown repository backend %q", cfg.RepositoryBackend)
	}
}

func newClassifier(cfg *config.Config) (classification.Classifier, error) {
	switch cfg.ClassifierBackend {
	case "static":
		return gateway.NewStaticClassifier(classification.Category(cfg.StaticCategory)), nil
	case "anthropic":
		return gateway.NewAnthropicClassifier(cfg.AnthropicAPIKey, cfg.AnthropicModel)
	default:
		return nil, fmt.Errorf("unknown classifier backend %q", cfg.ClassifierBackend)
	}
}

// Handle runs one event synchronously through the pipeline. ev is
// dispatched as given; an unmatched event comes back as the result
// unchanged, with its envelope id reported beside it.
func (a *App) Handle(ctx context.Context, ev chain.Event) (pipeline.Dispatched, error) {
	if a == nil || a.Pipeline == nil {
		return pipeline.Dispatched{}, ErrNotInitialized
	}
	env := pipeline.NewEnvelope(ev)
	if err := a.Validator.Validate(ctx, ev); err != nil {
		return pipeline.Dispatched{EventID: env.ID}, err
	}
	return a.Pipeline.Dispatch(ctx, env)
}

// HTTPHandler exposes the app over the HTTP API.
func (a *App) HTTPHandler() http.Handler {
	return api.NewServer(a.Pipeline, a.Dispatcher, a.Validator, a.Registry).Handler()
}

// Close stops the workers and releases storage, in reverse order of
// creation.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
