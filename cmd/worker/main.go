// Package main provides the entry point for the generation Temporal worker.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.temporal.io/sdk/client"

	"github.com/sadiq-codes/genpaper-sub003/internal/collector"
	"github.com/sadiq-codes/genpaper-sub003/internal/config"
	"github.com/sadiq-codes/genpaper-sub003/internal/control"
	"github.com/sadiq-codes/genpaper-sub003/internal/database"
	"github.com/sadiq-codes/genpaper-sub003/internal/discovery"
	"github.com/sadiq-codes/genpaper-sub003/internal/events"
	"github.com/sadiq-codes/genpaper-sub003/internal/index"
	"github.com/sadiq-codes/genpaper-sub003/internal/ingestion"
	"github.com/sadiq-codes/genpaper-sub003/internal/llm"
	"github.com/sadiq-codes/genpaper-sub003/internal/observability"
	"github.com/sadiq-codes/genpaper-sub003/internal/quality"
	"github.com/sadiq-codes/genpaper-sub003/internal/queue"
	"github.com/sadiq-codes/genpaper-sub003/internal/repository"
	"github.com/sadiq-codes/genpaper-sub003/internal/retrieval"
	"github.com/sadiq-codes/genpaper-sub003/internal/temporal"
	"github.com/sadiq-codes/genpaper-sub003/internal/temporal/activities"
	"github.com/sadiq-codes/genpaper-sub003/internal/temporal/workflows"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Set up structured logging.
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "worker").Logger()
	logger.Info().Msg("genpaper worker starting")

	// Set up context with graceful shutdown via OS signals.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to PostgreSQL.
	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	logger.Info().Msg("database connection established")

	// Create repositories.
	jobRepo := repository.NewPgJobRepository(db)
	sourceRepo := repository.NewPgSourceRepository(db)

	// Create metrics.
	metrics := observability.NewMetrics()

	// Create the LLM provider. The provider is used directly as the
	// embedder; the rate limiter wraps only the text-generation surface.
	provider := llm.NewOpenAIProvider(llm.OpenAIConfig{
		APIKey:         cfg.LLM.APIKey,
		Model:          cfg.LLM.Model,
		EmbeddingModel: cfg.LLM.EmbeddingModel,
		BaseURL:        cfg.LLM.BaseURL,
		Temperature:    cfg.LLM.Temperature,
		Timeout:        cfg.LLM.Timeout,
		MaxRetries:     cfg.LLM.MaxRetries,
	})
	var llmService llm.Service = provider
	if cfg.LLM.RateLimitRPS > 0 {
		llmService = llm.NewRateLimitedService(provider, cfg.LLM.RateLimitRPS, cfg.LLM.RateLimitBurst)
	}
	logger.Info().
		Str("provider", provider.Provider()).
		Str("model", provider.Model()).
		Msg("LLM client created")

	// Pick the discovery backend. When the external search API is disabled
	// the worker still fills corpora from sources already in the store.
	var search discovery.SearchBackend
	if cfg.Discovery.Enabled {
		search = discovery.NewOpenAlexBackend(discovery.OpenAlexConfig{
			BaseURL:    cfg.Discovery.BaseURL,
			Timeout:    cfg.Discovery.Timeout,
			MaxResults: cfg.Discovery.MaxResults,
		}, logger)
		if cfg.Discovery.IncludeArXiv {
			arxiv := discovery.NewArXivBackend(discovery.ArXivConfig{
				Timeout:    cfg.Discovery.Timeout,
				MaxResults: cfg.Discovery.MaxResults,
			}, logger)
			search = discovery.NewMultiBackend(logger, search, arxiv)
		}
	} else {
		search = discovery.NewStoreBackend(sourceRepo, logger)
	}
	logger.Info().Str("backend", search.Name()).Msg("discovery backend selected")

	// Create the ingestion service client.
	ingestClient, err := ingestion.NewClient(ingestion.Config{
		BaseURL: cfg.Ingestion.BaseURL,
		Timeout: cfg.Ingestion.Timeout,
	})
	if err != nil {
		return fmt.Errorf("create ingestion client: %w", err)
	}
	logger.Info().Str("base_url", cfg.Ingestion.BaseURL).Msg("ingestion client created")

	// Create the Kafka extraction publisher and event emitter. Both drop
	// messages when Kafka is disabled in config.
	extractionQueue := queue.NewExtractionPublisher(cfg.Kafka, logger)
	defer func() {
		if err := extractionQueue.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close extraction publisher")
		}
	}()

	emitter := events.NewEmitter(cfg.Kafka, logger)
	defer func() {
		if err := emitter.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close event emitter")
		}
	}()

	// Create the corpus collector.
	corpusCollector := collector.New(
		sourceRepo,
		search,
		ingestClient,
		extractionQueue,
		cfg.Collector,
		metrics,
		logger,
	)

	// Create the passage index and retriever.
	passageIndex := index.NewPgPassageIndex(db, provider, logger)
	retriever := retrieval.NewRetriever(passageIndex, cfg.Retrieval, metrics, logger)

	// Create the section quality engine.
	engine := quality.NewEngine()

	// Create Temporal client.
	temporalClient, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    observability.NewTemporalLogger(logger),
	})
	if err != nil {
		return fmt.Errorf("connect to temporal: %w", err)
	}
	defer temporalClient.Close()
	logger.Info().
		Str("host_port", cfg.Temporal.HostPort).
		Str("namespace", cfg.Temporal.Namespace).
		Msg("temporal client connected")

	// Create WorkerManager.
	workerConfig := temporal.DefaultWorkerConfig(cfg.Temporal.TaskQueue)
	manager, err := temporal.NewWorkerManager(temporalClient, workerConfig)
	if err != nil {
		return fmt.Errorf("create worker manager: %w", err)
	}

	// Register workflows.
	manager.RegisterWorkflow(workflows.GenerationWorkflow)

	// Create and register all activity structs. No reference-list
	// collaborator is deployed yet, so the citation backfill runs on
	// retrieval evidence alone.
	collectionActivities := activities.NewCollectionActivities(corpusCollector)
	sectionActivities := activities.NewSectionActivities(llmService, retriever, engine, cfg.Pipeline, metrics, logger)
	citationActivities := activities.NewCitationActivities(retriever, nil, cfg.Citations, metrics, logger)
	jobActivities := activities.NewJobActivities(jobRepo, retriever, metrics)
	eventActivities := activities.NewEventActivities(emitter)

	manager.RegisterActivity(collectionActivities)
	manager.RegisterActivity(sectionActivities)
	manager.RegisterActivity(citationActivities)
	manager.RegisterActivity(jobActivities)
	manager.RegisterActivity(eventActivities)

	// Start the control listener if Kafka is configured so external
	// services can cancel running jobs without going through the API.
	if cfg.Kafka.Enabled {
		controlListener := control.NewListener(
			control.Config{
				Brokers: cfg.Kafka.Brokers,
				Topic:   cfg.Kafka.ControlTopic,
				GroupID: cfg.Kafka.ControlGroupID,
			},
			temporalClient,
			jobRepo,
			logger,
		)
		defer func() {
			if err := controlListener.Close(); err != nil {
				logger.Error().Err(err).Msg("failed to close control listener")
			}
		}()

		go func() {
			if err := controlListener.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error().Err(err).Msg("control listener error")
			}
		}()

		logger.Info().
			Str("topic", cfg.Kafka.ControlTopic).
			Str("group_id", cfg.Kafka.ControlGroupID).
			Msg("control listener started")
	}

	logger.Info().
		Str("task_queue", cfg.Temporal.TaskQueue).
		Msg("starting temporal worker")

	// Start the worker and block until context is cancelled.
	if err := manager.Start(ctx); err != nil {
		if ctx.Err() != nil {
			logger.Info().Msg("worker stopped via signal")
			return nil
		}
		return fmt.Errorf("worker error: %w", err)
	}

	return nil
}
