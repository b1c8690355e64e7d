package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vkarasev/stackwise/internal/config"
	"github.com/vkarasev/stackwise/internal/core/ports"
	"github.com/vkarasev/stackwise/internal/core/usecase"
	"github.com/vkarasev/stackwise/internal/infrastructure/docnorm"
	"github.com/vkarasev/stackwise/internal/infrastructure/emailsync"
	"github.com/vkarasev/stackwise/internal/infrastructure/extraction"
	"github.com/vkarasev/stackwise/internal/infrastructure/kvstore/localfs"
	"github.com/vkarasev/stackwise/internal/infrastructure/provisioning"
	"github.com/vkarasev/stackwise/internal/infrastructure/queue/nats"
	"github.com/vkarasev/stackwise/internal/infrastructure/repository/postgres"
	"github.com/vkarasev/stackwise/internal/infrastructure/resilience"
	"github.com/vkarasev/stackwise/internal/observability/metrics"
)

type App struct {
	Config config.Config

	Wizard  ports.ImportWizard
	Journal ports.ImportJournalReader
	Metrics *metrics.HTTPServerMetrics

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	serverMetrics := metrics.NewHTTPServerMetrics("api")
	pipeline := serverMetrics.Pipeline()

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	journal := postgres.NewImportJobRepository(db)
	if err := journal.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	kv, err := localfs.New(cfg.StatePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init state store: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	events, err := nats.New(cfg.NATSURL, cfg.NATSSubject, logger, nats.Options{
		ResilienceExecutor: executor,
		Metrics:            pipeline,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init event publisher: %w", err)
	}

	normalizer := docnorm.New(logger, pipeline)

	// Extraction runs with a hard call budget and no retry; a second identical
	// call would double the spend without improving the outcome.
	extractor := extraction.New(
		cfg.ExtractionURL,
		cfg.ExtractionAPIKey,
		time.Duration(cfg.ExtractionTimeoutSeconds)*time.Second,
		logger,
		pipeline,
	)

	email := emailsync.New(cfg.EmailSyncURL, cfg.EmailSyncAPIKey, logger, emailsync.Options{
		AuthWait:     time.Duration(cfg.EmailAuthWaitSeconds) * time.Second,
		PollInterval: time.Duration(cfg.EmailPollIntervalSeconds) * time.Second,
		Executor:     executor,
		Metrics:      pipeline,
	})

	provisioner := provisioning.New(cfg.ProvisioningURL, cfg.ProvisioningAPIKey, cfg.ProvisioningRPS, logger)
	committer := usecase.NewCommitOrchestrator(provisioner, logger, cfg.CommitWorkers)

	wizard := usecase.NewWizard(normalizer, extractor, email, committer, kv, journal, events, logger)
	wizard.SetDefaults(usecase.Defaults{
		WorkspaceID:  cfg.WorkspaceID,
		LookbackDays: cfg.EmailLookbackDays,
	})

	return &App{
		Config:  cfg,
		Wizard:  wizard,
		Journal: journal,
		Metrics: serverMetrics,

		closeFn: func() {
			events.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
