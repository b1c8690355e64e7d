package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vkarasev/stackwise/internal/core/domain"
	"github.com/vkarasev/stackwise/internal/core/ports"
)

const defaultCommitWorkers = 3

// CommitOrchestrator drives the dependent creation calls against the
// persistence boundary. Project chains for different projects run
// concurrently under a small worker bound; within one chain, service
// creation strictly follows that project's own creation.
type CommitOrchestrator struct {
	api     ports.ProvisioningAPI
	logger  *slog.Logger
	workers int
}

func NewCommitOrchestrator(api ports.ProvisioningAPI, logger *slog.Logger, workers int) *CommitOrchestrator {
	if workers <= 0 {
		workers = defaultCommitWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CommitOrchestrator{api: api, logger: logger, workers: workers}
}

// CommitExtracted persists a batch of confirmed projects. Failure isolation
// is per project: one project failing outright never aborts its siblings,
// and a services-batch failure after a successful project create downgrades
// that project to partially created instead of rolling it back.
func (o *CommitOrchestrator) CommitExtracted(ctx context.Context, projects []domain.ExtractedProject, workspaceID string) domain.CommitSummary {
	results := make([]domain.CommitResult, len(projects))

	sem := make(chan struct{}, o.workers)
	var wg sync.WaitGroup
	for i := range projects {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[idx] = o.commitProject(ctx, projects[idx], workspaceID)
		}(i)
	}
	wg.Wait()

	return summarize(results)
}

func (o *CommitOrchestrator) commitProject(ctx context.Context, project domain.ExtractedProject, workspaceID string) domain.CommitResult {
	result := domain.CommitResult{
		ProjectID:   project.ID,
		ProjectName: project.Name.Value,
	}

	created, err := o.api.CreateProject(ctx, ports.ProjectCreateRequest{
		Name:        project.Name.Value,
		Type:        string(project.Type.Value),
		Icon:        project.Icon,
		WorkspaceID: workspaceID,
	})
	if err != nil {
		o.logger.Error("commit.project_create_failed",
			"project", project.Name.Value,
			"error", err,
		)
		result.Outcome = domain.OutcomeFailed
		result.Error = err.Error()
		return result
	}
	result.PersistedID = created.ID

	if len(project.Services) == 0 {
		result.Outcome = domain.OutcomeCreated
		return result
	}

	if _, err := o.api.CreateServices(ctx, created.ID, serviceRequests(project.Services)); err != nil {
		// The project row exists; keep it and surface the services failure
		// as a warning instead of rolling back.
		o.logger.Warn("commit.services_batch_failed",
			"project", project.Name.Value,
			"project_id", created.ID,
			"services", len(project.Services),
			"error", err,
		)
		result.Outcome = domain.OutcomePartiallyCreated
		result.Error = err.Error()
		return result
	}

	result.Outcome = domain.OutcomeCreated
	return result
}

// CommitManual persists one hand-entered project: services are created
// sequentially after the project, and credentials sequentially after their
// owning service. A credential failure leaves the service standing.
func (o *CommitOrchestrator) CommitManual(ctx context.Context, project domain.ExtractedProject, credentials map[string]domain.CredentialInput, workspaceID string) domain.CommitSummary {
	result := domain.CommitResult{
		ProjectID:   project.ID,
		ProjectName: project.Name.Value,
	}

	created, err := o.api.CreateProject(ctx, ports.ProjectCreateRequest{
		Name:        project.Name.Value,
		Type:        string(project.Type.Value),
		Icon:        project.Icon,
		WorkspaceID: workspaceID,
	})
	if err != nil {
		result.Outcome = domain.OutcomeFailed
		result.Error = err.Error()
		return summarize([]domain.CommitResult{result})
	}
	result.PersistedID = created.ID

	var firstServiceErr error
	for _, svc := range project.Services {
		createdSvc, err := o.api.CreateService(ctx, created.ID, serviceRequest(svc))
		if err != nil {
			if firstServiceErr == nil {
				firstServiceErr = fmt.Errorf("create service %q: %w", svc.Name.Value, err)
			}
			o.logger.Warn("commit.manual_service_failed", "service", svc.Name.Value, "error", err)
			continue
		}

		cred, ok := credentials[svc.ID]
		if !ok {
			continue
		}
		if err := o.api.CreateCredential(ctx, createdSvc.ID, ports.CredentialCreateRequest{
			Environment: cred.Environment,
			Type:        cred.Type,
			Fields:      cred.Fields,
			Description: cred.Description,
		}); err != nil {
			// The service persists without its credential; the user is not
			// blocked on this.
			o.logger.Warn("commit.credential_failed",
				"service", svc.Name.Value,
				"service_id", createdSvc.ID,
				"error", err,
			)
		}
	}

	if firstServiceErr != nil {
		result.Outcome = domain.OutcomePartiallyCreated
		result.Error = firstServiceErr.Error()
	} else {
		result.Outcome = domain.OutcomeCreated
	}
	return summarize([]domain.CommitResult{result})
}

func serviceRequests(services []domain.ExtractedService) []ports.ServiceCreateRequest {
	reqs := make([]ports.ServiceCreateRequest, 0, len(services))
	for _, svc := range services {
		reqs = append(reqs, serviceRequest(svc))
	}
	return reqs
}

func serviceRequest(svc domain.ExtractedService) ports.ServiceCreateRequest {
	return ports.ServiceCreateRequest{
		RegistryID:  svc.RegistryID,
		Name:        svc.Name.Value,
		CategoryID:  string(svc.Category.Value),
		Amount:      svc.Amount.Value,
		Currency:    svc.Currency.Value,
		Frequency:   string(svc.Cycle.Value),
		RenewalDate: svc.RenewalDate,
		PlanName:    svc.Plan,
	}
}

func summarize(results []domain.CommitResult) domain.CommitSummary {
	summary := domain.CommitSummary{Results: results}
	for _, r := range results {
		switch r.Outcome {
		case domain.OutcomeCreated:
			summary.Created++
		case domain.OutcomePartiallyCreated:
			summary.PartiallyCreated++
		case domain.OutcomeFailed:
			summary.Failed++
		}
	}
	return summary
}
