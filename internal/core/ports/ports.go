package ports

import (
	"context"

	"github.com/vkarasev/stackwise/internal/core/domain"
)

// DocumentNormalizer converts an uploaded file into its transport form.
type DocumentNormalizer interface {
	Normalize(ctx context.Context, doc *domain.UploadedDocument) (domain.NormalizedInput, error)
	// Preview returns a best-effort text snippet for display; empty when the
	// format has no cheap preview.
	Preview(doc *domain.UploadedDocument) string
}

// ExtractionService invokes the external AI extraction boundary. The call is
// terminal: no retry happens below this interface.
type ExtractionService interface {
	ExtractFromDocuments(ctx context.Context, inputs []domain.NormalizedInput, workspaceID string) (*domain.ExtractionOutcome, error)
}

// EmailSyncService wraps the email-provider boundary: authorization link
// creation, the side-channel connection wait, and invoice fetching.
type EmailSyncService interface {
	CreateAuthLink(ctx context.Context, successURL, failureURL string) (domain.AuthLink, error)
	WaitForConnection(ctx context.Context, linkID string) (domain.AuthWaitResult, error)
	FetchInvoices(ctx context.Context, accountID string, lookbackDays int) (*domain.EmailSyncOutcome, error)
}

// ProjectCreateRequest is the persistence-boundary shape for a new project.
type ProjectCreateRequest struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Icon        string `json:"icon,omitempty"`
	WorkspaceID string `json:"workspace_id"`
	Description string `json:"description,omitempty"`
}

type ServiceCreateRequest struct {
	RegistryID  string  `json:"registryId,omitempty"`
	Name        string  `json:"name"`
	CategoryID  string  `json:"categoryId"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	Frequency   string  `json:"frequency"`
	RenewalDate string  `json:"renewalDate,omitempty"`
	PlanName    string  `json:"planName,omitempty"`
}

type CredentialCreateRequest struct {
	Environment string            `json:"environment"`
	Type        string            `json:"type"`
	Fields      map[string]string `json:"fields"`
	Description string            `json:"description,omitempty"`
}

type CreatedProject struct {
	ID string `json:"id"`
}

type CreatedService struct {
	ID string `json:"id"`
}

// ProvisioningAPI is the persistence boundary the bulk commit drives.
type ProvisioningAPI interface {
	CreateProject(ctx context.Context, req ProjectCreateRequest) (*CreatedProject, error)
	CreateServices(ctx context.Context, projectID string, reqs []ServiceCreateRequest) ([]CreatedService, error)
	CreateService(ctx context.Context, projectID string, req ServiceCreateRequest) (*CreatedService, error)
	CreateCredential(ctx context.Context, serviceID string, req CredentialCreateRequest) error
}

// KeyValueStore holds small cross-session state such as the connected email
// account. Injected so tests can swap in a fake.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// EventPublisher emits pipeline events for downstream consumers.
type EventPublisher interface {
	PublishImportCompleted(ctx context.Context, event domain.ImportCompletedEvent) error
}

// ImportJournal records the audit trail of import sessions. Journal write
// failures are logged by callers, never surfaced to the user.
type ImportJournal interface {
	CreateJob(ctx context.Context, job *domain.ImportJob) error
	UpdateStatus(ctx context.Context, jobID, status, errMessage string) error
	RecordCounts(ctx context.Context, jobID string, documentCount, serviceCount int) error
	SaveSummary(ctx context.Context, jobID string, summary domain.CommitSummary) error
}

// ImportJournalReader serves the audit view: the most recent job recorded
// for a session.
type ImportJournalReader interface {
	GetBySession(ctx context.Context, sessionID string) (*domain.ImportJob, error)
}
