package domain

import "time"

// RegistryEntry is a read-only row of the known-service registry returned
// alongside a successful extraction.
type RegistryEntry struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Category Category `json:"category"`
}

type RegistrySnapshot map[string]RegistryEntry

// Merge folds another snapshot in, last write winning per id.
func (s RegistrySnapshot) Merge(other RegistrySnapshot) RegistrySnapshot {
	if s == nil {
		s = RegistrySnapshot{}
	}
	for id, entry := range other {
		s[id] = entry
	}
	return s
}

// ServiceRow is one raw document-derived extraction row, as returned by the
// extraction service before any defaulting or bucketing.
type ServiceRow struct {
	RegistryID   string  `json:"registryId"`
	DetectedName string  `json:"detectedName"`
	Confidence   float64 `json:"confidence"`
	Amount       float64 `json:"amount"`
	Currency     string  `json:"currency"`
	Frequency    string  `json:"frequency"`
	RenewalDate  string  `json:"renewalDate"`
	PlanName     string  `json:"planName"`
}

// ExtractionOutcome is the successful result of one extraction call.
type ExtractionOutcome struct {
	SuggestedProjectName string
	SuggestedProjectType string
	Services             []ServiceRow
	UnmatchedItems       []string
	Registry             RegistrySnapshot
}

// EmailInvoiceRow is one raw email-derived invoice row. The email path
// carries its own confidence score and never resolves against the registry.
type EmailInvoiceRow struct {
	Name         string  `json:"name"`
	Amount       float64 `json:"amount"`
	Currency     string  `json:"currency"`
	BillingDate  string  `json:"billingDate"`
	BillingCycle string  `json:"billingCycle"`
	Confidence   float64 `json:"confidence"`
}

type EmailSyncOutcome struct {
	EmailsScanned      int               `json:"emailsScanned"`
	InvoiceEmailsFound int               `json:"invoiceEmailsFound"`
	Services           []EmailInvoiceRow `json:"services"`
}

// AuthLink is a side-channel authorization URL for the email flow.
type AuthLink struct {
	LinkID string `json:"link_id"`
	URL    string `json:"url"`
}

type AuthWaitOutcome string

const (
	AuthConnected AuthWaitOutcome = "connected"
	AuthCancelled AuthWaitOutcome = "cancelled"
	AuthTimedOut  AuthWaitOutcome = "timed_out"
)

// AuthWaitResult is the definite outcome of the side-channel wait; the wait
// always resolves, a silent side channel resolves to timed_out.
type AuthWaitResult struct {
	Outcome   AuthWaitOutcome `json:"outcome"`
	AccountID string          `json:"account_id,omitempty"`
}

// ImportJob is the audit record of one wizard import session.
type ImportJob struct {
	ID            string    `json:"id"`
	SessionID     string    `json:"session_id"`
	WorkspaceID   string    `json:"workspace_id"`
	Flow          Flow      `json:"flow"`
	Status        string    `json:"status"`
	DocumentCount int       `json:"document_count"`
	ServiceCount  int       `json:"service_count"`
	ErrorMessage  string    `json:"error_message,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

const (
	JobExtracting = "extracting"
	JobReviewing  = "reviewing"
	JobCommitted  = "committed"
	JobFailed     = "failed"
	// JobNothingFound is a clean run that detected no services. The audit
	// log keeps it apart from JobFailed.
	JobNothingFound = "nothing_found"
)

// EntityOutcome classifies one confirmed project's fate during bulk commit.
type EntityOutcome string

const (
	OutcomeCreated          EntityOutcome = "created"
	OutcomePartiallyCreated EntityOutcome = "partially_created"
	OutcomeFailed           EntityOutcome = "failed"
)

// CommitResult is the per-entity record of a bulk commit.
type CommitResult struct {
	ProjectID   string        `json:"project_id"`
	ProjectName string        `json:"project_name"`
	PersistedID string        `json:"persisted_id,omitempty"`
	Outcome     EntityOutcome `json:"outcome"`
	Error       string        `json:"error,omitempty"`
}

// CommitSummary aggregates a bulk commit: counts plus the first error per
// failed entity, in input order.
type CommitSummary struct {
	Created          int            `json:"created"`
	PartiallyCreated int            `json:"partially_created"`
	Failed           int            `json:"failed"`
	Results          []CommitResult `json:"results"`
}

func (s CommitSummary) AnyPersisted() bool {
	return s.Created+s.PartiallyCreated > 0
}

// ImportCompletedEvent is published after a commit persists at least one
// entity.
type ImportCompletedEvent struct {
	SessionID   string        `json:"session_id"`
	WorkspaceID string        `json:"workspace_id"`
	Flow        Flow          `json:"flow"`
	Summary     CommitSummary `json:"summary"`
	CompletedAt time.Time     `json:"completed_at"`
}
