package domain

// Flow is the chosen entry path of the import wizard.
type Flow string

const (
	FlowNone     Flow = ""
	FlowManual   Flow = "manual"
	FlowDocument Flow = "document"
	FlowEmail    Flow = "email"
)

// Step is the wizard's current position inside a flow.
type Step string

const (
	StepMethod        Step = "method"
	StepBasics        Step = "basics"
	StepTemplate      Step = "template"
	StepServices      Step = "services"
	StepConfirm       Step = "confirm"
	StepUpload        Step = "upload"
	StepProcessing    Step = "processing"
	StepReview        Step = "review"
	StepConfirmImport Step = "confirm-import"
	StepSuccess       Step = "success"
	StepEmailSync     Step = "email-sync"
)

// StepFailure is a recoverable failure surfaced on a wizard step: the kind
// drives the user-facing message, detail is kept for diagnostic display.
type StepFailure struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// SessionState is the wizard surface exposed to the presentation layer:
// current step and flow, staged documents and entities, derived totals, and
// the latest recoverable failure or notice.
type SessionState struct {
	ID               string             `json:"id"`
	WorkspaceID      string             `json:"workspace_id"`
	Flow             Flow               `json:"flow"`
	Step             Step               `json:"step"`
	Documents        []UploadedDocument `json:"documents,omitempty"`
	Projects         []ExtractedProject `json:"projects,omitempty"`
	UnmatchedItems   []string           `json:"unmatched_items,omitempty"`
	TotalMonthlyCost float64            `json:"total_monthly_cost"`
	Notice           string             `json:"notice,omitempty"`
	Failure          *StepFailure       `json:"failure,omitempty"`
	Summary          *CommitSummary     `json:"summary,omitempty"`
	EmailAccountID   string             `json:"email_account_id,omitempty"`
}

// ProjectBasics is the manual-flow project header input.
type ProjectBasics struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Icon        string `json:"icon,omitempty"`
	Description string `json:"description,omitempty"`
}

// ManualServiceInput is one hand-entered service, optionally with a
// credential to attach after creation.
type ManualServiceInput struct {
	Name        string           `json:"name"`
	Category    string           `json:"category"`
	Plan        string           `json:"plan,omitempty"`
	Amount      float64          `json:"amount"`
	Currency    string           `json:"currency,omitempty"`
	Cycle       string           `json:"cycle,omitempty"`
	RenewalDate string           `json:"renewal_date,omitempty"`
	RegistryID  string           `json:"registry_id,omitempty"`
	Credential  *CredentialInput `json:"credential,omitempty"`
}

type CredentialInput struct {
	Environment string            `json:"environment"`
	Type        string            `json:"type"`
	Fields      map[string]string `json:"fields"`
	Description string            `json:"description,omitempty"`
}

// FailureKind names the taxonomy bucket of an error for presentation.
func FailureKind(err error) string {
	switch {
	case err == nil:
		return ""
	case IsKind(err, ErrUnreadableFile):
		return "unreadable_file"
	case IsKind(err, ErrTimeout):
		return "timeout"
	case IsKind(err, ErrNetwork):
		return "network"
	case IsKind(err, ErrAuth):
		return "auth"
	case IsKind(err, ErrParse):
		return "parse"
	case IsKind(err, ErrAPI):
		return "api"
	case IsKind(err, ErrNoEntitiesFound):
		return "nothing_found"
	case IsKind(err, ErrCommitFailed):
		return "commit_failed"
	default:
		return "internal"
	}
}
