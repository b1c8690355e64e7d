package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vkarasev/stackwise/internal/core/domain"
	"github.com/vkarasev/stackwise/internal/core/ports"
)

// ConnectedAccountKey is where the email flow remembers a prior connection
// across sessions, through the injected key-value store.
const ConnectedAccountKey = "email.connected_account"

// Wizard owns the import state machine across the manual, document, and
// email flows. It routes component failures back to the recoverable step and
// is the single writer of each session's reconciliation store.
type Wizard struct {
	mu       sync.Mutex
	sessions map[string]*session

	batch      *BatchNormalizer
	normalizer ports.DocumentNormalizer
	extractor  ports.ExtractionService
	email      ports.EmailSyncService
	committer  *CommitOrchestrator
	kv         ports.KeyValueStore
	journal    ports.ImportJournal
	events     ports.EventPublisher
	logger     *slog.Logger

	defaultWorkspace string
	defaultLookback  int
}

// Defaults are per-deployment fallbacks applied when a request omits a value.
type Defaults struct {
	WorkspaceID  string
	LookbackDays int
}

func (w *Wizard) SetDefaults(d Defaults) {
	w.defaultWorkspace = d.WorkspaceID
	w.defaultLookback = d.LookbackDays
}

func NewWizard(
	normalizer ports.DocumentNormalizer,
	extractor ports.ExtractionService,
	email ports.EmailSyncService,
	committer *CommitOrchestrator,
	kv ports.KeyValueStore,
	journal ports.ImportJournal,
	events ports.EventPublisher,
	logger *slog.Logger,
) *Wizard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Wizard{
		sessions:   make(map[string]*session),
		batch:      NewBatchNormalizer(normalizer, logger),
		normalizer: normalizer,
		extractor:  extractor,
		email:      email,
		committer:  committer,
		kv:         kv,
		journal:    journal,
		events:     events,
		logger:     logger,
	}
}

type session struct {
	id          string
	workspaceID string
	flow        domain.Flow
	step        domain.Step

	documents []*domain.UploadedDocument
	review    *ReviewSession
	registry  domain.RegistrySnapshot

	notice  string
	failure *domain.StepFailure
	summary *domain.CommitSummary

	jobID           string
	emailAccountID  string
	emailLinkID     string
	manualProjectID string
	manualCreds     map[string]domain.CredentialInput
}

func (w *Wizard) StartSession(ctx context.Context, workspaceID string) (*domain.SessionState, error) {
	if workspaceID == "" {
		workspaceID = w.defaultWorkspace
	}
	s := &session{
		id:          uuid.NewString(),
		workspaceID: workspaceID,
		step:        domain.StepMethod,
		review:      NewReviewSession(),
		registry:    domain.RegistrySnapshot{},
		manualCreds: make(map[string]domain.CredentialInput),
	}

	if account, ok, err := w.kv.Get(ctx, ConnectedAccountKey); err == nil && ok {
		s.emailAccountID = account
	} else if err != nil {
		w.logger.Warn("wizard.kv_read_failed", "key", ConnectedAccountKey, "error", err)
	}

	w.mu.Lock()
	w.sessions[s.id] = s
	state := w.stateLocked(s)
	w.mu.Unlock()
	return state, nil
}

func (w *Wizard) GetSession(_ context.Context, sessionID string) (*domain.SessionState, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, err := w.sessionLocked(sessionID)
	if err != nil {
		return nil, err
	}
	return w.stateLocked(s), nil
}

func (w *Wizard) ChooseFlow(ctx context.Context, sessionID string, flow domain.Flow) (*domain.SessionState, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, err := w.sessionLocked(sessionID)
	if err != nil {
		return nil, err
	}
	if s.step != domain.StepMethod {
		return nil, transitionError(s.step, "choose flow")
	}

	switch flow {
	case domain.FlowManual:
		s.step = domain.StepBasics
	case domain.FlowDocument:
		s.step = domain.StepUpload
	case domain.FlowEmail:
		s.step = domain.StepEmailSync
	default:
		return nil, fmt.Errorf("choose flow: %w: unknown flow %q", domain.ErrInvalidInput, flow)
	}
	s.flow = flow
	s.failure = nil
	s.notice = ""

	job := &domain.ImportJob{
		ID:          uuid.NewString(),
		SessionID:   s.id,
		WorkspaceID: s.workspaceID,
		Flow:        flow,
		Status:      domain.JobExtracting,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	if err := w.journal.CreateJob(ctx, job); err != nil {
		w.logger.Warn("wizard.journal_create_failed", "session", s.id, "error", err)
	} else {
		s.jobID = job.ID
	}

	return w.stateLocked(s), nil
}

// Back returns to the step's immediate predecessor. Backing out of
// upload/email-sync (or basics) abandons the chosen flow entirely: staged
// documents and entities are dropped, the connected email account is kept.
func (w *Wizard) Back(_ context.Context, sessionID string) (*domain.SessionState, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, err := w.sessionLocked(sessionID)
	if err != nil {
		return nil, err
	}

	switch s.step {
	case domain.StepUpload, domain.StepEmailSync, domain.StepBasics:
		w.abandonFlowLocked(s)
	case domain.StepTemplate:
		s.step = domain.StepBasics
	case domain.StepServices:
		s.step = domain.StepTemplate
	case domain.StepConfirm:
		s.step = domain.StepServices
	case domain.StepReview:
		// Processing is transient; back from review lands on the step the
		// user can act on.
		if s.flow == domain.FlowEmail {
			s.step = domain.StepEmailSync
		} else {
			s.step = domain.StepUpload
		}
	case domain.StepConfirmImport:
		s.step = domain.StepReview
	default:
		return nil, transitionError(s.step, "back")
	}
	s.failure = nil
	s.notice = ""
	return w.stateLocked(s), nil
}

func (w *Wizard) AddDocument(_ context.Context, sessionID, name, mediaType string, content []byte) (*domain.UploadedDocument, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, err := w.sessionLocked(sessionID)
	if err != nil {
		return nil, err
	}
	if s.flow != domain.FlowDocument || s.step != domain.StepUpload {
		return nil, transitionError(s.step, "add document")
	}
	if len(content) == 0 {
		return nil, fmt.Errorf("add document: %w: empty file %q", domain.ErrInvalidInput, name)
	}

	doc := &domain.UploadedDocument{
		ID:        uuid.NewString(),
		Name:      name,
		Size:      int64(len(content)),
		MediaType: mediaType,
		Content:   content,
		Status:    domain.DocumentPending,
		CreatedAt: time.Now().UTC(),
	}
	doc.Preview = w.normalizer.Preview(doc)
	s.documents = append(s.documents, doc)

	view := *doc
	view.Content = nil
	return &view, nil
}

func (w *Wizard) RemoveDocument(_ context.Context, sessionID, documentID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, err := w.sessionLocked(sessionID)
	if err != nil {
		return err
	}
	for i, doc := range s.documents {
		if doc.ID == documentID {
			doc.ReleaseContent()
			s.documents = append(s.documents[:i], s.documents[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("remove document: %w: %s", domain.ErrEntityNotFound, documentID)
}

// RunExtraction drives upload → processing → review. A classified failure or
// an empty-but-successful result both route back to upload; the two outcomes
// stay distinguishable (failure vs notice).
func (w *Wizard) RunExtraction(ctx context.Context, sessionID string) (*domain.SessionState, error) {
	w.mu.Lock()
	s, err := w.sessionLocked(sessionID)
	if err != nil {
		w.mu.Unlock()
		return nil, err
	}
	if s.flow != domain.FlowDocument || s.step != domain.StepUpload {
		w.mu.Unlock()
		return nil, transitionError(s.step, "run extraction")
	}

	pending := pendingDocuments(s.documents)
	if len(pending) == 0 {
		w.mu.Unlock()
		return nil, fmt.Errorf("run extraction: %w: no documents to process", domain.ErrInvalidInput)
	}
	s.step = domain.StepProcessing
	s.failure = nil
	s.notice = ""
	workspaceID := s.workspaceID
	w.mu.Unlock()

	// The extraction call is the one long-running suspension point; the
	// session lock is not held across it.
	inputs, fileErrors := w.batch.NormalizeAll(ctx, pending)

	if len(inputs) == 0 {
		w.mu.Lock()
		defer w.mu.Unlock()
		applyFileFailures(pending, fileErrors)
		s.step = domain.StepUpload
		s.failure = stepFailure(fileErrors[0].Err)
		w.journalStatus(ctx, s, domain.JobFailed, fileErrors[0].Message)
		return w.stateLocked(s), nil
	}

	outcome, extractErr := w.extractor.ExtractFromDocuments(ctx, inputs, workspaceID)

	w.mu.Lock()
	defer w.mu.Unlock()
	applyFileFailures(pending, fileErrors)

	if extractErr != nil {
		s.step = domain.StepUpload
		s.failure = stepFailure(extractErr)
		w.journalStatus(ctx, s, domain.JobFailed, s.failure.Message)
		return w.stateLocked(s), nil
	}

	if len(outcome.Services) == 0 {
		s.step = domain.StepUpload
		s.notice = domain.UserMessage(domain.ErrNoEntitiesFound)
		w.journalStatus(ctx, s, domain.JobNothingFound, s.notice)
		return w.stateLocked(s), nil
	}

	s.registry = s.registry.Merge(outcome.Registry)

	processedIDs := make([]string, 0, len(pending))
	for _, doc := range pending {
		if doc.Status == domain.DocumentFailed {
			continue
		}
		doc.Status = domain.DocumentProcessed
		doc.ReleaseContent()
		processedIDs = append(processedIDs, doc.ID)
	}

	project := BuildProjectFromExtraction(outcome, processedIDs)
	s.review.Merge([]domain.ExtractedProject{project}, outcome.UnmatchedItems)
	s.step = domain.StepReview
	if len(fileErrors) > 0 {
		s.notice = fmt.Sprintf("%d file(s) could not be read and were skipped.", len(fileErrors))
	}

	if s.jobID != "" {
		if err := w.journal.RecordCounts(ctx, s.jobID, len(processedIDs), len(project.Services)); err != nil {
			w.logger.Warn("wizard.journal_counts_failed", "session", s.id, "error", err)
		}
	}
	w.journalStatus(ctx, s, domain.JobReviewing, "")

	return w.stateLocked(s), nil
}

// AddMoreFiles re-enters upload from review, keeping already-reviewed
// entities; the next extraction merges into the existing store.
func (w *Wizard) AddMoreFiles(_ context.Context, sessionID string) (*domain.SessionState, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, err := w.sessionLocked(sessionID)
	if err != nil {
		return nil, err
	}
	if s.flow != domain.FlowDocument || s.step != domain.StepReview {
		return nil, transitionError(s.step, "add more files")
	}
	s.step = domain.StepUpload
	s.notice = ""
	s.failure = nil
	return w.stateLocked(s), nil
}

func (w *Wizard) EditEntityField(_ context.Context, sessionID, entityID, field string, value any) (*domain.SessionState, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, err := w.sessionLocked(sessionID)
	if err != nil {
		return nil, err
	}
	if !editableStep(s.step) {
		return nil, transitionError(s.step, "edit entity")
	}
	if err := s.review.EditField(entityID, field, value); err != nil {
		return nil, err
	}
	return w.stateLocked(s), nil
}

func (w *Wizard) ToggleConfirm(_ context.Context, sessionID, entityID string) (*domain.SessionState, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, err := w.sessionLocked(sessionID)
	if err != nil {
		return nil, err
	}
	if !editableStep(s.step) && s.step != domain.StepConfirmImport {
		return nil, transitionError(s.step, "toggle confirm")
	}
	if err := s.review.ToggleConfirm(entityID); err != nil {
		return nil, err
	}
	return w.stateLocked(s), nil
}

func (w *Wizard) RemoveEntity(_ context.Context, sessionID, entityID string) (*domain.SessionState, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, err := w.sessionLocked(sessionID)
	if err != nil {
		return nil, err
	}
	if !editableStep(s.step) {
		return nil, transitionError(s.step, "remove entity")
	}
	if err := s.review.Remove(entityID); err != nil {
		return nil, err
	}
	return w.stateLocked(s), nil
}

func (w *Wizard) AdvanceToConfirm(_ context.Context, sessionID string) (*domain.SessionState, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, err := w.sessionLocked(sessionID)
	if err != nil {
		return nil, err
	}

	switch {
	case s.flow == domain.FlowManual && s.step == domain.StepServices:
		s.step = domain.StepConfirm
	case s.step == domain.StepReview:
		if len(s.review.ConfirmedProjects()) == 0 {
			return nil, fmt.Errorf("advance: %w: confirm at least one project", domain.ErrInvalidInput)
		}
		s.step = domain.StepConfirmImport
	default:
		return nil, transitionError(s.step, "advance to confirm")
	}
	s.failure = nil
	s.notice = ""
	return w.stateLocked(s), nil
}

// Commit runs the bulk commit for the confirmed subset. The controller only
// advances to success when at least one entity was fully or partially
// persisted; otherwise it stays put and surfaces the failure.
func (w *Wizard) Commit(ctx context.Context, sessionID string) (*domain.SessionState, error) {
	w.mu.Lock()
	s, err := w.sessionLocked(sessionID)
	if err != nil {
		w.mu.Unlock()
		return nil, err
	}

	manual := s.flow == domain.FlowManual
	if manual && s.step != domain.StepConfirm {
		w.mu.Unlock()
		return nil, transitionError(s.step, "commit")
	}
	if !manual && s.step != domain.StepConfirmImport {
		w.mu.Unlock()
		return nil, transitionError(s.step, "commit")
	}

	confirmed := s.review.ConfirmedProjects()
	if len(confirmed) == 0 {
		w.mu.Unlock()
		return nil, fmt.Errorf("commit: %w: nothing confirmed", domain.ErrInvalidInput)
	}
	creds := s.manualCreds
	workspaceID := s.workspaceID
	w.mu.Unlock()

	var summary domain.CommitSummary
	if manual {
		summary = w.committer.CommitManual(ctx, confirmed[0], creds, workspaceID)
	} else {
		summary = w.committer.CommitExtracted(ctx, confirmed, workspaceID)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	s.summary = &summary
	if !summary.AnyPersisted() {
		// Every entity failed outright: stay on the confirm step, keep the
		// store intact so the user can retry the failed subset.
		first := ""
		if len(summary.Results) > 0 {
			first = summary.Results[0].Error
		}
		s.failure = &domain.StepFailure{
			Kind:    domain.FailureKind(domain.ErrCommitFailed),
			Message: domain.UserMessage(domain.ErrCommitFailed),
			Detail:  first,
		}
		w.journalStatus(ctx, s, domain.JobFailed, s.failure.Message)
		return w.stateLocked(s), nil
	}

	// Persisted entities are consumed; failed ones stay for a retry.
	for _, r := range summary.Results {
		if r.Outcome != domain.OutcomeFailed {
			if err := s.review.Remove(r.ProjectID); err != nil {
				w.logger.Warn("wizard.consume_committed_failed", "project", r.ProjectID, "error", err)
			}
		}
	}

	s.step = domain.StepSuccess
	s.failure = nil
	w.journalStatus(ctx, s, domain.JobCommitted, "")
	if s.jobID != "" {
		if err := w.journal.SaveSummary(ctx, s.jobID, summary); err != nil {
			w.logger.Warn("wizard.journal_summary_failed", "session", s.id, "error", err)
		}
	}

	event := domain.ImportCompletedEvent{
		SessionID:   s.id,
		WorkspaceID: s.workspaceID,
		Flow:        s.flow,
		Summary:     summary,
		CompletedAt: time.Now().UTC(),
	}
	if err := w.events.PublishImportCompleted(ctx, event); err != nil {
		w.logger.Warn("wizard.event_publish_failed", "session", s.id, "error", err)
	}

	return w.stateLocked(s), nil
}

func (w *Wizard) SetBasics(_ context.Context, sessionID string, basics domain.ProjectBasics) (*domain.SessionState, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, err := w.sessionLocked(sessionID)
	if err != nil {
		return nil, err
	}
	if s.flow != domain.FlowManual || s.step != domain.StepBasics {
		return nil, transitionError(s.step, "set basics")
	}
	if basics.Name == "" {
		return nil, fmt.Errorf("set basics: %w: project name is required", domain.ErrInvalidInput)
	}

	projectType := parseProjectType(basics.Type)
	if projectType == "" {
		projectType = domain.ProjectWeb
	}

	project := domain.ExtractedProject{
		ID:        uuid.NewString(),
		Name:      domain.NewField(basics.Name, domain.ConfidenceHigh, domain.SourceUser),
		Type:      domain.NewField(projectType, domain.ConfidenceHigh, domain.SourceUser),
		Icon:      basics.Icon,
		Confirmed: true,
	}
	s.review.Merge([]domain.ExtractedProject{project}, nil)
	s.manualProjectID = project.ID
	s.step = domain.StepTemplate
	return w.stateLocked(s), nil
}

func (w *Wizard) ChooseTemplate(_ context.Context, sessionID, template string) (*domain.SessionState, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, err := w.sessionLocked(sessionID)
	if err != nil {
		return nil, err
	}
	if s.flow != domain.FlowManual || s.step != domain.StepTemplate {
		return nil, transitionError(s.step, "choose template")
	}

	seeds, ok := serviceTemplates[template]
	if !ok {
		return nil, fmt.Errorf("choose template: %w: unknown template %q", domain.ErrInvalidInput, template)
	}
	for _, seed := range seeds {
		if err := w.appendManualServiceLocked(s, seed); err != nil {
			return nil, err
		}
	}
	s.step = domain.StepServices
	return w.stateLocked(s), nil
}

func (w *Wizard) AddManualService(_ context.Context, sessionID string, input domain.ManualServiceInput) (*domain.SessionState, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, err := w.sessionLocked(sessionID)
	if err != nil {
		return nil, err
	}
	if s.flow != domain.FlowManual || s.step != domain.StepServices {
		return nil, transitionError(s.step, "add service")
	}
	if input.Name == "" {
		return nil, fmt.Errorf("add service: %w: service name is required", domain.ErrInvalidInput)
	}
	if err := w.appendManualServiceLocked(s, input); err != nil {
		return nil, err
	}
	return w.stateLocked(s), nil
}

func (w *Wizard) StartEmailAuth(ctx context.Context, sessionID string) (domain.AuthLink, error) {
	w.mu.Lock()
	s, err := w.sessionLocked(sessionID)
	if err != nil {
		w.mu.Unlock()
		return domain.AuthLink{}, err
	}
	if s.flow != domain.FlowEmail || s.step != domain.StepEmailSync {
		w.mu.Unlock()
		return domain.AuthLink{}, transitionError(s.step, "start email auth")
	}
	w.mu.Unlock()

	link, err := w.email.CreateAuthLink(ctx, "", "")
	if err != nil {
		return domain.AuthLink{}, err
	}

	w.mu.Lock()
	s.emailLinkID = link.LinkID
	w.mu.Unlock()
	return link, nil
}

// CompleteEmailAuth waits on the side channel until it resolves. The wait is
// bounded below this call (10 minutes) and always yields a definite outcome.
func (w *Wizard) CompleteEmailAuth(ctx context.Context, sessionID, linkID string) (*domain.SessionState, error) {
	w.mu.Lock()
	s, err := w.sessionLocked(sessionID)
	if err != nil {
		w.mu.Unlock()
		return nil, err
	}
	if s.flow != domain.FlowEmail || s.step != domain.StepEmailSync {
		w.mu.Unlock()
		return nil, transitionError(s.step, "complete email auth")
	}
	if linkID == "" {
		linkID = s.emailLinkID
	}
	w.mu.Unlock()

	result, err := w.email.WaitForConnection(ctx, linkID)

	w.mu.Lock()
	defer w.mu.Unlock()

	if err != nil {
		s.failure = stepFailure(err)
		return w.stateLocked(s), nil
	}

	switch result.Outcome {
	case domain.AuthConnected:
		s.emailAccountID = result.AccountID
		s.failure = nil
		if err := w.kv.Set(ctx, ConnectedAccountKey, result.AccountID); err != nil {
			w.logger.Warn("wizard.kv_write_failed", "key", ConnectedAccountKey, "error", err)
		}
	case domain.AuthCancelled:
		s.failure = &domain.StepFailure{Kind: "auth", Message: "Email connection was cancelled."}
	case domain.AuthTimedOut:
		s.failure = &domain.StepFailure{Kind: "timeout", Message: "Email connection timed out. Try connecting again."}
	}
	return w.stateLocked(s), nil
}

func (w *Wizard) RunEmailSync(ctx context.Context, sessionID string, lookbackDays int) (*domain.SessionState, error) {
	w.mu.Lock()
	s, err := w.sessionLocked(sessionID)
	if err != nil {
		w.mu.Unlock()
		return nil, err
	}
	if s.flow != domain.FlowEmail || s.step != domain.StepEmailSync {
		w.mu.Unlock()
		return nil, transitionError(s.step, "run email sync")
	}
	if s.emailAccountID == "" {
		w.mu.Unlock()
		return nil, fmt.Errorf("run email sync: %w: no connected account", domain.ErrInvalidInput)
	}
	account := s.emailAccountID
	s.failure = nil
	s.notice = ""
	w.mu.Unlock()

	if lookbackDays <= 0 {
		lookbackDays = w.defaultLookback
	}
	if lookbackDays <= 0 {
		lookbackDays = 90
	}
	outcome, syncErr := w.email.FetchInvoices(ctx, account, lookbackDays)

	w.mu.Lock()
	defer w.mu.Unlock()

	if syncErr != nil {
		s.failure = stepFailure(syncErr)
		w.journalStatus(ctx, s, domain.JobFailed, s.failure.Message)
		return w.stateLocked(s), nil
	}

	if len(outcome.Services) == 0 {
		s.notice = fmt.Sprintf("Scanned %d emails, no subscription invoices found.", outcome.EmailsScanned)
		return w.stateLocked(s), nil
	}

	project := BuildProjectFromEmailSync(outcome)
	s.review.Merge([]domain.ExtractedProject{project}, nil)
	s.step = domain.StepReview
	if s.jobID != "" {
		if err := w.journal.RecordCounts(ctx, s.jobID, 0, len(project.Services)); err != nil {
			w.logger.Warn("wizard.journal_counts_failed", "session", s.id, "error", err)
		}
	}
	w.journalStatus(ctx, s, domain.JobReviewing, "")
	return w.stateLocked(s), nil
}

func (w *Wizard) appendManualServiceLocked(s *session, input domain.ManualServiceInput) error {
	currency := input.Currency
	if currency == "" {
		currency = defaultCurrency
	}
	svc := domain.ExtractedService{
		ID:          uuid.NewString(),
		Name:        domain.NewField(input.Name, domain.ConfidenceHigh, domain.SourceUser),
		Category:    domain.NewField(domain.ParseCategory(input.Category), domain.ConfidenceHigh, domain.SourceUser),
		Plan:        input.Plan,
		Amount:      domain.NewField(input.Amount, domain.ConfidenceHigh, domain.SourceUser),
		Cycle:       domain.NewField(domain.ParseBillingCycle(input.Cycle), domain.ConfidenceHigh, domain.SourceUser),
		Currency:    domain.NewField(currency, domain.ConfidenceHigh, domain.SourceUser),
		RenewalDate: input.RenewalDate,
		RegistryID:  input.RegistryID,
	}

	projects := s.review.Projects()
	for i := range projects {
		if projects[i].ID == s.manualProjectID {
			projects[i].Services = append(projects[i].Services, svc)
			// Rebuild the store from the updated tree; cheap at manual-entry
			// scale and keeps aggregates consistent.
			rebuilt := NewReviewSession()
			rebuilt.Merge(projects, s.review.UnmatchedItems())
			s.review = rebuilt
			if input.Credential != nil {
				s.manualCreds[svc.ID] = *input.Credential
			}
			return nil
		}
	}
	return fmt.Errorf("add service: %w: manual project missing", domain.ErrEntityNotFound)
}

func (w *Wizard) abandonFlowLocked(s *session) {
	for _, doc := range s.documents {
		doc.ReleaseContent()
	}
	s.documents = nil
	s.review = NewReviewSession()
	s.registry = domain.RegistrySnapshot{}
	s.manualProjectID = ""
	s.manualCreds = make(map[string]domain.CredentialInput)
	s.flow = domain.FlowNone
	s.step = domain.StepMethod
	s.summary = nil
}

func (w *Wizard) sessionLocked(sessionID string) (*session, error) {
	s, ok := w.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session %q: %w", sessionID, domain.ErrSessionNotFound)
	}
	return s, nil
}

func (w *Wizard) stateLocked(s *session) *domain.SessionState {
	docs := make([]domain.UploadedDocument, 0, len(s.documents))
	for _, doc := range s.documents {
		view := *doc
		view.Content = nil
		docs = append(docs, view)
	}

	return &domain.SessionState{
		ID:               s.id,
		WorkspaceID:      s.workspaceID,
		Flow:             s.flow,
		Step:             s.step,
		Documents:        docs,
		Projects:         s.review.Projects(),
		UnmatchedItems:   s.review.UnmatchedItems(),
		TotalMonthlyCost: s.review.TotalMonthlyCost(),
		Notice:           s.notice,
		Failure:          s.failure,
		Summary:          s.summary,
		EmailAccountID:   s.emailAccountID,
	}
}

func (w *Wizard) journalStatus(ctx context.Context, s *session, status, message string) {
	if s.jobID == "" {
		return
	}
	if err := w.journal.UpdateStatus(ctx, s.jobID, status, message); err != nil {
		w.logger.Warn("wizard.journal_status_failed", "session", s.id, "status", status, "error", err)
	}
}

// applyFileFailures marks the documents that failed normalization. Called
// with the session lock held; the batch itself never touches document state.
func applyFileFailures(docs []*domain.UploadedDocument, failures []FileError) {
	for _, failure := range failures {
		for _, doc := range docs {
			if doc.ID == failure.DocumentID {
				doc.Status = domain.DocumentFailed
			}
		}
	}
}

func pendingDocuments(docs []*domain.UploadedDocument) []*domain.UploadedDocument {
	out := make([]*domain.UploadedDocument, 0, len(docs))
	for _, doc := range docs {
		if doc.Status == domain.DocumentPending {
			out = append(out, doc)
		}
	}
	return out
}

func editableStep(step domain.Step) bool {
	return step == domain.StepReview || step == domain.StepServices || step == domain.StepConfirm
}

func stepFailure(err error) *domain.StepFailure {
	return &domain.StepFailure{
		Kind:    domain.FailureKind(err),
		Message: domain.UserMessage(err),
		Detail:  err.Error(),
	}
}

func transitionError(step domain.Step, action string) error {
	return fmt.Errorf("%s: %w: not allowed from step %q", action, domain.ErrInvalidTransition, step)
}

// serviceTemplates seeds the manual flow's template step.
var serviceTemplates = map[string][]domain.ManualServiceInput{
	"blank": {},
	"web-starter": {
		{Name: "Vercel", Category: "infrastructure", Amount: 20, Cycle: "monthly"},
		{Name: "Namecheap", Category: "domains", Amount: 14, Cycle: "yearly"},
	},
	"mobile-starter": {
		{Name: "App Store Connect", Category: "distribution", Amount: 99, Cycle: "yearly"},
		{Name: "Google Play Console", Category: "distribution", Amount: 25, Cycle: "one-time"},
	},
	"ai-starter": {
		{Name: "OpenAI API", Category: "devtools", Amount: 50, Cycle: "monthly"},
		{Name: "Hugging Face", Category: "devtools", Amount: 9, Cycle: "monthly"},
	},
}
