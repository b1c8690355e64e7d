package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vkarasev/stackwise/internal/core/domain"
)

type wizardFake struct {
	state *domain.SessionState
	doc   *domain.UploadedDocument
	link  domain.AuthLink
	err   error

	lastWorkspace string
	lastFlow      domain.Flow
	lastDocName   string
	lastDocType   string
	lastContent   []byte
	lastField     string
	lastValue     any
	lastLookback  int
}

func (f *wizardFake) reply() (*domain.SessionState, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.state, nil
}

func (f *wizardFake) StartSession(_ context.Context, workspaceID string) (*domain.SessionState, error) {
	f.lastWorkspace = workspaceID
	return f.reply()
}

func (f *wizardFake) GetSession(context.Context, string) (*domain.SessionState, error) {
	return f.reply()
}

func (f *wizardFake) ChooseFlow(_ context.Context, _ string, flow domain.Flow) (*domain.SessionState, error) {
	f.lastFlow = flow
	return f.reply()
}

func (f *wizardFake) Back(context.Context, string) (*domain.SessionState, error) {
	return f.reply()
}

func (f *wizardFake) AddDocument(_ context.Context, _ string, name, mediaType string, content []byte) (*domain.UploadedDocument, error) {
	f.lastDocName = name
	f.lastDocType = mediaType
	f.lastContent = content
	if f.err != nil {
		return nil, f.err
	}
	return f.doc, nil
}

func (f *wizardFake) RemoveDocument(context.Context, string, string) error {
	return f.err
}

func (f *wizardFake) RunExtraction(context.Context, string) (*domain.SessionState, error) {
	return f.reply()
}

func (f *wizardFake) AddMoreFiles(context.Context, string) (*domain.SessionState, error) {
	return f.reply()
}

func (f *wizardFake) EditEntityField(_ context.Context, _ string, _ string, field string, value any) (*domain.SessionState, error) {
	f.lastField = field
	f.lastValue = value
	return f.reply()
}

func (f *wizardFake) ToggleConfirm(context.Context, string, string) (*domain.SessionState, error) {
	return f.reply()
}

func (f *wizardFake) RemoveEntity(context.Context, string, string) (*domain.SessionState, error) {
	return f.reply()
}

func (f *wizardFake) AdvanceToConfirm(context.Context, string) (*domain.SessionState, error) {
	return f.reply()
}

func (f *wizardFake) Commit(context.Context, string) (*domain.SessionState, error) {
	return f.reply()
}

func (f *wizardFake) SetBasics(context.Context, string, domain.ProjectBasics) (*domain.SessionState, error) {
	return f.reply()
}

func (f *wizardFake) ChooseTemplate(context.Context, string, string) (*domain.SessionState, error) {
	return f.reply()
}

func (f *wizardFake) AddManualService(context.Context, string, domain.ManualServiceInput) (*domain.SessionState, error) {
	return f.reply()
}

func (f *wizardFake) StartEmailAuth(context.Context, string) (domain.AuthLink, error) {
	if f.err != nil {
		return domain.AuthLink{}, f.err
	}
	return f.link, nil
}

func (f *wizardFake) CompleteEmailAuth(context.Context, string, string) (*domain.SessionState, error) {
	return f.reply()
}

func (f *wizardFake) RunEmailSync(_ context.Context, _ string, lookbackDays int) (*domain.SessionState, error) {
	f.lastLookback = lookbackDays
	return f.reply()
}

type journalReaderFake struct {
	job *domain.ImportJob
	err error
}

func (f *journalReaderFake) GetBySession(context.Context, string) (*domain.ImportJob, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.job, nil
}

func newTestHandler(fake *wizardFake) http.Handler {
	return NewRouter(fake, nil, nil, nil, 0).Handler()
}

func doJSON(t *testing.T, handler http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	return recorder
}

func TestHealthz(t *testing.T) {
	handler := newTestHandler(&wizardFake{})

	resp := doJSON(t, handler, http.MethodGet, "/healthz", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if resp.Header().Get("X-Request-Id") == "" {
		t.Fatal("expected a generated request id header")
	}
}

func TestStartSessionReturnsState(t *testing.T) {
	fake := &wizardFake{state: &domain.SessionState{ID: "sess-1", WorkspaceID: "ws-9", Step: domain.StepMethod}}
	handler := newTestHandler(fake)

	resp := doJSON(t, handler, http.MethodPost, "/v1/imports", `{"workspace_id":"ws-9"}`)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	if fake.lastWorkspace != "ws-9" {
		t.Fatalf("workspace not forwarded, got %q", fake.lastWorkspace)
	}

	var state domain.SessionState
	if err := json.Unmarshal(resp.Body.Bytes(), &state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if state.ID != "sess-1" || state.Step != domain.StepMethod {
		t.Fatalf("unexpected state: %+v", state)
	}
}

func TestRequestIDIsEchoedBack(t *testing.T) {
	handler := newTestHandler(&wizardFake{state: &domain.SessionState{ID: "sess-1"}})

	req := httptest.NewRequest(http.MethodGet, "/v1/imports/sess-1", nil)
	req.Header.Set("X-Request-Id", "req-fixed")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	if got := recorder.Header().Get("X-Request-Id"); got != "req-fixed" {
		t.Fatalf("expected caller request id to be preserved, got %q", got)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	fake := &wizardFake{err: domain.WrapError(domain.ErrSessionNotFound, "wizard.get", domain.ErrSessionNotFound)}
	handler := newTestHandler(fake)

	resp := doJSON(t, handler, http.MethodGet, "/v1/imports/missing", "")
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body["kind"] != "session_not_found" {
		t.Fatalf("expected session_not_found kind, got %q", body["kind"])
	}
}

func TestChooseFlowInvalidTransitionConflicts(t *testing.T) {
	fake := &wizardFake{err: domain.WrapError(domain.ErrInvalidTransition, "wizard.choose_flow", domain.ErrInvalidTransition)}
	handler := newTestHandler(fake)

	resp := doJSON(t, handler, http.MethodPost, "/v1/imports/sess-1/flow", `{"flow":"document"}`)
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.Code)
	}
}

func TestChooseFlowForwardsFlow(t *testing.T) {
	fake := &wizardFake{state: &domain.SessionState{ID: "sess-1", Flow: domain.FlowEmail, Step: domain.StepEmailSync}}
	handler := newTestHandler(fake)

	resp := doJSON(t, handler, http.MethodPost, "/v1/imports/sess-1/flow", `{"flow":"email"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if fake.lastFlow != domain.FlowEmail {
		t.Fatalf("flow not forwarded, got %q", fake.lastFlow)
	}
}

func TestChooseFlowRejectsMalformedJSON(t *testing.T) {
	handler := newTestHandler(&wizardFake{})

	resp := doJSON(t, handler, http.MethodPost, "/v1/imports/sess-1/flow", `{"flow":`)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestAddDocumentMultipart(t *testing.T) {
	fake := &wizardFake{doc: &domain.UploadedDocument{ID: "doc-1", Name: "receipt.csv"}}
	handler := newTestHandler(fake)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "receipt.csv")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte("vendor,amount\nVercel,20")); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/imports/sess-1/documents", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", recorder.Code, recorder.Body.String())
	}
	if fake.lastDocName != "receipt.csv" {
		t.Fatalf("filename not forwarded, got %q", fake.lastDocName)
	}
	if !bytes.Contains(fake.lastContent, []byte("Vercel")) {
		t.Fatal("uploaded content not forwarded to the wizard")
	}
}

func TestAddDocumentRequiresFileField(t *testing.T) {
	handler := newTestHandler(&wizardFake{})

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("note", "no file here"); err != nil {
		t.Fatalf("write field: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/imports/sess-1/documents", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
}

func TestRemoveDocumentNoContent(t *testing.T) {
	handler := newTestHandler(&wizardFake{})

	resp := doJSON(t, handler, http.MethodDelete, "/v1/imports/sess-1/documents/doc-1", "")
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}
}

func TestEditEntityRequiresField(t *testing.T) {
	handler := newTestHandler(&wizardFake{})

	resp := doJSON(t, handler, http.MethodPatch, "/v1/imports/sess-1/entities/ent-1", `{"field":"  ","value":1}`)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestEditEntityForwardsFieldAndValue(t *testing.T) {
	fake := &wizardFake{state: &domain.SessionState{ID: "sess-1", Step: domain.StepReview}}
	handler := newTestHandler(fake)

	resp := doJSON(t, handler, http.MethodPatch, "/v1/imports/sess-1/entities/ent-1", `{"field":"amount","value":42.5}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if fake.lastField != "amount" {
		t.Fatalf("field not forwarded, got %q", fake.lastField)
	}
	if v, ok := fake.lastValue.(float64); !ok || v != 42.5 {
		t.Fatalf("value not forwarded, got %#v", fake.lastValue)
	}
}

func TestCommitWithSummaryAndNilMetrics(t *testing.T) {
	fake := &wizardFake{state: &domain.SessionState{
		ID:   "sess-1",
		Step: domain.StepSuccess,
		Summary: &domain.CommitSummary{
			Results: []domain.CommitResult{
				{ProjectName: "Acme Shop", Outcome: domain.OutcomeCreated},
			},
		},
	}}
	handler := newTestHandler(fake)

	resp := doJSON(t, handler, http.MethodPost, "/v1/imports/sess-1/commit", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestCommitTemporaryFailureMapsToServiceUnavailable(t *testing.T) {
	fake := &wizardFake{err: domain.WrapError(domain.ErrTemporary, "wizard.commit", domain.ErrTemporary)}
	handler := newTestHandler(fake)

	resp := doJSON(t, handler, http.MethodPost, "/v1/imports/sess-1/commit", "")
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.Code)
	}
}

func TestGetJobReturnsAuditRecord(t *testing.T) {
	journal := &journalReaderFake{job: &domain.ImportJob{
		ID:        "job-1",
		SessionID: "sess-1",
		Flow:      domain.FlowDocument,
		Status:    domain.JobReviewing,
	}}
	handler := NewRouter(&wizardFake{}, journal, nil, nil, 0).Handler()

	resp := doJSON(t, handler, http.MethodGet, "/v1/imports/sess-1/job", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var job domain.ImportJob
	if err := json.Unmarshal(resp.Body.Bytes(), &job); err != nil {
		t.Fatalf("decode job: %v", err)
	}
	if job.ID != "job-1" || job.Status != domain.JobReviewing {
		t.Fatalf("unexpected job: %+v", job)
	}
}

func TestGetJobWithoutJournalIsNotRouted(t *testing.T) {
	handler := newTestHandler(&wizardFake{state: &domain.SessionState{ID: "sess-1"}})

	resp := doJSON(t, handler, http.MethodGet, "/v1/imports/sess-1/job", "")
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 when no journal is wired, got %d", resp.Code)
	}
}

func TestStartEmailAuthReturnsLink(t *testing.T) {
	fake := &wizardFake{link: domain.AuthLink{LinkID: "link-1", URL: "https://auth.example/link-1"}}
	handler := newTestHandler(fake)

	resp := doJSON(t, handler, http.MethodPost, "/v1/imports/sess-1/email/auth", "")
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.Code)
	}

	var link domain.AuthLink
	if err := json.Unmarshal(resp.Body.Bytes(), &link); err != nil {
		t.Fatalf("decode link: %v", err)
	}
	if link.LinkID != "link-1" {
		t.Fatalf("unexpected link: %+v", link)
	}
}

func TestRunEmailSyncForwardsLookback(t *testing.T) {
	fake := &wizardFake{state: &domain.SessionState{ID: "sess-1", Step: domain.StepReview}}
	handler := newTestHandler(fake)

	resp := doJSON(t, handler, http.MethodPost, "/v1/imports/sess-1/email/sync", `{"lookback_days":30}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if fake.lastLookback != 30 {
		t.Fatalf("lookback not forwarded, got %d", fake.lastLookback)
	}
}

func TestUpstreamTimeoutMapsToGatewayTimeout(t *testing.T) {
	fake := &wizardFake{err: domain.WrapError(domain.ErrTimeout, "wizard.email_sync", domain.ErrTimeout)}
	handler := newTestHandler(fake)

	resp := doJSON(t, handler, http.MethodPost, "/v1/imports/sess-1/email/sync", "")
	if resp.Code != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d", resp.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body["kind"] != "timeout" {
		t.Fatalf("expected timeout kind, got %q", body["kind"])
	}
	if !strings.Contains(body["error"], "took too long") {
		t.Fatalf("expected user-facing message, got %q", body["error"])
	}
}
