package httpadapter

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/vkarasev/stackwise/internal/core/domain"
	"github.com/vkarasev/stackwise/internal/core/ports"
	"github.com/vkarasev/stackwise/internal/observability/metrics"
)

const serviceName = "api"

const defaultMaxUploadBytes = 20 << 20

// Router exposes the import wizard over HTTP. Every mutating endpoint
// returns the full session state so the client never has to reassemble it.
type Router struct {
	wizard         ports.ImportWizard
	journal        ports.ImportJournalReader
	logger         *slog.Logger
	metrics        *metrics.HTTPServerMetrics
	maxUploadBytes int64
}

func NewRouter(wizard ports.ImportWizard, journal ports.ImportJournalReader, logger *slog.Logger, serverMetrics *metrics.HTTPServerMetrics, maxUploadBytes int64) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &Router{
		wizard:         wizard,
		journal:        journal,
		logger:         logger,
		metrics:        serverMetrics,
		maxUploadBytes: maxUploadBytes,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	mux.HandleFunc("POST /v1/imports", rt.startSession)
	mux.HandleFunc("GET /v1/imports/{id}", rt.getSession)
	if rt.journal != nil {
		mux.HandleFunc("GET /v1/imports/{id}/job", rt.getJob)
	}
	mux.HandleFunc("POST /v1/imports/{id}/flow", rt.chooseFlow)
	mux.HandleFunc("POST /v1/imports/{id}/back", rt.back)

	mux.HandleFunc("POST /v1/imports/{id}/documents", rt.addDocument)
	mux.HandleFunc("GET /v1/imports/{id}/documents", rt.listDocuments)
	mux.HandleFunc("DELETE /v1/imports/{id}/documents/{docID}", rt.removeDocument)
	mux.HandleFunc("POST /v1/imports/{id}/extract", rt.runExtraction)
	mux.HandleFunc("POST /v1/imports/{id}/more-files", rt.addMoreFiles)

	mux.HandleFunc("PATCH /v1/imports/{id}/entities/{entityID}", rt.editEntity)
	mux.HandleFunc("POST /v1/imports/{id}/entities/{entityID}/confirm", rt.toggleConfirm)
	mux.HandleFunc("DELETE /v1/imports/{id}/entities/{entityID}", rt.removeEntity)
	mux.HandleFunc("POST /v1/imports/{id}/advance", rt.advance)
	mux.HandleFunc("POST /v1/imports/{id}/commit", rt.commit)

	mux.HandleFunc("POST /v1/imports/{id}/basics", rt.setBasics)
	mux.HandleFunc("POST /v1/imports/{id}/template", rt.chooseTemplate)
	mux.HandleFunc("POST /v1/imports/{id}/services", rt.addManualService)

	mux.HandleFunc("POST /v1/imports/{id}/email/auth", rt.startEmailAuth)
	mux.HandleFunc("POST /v1/imports/{id}/email/auth/wait", rt.completeEmailAuth)
	mux.HandleFunc("POST /v1/imports/{id}/email/sync", rt.runEmailSync)

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(rt.logger, handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) startSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		WorkspaceID string `json:"workspace_id"`
	}
	// An empty body is fine; the workspace falls back to the server default.
	_ = json.NewDecoder(r.Body).Decode(&req)

	state, err := rt.wizard.StartSession(r.Context(), req.WorkspaceID)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, state)
}

func (rt *Router) getSession(w http.ResponseWriter, r *http.Request) {
	state, err := rt.wizard.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (rt *Router) getJob(w http.ResponseWriter, r *http.Request) {
	job, err := rt.journal.GetBySession(r.Context(), r.PathValue("id"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (rt *Router) chooseFlow(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Flow string `json:"flow"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rt.writeBadRequest(w, "invalid json")
		return
	}

	state, err := rt.wizard.ChooseFlow(r.Context(), r.PathValue("id"), domain.Flow(req.Flow))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (rt *Router) back(w http.ResponseWriter, r *http.Request) {
	state, err := rt.wizard.Back(r.Context(), r.PathValue("id"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (rt *Router) addDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, rt.maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		rt.writeBadRequest(w, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		rt.writeBadRequest(w, "file exceeds the upload limit or is unreadable")
		return
	}

	mediaType := header.Header.Get("Content-Type")
	doc, err := rt.wizard.AddDocument(r.Context(), r.PathValue("id"), header.Filename, mediaType, content)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (rt *Router) listDocuments(w http.ResponseWriter, r *http.Request) {
	state, err := rt.wizard.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	documents := state.Documents
	if documents == nil {
		documents = []domain.UploadedDocument{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": documents})
}

func (rt *Router) removeDocument(w http.ResponseWriter, r *http.Request) {
	if err := rt.wizard.RemoveDocument(r.Context(), r.PathValue("id"), r.PathValue("docID")); err != nil {
		rt.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) runExtraction(w http.ResponseWriter, r *http.Request) {
	state, err := rt.wizard.RunExtraction(r.Context(), r.PathValue("id"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (rt *Router) addMoreFiles(w http.ResponseWriter, r *http.Request) {
	state, err := rt.wizard.AddMoreFiles(r.Context(), r.PathValue("id"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (rt *Router) editEntity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Field string `json:"field"`
		Value any    `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rt.writeBadRequest(w, "invalid json")
		return
	}
	if strings.TrimSpace(req.Field) == "" {
		rt.writeBadRequest(w, "field is required")
		return
	}

	state, err := rt.wizard.EditEntityField(r.Context(), r.PathValue("id"), r.PathValue("entityID"), req.Field, req.Value)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (rt *Router) toggleConfirm(w http.ResponseWriter, r *http.Request) {
	state, err := rt.wizard.ToggleConfirm(r.Context(), r.PathValue("id"), r.PathValue("entityID"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (rt *Router) removeEntity(w http.ResponseWriter, r *http.Request) {
	state, err := rt.wizard.RemoveEntity(r.Context(), r.PathValue("id"), r.PathValue("entityID"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (rt *Router) advance(w http.ResponseWriter, r *http.Request) {
	state, err := rt.wizard.AdvanceToConfirm(r.Context(), r.PathValue("id"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (rt *Router) commit(w http.ResponseWriter, r *http.Request) {
	state, err := rt.wizard.Commit(r.Context(), r.PathValue("id"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}

	if state.Summary != nil {
		for _, result := range state.Summary.Results {
			rt.metrics.Pipeline().RecordCommitEntity(serviceName, string(result.Outcome))
		}
	}
	writeJSON(w, http.StatusOK, state)
}

func (rt *Router) setBasics(w http.ResponseWriter, r *http.Request) {
	var req domain.ProjectBasics
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rt.writeBadRequest(w, "invalid json")
		return
	}

	state, err := rt.wizard.SetBasics(r.Context(), r.PathValue("id"), req)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (rt *Router) chooseTemplate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Template string `json:"template"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rt.writeBadRequest(w, "invalid json")
		return
	}

	state, err := rt.wizard.ChooseTemplate(r.Context(), r.PathValue("id"), req.Template)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (rt *Router) addManualService(w http.ResponseWriter, r *http.Request) {
	var req domain.ManualServiceInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rt.writeBadRequest(w, "invalid json")
		return
	}

	state, err := rt.wizard.AddManualService(r.Context(), r.PathValue("id"), req)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (rt *Router) startEmailAuth(w http.ResponseWriter, r *http.Request) {
	link, err := rt.wizard.StartEmailAuth(r.Context(), r.PathValue("id"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, link)
}

func (rt *Router) completeEmailAuth(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LinkID string `json:"link_id"`
	}
	// Body optional: the wizard remembers the link it handed out.
	_ = json.NewDecoder(r.Body).Decode(&req)

	state, err := rt.wizard.CompleteEmailAuth(r.Context(), r.PathValue("id"), req.LinkID)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (rt *Router) runEmailSync(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LookbackDays int `json:"lookback_days"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	state, err := rt.wizard.RunEmailSync(r.Context(), r.PathValue("id"), req.LookbackDays)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= 500 {
		rt.logger.Error("http.handler_error",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeJSON(w, status, errorBody(err))
}

func (rt *Router) writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": message, "kind": "invalid_input"})
}

func errorBody(err error) map[string]string {
	// Validation and routing errors are safe to surface verbatim; everything
	// else gets the user-facing message with detail kept server-side.
	switch {
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrEntityNotFound):
		return map[string]string{"error": err.Error(), "kind": errorKind(err)}
	}
	return map[string]string{"error": domain.UserMessage(err), "kind": errorKind(err)}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
