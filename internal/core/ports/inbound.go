package ports

import (
	"context"

	"github.com/vkarasev/stackwise/internal/core/domain"
)

// ImportWizard is the inbound contract for the wizard state machine across
// the manual, document, and email entry flows.
type ImportWizard interface {
	StartSession(ctx context.Context, workspaceID string) (*domain.SessionState, error)
	GetSession(ctx context.Context, sessionID string) (*domain.SessionState, error)
	ChooseFlow(ctx context.Context, sessionID string, flow domain.Flow) (*domain.SessionState, error)
	Back(ctx context.Context, sessionID string) (*domain.SessionState, error)

	AddDocument(ctx context.Context, sessionID, name, mediaType string, content []byte) (*domain.UploadedDocument, error)
	RemoveDocument(ctx context.Context, sessionID, documentID string) error
	RunExtraction(ctx context.Context, sessionID string) (*domain.SessionState, error)
	AddMoreFiles(ctx context.Context, sessionID string) (*domain.SessionState, error)

	EditEntityField(ctx context.Context, sessionID, entityID, field string, value any) (*domain.SessionState, error)
	ToggleConfirm(ctx context.Context, sessionID, entityID string) (*domain.SessionState, error)
	RemoveEntity(ctx context.Context, sessionID, entityID string) (*domain.SessionState, error)
	AdvanceToConfirm(ctx context.Context, sessionID string) (*domain.SessionState, error)
	Commit(ctx context.Context, sessionID string) (*domain.SessionState, error)

	SetBasics(ctx context.Context, sessionID string, basics domain.ProjectBasics) (*domain.SessionState, error)
	ChooseTemplate(ctx context.Context, sessionID, template string) (*domain.SessionState, error)
	AddManualService(ctx context.Context, sessionID string, input domain.ManualServiceInput) (*domain.SessionState, error)

	StartEmailAuth(ctx context.Context, sessionID string) (domain.AuthLink, error)
	CompleteEmailAuth(ctx context.Context, sessionID, linkID string) (*domain.SessionState, error)
	RunEmailSync(ctx context.Context, sessionID string, lookbackDays int) (*domain.SessionState, error)
}
