package httpadapter

import (
	"net/http"

	"github.com/vkarasev/stackwise/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrSessionNotFound), domain.IsKind(err, domain.ErrEntityNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrInvalidTransition):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrUnreadableFile):
		return http.StatusUnprocessableEntity
	case domain.IsKind(err, domain.ErrAuth):
		return http.StatusBadGateway
	case domain.IsKind(err, domain.ErrTimeout):
		return http.StatusGatewayTimeout
	case domain.IsKind(err, domain.ErrNetwork), domain.IsKind(err, domain.ErrAPI), domain.IsKind(err, domain.ErrParse):
		return http.StatusBadGateway
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func errorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case domain.IsKind(err, domain.ErrInvalidInput):
		return "invalid_input"
	case domain.IsKind(err, domain.ErrSessionNotFound):
		return "session_not_found"
	case domain.IsKind(err, domain.ErrEntityNotFound):
		return "entity_not_found"
	case domain.IsKind(err, domain.ErrInvalidTransition):
		return "invalid_transition"
	default:
		return domain.FailureKind(err)
	}
}
