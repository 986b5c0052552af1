package http

import (
	"net/http"

	"github.com/dmitrijs2005/credkeeper/internal/server/services"
)

func statusFor(kind services.FailureKind) int {
	switch kind {
	case services.InvalidCredentials, services.TokenExpired, services.TokenInvalid, services.SessionNotFound:
		return http.StatusUnauthorized
	case services.AccountAlreadyExists:
		return http.StatusConflict
	case services.MissingOAuthEmail:
		return http.StatusBadRequest
	case services.StorageUnavailable:
		return http.StatusServiceUnavailable
	case services.NotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// respondFailure writes a service failure. Only the kind's public message
// reaches the client; the cause is logged for server-side faults.
func (h *Handler) respondFailure(w http.ResponseWriter, r *http.Request, op string, err error) {
	kind := services.KindOf(err)
	code := statusFor(kind)
	if code >= http.StatusInternalServerError {
		h.logger.Error(r.Context(), op+" failed", "error", err)
	}
	respondError(w, kind.Message(), code)
}
