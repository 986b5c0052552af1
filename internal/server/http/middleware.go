package http

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/logging"
	"github.com/dmitrijs2005/credkeeper/internal/server/services"
	"github.com/go-chi/chi/v5/middleware"
)

type ctxKey string

const principalKey ctxKey = "principal"

func principalFrom(ctx context.Context) (*services.Principal, bool) {
	p, ok := ctx.Value(principalKey).(*services.Principal)
	return p, ok
}

// SecurityHeaders adds security-related headers to all responses.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Content-Security-Policy", "default-src 'none'")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// RequestLogger logs one line per request at a level derived from the
// response status.
func RequestLogger(log logging.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			args := []any{
				"request_id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"remote_ip", r.RemoteAddr,
				"status", status,
				"duration_ms", time.Since(start).Milliseconds(),
			}
			switch {
			case status >= 500:
				log.Error(r.Context(), "request completed", args...)
			case status >= 400:
				log.Warn(r.Context(), "request completed", args...)
			default:
				log.Info(r.Context(), "request completed", args...)
			}
		})
	}
}

// RequireAuth verifies the bearer access token and stores the caller's
// principal in the request context.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			respondError(w, "missing authentication", http.StatusUnauthorized)
			return
		}
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			respondError(w, "invalid authorization header format", http.StatusUnauthorized)
			return
		}

		p, err := h.auth.Authenticate(r.Context(), token)
		if err != nil {
			if errors.Is(err, services.ErrTokenExpired) {
				respondError(w, common.ErrTokenExpired.Error(), http.StatusUnauthorized)
				return
			}
			respondError(w, common.ErrInvalidToken.Error(), http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey, p)))
	})
}

// RequireInternalKey admits only callers presenting the shared internal key.
// With no key configured every request is refused.
func (h *Handler) RequireInternalKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(h.internalKey) == 0 {
			respondError(w, "oauth callback disabled", http.StatusForbidden)
			return
		}
		key := r.Header.Get(common.InternalKeyHTTPHeader)
		if subtle.ConstantTimeCompare([]byte(key), h.internalKey) != 1 {
			respondError(w, "invalid internal key", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
