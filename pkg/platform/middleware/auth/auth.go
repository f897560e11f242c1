package auth

import (
	"log/slog"
	"net/http"
	"strings"

	id "drivematch/pkg/domain"
	dErrors "drivematch/pkg/domain-errors"
	"drivematch/pkg/platform/httputil"
	"drivematch/pkg/requestcontext"
)

// TokenValidator validates a bearer token and returns the session it is
// bound to.
type TokenValidator interface {
	ValidateToken(token string) (id.SessionID, error)
}

// RejectionRecorder is told about rejected tokens. Optional.
type RejectionRecorder interface {
	TokenRejected(r *http.Request, reason string)
}

// RequireSession rejects requests without a valid session bearer token and
// stores the session id in the context.
func RequireSession(validator TokenValidator, recorder RejectionRecorder, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				reject(w, r, recorder, "missing_token", "missing or invalid Authorization header")
				return
			}

			sessionID, err := validator.ValidateToken(strings.TrimSpace(token))
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"request_id", requestID,
					"error", err,
				)
				reject(w, r, recorder, "invalid_token", "invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithSessionID(ctx, sessionID)))
		})
	}
}

func reject(w http.ResponseWriter, r *http.Request, recorder RejectionRecorder, reason, desc string) {
	if recorder != nil {
		recorder.TokenRejected(r, reason)
	}
	httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, desc))
}
