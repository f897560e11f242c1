package testutil

import (
	"net/http"
	"time"

	id "drivematch/pkg/domain"
	"drivematch/pkg/requestcontext"
)

// WithSessionID adds a session id to the request context, as the auth
// middleware would. Invalid ids are ignored.
func WithSessionID(req *http.Request, sessionID string) *http.Request {
	if parsed, err := id.ParseSessionID(sessionID); err == nil {
		return req.WithContext(requestcontext.WithSessionID(req.Context(), parsed))
	}
	return req
}

// WithTime pins the request time.
func WithTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}
