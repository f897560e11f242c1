// Package handler exposes the onboarding session over HTTP. Clients create a
// session, receive a bearer token bound to it, and drive every later step
// with that token.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	discovery "drivematch/internal/discovery/models"
	profile "drivematch/internal/profile/models"
	"drivematch/internal/session"
	id "drivematch/pkg/domain"
	dErrors "drivematch/pkg/domain-errors"
	"drivematch/pkg/platform/audit"
	"drivematch/pkg/platform/httputil"
	authmw "drivematch/pkg/platform/middleware/auth"
	"drivematch/pkg/requestcontext"
)

// Service defines the session operations the handler drives.
type Service interface {
	Start(ctx context.Context) (*session.View, error)
	View(ctx context.Context, sessionID id.SessionID) (*session.View, error)
	End(ctx context.Context, sessionID id.SessionID) error
	SelectActor(ctx context.Context, sessionID id.SessionID, actor id.ActorType) (*session.View, error)
	GoTo(ctx context.Context, sessionID id.SessionID, screen id.ScreenID) (*session.View, error)
	GoBack(ctx context.Context, sessionID id.SessionID) (*session.View, error)
	Advance(ctx context.Context, sessionID id.SessionID) (*session.View, error)
	Reset(ctx context.Context, sessionID id.SessionID) (*session.View, error)
	MergeProfile(ctx context.Context, sessionID id.SessionID, patch profile.Patch) (*session.View, error)
	StartVerification(ctx context.Context, sessionID id.SessionID) (*session.VerificationView, error)
	AwaitVerification(ctx context.Context, sessionID id.SessionID) (*session.VerificationView, error)
	VerificationStatus(ctx context.Context, sessionID id.SessionID) (*session.VerificationView, error)
	CancelVerification(ctx context.Context, sessionID id.SessionID) (bool, *session.VerificationView, error)
	Discover(ctx context.Context, sessionID id.SessionID, filters discovery.Filters) ([]discovery.Candidate, error)
	SelectProvider(ctx context.Context, sessionID id.SessionID, providerID id.ProviderID) (*session.View, error)
	ScheduleSession(ctx context.Context, sessionID id.SessionID, date time.Time, slot string) (profile.Lesson, error)
	StartLiveSession(ctx context.Context, sessionID id.SessionID, counterpart string) (profile.LiveSession, error)
	EndLiveSession(ctx context.Context, sessionID id.SessionID, rating int, comment string) (profile.CompletedSession, error)
}

// TokenIssuer mints the bearer token handed out when a session starts.
type TokenIssuer interface {
	GenerateSessionToken(sessionID id.SessionID, expiresIn time.Duration) (string, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

const (
	defaultTokenTTL = 2 * time.Hour
	maxAwait        = 60 * time.Second
)

// Handler handles session endpoints.
type Handler struct {
	service   Service
	tokens    TokenIssuer
	validator authmw.TokenValidator
	logger    *slog.Logger
	auditor   AuditPublisher
	tokenTTL  time.Duration
	startMW   []func(http.Handler) http.Handler
}

type Option func(*Handler)

func WithTokenTTL(ttl time.Duration) Option {
	return func(h *Handler) {
		if ttl > 0 {
			h.tokenTTL = ttl
		}
	}
}

// WithAuditor records rejected tokens in the audit trail.
func WithAuditor(a AuditPublisher) Option {
	return func(h *Handler) {
		h.auditor = a
	}
}

// WithStartMiddleware wraps the anonymous session start route, typically
// with a rate limiter.
func WithStartMiddleware(mw ...func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.startMW = append(h.startMW, mw...)
	}
}

// New creates a session Handler.
func New(service Service, tokens TokenIssuer, validator authmw.TokenValidator, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		service:   service,
		tokens:    tokens,
		validator: validator,
		logger:    logger,
		tokenTTL:  defaultTokenTTL,
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register registers the session routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.With(h.startMW...).Post("/sessions", h.handleStart)

	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireSession(h.validator, h, h.logger))

		r.Get("/session", h.handleView)
		r.Delete("/session", h.handleEnd)
		r.Post("/session/actor", h.handleSelectActor)
		r.Post("/session/navigate", h.handleNavigate)
		r.Post("/session/back", h.handleBack)
		r.Post("/session/advance", h.handleAdvance)
		r.Post("/session/reset", h.handleReset)
		r.Patch("/session/profile", h.handleMergeProfile)

		r.Post("/session/verification", h.handleStartVerification)
		r.Get("/session/verification", h.handleVerificationStatus)
		r.Delete("/session/verification", h.handleCancelVerification)

		r.Post("/session/discovery", h.handleDiscover)
		r.Post("/session/provider", h.handleSelectProvider)
		r.Post("/session/schedule", h.handleSchedule)
		r.Post("/session/live", h.handleStartLive)
		r.Post("/session/live/end", h.handleEndLive)
	})
}

// TokenRejected records a rejected bearer token.
func (h *Handler) TokenRejected(r *http.Request, reason string) {
	ctx := r.Context()
	h.logger.InfoContext(ctx, "session token rejected",
		"request_id", requestcontext.RequestID(ctx),
		"reason", reason,
	)
	if h.auditor == nil {
		return
	}
	err := h.auditor.Emit(ctx, audit.Event{
		Action:    string(audit.EventTokenRejected),
		Decision:  "denied",
		Reason:    reason,
		RequestID: requestcontext.RequestID(ctx),
	})
	if err != nil {
		h.logger.WarnContext(ctx, "failed to emit audit event", "error", err)
	}
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	view, err := h.service.Start(ctx)
	if err != nil {
		h.fail(ctx, w, "failed to start session", err)
		return
	}
	token, err := h.tokens.GenerateSessionToken(view.SessionID, h.tokenTTL)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to issue session token",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to issue token"))
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, sessionCreatedResponse{
		SessionID: view.SessionID,
		Token:     token,
		TokenType: "Bearer",
		ExpiresIn: int(h.tokenTTL.Seconds()),
		Session:   view,
	})
}

func (h *Handler) handleView(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	view, err := h.service.View(ctx, requestcontext.SessionID(ctx))
	if err != nil {
		h.fail(ctx, w, "failed to load session", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) handleEnd(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.service.End(ctx, requestcontext.SessionID(ctx)); err != nil {
		h.fail(ctx, w, "failed to end session", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSelectActor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[actorRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	view, err := h.service.SelectActor(ctx, requestcontext.SessionID(ctx), req.actor)
	h.respond(ctx, w, "failed to select actor", view, err)
}

func (h *Handler) handleNavigate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[navigateRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	view, err := h.service.GoTo(ctx, requestcontext.SessionID(ctx), id.ScreenID(req.Screen))
	h.respond(ctx, w, "navigation rejected", view, err)
}

func (h *Handler) handleBack(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	view, err := h.service.GoBack(ctx, requestcontext.SessionID(ctx))
	h.respond(ctx, w, "failed to go back", view, err)
}

func (h *Handler) handleAdvance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	view, err := h.service.Advance(ctx, requestcontext.SessionID(ctx))
	h.respond(ctx, w, "advance rejected", view, err)
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	view, err := h.service.Reset(ctx, requestcontext.SessionID(ctx))
	h.respond(ctx, w, "failed to reset session", view, err)
}

func (h *Handler) handleMergeProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[profilePatchRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	view, err := h.service.MergeProfile(ctx, requestcontext.SessionID(ctx), req.patch)
	h.respond(ctx, w, "profile update rejected", view, err)
}

func (h *Handler) handleStartVerification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	view, err := h.service.StartVerification(ctx, requestcontext.SessionID(ctx))
	if err != nil {
		h.fail(ctx, w, "failed to start verification", err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, view)
}

// handleVerificationStatus returns the current step statuses. With
// ?wait=<seconds> it blocks until the run finishes or the wait elapses.
func (h *Handler) handleVerificationStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := requestcontext.SessionID(ctx)

	raw := r.URL.Query().Get("wait")
	if raw == "" {
		view, err := h.service.VerificationStatus(ctx, sessionID)
		h.respond(ctx, w, "failed to read verification", view, err)
		return
	}

	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds <= 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "wait must be a positive number of seconds"))
		return
	}
	wait := time.Duration(min(seconds, int(maxAwait/time.Second))) * time.Second
	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	view, err := h.service.AwaitVerification(waitCtx, sessionID)
	if dErrors.HasCode(err, dErrors.CodeTimeout) {
		// still running; report progress instead of failing
		view, err = h.service.VerificationStatus(ctx, sessionID)
	}
	h.respond(ctx, w, "failed to await verification", view, err)
}

func (h *Handler) handleCancelVerification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	canceled, view, err := h.service.CancelVerification(ctx, requestcontext.SessionID(ctx))
	if err != nil {
		h.fail(ctx, w, "failed to cancel verification", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cancelResponse{Canceled: canceled, Verification: view})
}

func (h *Handler) handleDiscover(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[discoveryRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	candidates, err := h.service.Discover(ctx, requestcontext.SessionID(ctx), req.filters)
	if err != nil {
		h.fail(ctx, w, "discovery failed", err)
		return
	}
	if candidates == nil {
		candidates = []discovery.Candidate{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"candidates": candidates,
		"count":      len(candidates),
	})
}

func (h *Handler) handleSelectProvider(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[providerRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	view, err := h.service.SelectProvider(ctx, requestcontext.SessionID(ctx), req.providerID)
	h.respond(ctx, w, "provider selection rejected", view, err)
}

func (h *Handler) handleSchedule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[scheduleRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	lesson, err := h.service.ScheduleSession(ctx, requestcontext.SessionID(ctx), req.date, req.TimeSlot)
	if err != nil {
		h.fail(ctx, w, "scheduling rejected", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, lesson)
}

func (h *Handler) handleStartLive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[liveStartRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	live, err := h.service.StartLiveSession(ctx, requestcontext.SessionID(ctx), req.Counterpart)
	if err != nil {
		h.fail(ctx, w, "failed to start live session", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, live)
}

func (h *Handler) handleEndLive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[liveEndRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	done, err := h.service.EndLiveSession(ctx, requestcontext.SessionID(ctx), req.Rating, req.Comment)
	if err != nil {
		h.fail(ctx, w, "failed to end live session", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, done)
}

func (h *Handler) respond(ctx context.Context, w http.ResponseWriter, msg string, body any, err error) {
	if err != nil {
		h.fail(ctx, w, msg, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, body)
}

// fail logs client errors at warn and everything else at error, then writes
// the translated error.
func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	code := dErrors.CodeOf(err)
	attrs := []any{
		"request_id", requestcontext.RequestID(ctx),
		"session_id", requestcontext.SessionID(ctx).String(),
		"code", string(code),
		"error", err,
	}
	if dErrors.ToHTTPStatus(code) >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, msg, attrs...)
	} else {
		h.logger.WarnContext(ctx, msg, attrs...)
	}
	httputil.WriteError(w, err)
}
