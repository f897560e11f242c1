package ratelimit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"drivematch/pkg/platform/httputil"
	"drivematch/pkg/requestcontext"
)

// Recorder counts rejected requests.
type Recorder interface {
	IncRateLimited(limiter string)
}

// Middleware applies one per-IP budget to the routes it wraps.
type Middleware struct {
	name     string
	store    *SlidingWindow
	limit    int
	window   time.Duration
	logger   *slog.Logger
	recorder Recorder
}

type Option func(*Middleware)

func WithRecorder(r Recorder) Option {
	return func(m *Middleware) {
		m.recorder = r
	}
}

func WithStore(s *SlidingWindow) Option {
	return func(m *Middleware) {
		if s != nil {
			m.store = s
		}
	}
}

// NewMiddleware allows limit requests per client IP inside window. A limit
// of zero or less yields a pass-through.
func NewMiddleware(name string, limit int, window time.Duration, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		name:   name,
		store:  NewSlidingWindow(),
		limit:  limit,
		window: window,
		logger: logger,
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.limit <= 0 {
		m.logger.Info("rate limiting disabled", "limiter", name)
	}
	return m
}

// Store exposes the backing window so callers can sweep idle keys.
func (m *Middleware) Store() *SlidingWindow {
	return m.store
}

// Window is the trailing interval each budget covers.
func (m *Middleware) Window() time.Duration {
	return m.window
}

// Handler wraps next. The client IP comes from the request context, so
// metadata.ClientMetadata must run first.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	if m.limit <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ip := requestcontext.ClientIP(ctx)
		if ip == "" {
			ip = "unknown"
		}

		result := m.store.Allow(ctx, m.name+":"+sanitizeKey(ip), m.limit, m.window)
		addHeaders(w, result)
		if !result.Allowed {
			m.logger.WarnContext(ctx, "rate limit exceeded",
				"limiter", m.name,
				"client_ip", ip,
				"request_id", requestcontext.RequestID(ctx),
				"retry_after", result.RetryAfter,
			)
			if m.recorder != nil {
				m.recorder.IncRateLimited(m.name)
			}
			w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
			httputil.WriteJSON(w, http.StatusTooManyRequests, exceededResponse{
				Error:            "rate_limit_exceeded",
				ErrorDescription: "too many requests from this address, try again later",
				RetryAfter:       result.RetryAfter,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

type exceededResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	RetryAfter       int    `json:"retry_after"`
}

func addHeaders(w http.ResponseWriter, result Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}
