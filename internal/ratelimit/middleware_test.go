package ratelimit

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drivematch/internal/platform/metrics"
	metadata "drivematch/pkg/platform/middleware/metadata"
	bdd "drivematch/pkg/testutil"
)

func newLimitedHandler(t *testing.T, limit int, opts ...Option) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mw := NewMiddleware("session_start", limit, time.Minute, logger, opts...)
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	return metadata.ClientMetadata(mw.Handler(ok))
}

func postFrom(ip string) *http.Request {
	return bdd.WithClientIP(httptest.NewRequest(http.MethodPost, "/sessions", nil), ip)
}

func TestSessionStartLimit(t *testing.T) {
	bdd.Given(t, "a budget of two starts per minute", func(t *testing.T) {
		m := metrics.NewWithRegisterer(prometheus.NewRegistry())
		h := newLimitedHandler(t, 2, WithRecorder(m))

		bdd.When(t, "one address spends the budget", func(t *testing.T) {
			for range 2 {
				rr := httptest.NewRecorder()
				h.ServeHTTP(rr, postFrom("203.0.113.7"))
				require.Equal(t, http.StatusCreated, rr.Code)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, postFrom("203.0.113.7"))

			bdd.Then(t, "the next start is rejected with a retry hint", func(t *testing.T) {
				assert.Equal(t, http.StatusTooManyRequests, rr.Code)
				assert.Equal(t, "2", rr.Header().Get("X-RateLimit-Limit"))
				assert.Equal(t, "0", rr.Header().Get("X-RateLimit-Remaining"))
				assert.NotEmpty(t, rr.Header().Get("Retry-After"))
				body := bdd.UnmarshalResponse[exceededResponse](t, rr)
				assert.Equal(t, "rate_limit_exceeded", body.Error)
				assert.Positive(t, body.RetryAfter)
				assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimited.WithLabelValues("session_start")))
			})

			bdd.And(t, "another address is unaffected", func(t *testing.T) {
				rr := httptest.NewRecorder()
				h.ServeHTTP(rr, postFrom("198.51.100.4"))
				assert.Equal(t, http.StatusCreated, rr.Code)
				assert.Equal(t, "1", rr.Header().Get("X-RateLimit-Remaining"))
			})
		})
	})
}

func TestDisabledLimitPassesThrough(t *testing.T) {
	h := newLimitedHandler(t, 0)
	for range 10 {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, postFrom("203.0.113.7"))
		require.Equal(t, http.StatusCreated, rr.Code)
		assert.Empty(t, rr.Header().Get("X-RateLimit-Limit"))
	}
}

func TestSharedStoreAcrossMiddlewares(t *testing.T) {
	store := NewSlidingWindow()
	a := newLimitedHandler(t, 1, WithStore(store))
	b := newLimitedHandler(t, 1, WithStore(store))

	rr := httptest.NewRecorder()
	a.ServeHTTP(rr, postFrom("203.0.113.7"))
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = httptest.NewRecorder()
	b.ServeHTTP(rr, postFrom("203.0.113.7"))
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, 1, store.Len())
}
