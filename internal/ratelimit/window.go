// Package ratelimit throttles anonymous entry points per client.
package ratelimit

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Result is the outcome of a single Allow check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
	// RetryAfter is whole seconds until a slot frees up. Zero when allowed.
	RetryAfter int
}

// SlidingWindow counts hits per key over a trailing window. It is process
// local; replicas each enforce their own budget.
type SlidingWindow struct {
	mu      sync.Mutex
	buckets map[string][]time.Time
	now     func() time.Time
}

func NewSlidingWindow() *SlidingWindow {
	return &SlidingWindow{
		buckets: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Allow records a hit for key if fewer than limit hits landed inside window.
func (s *SlidingWindow) Allow(_ context.Context, key string, limit int, window time.Duration) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	hits := trim(s.buckets[key], now.Add(-window))

	if len(hits) >= limit {
		s.buckets[key] = hits
		resetAt := now.Add(window)
		if len(hits) > 0 {
			resetAt = hits[0].Add(window)
		}
		return Result{
			Allowed:    false,
			Limit:      limit,
			ResetAt:    resetAt,
			RetryAfter: retryAfter(resetAt.Sub(now)),
		}
	}

	hits = append(hits, now)
	s.buckets[key] = hits
	return Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - len(hits),
		ResetAt:   hits[0].Add(window),
	}
}

// Sweep drops keys with no hits inside window and reports how many went.
func (s *SlidingWindow) Sweep(window time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-window)
	removed := 0
	for key, hits := range s.buckets {
		if len(trim(hits, cutoff)) == 0 {
			delete(s.buckets, key)
			removed++
		}
	}
	return removed
}

// Len reports the number of tracked keys.
func (s *SlidingWindow) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}

// trim drops timestamps at or before cutoff. Hits are appended in order, so
// the first survivor ends the scan.
func trim(hits []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for ; i < len(hits); i++ {
		if hits[i].After(cutoff) {
			break
		}
	}
	return hits[i:]
}

func retryAfter(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}

// sanitizeKey stops a client-controlled value containing ':' from landing in
// a neighbouring bucket.
func sanitizeKey(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}
