// Package store persists session snapshots. Every store keeps one snapshot
// per session and reports a missing or expired one as sentinel.ErrNotFound.
package store

import (
	"context"
	"sync"
	"time"

	"drivematch/internal/session/models"
	id "drivematch/pkg/domain"
	"drivematch/pkg/platform/sentinel"
)

type memoryEntry struct {
	snapshot  models.Snapshot
	expiresAt time.Time
}

// InMemory keeps snapshots in a map guarded by a RWMutex. A zero TTL keeps
// snapshots until they are deleted.
type InMemory struct {
	mu      sync.RWMutex
	entries map[id.SessionID]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

type MemoryOption func(*InMemory)

func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(s *InMemory) {
		if now != nil {
			s.now = now
		}
	}
}

func NewInMemory(ttl time.Duration, opts ...MemoryOption) *InMemory {
	s := &InMemory{
		entries: make(map[id.SessionID]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InMemory) Save(_ context.Context, snap *models.Snapshot) error {
	entry := memoryEntry{snapshot: clone(snap)}
	if s.ttl > 0 {
		entry.expiresAt = s.now().Add(s.ttl)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[snap.SessionID] = entry
	return nil
}

func (s *InMemory) Load(_ context.Context, sessionID id.SessionID) (*models.Snapshot, error) {
	s.mu.RLock()
	entry, ok := s.entries[sessionID]
	s.mu.RUnlock()
	if !ok || (!entry.expiresAt.IsZero() && !s.now().Before(entry.expiresAt)) {
		return nil, sentinel.ErrNotFound
	}
	out := clone(&entry.snapshot)
	return &out, nil
}

func (s *InMemory) Delete(_ context.Context, sessionID id.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, sessionID)
	return nil
}

// Sweep drops expired snapshots and returns how many were removed.
func (s *InMemory) Sweep() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for k, e := range s.entries {
		if !e.expiresAt.IsZero() && !now.Before(e.expiresAt) {
			delete(s.entries, k)
			removed++
		}
	}
	return removed
}

func clone(snap *models.Snapshot) models.Snapshot {
	out := *snap
	out.History = append([]id.ScreenID(nil), snap.History...)
	out.Profile = snap.Profile.Clone()
	return out
}
