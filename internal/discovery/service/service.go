package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"drivematch/internal/discovery"
	"drivematch/internal/discovery/metrics"
	"drivematch/internal/discovery/models"
	profile "drivematch/internal/profile/models"
	id "drivematch/pkg/domain"
	dErrors "drivematch/pkg/domain-errors"
	"drivematch/pkg/platform/sentinel"
	"drivematch/pkg/requestcontext"
)

// Directory is the read-only source of provider listings. It is read at
// query time; nothing is cached between searches.
type Directory interface {
	List(ctx context.Context) ([]models.Candidate, error)
	// Get returns sentinel.ErrNotFound for an unknown provider.
	Get(ctx context.Context, providerID id.ProviderID) (*models.Candidate, error)
}

type Service struct {
	directory Directory
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

type Option func(*Service)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func New(directory Directory, opts ...Option) *Service {
	s := &Service{directory: directory, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search filters the directory for category. The current year comes from the
// request context so age rules are deterministic under test.
func (s *Service) Search(ctx context.Context, category id.Category, filters models.Filters) ([]models.Candidate, error) {
	if filters.SortBy == models.SortDistance && filters.Origin == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "sorting by distance requires an origin")
	}
	if filters.RadiusKm != nil && *filters.RadiusKm < 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "radius must not be negative")
	}

	start := time.Now()
	candidates, err := s.directory.List(ctx)
	s.metrics.ObserveDirectory(time.Since(start), err)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to read provider directory",
			"session_id", requestcontext.SessionID(ctx).String(),
			"error", err,
		)
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "provider directory unavailable")
	}

	result := discovery.Filter(candidates, category, filters, requestcontext.CurrentYear(ctx))
	s.metrics.ObserveSearch(string(category), len(result))
	s.logger.InfoContext(ctx, "provider search",
		"session_id", requestcontext.SessionID(ctx).String(),
		"category", string(category),
		"candidates", len(candidates),
		"matches", len(result),
	)
	return result, nil
}

// SearchForProfile fills the category and, when unset, the transmission from
// the seeker's profile before searching.
func (s *Service) SearchForProfile(ctx context.Context, p *profile.Profile, filters models.Filters) ([]models.Candidate, error) {
	if p == nil || p.Actor != id.ActorSeeker || p.Seeker == nil {
		return nil, dErrors.New(dErrors.CodePreconditionFailed, "only seekers search for providers")
	}
	if p.Seeker.Category == "" {
		return nil, dErrors.New(dErrors.CodePreconditionFailed, "category not selected")
	}
	if filters.Transmission == "" {
		filters.Transmission = p.Seeker.Transmission
	}
	return s.Search(ctx, p.Seeker.Category, filters)
}

// Lookup returns a single listing for selection.
func (s *Service) Lookup(ctx context.Context, providerID id.ProviderID) (*models.Candidate, error) {
	c, err := s.directory.Get(ctx, providerID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "provider not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "provider directory unavailable")
	}
	return c, nil
}

// Snapshot copies the fields a seeker's profile keeps about a chosen provider.
func Snapshot(c models.Candidate) profile.ProviderSnapshot {
	return profile.ProviderSnapshot{
		ID:           c.ID,
		Name:         c.Name,
		HourlyPrice:  c.HourlyPrice,
		VehicleModel: c.VehicleModel,
		Transmission: c.Transmission,
		Rating:       c.Rating,
	}
}
