package session

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"strings"
	"sync"
	"time"

	discovery "drivematch/internal/discovery/models"
	discoveryService "drivematch/internal/discovery/service"
	"drivematch/internal/navigation"
	"drivematch/internal/platform/device"
	"drivematch/internal/platform/metrics"
	profile "drivematch/internal/profile/models"
	"drivematch/internal/session/models"
	"drivematch/internal/verification"
	"drivematch/internal/verification/authorities"
	id "drivematch/pkg/domain"
	dErrors "drivematch/pkg/domain-errors"
	"drivematch/pkg/platform/audit"
	"drivematch/pkg/platform/sentinel"
	"drivematch/pkg/requestcontext"
)

// ProfileStore persists one snapshot per session. Load returns
// sentinel.ErrNotFound for unknown or expired sessions.
type ProfileStore interface {
	Save(ctx context.Context, snap *models.Snapshot) error
	Load(ctx context.Context, sessionID id.SessionID) (*models.Snapshot, error)
	Delete(ctx context.Context, sessionID id.SessionID) error
}

// Discovery is the slice of the discovery service sessions use.
type Discovery interface {
	SearchForProfile(ctx context.Context, p *profile.Profile, filters discovery.Filters) ([]discovery.Candidate, error)
	Lookup(ctx context.Context, providerID id.ProviderID) (*discovery.Candidate, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// formSteps maps data-entry screens to the profile step they fill in.
// Advance refuses to leave them while the step is incomplete.
var formSteps = map[id.ScreenID]profile.Step{
	navigation.ScreenSeekerDocuments:      profile.StepSeekerDocuments,
	navigation.ScreenSeekerCategory:       profile.StepSeekerCategory,
	navigation.ScreenProviderCredentials:  profile.StepProviderCredentials,
	navigation.ScreenProviderVehicle:      profile.StepProviderVehicle,
	navigation.ScreenProviderAvailability: profile.StepProviderAvailability,
}

// Service is the contract the presentation layer drives. Operations on one
// session are serialized by that session's mutex; different sessions run
// independently.
type Service struct {
	resolver  verification.Resolver
	discovery Discovery
	flow      *navigation.Flow

	store        ProfileStore
	auditor      AuditPublisher
	hashKey      []byte
	metrics      *metrics.Metrics
	logger       *slog.Logger
	pipelineOpts []verification.Option
	observer     func(id.SessionID, verification.StepEvent)

	mu       sync.RWMutex
	sessions map[id.SessionID]*Session
}

type Option func(*Service)

// WithStore persists a snapshot after every successful mutation and restores
// sessions unknown to this process.
func WithStore(store ProfileStore) Option {
	return func(s *Service) { s.store = store }
}

// WithAuditor emits session and verification events to a. hashKey keys the
// document hash attached to verification events.
func WithAuditor(a AuditPublisher, hashKey []byte) Option {
	return func(s *Service) {
		s.auditor = a
		s.hashKey = hashKey
	}
}

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

func WithFlow(flow *navigation.Flow) Option {
	return func(s *Service) {
		if flow != nil {
			s.flow = flow
		}
	}
}

// WithPipelineOptions are applied to every verification pipeline the service
// builds.
func WithPipelineOptions(opts ...verification.Option) Option {
	return func(s *Service) { s.pipelineOpts = append(s.pipelineOpts, opts...) }
}

// WithStepObserver is told about every verification step transition of every
// session.
func WithStepObserver(fn func(id.SessionID, verification.StepEvent)) Option {
	return func(s *Service) { s.observer = fn }
}

func New(resolver verification.Resolver, discovery Discovery, opts ...Option) *Service {
	s := &Service{
		resolver:  resolver,
		discovery: discovery,
		flow:      navigation.DefaultFlow(),
		logger:    slog.Default(),
		sessions:  make(map[id.SessionID]*Session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens a new session at the welcome screen.
func (s *Service) Start(ctx context.Context) (*View, error) {
	now := requestcontext.Now(ctx)
	sess := newSession(id.NewSessionID(), now, device.ParseUserAgent(requestcontext.UserAgent(ctx)))

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	s.metrics.IncSessionsStarted()
	s.logger.InfoContext(ctx, "session started",
		"session_id", sess.ID.String(),
		"request_id", requestcontext.RequestID(ctx),
		"device", sess.Device,
	)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	s.emit(ctx, sess, audit.EventSessionStarted, "", "")
	s.persist(ctx, sess)
	return sess.view(), nil
}

// View returns the current state of a session.
func (s *Service) View(ctx context.Context, sessionID id.SessionID) (*View, error) {
	var out *View
	err := s.read(ctx, sessionID, func(sess *Session) error {
		out = sess.view()
		return nil
	})
	return out, err
}

// End drops a session from memory and from the store.
func (s *Service) End(ctx context.Context, sessionID id.SessionID) error {
	sess, err := s.lookup(ctx, sessionID)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.reset()

	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	s.metrics.DecActiveSessions()

	if s.store != nil {
		if err := s.store.Delete(ctx, sessionID); err != nil {
			s.logger.WarnContext(ctx, "failed to delete session snapshot",
				"session_id", sessionID.String(),
				"error", err,
			)
		}
	}
	return nil
}

// Sweep evicts sessions nobody touched within idle of the request time in
// ctx, cancelling any run they still hold. Snapshots are left to the store's
// own expiry, so an evicted session can still be restored. Returns the number
// evicted; an idle of zero or less evicts nothing.
func (s *Service) Sweep(ctx context.Context, idle time.Duration) int {
	if idle <= 0 {
		return 0
	}
	cutoff := requestcontext.Now(ctx).Add(-idle)

	s.mu.RLock()
	candidates := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		candidates = append(candidates, sess)
	}
	s.mu.RUnlock()

	evicted := 0
	for _, sess := range candidates {
		sess.mu.Lock()
		if sess.touched.Before(cutoff) {
			if sess.pipeline != nil {
				sess.pipeline.Cancel()
			}
			s.mu.Lock()
			if s.sessions[sess.ID] == sess {
				delete(s.sessions, sess.ID)
				s.metrics.DecActiveSessions()
				evicted++
			}
			s.mu.Unlock()
		}
		sess.mu.Unlock()
	}
	if evicted > 0 {
		s.logger.InfoContext(ctx, "idle sessions evicted", "count", evicted)
	}
	return evicted
}

// Active is the number of sessions held in memory.
func (s *Service) Active() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// SelectActor sets the actor type once per session.
func (s *Service) SelectActor(ctx context.Context, sessionID id.SessionID, actor id.ActorType) (*View, error) {
	var out *View
	err := s.mutate(ctx, sessionID, func(sess *Session) error {
		if owner := s.flow.Owner(sess.nav.Current()); owner != "" && owner != actor {
			return dErrors.Newf(dErrors.CodeForbidden, "screen %s is not available to %s", sess.nav.Current(), actor)
		}
		if err := sess.profile.SelectActor(actor, requestcontext.Now(ctx)); err != nil {
			return err
		}
		if sess.pipeline == nil || sess.pipeline.Actor() != actor {
			p, err := s.newPipeline(sess)
			if err != nil {
				return err
			}
			sess.pipeline = p
		}
		s.emit(ctx, sess, audit.EventActorSelected, "", "")
		out = sess.view()
		return nil
	})
	return out, err
}

// GoTo navigates to screen if the flow allows it from the current screen.
func (s *Service) GoTo(ctx context.Context, sessionID id.SessionID, screen id.ScreenID) (*View, error) {
	var out *View
	err := s.mutate(ctx, sessionID, func(sess *Session) error {
		from := sess.nav.Current()
		if err := s.flow.Check(from, screen, sess.profile.Actor, sess.verified()); err != nil {
			return err
		}
		sess.leave(from)
		if err := sess.nav.GoTo(screen); err != nil {
			return err
		}
		out = sess.view()
		return nil
	})
	return out, err
}

// GoBack returns to the previous screen. At the root it changes nothing.
func (s *Service) GoBack(ctx context.Context, sessionID id.SessionID) (*View, error) {
	var out *View
	err := s.mutate(ctx, sessionID, func(sess *Session) error {
		from := sess.nav.Current()
		if _, moved := sess.nav.GoBack(); moved {
			sess.leave(from)
		}
		out = sess.view()
		return nil
	})
	return out, err
}

// Advance moves to the flow's default next screen. Data-entry screens can
// only be left once their step is complete.
func (s *Service) Advance(ctx context.Context, sessionID id.SessionID) (*View, error) {
	var out *View
	err := s.mutate(ctx, sessionID, func(sess *Session) error {
		from := sess.nav.Current()
		if step, ok := formSteps[from]; ok {
			if missing := sess.profile.MissingFor(step); len(missing) > 0 {
				return dErrors.Newf(dErrors.CodePreconditionFailed, "missing fields: %s", strings.Join(missing, ", "))
			}
		}
		next, err := s.flow.Next(from, sess.profile.Actor, sess.verified())
		if err != nil {
			return err
		}
		if err := s.flow.Check(from, next, sess.profile.Actor, sess.verified()); err != nil {
			return err
		}
		sess.leave(from)
		if err := sess.nav.GoTo(next); err != nil {
			return err
		}
		out = sess.view()
		return nil
	})
	return out, err
}

// Reset abandons all in-progress state and returns to welcome.
func (s *Service) Reset(ctx context.Context, sessionID id.SessionID) (*View, error) {
	var out *View
	err := s.mutate(ctx, sessionID, func(sess *Session) error {
		actor := sess.profile.Actor
		sess.reset()
		s.metrics.IncSessionResets()
		s.logger.InfoContext(ctx, "session reset",
			"session_id", sess.ID.String(),
			"request_id", requestcontext.RequestID(ctx),
			"previous_actor", string(actor),
		)
		s.emit(ctx, sess, audit.EventSessionReset, "", string(actor))
		out = sess.view()
		return nil
	})
	return out, err
}

// MergeProfile applies a partial update to the session's profile.
func (s *Service) MergeProfile(ctx context.Context, sessionID id.SessionID, patch profile.Patch) (*View, error) {
	var out *View
	err := s.mutate(ctx, sessionID, func(sess *Session) error {
		before := sess.checkedFields()
		if err := sess.profile.Merge(patch, requestcontext.CurrentYear(ctx), requestcontext.Now(ctx)); err != nil {
			return err
		}
		if sess.pipeline != nil && !maps.Equal(before, sess.checkedFields()) {
			sess.pipeline.Invalidate()
			sess.runDone = nil
			sess.lastResult = nil
			s.logger.InfoContext(ctx, "verified fields changed, verification reset",
				"session_id", sess.ID.String(),
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		s.emit(ctx, sess, audit.EventProfileMerged, "", "")
		out = sess.view()
		return nil
	})
	return out, err
}

// Profile returns a copy of the profile and the fields still missing.
func (s *Service) Profile(ctx context.Context, sessionID id.SessionID) (*profile.Profile, []string, error) {
	var (
		p       *profile.Profile
		missing []string
	)
	err := s.read(ctx, sessionID, func(sess *Session) error {
		p = sess.profile.Clone()
		missing = sess.profile.MissingFields()
		return nil
	})
	return p, missing, err
}

// StartVerification launches a run in the background and returns the initial
// statuses. The run outlives the request that started it; leaving the
// validation screen or resetting the session cancels it.
func (s *Service) StartVerification(ctx context.Context, sessionID id.SessionID) (*VerificationView, error) {
	var out *VerificationView
	err := s.read(ctx, sessionID, func(sess *Session) error {
		if sess.profile.Actor == "" {
			return dErrors.New(dErrors.CodePreconditionFailed, "actor type must be selected first")
		}
		if sess.nav.Current() != navigation.ScreenDocumentValidation {
			return dErrors.Newf(dErrors.CodePreconditionFailed, "verification runs on the %s screen", navigation.ScreenDocumentValidation)
		}
		required := profile.StepSeekerDocuments
		if sess.profile.Actor == id.ActorProvider {
			required = profile.StepProviderCredentials
		}
		if missing := sess.profile.MissingFor(required); len(missing) > 0 {
			return dErrors.Newf(dErrors.CodePreconditionFailed, "missing fields: %s", strings.Join(missing, ", "))
		}
		if sess.pipeline == nil {
			p, err := s.newPipeline(sess)
			if err != nil {
				return err
			}
			sess.pipeline = p
		}

		results := sess.pipeline.Start(context.WithoutCancel(ctx))
		done := make(chan struct{})
		sess.runDone = done
		sess.lastResult = nil
		go s.await(ctx, sess, results, done)

		out = sess.verificationView()
		return nil
	})
	return out, err
}

// await records the outcome of a run unless a newer run replaced it.
func (s *Service) await(ctx context.Context, sess *Session, results <-chan verification.Result, done chan struct{}) {
	defer close(done)
	res := <-results

	sess.mu.Lock()
	current := sess.runDone == done
	if current && res.Err == nil && !res.Canceled {
		sess.lastResult = &res
	}
	sess.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	switch {
	case res.Err != nil:
		s.logger.WarnContext(ctx, "verification could not start",
			"session_id", sess.ID.String(),
			"error", res.Err,
		)
	case res.Canceled || !current:
		s.logger.InfoContext(ctx, "verification run discarded",
			"session_id", sess.ID.String(),
			"generation", res.Generation,
		)
	default:
		s.logger.InfoContext(ctx, "verification run finished",
			"session_id", sess.ID.String(),
			"passed", res.Passed,
			"failed_step", string(res.FailedStep),
		)
	}
}

// AwaitVerification blocks until the latest run finishes or ctx ends.
func (s *Service) AwaitVerification(ctx context.Context, sessionID id.SessionID) (*VerificationView, error) {
	sess, err := s.lookup(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	done := sess.runDone
	sess.mu.Unlock()
	if done == nil {
		return nil, dErrors.New(dErrors.CodePreconditionFailed, "no verification run started")
	}

	select {
	case <-done:
	case <-ctx.Done():
		return nil, dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "verification still running")
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.verificationView(), nil
}

// VerificationStatus returns the ordered step statuses of the latest run.
func (s *Service) VerificationStatus(ctx context.Context, sessionID id.SessionID) (*VerificationView, error) {
	var out *VerificationView
	err := s.read(ctx, sessionID, func(sess *Session) error {
		out = sess.verificationView()
		return nil
	})
	return out, err
}

// CancelVerification abandons the in-flight run. Reports whether one was
// running.
func (s *Service) CancelVerification(ctx context.Context, sessionID id.SessionID) (bool, *VerificationView, error) {
	var (
		canceled bool
		out      *VerificationView
	)
	err := s.read(ctx, sessionID, func(sess *Session) error {
		if sess.pipeline != nil {
			canceled = sess.pipeline.Cancel()
		}
		out = sess.verificationView()
		return nil
	})
	return canceled, out, err
}

// Discover lists providers matching the seeker's category and filters.
func (s *Service) Discover(ctx context.Context, sessionID id.SessionID, filters discovery.Filters) ([]discovery.Candidate, error) {
	var out []discovery.Candidate
	err := s.read(ctx, sessionID, func(sess *Session) error {
		found, err := s.discovery.SearchForProfile(ctx, sess.profile, filters)
		if err != nil {
			return err
		}
		out = found
		return nil
	})
	return out, err
}

// SelectProvider stores a snapshot of the chosen listing in the seeker's
// profile. The listing must serve the seeker's category.
func (s *Service) SelectProvider(ctx context.Context, sessionID id.SessionID, providerID id.ProviderID) (*View, error) {
	var out *View
	err := s.mutate(ctx, sessionID, func(sess *Session) error {
		candidate, err := s.discovery.Lookup(ctx, providerID)
		if err != nil {
			return err
		}
		if seeker := sess.profile.Seeker; seeker != nil && seeker.Category != "" && !candidate.Serves(seeker.Category) {
			return dErrors.Newf(dErrors.CodeValidation, "provider does not teach category %s", seeker.Category)
		}
		if err := sess.profile.SelectProvider(discoveryService.Snapshot(*candidate), requestcontext.Now(ctx)); err != nil {
			return err
		}
		s.emit(ctx, sess, audit.EventProviderSelected, "", candidate.ID.String())
		out = sess.view()
		return nil
	})
	return out, err
}

// ScheduleSession books a lesson with the selected provider.
func (s *Service) ScheduleSession(ctx context.Context, sessionID id.SessionID, date time.Time, slot string) (profile.Lesson, error) {
	var out profile.Lesson
	err := s.mutate(ctx, sessionID, func(sess *Session) error {
		lesson, err := sess.profile.ScheduleLesson(date, slot, requestcontext.Now(ctx))
		if err != nil {
			return err
		}
		s.emit(ctx, sess, audit.EventLessonScheduled, "", lesson.Date.Format(time.DateOnly)+" "+lesson.TimeSlot)
		out = lesson
		return nil
	})
	return out, err
}

// StartLiveSession begins a lesson; only one may be active.
func (s *Service) StartLiveSession(ctx context.Context, sessionID id.SessionID, counterpart string) (profile.LiveSession, error) {
	var out profile.LiveSession
	err := s.mutate(ctx, sessionID, func(sess *Session) error {
		live, err := sess.profile.StartLiveSession(counterpart, requestcontext.Now(ctx))
		if err != nil {
			return err
		}
		s.emit(ctx, sess, audit.EventLiveSessionStarted, "", "")
		out = live
		return nil
	})
	return out, err
}

// EndLiveSession closes the active lesson with a rating.
func (s *Service) EndLiveSession(ctx context.Context, sessionID id.SessionID, rating int, comment string) (profile.CompletedSession, error) {
	var out profile.CompletedSession
	err := s.mutate(ctx, sessionID, func(sess *Session) error {
		done, err := sess.profile.EndLiveSession(rating, comment, requestcontext.Now(ctx))
		if err != nil {
			return err
		}
		s.emit(ctx, sess, audit.EventLiveSessionEnded, "", "")
		out = done
		return nil
	})
	return out, err
}

func (s *Service) newPipeline(sess *Session) (*verification.Pipeline, error) {
	opts := []verification.Option{verification.WithLogger(s.logger)}
	if s.auditor != nil {
		opts = append(opts, verification.WithAuditor(s.auditor, s.hashKey))
	}
	opts = append(opts, s.pipelineOpts...)
	if s.observer != nil {
		sessionID := sess.ID
		opts = append(opts, verification.WithObserver(func(ev verification.StepEvent) {
			s.observer(sessionID, ev)
		}))
	}
	// The subject is read when a run starts, under the session lock.
	subject := func() (authorities.Subject, error) {
		return verification.SubjectFromProfile(sess.profile)
	}
	return verification.New(sess.ID, sess.profile.Actor, s.resolver, subject, opts...)
}

// lookup finds a live session or restores it from the store.
func (s *Service) lookup(ctx context.Context, sessionID id.SessionID) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if ok {
		return sess, nil
	}
	if s.store == nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "session not found")
	}

	snap, err := s.store.Load(ctx, sessionID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "session not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "session store unavailable")
	}
	restored, err := restore(snap)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "corrupt session snapshot")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.sessions[sessionID]; ok {
		return existing, nil
	}
	restored.touched = requestcontext.Now(ctx)
	s.sessions[sessionID] = restored
	s.metrics.IncActiveSessions()
	s.logger.InfoContext(ctx, "session restored",
		"session_id", sessionID.String(),
		"screen", restored.nav.Current().String(),
	)
	return restored, nil
}

// read runs fn under the session lock without persisting.
func (s *Service) read(ctx context.Context, sessionID id.SessionID, fn func(*Session) error) error {
	sess, err := s.lookup(ctx, sessionID)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.touched = requestcontext.Now(ctx)
	return fn(sess)
}

// mutate runs fn under the session lock and persists the session when fn
// succeeds.
func (s *Service) mutate(ctx context.Context, sessionID id.SessionID, fn func(*Session) error) error {
	sess, err := s.lookup(ctx, sessionID)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.touched = requestcontext.Now(ctx)
	if err := fn(sess); err != nil {
		return err
	}
	s.persist(ctx, sess)
	return nil
}

// persist is best effort: a failed save is logged and the operation still
// succeeds.
func (s *Service) persist(ctx context.Context, sess *Session) {
	if s.store == nil {
		return
	}
	if err := s.store.Save(ctx, sess.snapshot(requestcontext.Now(ctx))); err != nil {
		s.logger.WarnContext(ctx, "failed to persist session snapshot",
			"session_id", sess.ID.String(),
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
}

func (s *Service) emit(ctx context.Context, sess *Session, action audit.AuditEvent, decision, reason string) {
	if s.auditor == nil {
		return
	}
	err := s.auditor.Emit(ctx, audit.Event{
		SessionID: sess.ID,
		Actor:     string(sess.profile.Actor),
		Action:    string(action),
		Decision:  decision,
		Reason:    reason,
		RequestID: requestcontext.RequestID(ctx),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"session_id", sess.ID.String(),
			"action", string(action),
			"error", err,
		)
	}
}
