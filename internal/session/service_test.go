package session_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	discovery "drivematch/internal/discovery/models"
	discoveryService "drivematch/internal/discovery/service"
	"drivematch/internal/discovery/store/memory"
	"drivematch/internal/navigation"
	"drivematch/internal/platform/metrics"
	profile "drivematch/internal/profile/models"
	"drivematch/internal/session"
	"drivematch/internal/session/models"
	"drivematch/internal/session/store"
	"drivematch/internal/verification"
	"drivematch/internal/verification/authorities"
	id "drivematch/pkg/domain"
	dErrors "drivematch/pkg/domain-errors"
	"drivematch/pkg/platform/audit/publisher"
	auditmemory "drivematch/pkg/platform/audit/store/memory"
	"drivematch/pkg/requestcontext"
)

var (
	today    = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	anaPaula = mustProviderID("6f1c1d4e-8a57-4c1b-9a51-2d0f7f0b0a02")
	roberto  = mustProviderID("6f1c1d4e-8a57-4c1b-9a51-2d0f7f0b0a03")
)

func mustProviderID(s string) id.ProviderID {
	p, err := id.ParseProviderID(s)
	if err != nil {
		panic(err)
	}
	return p
}

func ptr[T any](v T) *T { return &v }

var seekerDocuments = profile.Patch{Seeker: &profile.SeekerPatch{
	IDNumber:            ptr("123456789"),
	TaxID:               ptr("529.982.247-25"),
	RegistryNumber:      ptr("SP123456789"),
	MedicalClearanceRef: ptr("ladv-2026-001"),
}}

var providerCredentials = profile.Patch{Provider: &profile.ProviderPatch{
	LicenseNumber:       ptr("INST-0042"),
	RegistrationNumber:  ptr("EAR-7781"),
	DrivingPermitNumber: ptr("04512345678"),
}}

type ServiceSuite struct {
	suite.Suite
	ctx      context.Context
	identity *authorities.Scripted
	registry *authorities.Scripted
	third    *authorities.Scripted
	audit    *auditmemory.InMemoryStore
	store    *store.InMemory
	metrics  *metrics.Metrics
	service  *session.Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = requestcontext.WithTime(context.Background(), today)
	s.identity = authorities.NewScripted("gov-identity", authorities.KindIdentity)
	s.registry = authorities.NewScripted("driving-registry", authorities.KindDrivingRegistry)
	s.third = authorities.NewScripted("medical", authorities.KindMedicalAptitude)
	s.audit = auditmemory.NewInMemoryStore()
	s.store = store.NewInMemory(time.Hour)
	s.metrics = metrics.NewWithRegisterer(prometheus.NewRegistry())
	s.service = s.newService(s.identity, s.registry, s.third)
}

func (s *ServiceSuite) newService(auths ...authorities.Authority) *session.Service {
	reg := authorities.NewRegistry()
	for _, a := range auths {
		s.Require().NoError(reg.Register(a))
	}
	dir, err := memory.Default()
	s.Require().NoError(err)
	return session.New(reg, discoveryService.New(dir),
		session.WithStore(s.store),
		session.WithAuditor(publisher.NewPublisher(s.audit), []byte("test-key")),
		session.WithMetrics(s.metrics),
		session.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

func (s *ServiceSuite) startAs(actor id.ActorType) id.SessionID {
	v, err := s.service.Start(s.ctx)
	s.Require().NoError(err)
	_, err = s.service.SelectActor(s.ctx, v.SessionID, actor)
	s.Require().NoError(err)
	return v.SessionID
}

// toValidation walks a seeker to the validation screen with complete documents.
func (s *ServiceSuite) toValidation(actor id.ActorType) id.SessionID {
	sid := s.startAs(actor)
	_, err := s.service.Advance(s.ctx, sid)
	s.Require().NoError(err)
	patch := seekerDocuments
	if actor == id.ActorProvider {
		patch = providerCredentials
	}
	_, err = s.service.MergeProfile(s.ctx, sid, patch)
	s.Require().NoError(err)
	v, err := s.service.Advance(s.ctx, sid)
	s.Require().NoError(err)
	s.Require().Equal(navigation.ScreenDocumentValidation, v.Screen)
	return sid
}

func (s *ServiceSuite) verify(sid id.SessionID) *session.VerificationView {
	_, err := s.service.StartVerification(s.ctx, sid)
	s.Require().NoError(err)
	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()
	v, err := s.service.AwaitVerification(ctx, sid)
	s.Require().NoError(err)
	return v
}

func (s *ServiceSuite) actions(sid id.SessionID) []string {
	events, err := s.audit.ListBySession(context.Background(), sid)
	s.Require().NoError(err)
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Action
	}
	return out
}

func statuses(v *session.VerificationView) []verification.Status {
	out := make([]verification.Status, len(v.Steps))
	for i, r := range v.Steps {
		out[i] = r.Status
	}
	return out
}

func (s *ServiceSuite) TestSeekerOnboardingEndToEnd() {
	sid := s.toValidation(id.ActorSeeker)

	result := s.verify(sid)
	s.True(result.Passed)
	s.Equal([]verification.Status{verification.StatusSuccess, verification.StatusSuccess, verification.StatusSuccess}, statuses(result))

	v, err := s.service.Advance(s.ctx, sid)
	s.Require().NoError(err)
	s.Equal(navigation.ScreenSeekerCategory, v.Screen)

	_, err = s.service.MergeProfile(s.ctx, sid, profile.Patch{Seeker: &profile.SeekerPatch{
		Category:     ptr(id.CategoryB),
		Transmission: ptr(id.TransmissionAutomatic),
	}})
	s.Require().NoError(err)
	v, err = s.service.Advance(s.ctx, sid)
	s.Require().NoError(err)
	s.Equal(navigation.ScreenSeekerSearch, v.Screen)

	found, err := s.service.Discover(s.ctx, sid, discovery.Filters{})
	s.Require().NoError(err)
	s.Require().Len(found, 1)
	s.Equal(anaPaula, found[0].ID)

	v, err = s.service.SelectProvider(s.ctx, sid, anaPaula)
	s.Require().NoError(err)
	s.Equal("Ana Paula Lima", v.Profile.Seeker.SelectedProvider.Name)

	v, err = s.service.Advance(s.ctx, sid)
	s.Require().NoError(err)
	s.Equal(navigation.ScreenSeekerSchedule, v.Screen)

	lesson, err := s.service.ScheduleSession(s.ctx, sid, today.AddDate(0, 0, 1), "09:00")
	s.Require().NoError(err)
	s.Equal(95.0, lesson.Price)

	v, err = s.service.Advance(s.ctx, sid)
	s.Require().NoError(err)
	s.Equal(navigation.ScreenSeekerHome, v.Screen)
	s.Empty(v.Missing)

	s.Subset(s.actions(sid), []string{
		"session_started", "actor_selected", "profile_merged",
		"verification_started", "verification_passed",
		"provider_selected", "lesson_scheduled",
	})
	s.Equal(1.0, promtest.ToFloat64(s.metrics.SessionsStarted))
}

func (s *ServiceSuite) TestAdvanceRequiresCompleteStep() {
	sid := s.startAs(id.ActorSeeker)
	_, err := s.service.Advance(s.ctx, sid)
	s.Require().NoError(err)

	_, err = s.service.Advance(s.ctx, sid)
	s.True(dErrors.HasCode(err, dErrors.CodePreconditionFailed))
	s.Contains(err.Error(), "tax_id")

	v, err := s.service.View(s.ctx, sid)
	s.Require().NoError(err)
	s.Equal(navigation.ScreenSeekerDocuments, v.Screen)
}

func (s *ServiceSuite) TestAdvanceWithoutActor() {
	v, err := s.service.Start(s.ctx)
	s.Require().NoError(err)

	_, err = s.service.Advance(s.ctx, v.SessionID)
	s.True(dErrors.HasCode(err, dErrors.CodePreconditionFailed))
}

func (s *ServiceSuite) TestFailedStepBlocksNavigationUntilRestart() {
	s.registry = authorities.NewScripted("driving-registry", authorities.KindDrivingRegistry,
		authorities.NewAuthorityError(authorities.ErrorRejected, "driving-registry", "registry number unknown", nil),
		nil,
	)
	s.service = s.newService(s.identity, s.registry, s.third)
	sid := s.toValidation(id.ActorSeeker)

	result := s.verify(sid)
	s.False(result.Passed)
	s.Equal(verification.StepDrivingRegistry, result.FailedStep)
	s.Equal([]verification.Status{verification.StatusSuccess, verification.StatusFailed, verification.StatusIdle}, statuses(result))

	_, err := s.service.Advance(s.ctx, sid)
	s.True(dErrors.HasCode(err, dErrors.CodePreconditionFailed))
	_, err = s.service.GoTo(s.ctx, sid, navigation.ScreenSeekerCategory)
	s.True(dErrors.HasCode(err, dErrors.CodePreconditionFailed))

	result = s.verify(sid)
	s.True(result.Passed)
	s.Empty(result.FailedStep)

	v, err := s.service.GoTo(s.ctx, sid, navigation.ScreenSeekerCategory)
	s.Require().NoError(err)
	s.Equal(navigation.ScreenSeekerCategory, v.Screen)
}

func (s *ServiceSuite) TestEditingVerifiedDocumentsRequiresNewRun() {
	sid := s.toValidation(id.ActorSeeker)
	s.Require().True(s.verify(sid).Passed)

	_, err := s.service.GoBack(s.ctx, sid)
	s.Require().NoError(err)
	v, err := s.service.MergeProfile(s.ctx, sid, profile.Patch{Seeker: &profile.SeekerPatch{
		IDNumber:       ptr("987654321"),
		TaxID:          ptr("111.444.777-35"),
		RegistryNumber: ptr("RJ987654321"),
	}})
	s.Require().NoError(err)
	s.False(v.Verified)

	v, err = s.service.Advance(s.ctx, sid)
	s.Require().NoError(err)
	s.Equal(navigation.ScreenDocumentValidation, v.Screen)
	s.False(v.Verified)

	_, err = s.service.Advance(s.ctx, sid)
	s.True(dErrors.HasCode(err, dErrors.CodePreconditionFailed))
	status, err := s.service.VerificationStatus(s.ctx, sid)
	s.Require().NoError(err)
	s.Equal([]verification.Status{verification.StatusIdle, verification.StatusIdle, verification.StatusIdle}, statuses(status))
	s.Equal(1, s.identity.Calls())

	s.True(s.verify(sid).Passed)
	s.Equal(2, s.identity.Calls())
	v, err = s.service.Advance(s.ctx, sid)
	s.Require().NoError(err)
	s.Equal(navigation.ScreenSeekerCategory, v.Screen)
}

func (s *ServiceSuite) TestMergeOutsideCheckedFieldsKeepsVerification() {
	sid := s.toValidation(id.ActorSeeker)
	s.Require().True(s.verify(sid).Passed)

	v, err := s.service.MergeProfile(s.ctx, sid, profile.Patch{Seeker: &profile.SeekerPatch{
		ProofOfResidenceRef: ptr("utility-bill-2026"),
		TaxID:               ptr("529.982.247-25"),
	}})
	s.Require().NoError(err)
	s.True(v.Verified)
}

func (s *ServiceSuite) TestLeavingValidationCancelsRun() {
	s.identity.Gate = make(chan struct{})
	sid := s.toValidation(id.ActorSeeker)

	started, err := s.service.StartVerification(s.ctx, sid)
	s.Require().NoError(err)
	s.True(started.Running)

	v, err := s.service.GoBack(s.ctx, sid)
	s.Require().NoError(err)
	s.Equal(navigation.ScreenSeekerDocuments, v.Screen)

	status, err := s.service.VerificationStatus(s.ctx, sid)
	s.Require().NoError(err)
	s.False(status.Running)
	s.Equal([]verification.Status{verification.StatusIdle, verification.StatusIdle, verification.StatusIdle}, statuses(status))

	close(s.identity.Gate)
	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()
	after, err := s.service.AwaitVerification(ctx, sid)
	s.Require().NoError(err)
	s.False(after.Passed)
	s.Equal([]verification.Status{verification.StatusIdle, verification.StatusIdle, verification.StatusIdle}, statuses(after))
	s.Equal(0, s.registry.Calls())
}

func (s *ServiceSuite) TestCancelVerification() {
	s.identity.Gate = make(chan struct{})
	defer close(s.identity.Gate)
	sid := s.toValidation(id.ActorSeeker)

	_, err := s.service.StartVerification(s.ctx, sid)
	s.Require().NoError(err)

	canceled, v, err := s.service.CancelVerification(s.ctx, sid)
	s.Require().NoError(err)
	s.True(canceled)
	s.False(v.Running)

	canceled, _, err = s.service.CancelVerification(s.ctx, sid)
	s.Require().NoError(err)
	s.False(canceled)
}

func (s *ServiceSuite) TestStartVerificationPreconditions() {
	s.Run("wrong screen", func() {
		sid := s.startAs(id.ActorSeeker)
		_, err := s.service.StartVerification(s.ctx, sid)
		s.True(dErrors.HasCode(err, dErrors.CodePreconditionFailed))
	})

	s.Run("no actor", func() {
		v, err := s.service.Start(s.ctx)
		s.Require().NoError(err)
		_, err = s.service.StartVerification(s.ctx, v.SessionID)
		s.True(dErrors.HasCode(err, dErrors.CodePreconditionFailed))
	})

	s.Run("no run to await", func() {
		sid := s.startAs(id.ActorSeeker)
		_, err := s.service.AwaitVerification(s.ctx, sid)
		s.True(dErrors.HasCode(err, dErrors.CodePreconditionFailed))
	})
}

func (s *ServiceSuite) TestProviderVerificationUsesCredentialStep() {
	credential := authorities.NewScripted("instructor-credential", authorities.KindInstructorCredential)
	s.service = s.newService(s.identity, s.registry, credential)
	sid := s.toValidation(id.ActorProvider)

	result := s.verify(sid)
	s.True(result.Passed)
	s.Equal(verification.StepInstructorCredential, result.Steps[2].ID)
	s.Equal(1, credential.Calls())

	v, err := s.service.Advance(s.ctx, sid)
	s.Require().NoError(err)
	s.Equal(navigation.ScreenProviderVehicle, v.Screen)
}

func (s *ServiceSuite) TestResetAbandonsEverything() {
	s.identity.Gate = make(chan struct{})
	defer close(s.identity.Gate)
	sid := s.toValidation(id.ActorSeeker)
	_, err := s.service.StartVerification(s.ctx, sid)
	s.Require().NoError(err)

	v, err := s.service.Reset(s.ctx, sid)
	s.Require().NoError(err)
	s.Equal(navigation.ScreenWelcome, v.Screen)
	s.Equal([]id.ScreenID{navigation.ScreenWelcome}, v.History)
	s.Empty(v.Actor)
	s.False(v.Verified)

	status, err := s.service.VerificationStatus(s.ctx, sid)
	s.Require().NoError(err)
	s.Empty(status.Steps)

	_, err = s.service.SelectActor(s.ctx, sid, id.ActorProvider)
	s.NoError(err)
	s.Equal(1.0, promtest.ToFloat64(s.metrics.SessionResets))
}

func (s *ServiceSuite) TestActorIsSetOnce() {
	sid := s.startAs(id.ActorSeeker)
	_, err := s.service.SelectActor(s.ctx, sid, id.ActorProvider)
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func (s *ServiceSuite) TestGoToChecksFlow() {
	sid := s.startAs(id.ActorSeeker)

	_, err := s.service.GoTo(s.ctx, sid, navigation.ScreenProviderCredentials)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	_, err = s.service.GoTo(s.ctx, sid, navigation.ScreenSeekerHome)
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	v, err := s.service.GoTo(s.ctx, sid, navigation.ScreenSeekerDocuments)
	s.Require().NoError(err)
	s.True(v.CanGoBack)

	v, err = s.service.GoBack(s.ctx, sid)
	s.Require().NoError(err)
	s.Equal(navigation.ScreenWelcome, v.Screen)

	v, err = s.service.GoBack(s.ctx, sid)
	s.Require().NoError(err)
	s.Equal([]id.ScreenID{navigation.ScreenWelcome}, v.History)
}

func (s *ServiceSuite) TestOwnedScreensNeedAnActor() {
	v, err := s.service.Start(s.ctx)
	s.Require().NoError(err)

	_, err = s.service.GoTo(s.ctx, v.SessionID, navigation.ScreenSeekerDocuments)
	s.True(dErrors.HasCode(err, dErrors.CodePreconditionFailed))

	v, err = s.service.View(s.ctx, v.SessionID)
	s.Require().NoError(err)
	s.Equal(navigation.ScreenWelcome, v.Screen)
}

func (s *ServiceSuite) TestSelectActorRejectsScreenOfOtherActor() {
	sid := id.NewSessionID()
	s.Require().NoError(s.store.Save(s.ctx, &models.Snapshot{
		SessionID: sid,
		History:   []id.ScreenID{navigation.ScreenWelcome, navigation.ScreenSeekerDocuments},
		CreatedAt: today,
		SavedAt:   today,
	}))

	_, err := s.service.SelectActor(s.ctx, sid, id.ActorProvider)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	v, err := s.service.SelectActor(s.ctx, sid, id.ActorSeeker)
	s.Require().NoError(err)
	s.Equal(navigation.ScreenSeekerDocuments, v.Screen)
	s.Equal(id.ActorSeeker, v.Actor)
}

func (s *ServiceSuite) TestSweepEvictsIdleSessions() {
	idle := s.startAs(id.ActorSeeker)
	later := requestcontext.WithTime(context.Background(), today.Add(90*time.Minute))
	busy, err := s.service.Start(later)
	s.Require().NoError(err)
	s.Require().Equal(2, s.service.Active())
	s.Equal(2.0, promtest.ToFloat64(s.metrics.ActiveSessions))

	now := requestcontext.WithTime(context.Background(), today.Add(2*time.Hour))
	s.Zero(s.service.Sweep(now, 0))
	s.Equal(1, s.service.Sweep(now, time.Hour))

	s.Equal(1, s.service.Active())
	s.Equal(1.0, promtest.ToFloat64(s.metrics.ActiveSessions))
	_, err = s.service.View(now, busy.SessionID)
	s.NoError(err)

	v, err := s.service.View(now, idle)
	s.Require().NoError(err, "the snapshot outlives eviction")
	s.Equal(id.ActorSeeker, v.Actor)
	s.Equal(2, s.service.Active())
	s.Equal(2.0, promtest.ToFloat64(s.metrics.ActiveSessions))
}

func (s *ServiceSuite) TestSweepCancelsRunOfEvictedSession() {
	s.identity.Gate = make(chan struct{})
	defer close(s.identity.Gate)
	sid := s.toValidation(id.ActorSeeker)
	_, err := s.service.StartVerification(s.ctx, sid)
	s.Require().NoError(err)

	s.Equal(1, s.service.Sweep(requestcontext.WithTime(context.Background(), today.Add(3*time.Hour)), time.Hour))
	s.Zero(s.service.Active())
	s.Eventually(func() bool {
		for _, a := range s.actions(sid) {
			if a == "verification_canceled" {
				return true
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)
}

func (s *ServiceSuite) TestSelectProviderMustServeCategory() {
	sid := s.startAs(id.ActorSeeker)
	_, err := s.service.MergeProfile(s.ctx, sid, profile.Patch{Seeker: &profile.SeekerPatch{Category: ptr(id.CategoryB)}})
	s.Require().NoError(err)

	_, err = s.service.SelectProvider(s.ctx, sid, roberto)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.service.SelectProvider(s.ctx, sid, id.NewProviderID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestLiveSession() {
	sid := s.startAs(id.ActorProvider)

	live, err := s.service.StartLiveSession(s.ctx, sid, "Lucas")
	s.Require().NoError(err)
	s.Equal("Lucas", live.CounterpartName)

	_, err = s.service.StartLiveSession(s.ctx, sid, "Other")
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	done, err := s.service.EndLiveSession(requestcontext.WithTime(s.ctx, today.Add(50*time.Minute)), sid, 5, "great")
	s.Require().NoError(err)
	s.Equal(50*time.Minute, done.Duration)
	s.Contains(s.actions(sid), "live_session_ended")
}

func (s *ServiceSuite) TestRestoresFromStore() {
	sid := s.startAs(id.ActorSeeker)
	_, err := s.service.Advance(s.ctx, sid)
	s.Require().NoError(err)
	_, err = s.service.MergeProfile(s.ctx, sid, seekerDocuments)
	s.Require().NoError(err)

	other := s.newService(s.identity, s.registry, s.third)
	v, err := other.View(s.ctx, sid)
	s.Require().NoError(err)
	s.Equal(navigation.ScreenSeekerDocuments, v.Screen)
	s.Equal(id.ActorSeeker, v.Actor)
	s.Equal("123456789", v.Profile.Seeker.Documents.IDNumber)
	s.False(v.Verified)
	s.Equal(2.0, promtest.ToFloat64(s.metrics.ActiveSessions), "the restored copy is counted")

	s.Require().NoError(other.End(s.ctx, sid))
	s.Equal(1.0, promtest.ToFloat64(s.metrics.ActiveSessions))
	_, err = other.View(s.ctx, sid)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestUnknownSession() {
	_, err := s.service.View(s.ctx, id.NewSessionID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

type failingStore struct{}

func (failingStore) Save(context.Context, *models.Snapshot) error { return errors.New("disk full") }
func (failingStore) Load(context.Context, id.SessionID) (*models.Snapshot, error) {
	return nil, errors.New("offline")
}
func (failingStore) Delete(context.Context, id.SessionID) error { return nil }

func TestPersistenceFailuresAreNotFatal(t *testing.T) {
	dir, err := memory.Default()
	require.NoError(t, err)
	svc := session.New(authorities.NewRegistry(), discoveryService.New(dir),
		session.WithStore(failingStore{}),
		session.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	ctx := requestcontext.WithTime(context.Background(), today)

	v, err := svc.Start(ctx)
	require.NoError(t, err)
	_, err = svc.SelectActor(ctx, v.SessionID, id.ActorSeeker)
	require.NoError(t, err)

	_, err = svc.View(ctx, id.NewSessionID())
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
}

func TestStepObserverSeesEveryTransition(t *testing.T) {
	reg := authorities.NewRegistry()
	require.NoError(t, reg.Register(authorities.NewScripted("a", authorities.KindIdentity)))
	require.NoError(t, reg.Register(authorities.NewScripted("b", authorities.KindDrivingRegistry)))
	require.NoError(t, reg.Register(authorities.NewScripted("c", authorities.KindMedicalAptitude)))
	dir, err := memory.Default()
	require.NoError(t, err)

	events := make(chan verification.StepEvent, 16)
	svc := session.New(reg, discoveryService.New(dir),
		session.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		session.WithStepObserver(func(_ id.SessionID, ev verification.StepEvent) { events <- ev }),
	)
	ctx := requestcontext.WithTime(context.Background(), today)

	v, err := svc.Start(ctx)
	require.NoError(t, err)
	sid := v.SessionID
	_, err = svc.SelectActor(ctx, sid, id.ActorSeeker)
	require.NoError(t, err)
	_, err = svc.Advance(ctx, sid)
	require.NoError(t, err)
	_, err = svc.MergeProfile(ctx, sid, seekerDocuments)
	require.NoError(t, err)
	_, err = svc.Advance(ctx, sid)
	require.NoError(t, err)
	_, err = svc.StartVerification(ctx, sid)
	require.NoError(t, err)
	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err = svc.AwaitVerification(waitCtx, sid)
	require.NoError(t, err)

	close(events)
	var seen []verification.Status
	for ev := range events {
		seen = append(seen, ev.Record.Status)
	}
	assert.Equal(t, []verification.Status{
		verification.StatusRunning, verification.StatusSuccess,
		verification.StatusRunning, verification.StatusSuccess,
		verification.StatusRunning, verification.StatusSuccess,
	}, seen)
}
