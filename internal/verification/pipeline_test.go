package verification_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drivematch/internal/profile/models"
	"drivematch/internal/verification"
	"drivematch/internal/verification/authorities"
	"drivematch/internal/verification/metrics"
	id "drivematch/pkg/domain"
	dErrors "drivematch/pkg/domain-errors"
	"drivematch/pkg/platform/audit"
	"drivematch/pkg/platform/audit/publisher"
	auditmemory "drivematch/pkg/platform/audit/store/memory"
	"drivematch/pkg/platform/circuit"
	"drivematch/pkg/platform/sentinel"
	"drivematch/pkg/testutil"
)

type fixture struct {
	identity *authorities.Scripted
	registry *authorities.Scripted
	medical  *authorities.Scripted
	reg      *authorities.Registry
	audit    *auditmemory.InMemoryStore
	metrics  *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		identity: authorities.NewScripted("gov-identity", authorities.KindIdentity),
		registry: authorities.NewScripted("driving-registry", authorities.KindDrivingRegistry),
		medical:  authorities.NewScripted("medical", authorities.KindMedicalAptitude),
		reg:      authorities.NewRegistry(),
		audit:    auditmemory.NewInMemoryStore(),
		metrics:  metrics.NewWithRegisterer(prometheus.NewRegistry()),
	}
	require.NoError(t, f.reg.Register(f.identity))
	require.NoError(t, f.reg.Register(f.registry))
	require.NoError(t, f.reg.Register(f.medical))
	return f
}

func seekerSubject() (authorities.Subject, error) {
	return authorities.Subject{
		Actor:  id.ActorSeeker,
		Fields: map[string]string{authorities.FieldTaxID: "52998224725"},
	}, nil
}

func (f *fixture) pipeline(t *testing.T, sessionID id.SessionID, opts ...verification.Option) *verification.Pipeline {
	t.Helper()
	opts = append([]verification.Option{
		verification.WithMetrics(f.metrics),
		verification.WithAuditor(publisher.NewPublisher(f.audit), []byte("k")),
	}, opts...)
	p, err := verification.New(sessionID, id.ActorSeeker, f.reg, seekerSubject, opts...)
	require.NoError(t, err)
	return p
}

func statuses(records []verification.StepRecord) []verification.Status {
	out := make([]verification.Status, len(records))
	for i, r := range records {
		out[i] = r.Status
	}
	return out
}

func actions(t *testing.T, store *auditmemory.InMemoryStore, sessionID id.SessionID) []string {
	t.Helper()
	events, err := store.ListBySession(context.Background(), sessionID)
	require.NoError(t, err)
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Action
	}
	return out
}

func TestStepsFor(t *testing.T) {
	seeker, err := verification.StepsFor(id.ActorSeeker)
	require.NoError(t, err)
	provider, err := verification.StepsFor(id.ActorProvider)
	require.NoError(t, err)

	ids := func(defs []verification.StepDefinition) []verification.StepID {
		out := make([]verification.StepID, len(defs))
		for i, d := range defs {
			out[i] = d.ID
		}
		return out
	}
	assert.Equal(t, []verification.StepID{
		verification.StepGovIdentity, verification.StepDrivingRegistry, verification.StepMedicalAptitude,
	}, ids(seeker))
	assert.Equal(t, []verification.StepID{
		verification.StepGovIdentity, verification.StepDrivingRegistry, verification.StepInstructorCredential,
	}, ids(provider))

	_, err = verification.StepsFor("")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func TestRun(t *testing.T) {
	testutil.Given(t, "authorities that all accept the subject", func(t *testing.T) {
		f := newFixture(t)
		sessionID := id.NewSessionID()
		p := f.pipeline(t, sessionID)

		testutil.Then(t, "a fresh pipeline is idle and not passed", func(t *testing.T) {
			assert.Equal(t, []verification.Status{verification.StatusIdle, verification.StatusIdle, verification.StatusIdle}, statuses(p.StepStatuses()))
			assert.False(t, p.Passed())
		})

		res, err := p.Run(context.Background())

		testutil.Then(t, "every step succeeds in order", func(t *testing.T) {
			require.NoError(t, err)
			assert.True(t, res.Passed)
			assert.Empty(t, res.FailedStep)
			assert.Equal(t, []verification.Status{verification.StatusSuccess, verification.StatusSuccess, verification.StatusSuccess}, statuses(res.Steps))
			assert.True(t, p.Passed())
			assert.False(t, p.Running())
			for _, r := range p.StepStatuses() {
				require.NotNil(t, r.StartedAt)
				require.NotNil(t, r.FinishedAt)
			}
		})

		testutil.Then(t, "the run is audited and counted", func(t *testing.T) {
			assert.Equal(t, []string{"verification_started", "verification_passed"}, actions(t, f.audit, sessionID))
			assert.Equal(t, 1.0, promtest.ToFloat64(f.metrics.RunOutcome.WithLabelValues("passed", "seeker")))
			assert.Equal(t, 0.0, promtest.ToFloat64(f.metrics.RunsInFlight))
		})
	})

	testutil.Given(t, "the driving registry refuses the subject", func(t *testing.T) {
		f := newFixture(t)
		f.registry = authorities.Failing("driving-registry-2", authorities.KindDrivingRegistry, authorities.ErrorRejected)
		f.reg = authorities.NewRegistry()
		require.NoError(t, f.reg.Register(f.identity))
		require.NoError(t, f.reg.Register(f.registry))
		require.NoError(t, f.reg.Register(f.medical))
		sessionID := id.NewSessionID()
		p := f.pipeline(t, sessionID)

		res, err := p.Run(context.Background())

		testutil.Then(t, "the run halts at step two", func(t *testing.T) {
			require.NoError(t, err, "a verification failure is not an error")
			assert.False(t, res.Passed)
			assert.Equal(t, verification.StepDrivingRegistry, res.FailedStep)
			assert.Equal(t, authorities.ErrorRejected, res.FailureCategory)
			assert.False(t, res.Retryable)
			assert.Equal(t, []verification.Status{verification.StatusSuccess, verification.StatusFailed, verification.StatusIdle}, statuses(p.StepStatuses()))
			assert.False(t, p.Passed())
		})

		testutil.Then(t, "the third authority is never consulted", func(t *testing.T) {
			assert.Equal(t, 0, f.medical.Calls())
		})

		testutil.Then(t, "the failure is audited with the step", func(t *testing.T) {
			events, err := f.audit.ListBySession(context.Background(), sessionID)
			require.NoError(t, err)
			require.Len(t, events, 2)
			assert.Equal(t, "verification_failed", events[1].Action)
			assert.Equal(t, string(verification.StepDrivingRegistry), events[1].Step)
			assert.Equal(t, "rejected", events[1].Reason)
			assert.Equal(t, audit.CategoryCompliance, events[1].Category)
			assert.NotEmpty(t, events[1].SubjectHash)
		})
	})
}

func TestRestartResetsStatuses(t *testing.T) {
	f := newFixture(t)
	refused := authorities.NewAuthorityError(authorities.ErrorNotFound, "driving-registry", "no record", nil)
	f.registry = authorities.NewScripted("driving-registry-2", authorities.KindDrivingRegistry, refused, nil)
	f.reg = authorities.NewRegistry()
	require.NoError(t, f.reg.Register(f.identity))
	require.NoError(t, f.reg.Register(f.registry))
	require.NoError(t, f.reg.Register(f.medical))

	var mu sync.Mutex
	var firstEventPerRun = map[uint64]verification.StepEvent{}
	p := f.pipeline(t, id.NewSessionID(), verification.WithObserver(func(ev verification.StepEvent) {
		mu.Lock()
		defer mu.Unlock()
		if _, ok := firstEventPerRun[ev.Generation]; !ok {
			firstEventPerRun[ev.Generation] = ev
		}
	}))

	first, err := p.Run(context.Background())
	require.NoError(t, err)
	require.False(t, first.Passed)

	second, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, second.Passed)
	assert.Greater(t, second.Generation, first.Generation)
	assert.Equal(t, 2, f.identity.Calls(), "restart re-runs from the first step")

	mu.Lock()
	defer mu.Unlock()
	ev := firstEventPerRun[second.Generation]
	assert.Equal(t, 0, ev.Index)
	assert.Equal(t, verification.StatusRunning, ev.Record.Status)
	assert.Empty(t, ev.Record.FailureReason)
}

func TestCancel(t *testing.T) {
	testutil.Given(t, "a run blocked inside the first step", func(t *testing.T) {
		f := newFixture(t)
		f.identity.Gate = make(chan struct{})
		sessionID := id.NewSessionID()

		running := make(chan struct{}, 1)
		var mu sync.Mutex
		var events []verification.StepEvent
		p := f.pipeline(t, sessionID, verification.WithObserver(func(ev verification.StepEvent) {
			mu.Lock()
			events = append(events, ev)
			mu.Unlock()
			if ev.Record.Status == verification.StatusRunning {
				select {
				case running <- struct{}{}:
				default:
				}
			}
		}))

		results := p.Start(context.Background())
		<-running
		require.True(t, p.Running())

		testutil.When(t, "the screen is torn down", func(t *testing.T) {
			assert.True(t, p.Cancel())
			mu.Lock()
			seen := len(events)
			mu.Unlock()

			res := <-results
			close(f.identity.Gate)

			testutil.Then(t, "the run reports cancellation", func(t *testing.T) {
				assert.True(t, res.Canceled)
				assert.False(t, res.Passed)
			})

			testutil.Then(t, "statuses are idle and never touched again", func(t *testing.T) {
				assert.Equal(t, []verification.Status{verification.StatusIdle, verification.StatusIdle, verification.StatusIdle}, statuses(p.StepStatuses()))
				mu.Lock()
				defer mu.Unlock()
				assert.Len(t, events, seen)
				assert.False(t, p.Running())
			})

			testutil.Then(t, "cancelling again is a no-op", func(t *testing.T) {
				assert.False(t, p.Cancel())
			})

			testutil.Then(t, "the cancellation is audited", func(t *testing.T) {
				assert.Contains(t, actions(t, f.audit, sessionID), "verification_canceled")
				assert.Equal(t, 1.0, promtest.ToFloat64(f.metrics.RunOutcome.WithLabelValues("canceled", "seeker")))
			})
		})
	})

	testutil.Given(t, "a finished run", func(t *testing.T) {
		f := newFixture(t)
		p := f.pipeline(t, id.NewSessionID())
		_, err := p.Run(context.Background())
		require.NoError(t, err)

		testutil.Then(t, "Cancel keeps the passed outcome", func(t *testing.T) {
			assert.False(t, p.Cancel())
			assert.True(t, p.Passed())
		})
	})
}

func TestInvalidate(t *testing.T) {
	testutil.Given(t, "a passed run", func(t *testing.T) {
		f := newFixture(t)
		p := f.pipeline(t, id.NewSessionID())
		res, err := p.Run(context.Background())
		require.NoError(t, err)
		require.True(t, p.Passed())

		testutil.When(t, "the checked data changes", func(t *testing.T) {
			p.Invalidate()

			testutil.Then(t, "the outcome is discarded", func(t *testing.T) {
				assert.False(t, p.Passed())
				assert.Equal(t, []verification.Status{verification.StatusIdle, verification.StatusIdle, verification.StatusIdle}, statuses(p.StepStatuses()))
				assert.Greater(t, p.Generation(), res.Generation)
			})
		})
	})

	testutil.Given(t, "a run blocked inside the first step", func(t *testing.T) {
		f := newFixture(t)
		f.identity.Gate = make(chan struct{})
		running := make(chan struct{}, 1)
		p := f.pipeline(t, id.NewSessionID(), verification.WithObserver(func(ev verification.StepEvent) {
			if ev.Record.Status == verification.StatusRunning {
				select {
				case running <- struct{}{}:
				default:
				}
			}
		}))
		results := p.Start(context.Background())
		<-running

		testutil.When(t, "it is invalidated", func(t *testing.T) {
			p.Invalidate()
			res := <-results
			close(f.identity.Gate)

			testutil.Then(t, "the run is cancelled and leaves no trace", func(t *testing.T) {
				assert.True(t, res.Canceled)
				assert.False(t, p.Running())
				assert.False(t, p.Passed())
				assert.Equal(t, []verification.Status{verification.StatusIdle, verification.StatusIdle, verification.StatusIdle}, statuses(p.StepStatuses()))
			})
		})
	})
}

func TestRunSupersedesInFlightRun(t *testing.T) {
	f := newFixture(t)
	f.identity.Gate = make(chan struct{})

	running := make(chan struct{}, 2)
	p := f.pipeline(t, id.NewSessionID(), verification.WithObserver(func(ev verification.StepEvent) {
		if ev.Index == 0 && ev.Record.Status == verification.StatusRunning {
			running <- struct{}{}
		}
	}))

	stale := p.Start(context.Background())
	<-running
	fresh := p.Start(context.Background())
	<-running

	staleRes := <-stale
	assert.True(t, staleRes.Canceled, "the superseded run unblocks on its own cancelled context")

	close(f.identity.Gate)
	freshRes := <-fresh
	assert.True(t, freshRes.Passed)
	assert.True(t, p.Passed())
	assert.Equal(t, freshRes.Generation, p.Generation())
}

func TestRunCanceledByCaller(t *testing.T) {
	f := newFixture(t)
	f.identity.Gate = make(chan struct{})
	defer close(f.identity.Gate)
	p := f.pipeline(t, id.NewSessionID())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for !p.Running() {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()

	res, err := p.Run(ctx)
	assert.ErrorIs(t, err, sentinel.ErrCanceled)
	assert.True(t, res.Canceled)
	assert.Equal(t, []verification.Status{verification.StatusIdle, verification.StatusIdle, verification.StatusIdle}, statuses(p.StepStatuses()))
}

func TestStepTimeout(t *testing.T) {
	testutil.Given(t, "an authority that never answers", func(t *testing.T) {
		f := newFixture(t)
		f.identity.Gate = make(chan struct{})
		defer close(f.identity.Gate)
		p := f.pipeline(t, id.NewSessionID(), verification.WithStepTimeout(20*time.Millisecond))

		res, err := p.Run(context.Background())

		testutil.Then(t, "the step fails with a retryable timeout", func(t *testing.T) {
			require.NoError(t, err)
			assert.Equal(t, verification.StepGovIdentity, res.FailedStep)
			assert.Equal(t, authorities.ErrorTimeout, res.FailureCategory)
			assert.True(t, res.Retryable)
			assert.Equal(t, verification.StatusFailed, p.StepStatuses()[0].Status)
		})
	})

	testutil.Given(t, "an authority that ignores its context", func(t *testing.T) {
		f := newFixture(t)
		release := make(chan struct{})
		defer close(release)
		stubborn := &blockingAuthority{release: release}
		reg := authorities.NewRegistry()
		require.NoError(t, reg.Register(stubborn))
		p, err := verification.New(id.NewSessionID(), id.ActorSeeker, reg, seekerSubject,
			verification.WithStepTimeout(20*time.Millisecond), verification.WithMetrics(f.metrics))
		require.NoError(t, err)

		res, err := p.Run(context.Background())

		testutil.Then(t, "the ceiling still holds", func(t *testing.T) {
			require.NoError(t, err)
			assert.Equal(t, authorities.ErrorTimeout, res.FailureCategory)
		})
	})
}

type blockingAuthority struct{ release chan struct{} }

func (b *blockingAuthority) ID() string { return "stubborn" }
func (b *blockingAuthority) Capabilities() authorities.Capabilities {
	return authorities.Capabilities{Kind: authorities.KindIdentity}
}
func (b *blockingAuthority) Check(context.Context, authorities.Subject) (*authorities.Evidence, error) {
	<-b.release
	return &authorities.Evidence{}, nil
}
func (b *blockingAuthority) Health(context.Context) error { return nil }

func TestOpenBreakerFailsFast(t *testing.T) {
	f := newFixture(t)
	inner := authorities.Failing("flaky-identity", authorities.KindIdentity, authorities.ErrorOutage)
	reg := authorities.NewRegistry()
	require.NoError(t, reg.Register(authorities.Guard(inner, circuit.WithFailureThreshold(1), circuit.WithCooldown(time.Hour))))
	require.NoError(t, reg.Register(f.registry))
	require.NoError(t, reg.Register(f.medical))

	p, err := verification.New(id.NewSessionID(), id.ActorSeeker, reg, seekerSubject)
	require.NoError(t, err)

	_, err = p.Run(context.Background())
	require.NoError(t, err)
	res, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, authorities.ErrorOutage, res.FailureCategory)
	assert.Contains(t, res.FailureReason, "circuit open")
	assert.Equal(t, 1, inner.Calls())
}

func TestMissingAuthority(t *testing.T) {
	reg := authorities.NewRegistry()
	require.NoError(t, reg.Register(authorities.NewScripted("gov-identity", authorities.KindIdentity)))

	p, err := verification.New(id.NewSessionID(), id.ActorProvider, reg, seekerSubject)
	require.NoError(t, err)

	res, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, verification.StepDrivingRegistry, res.FailedStep)
	assert.Equal(t, authorities.ErrorInternal, res.FailureCategory)
}

func TestSubjectErrors(t *testing.T) {
	reg := authorities.NewRegistry()
	boom := dErrors.New(dErrors.CodePreconditionFailed, "documents missing")
	p, err := verification.New(id.NewSessionID(), id.ActorSeeker, reg, func() (authorities.Subject, error) {
		return authorities.Subject{}, boom
	})
	require.NoError(t, err)

	_, err = p.Run(context.Background())
	assert.ErrorIs(t, err, boom)

	res := <-p.Start(context.Background())
	assert.ErrorIs(t, res.Err, boom)
	assert.False(t, p.Running())
}

func TestSubjectFromProfile(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	_, err := verification.SubjectFromProfile(models.New())
	assert.True(t, dErrors.HasCode(err, dErrors.CodePreconditionFailed))

	seeker := models.New()
	require.NoError(t, seeker.SelectActor(id.ActorSeeker, now))
	seeker.Seeker.Documents.TaxID = "52998224725"
	seeker.Seeker.Documents.RegistryNumber = "01234567890"
	s, err := verification.SubjectFromProfile(seeker)
	require.NoError(t, err)
	assert.Equal(t, id.ActorSeeker, s.Actor)
	assert.Equal(t, map[string]string{
		authorities.FieldTaxID:          "52998224725",
		authorities.FieldRegistryNumber: "01234567890",
	}, s.Fields)

	provider := models.New()
	require.NoError(t, provider.SelectActor(id.ActorProvider, now))
	provider.Provider.Credentials.LicenseNumber = "INS-001"
	s, err = verification.SubjectFromProfile(provider)
	require.NoError(t, err)
	assert.Equal(t, "INS-001", s.Fields[authorities.FieldLicenseNumber])
	assert.NotContains(t, s.Fields, authorities.FieldTaxID)
}

func TestNewRejectsUnknownActor(t *testing.T) {
	_, err := verification.New(id.NewSessionID(), id.ActorType("admin"), authorities.NewRegistry(), seekerSubject)
	require.Error(t, err)
	assert.False(t, errors.Is(err, sentinel.ErrCanceled))
}
