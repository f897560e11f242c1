// Package verification runs the ordered authority checks an actor must pass
// before leaving the document validation screen.
//
// A Pipeline belongs to one session. Steps run strictly in order, each one
// moving idle -> running -> success|failed, and a run halts at the first
// failure. Nothing is retried automatically; the user restarts a run, which
// discards every status from the previous one.
//
// Every run carries a generation number. Cancel and a new Run both bump the
// generation, and a run only writes step state while its generation is
// current, so a cancelled or superseded run can never overwrite newer state.
package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"drivematch/internal/verification/authorities"
	"drivematch/internal/verification/metrics"
	id "drivematch/pkg/domain"
	"drivematch/pkg/platform/audit"
	"drivematch/pkg/platform/sentinel"
)

const DefaultStepTimeout = 30 * time.Second

// Resolver finds the authority that attests a kind. *authorities.Registry
// satisfies it.
type Resolver interface {
	ForKind(kind authorities.Kind) (authorities.Authority, error)
}

// AuditPublisher records verification outcomes.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// SubjectFunc supplies the subject at the start of each run, so a run always
// checks the profile as it is when the user presses start.
type SubjectFunc func() (authorities.Subject, error)

// StepEvent is published to observers on every status transition.
type StepEvent struct {
	Generation uint64
	Index      int
	Record     StepRecord
}

// Result summarizes one run.
type Result struct {
	Generation      uint64
	Passed          bool
	Canceled        bool
	FailedStep      StepID
	FailureReason   string
	FailureCategory authorities.ErrorCategory
	Retryable       bool
	Steps           []StepRecord
	// Err is set only on results delivered by Start when the run could not begin.
	Err error
}

type Pipeline struct {
	sessionID id.SessionID
	actor     id.ActorType
	defs      []StepDefinition
	resolver  Resolver
	subject   SubjectFunc

	stepTimeout time.Duration
	stepGap     time.Duration
	observers   []func(StepEvent)
	metrics     *metrics.Metrics
	auditor     AuditPublisher
	hashKey     []byte
	logger      *slog.Logger
	now         func() time.Time
	tracer      trace.Tracer

	mu         sync.Mutex
	records    []StepRecord
	generation uint64
	cancelRun  context.CancelFunc
	running    bool
}

type Option func(*Pipeline)

// WithStepTimeout bounds each authority check. Exceeding it fails the step
// with category timeout.
func WithStepTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.stepTimeout = d
		}
	}
}

// WithStepGap inserts a pause between a successful step and the next one.
func WithStepGap(d time.Duration) Option {
	return func(p *Pipeline) { p.stepGap = d }
}

// WithObserver registers fn for every step transition. Observers run while
// the pipeline lock is held and must not call back into the pipeline.
func WithObserver(fn func(StepEvent)) Option {
	return func(p *Pipeline) { p.observers = append(p.observers, fn) }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithAuditor emits run outcomes to a. hashKey keys the document hash
// attached to each event.
func WithAuditor(a AuditPublisher, hashKey []byte) Option {
	return func(p *Pipeline) {
		p.auditor = a
		p.hashKey = hashKey
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

func WithTracer(t trace.Tracer) Option {
	return func(p *Pipeline) { p.tracer = t }
}

// New builds the pipeline for actor. Steps are fixed by actor type.
func New(sessionID id.SessionID, actor id.ActorType, resolver Resolver, subject SubjectFunc, opts ...Option) (*Pipeline, error) {
	defs, err := StepsFor(actor)
	if err != nil {
		return nil, err
	}
	p := &Pipeline{
		sessionID:   sessionID,
		actor:       actor,
		defs:        defs,
		resolver:    resolver,
		subject:     subject,
		stepTimeout: DefaultStepTimeout,
		logger:      slog.Default(),
		now:         time.Now,
		tracer:      otel.Tracer("drivematch/verification"),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.records = idleRecords(defs)
	return p, nil
}

// Run executes a new run synchronously. A verification failure is reported
// in the Result, not as an error. The error is non-nil when the run could not
// start, or wraps sentinel.ErrCanceled when it was cancelled or superseded.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	gen, runCtx, subject, err := p.begin(ctx)
	if err != nil {
		return Result{}, err
	}
	res := p.execute(runCtx, gen, subject)
	if res.Canceled {
		return res, fmt.Errorf("verification run %d: %w", gen, sentinel.ErrCanceled)
	}
	return res, nil
}

// Start executes a new run in the background. The channel receives exactly
// one Result and is then closed.
func (p *Pipeline) Start(ctx context.Context) <-chan Result {
	out := make(chan Result, 1)
	gen, runCtx, subject, err := p.begin(ctx)
	if err != nil {
		out <- Result{Err: err}
		close(out)
		return out
	}
	go func() {
		defer close(out)
		out <- p.execute(runCtx, gen, subject)
	}()
	return out
}

// Cancel abandons the in-flight run, if any, and returns every step to idle.
// A finished run is left untouched so its outcome still gates navigation.
// Reports whether a run was cancelled.
func (p *Pipeline) Cancel() bool {
	p.mu.Lock()
	wasRunning := p.running
	if wasRunning {
		p.cancelRun()
		p.cancelRun = nil
		p.generation++
		p.running = false
		p.records = idleRecords(p.defs)
	}
	p.mu.Unlock()

	if wasRunning {
		ctx := context.Background()
		p.metrics.IncrementRunOutcome("canceled", string(p.actor))
		p.logger.InfoContext(ctx, "verification run canceled", "session_id", p.sessionID.String())
		p.emit(ctx, audit.EventVerificationCanceled, "", "", "")
	}
	return wasRunning
}

// Invalidate discards any outcome, finished or in flight, and returns every
// step to idle. Used when the data a run checked has changed.
func (p *Pipeline) Invalidate() {
	p.mu.Lock()
	wasRunning := p.running
	if wasRunning {
		p.cancelRun()
		p.cancelRun = nil
		p.running = false
	}
	p.generation++
	p.records = idleRecords(p.defs)
	p.mu.Unlock()

	ctx := context.Background()
	if wasRunning {
		p.metrics.IncrementRunOutcome("canceled", string(p.actor))
		p.emit(ctx, audit.EventVerificationCanceled, "", "", "")
	}
	p.logger.InfoContext(ctx, "verification invalidated", "session_id", p.sessionID.String(), "was_running", wasRunning)
}

// StepStatuses returns an ordered copy of the current step records.
func (p *Pipeline) StepStatuses() []StepRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]StepRecord, len(p.records))
	copy(out, p.records)
	return out
}

// Passed reports whether every step of the latest run succeeded.
func (p *Pipeline) Passed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.records) == 0 {
		return false
	}
	for _, r := range p.records {
		if r.Status != StatusSuccess {
			return false
		}
	}
	return true
}

func (p *Pipeline) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Pipeline) Generation() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.generation
}

func (p *Pipeline) Actor() id.ActorType { return p.actor }

// Steps returns the step definitions in run order.
func (p *Pipeline) Steps() []StepDefinition {
	out := make([]StepDefinition, len(p.defs))
	copy(out, p.defs)
	return out
}

func (p *Pipeline) begin(ctx context.Context) (uint64, context.Context, authorities.Subject, error) {
	subject, err := p.subject()
	if err != nil {
		return 0, nil, authorities.Subject{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		p.cancelRun()
		p.metrics.IncrementRunOutcome("superseded", string(p.actor))
	}
	p.generation++
	runCtx, cancel := context.WithCancel(ctx)
	p.cancelRun = cancel
	p.running = true
	p.records = idleRecords(p.defs)
	return p.generation, runCtx, subject, nil
}

func (p *Pipeline) execute(ctx context.Context, gen uint64, subject authorities.Subject) Result {
	ctx, span := p.tracer.Start(ctx, "verification.run", trace.WithAttributes(
		attribute.String("session_id", p.sessionID.String()),
		attribute.String("actor", string(p.actor)),
		attribute.Int64("generation", int64(gen)),
	))
	defer span.End()

	p.metrics.RunStarted()
	defer p.metrics.RunFinished()

	hash := audit.HashSubject(p.hashKey, primaryField(subject))
	p.emit(ctx, audit.EventVerificationStarted, "", "", hash)

	for i, def := range p.defs {
		if i > 0 && p.stepGap > 0 {
			if err := sleep(ctx, p.stepGap); err != nil {
				return p.abandon(gen, span)
			}
		}

		started := p.now()
		if !p.update(gen, i, func(r *StepRecord) {
			r.Status = StatusRunning
			r.StartedAt = &started
		}) {
			return p.abandon(gen, span)
		}

		checkErr := p.check(ctx, def, subject)
		finished := p.now()
		p.metrics.ObserveStepLatency(string(def.ID), finished.Sub(started))
		if ctx.Err() != nil {
			return p.abandon(gen, span)
		}

		if checkErr != nil {
			category := authorities.GetCategory(checkErr)
			retryable := authorities.IsRetryable(checkErr)
			if !p.update(gen, i, func(r *StepRecord) {
				r.Status = StatusFailed
				r.FailureReason = checkErr.Error()
				r.FailureCategory = category
				r.Retryable = retryable
				r.FinishedAt = &finished
			}) {
				return p.abandon(gen, span)
			}
			p.metrics.IncrementStepOutcome(string(def.ID), string(StatusFailed), string(category))
			return p.fail(ctx, gen, span, def, checkErr, category, retryable, hash)
		}

		if !p.update(gen, i, func(r *StepRecord) {
			r.Status = StatusSuccess
			r.FinishedAt = &finished
		}) {
			return p.abandon(gen, span)
		}
		p.metrics.IncrementStepOutcome(string(def.ID), string(StatusSuccess), "")
	}

	steps, ok := p.finish(gen)
	if !ok {
		return p.abandon(gen, span)
	}
	p.metrics.IncrementRunOutcome("passed", string(p.actor))
	p.logger.InfoContext(ctx, "verification passed",
		"session_id", p.sessionID.String(),
		"actor", string(p.actor),
	)
	p.emit(ctx, audit.EventVerificationPassed, "", "", hash)
	return Result{Generation: gen, Passed: true, Steps: steps}
}

func (p *Pipeline) fail(ctx context.Context, gen uint64, span trace.Span, def StepDefinition, err error, category authorities.ErrorCategory, retryable bool, hash string) Result {
	steps, ok := p.finish(gen)
	if !ok {
		return p.abandon(gen, span)
	}
	span.SetStatus(codes.Error, string(category))
	p.metrics.IncrementRunOutcome("failed", string(p.actor))
	p.logger.WarnContext(ctx, "verification failed",
		"session_id", p.sessionID.String(),
		"step", string(def.ID),
		"category", string(category),
		"error", err,
	)
	p.emit(ctx, audit.EventVerificationFailed, string(def.ID), string(category), hash)
	return Result{
		Generation:      gen,
		FailedStep:      def.ID,
		FailureReason:   err.Error(),
		FailureCategory: category,
		Retryable:       retryable,
		Steps:           steps,
	}
}

// check calls the authority for one step under the step ceiling. The ceiling
// holds even when the authority ignores its context.
func (p *Pipeline) check(ctx context.Context, def StepDefinition, subject authorities.Subject) error {
	ctx, span := p.tracer.Start(ctx, "verification.step", trace.WithAttributes(
		attribute.String("step", string(def.ID)),
		attribute.String("kind", string(def.Kind)),
	))
	defer span.End()

	authority, err := p.resolver.ForKind(def.Kind)
	if err != nil {
		err = authorities.NewAuthorityError(authorities.ErrorInternal, string(def.Kind), "no authority configured", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "unresolved")
		return err
	}
	span.SetAttributes(attribute.String("authority", authority.ID()))

	stepCtx, cancel := context.WithTimeout(ctx, p.stepTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := authority.Check(stepCtx, subject)
		done <- err
	}()

	select {
	case err = <-done:
	case <-stepCtx.Done():
		err = stepCtx.Err()
	}

	var ae *authorities.AuthorityError
	if err != nil && ctx.Err() == nil && errors.Is(stepCtx.Err(), context.DeadlineExceeded) && !errors.As(err, &ae) {
		err = authorities.NewAuthorityError(authorities.ErrorTimeout, authority.ID(),
			fmt.Sprintf("no answer within %s", p.stepTimeout), err)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(authorities.GetCategory(err)))
	}
	return err
}

// update applies fn to record i if gen is still current, then notifies
// observers. Returns false for a stale run.
func (p *Pipeline) update(gen uint64, i int, fn func(*StepRecord)) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.generation {
		return false
	}
	fn(&p.records[i])
	ev := StepEvent{Generation: gen, Index: i, Record: p.records[i]}
	for _, o := range p.observers {
		o(ev)
	}
	return true
}

// finish marks run gen complete and returns a copy of its records.
func (p *Pipeline) finish(gen uint64) ([]StepRecord, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.generation {
		return nil, false
	}
	p.running = false
	if p.cancelRun != nil {
		p.cancelRun()
		p.cancelRun = nil
	}
	out := make([]StepRecord, len(p.records))
	copy(out, p.records)
	return out, true
}

// abandon ends a run whose context died or whose generation was replaced.
// If the run is still current (its parent context ended), the steps go back
// to idle so no step is left running.
func (p *Pipeline) abandon(gen uint64, span trace.Span) Result {
	p.mu.Lock()
	if gen == p.generation && p.running {
		p.generation++
		p.running = false
		if p.cancelRun != nil {
			p.cancelRun()
			p.cancelRun = nil
		}
		p.records = idleRecords(p.defs)
	}
	p.mu.Unlock()
	span.SetStatus(codes.Error, "canceled")
	return Result{Generation: gen, Canceled: true}
}

func (p *Pipeline) emit(ctx context.Context, action audit.AuditEvent, step, reason, hash string) {
	if p.auditor == nil {
		return
	}
	decision := ""
	switch action {
	case audit.EventVerificationPassed:
		decision = "passed"
	case audit.EventVerificationFailed:
		decision = "failed"
	}
	err := p.auditor.Emit(context.WithoutCancel(ctx), audit.Event{
		SessionID:   p.sessionID,
		Actor:       string(p.actor),
		Action:      string(action),
		Decision:    decision,
		Reason:      reason,
		Step:        step,
		SubjectHash: hash,
	})
	if err != nil {
		p.logger.WarnContext(ctx, "failed to emit verification audit event",
			"session_id", p.sessionID.String(),
			"action", string(action),
			"error", err,
		)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
