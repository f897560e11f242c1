// Package bootstrap wires configuration into a running application: stores,
// authorities, services and the HTTP router. Both the server binary and the
// CLI build on it.
package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	discoveryMetrics "drivematch/internal/discovery/metrics"
	discoveryService "drivematch/internal/discovery/service"
	"drivematch/internal/discovery/store/memory"
	directoryPostgres "drivematch/internal/discovery/store/postgres"
	jwttoken "drivematch/internal/jwt_token"
	"drivematch/internal/platform/config"
	"drivematch/internal/platform/httpserver"
	"drivematch/internal/platform/metrics"
	platformRedis "drivematch/internal/platform/redis"
	"drivematch/internal/ratelimit"
	"drivematch/internal/session"
	sessionHandler "drivematch/internal/session/handler"
	"drivematch/internal/session/store"
	"drivematch/internal/verification"
	"drivematch/internal/verification/authorities"
	verificationMetrics "drivematch/internal/verification/metrics"
	"drivematch/migrations"
	"drivematch/pkg/platform/audit/publisher"
	kafkasink "drivematch/pkg/platform/audit/store/kafka"
	auditmemory "drivematch/pkg/platform/audit/store/memory"
	"drivematch/pkg/platform/httputil"
	"drivematch/pkg/platform/middleware/metadata"
	"drivematch/pkg/platform/middleware/requesttime"
)

const (
	tokenIssuer   = "drivematch"
	tokenAudience = "drivematch-app"

	auditBuffer   = 256
	sweepInterval = 5 * time.Minute
)

// App holds every long-lived dependency.
type App struct {
	Config      config.Server
	Logger      *slog.Logger
	Registry    *prometheus.Registry
	Authorities *authorities.Registry
	Directory   discoveryService.Directory
	Discovery   *discoveryService.Service
	Sessions    *session.Service
	Tokens      *jwttoken.JWTService
	Audit       *publisher.Publisher
	AuditLog    *auditmemory.InMemoryStore

	metrics  *metrics.Metrics
	redis    *platformRedis.Client
	pool     *pgxpool.Pool
	db       *sql.DB
	sink     *kafkasink.Sink
	snapshot session.ProfileStore
	limiter  *ratelimit.Middleware
	closers  []func()
}

type settings struct {
	sessionOpts []session.Option
	authorities *authorities.Registry
}

type Option func(*settings)

// WithSessionOptions appends options to the session service.
func WithSessionOptions(opts ...session.Option) Option {
	return func(s *settings) {
		s.sessionOpts = append(s.sessionOpts, opts...)
	}
}

// WithAuthorities replaces the simulated authorities.
func WithAuthorities(reg *authorities.Registry) Option {
	return func(s *settings) {
		s.authorities = reg
	}
}

// New connects every configured backend. Backends left unconfigured fall
// back to in-memory implementations. Close releases whatever was opened,
// including on error.
func New(ctx context.Context, cfg config.Server, logger *slog.Logger, opts ...Option) (*App, error) {
	var st settings
	for _, opt := range opts {
		opt(&st)
	}

	app := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
		AuditLog: auditmemory.NewInMemoryStore(),
		Tokens:   jwttoken.NewJWTService(cfg.SessionSigningKey, tokenIssuer, tokenAudience),
	}
	ok := false
	defer func() {
		if !ok {
			app.Close()
		}
	}()

	app.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	app.metrics = metrics.NewWithRegisterer(app.Registry)
	app.limiter = ratelimit.NewMiddleware("session_start", cfg.SessionStartLimit, time.Minute, logger,
		ratelimit.WithRecorder(app.metrics))

	if err := app.openAudit(ctx); err != nil {
		return nil, err
	}
	if err := app.openDirectory(ctx); err != nil {
		return nil, err
	}
	if err := app.openSnapshots(ctx); err != nil {
		return nil, err
	}

	app.Authorities = st.authorities
	if app.Authorities == nil {
		reg, err := SimulatedAuthorities(cfg.Verification)
		if err != nil {
			return nil, err
		}
		app.Authorities = reg
	}

	app.Discovery = discoveryService.New(app.Directory,
		discoveryService.WithMetrics(discoveryMetrics.NewWithRegisterer(app.Registry)),
		discoveryService.WithLogger(logger),
	)

	sessionOpts := []session.Option{
		session.WithStore(app.snapshot),
		session.WithAuditor(app.Audit, []byte(cfg.AuditKey)),
		session.WithMetrics(app.metrics),
		session.WithLogger(logger),
		session.WithPipelineOptions(
			verification.WithStepTimeout(cfg.Verification.StepTimeout),
			verification.WithMetrics(verificationMetrics.NewWithRegisterer(app.Registry)),
		),
	}
	app.Sessions = session.New(app.Authorities, app.Discovery, append(sessionOpts, st.sessionOpts...)...)
	ok = true
	return app, nil
}

// SimulatedAuthorities registers one simulated authority per kind, each
// behind a circuit breaker. Providers prove identity with their driving
// permit, so the identity authority accepts it alongside the seeker fields.
func SimulatedAuthorities(cfg config.VerificationConfig) (*authorities.Registry, error) {
	simOpts := []authorities.SimulatedOption{
		authorities.WithLatency(cfg.Latency),
		authorities.WithFailureRate(cfg.FailureRate),
	}
	reg := authorities.NewRegistry()
	for _, a := range []authorities.Authority{
		authorities.NewSimulated("gov-identity", authorities.KindIdentity,
			[]string{authorities.FieldIDNumber, authorities.FieldTaxID, authorities.FieldDrivingPermitNumber}, simOpts...),
		authorities.NewSimulated("driving-registry", authorities.KindDrivingRegistry,
			[]string{authorities.FieldRegistryNumber, authorities.FieldDrivingPermitNumber}, simOpts...),
		authorities.NewSimulated("instructor-council", authorities.KindInstructorCredential,
			[]string{authorities.FieldLicenseNumber, authorities.FieldRegistrationNumber}, simOpts...),
		authorities.NewSimulated("medical-board", authorities.KindMedicalAptitude,
			[]string{authorities.FieldMedicalClearance}, simOpts...),
	} {
		if err := reg.Register(authorities.Guard(a)); err != nil {
			return nil, fmt.Errorf("register authority %s: %w", a.ID(), err)
		}
	}
	return reg, nil
}

func (a *App) openAudit(ctx context.Context) error {
	pubOpts := []publisher.Option{
		publisher.WithLogger(a.Logger),
		publisher.WithAsyncBuffer(auditBuffer),
	}
	if len(a.Config.Kafka.Brokers) > 0 {
		sink, err := kafkasink.New(a.Config.Kafka.Brokers, kafkasink.WithTopicPrefix(a.Config.Kafka.TopicPrefix))
		if err != nil {
			return fmt.Errorf("kafka audit sink: %w", err)
		}
		a.sink = sink
		a.closers = append(a.closers, sink.Close)
		if err := sink.EnsureTopics(ctx, 1, 1); err != nil {
			a.Logger.WarnContext(ctx, "audit topics not created", "error", err)
		}
		pubOpts = append(pubOpts, publisher.WithSink(sink))
	}
	a.Audit = publisher.NewPublisher(a.AuditLog, pubOpts...)
	// registered after the sink so the buffer drains before the client closes
	a.closers = append(a.closers, a.Audit.Close)
	return nil
}

func (a *App) openDirectory(ctx context.Context) error {
	if a.Config.DatabaseURL == "" {
		dir, err := memory.FromFile(a.Config.DirectorySeed)
		if err != nil {
			return fmt.Errorf("load directory: %w", err)
		}
		a.Directory = dir
		return nil
	}

	pool, err := ConnectDirectory(ctx, a.Config.DatabaseURL)
	if err != nil {
		return err
	}
	a.pool = pool
	a.closers = append(a.closers, pool.Close)

	dir := directoryPostgres.New(pool)
	listed, err := dir.List(ctx)
	if err != nil {
		return fmt.Errorf("list directory: %w", err)
	}
	if len(listed) == 0 {
		if err := SeedDirectory(ctx, dir, a.Config.DirectorySeed); err != nil {
			return err
		}
		a.Logger.InfoContext(ctx, "seeded empty provider directory")
	}
	a.Directory = dir
	return nil
}

// ConnectDirectory opens the directory pool and applies the schema.
func ConnectDirectory(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := directoryPostgres.Connect(ctx, dsn)
	if err != nil {
		return nil, err
	}
	err = migrations.Apply(ctx, migrations.ExecFunc(func(ctx context.Context, q string, args ...any) error {
		_, err := pool.Exec(ctx, q, args...)
		return err
	}))
	if err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// SeedDirectory loads listings from path, or the embedded seed when path is
// empty, and upserts them into dir.
func SeedDirectory(ctx context.Context, dir *directoryPostgres.Directory, path string) error {
	seed, err := memory.FromFile(path)
	if err != nil {
		return fmt.Errorf("load directory seed: %w", err)
	}
	listings, err := seed.List(ctx)
	if err != nil {
		return err
	}
	if err := dir.Seed(ctx, listings); err != nil {
		return fmt.Errorf("seed directory: %w", err)
	}
	return nil
}

// openSnapshots picks Redis, then PostgreSQL, then memory.
func (a *App) openSnapshots(ctx context.Context) error {
	ttl := a.Config.Redis.SnapshotTTL

	client, err := platformRedis.New(ctx, a.Config.Redis)
	if err != nil {
		return err
	}
	if client != nil {
		a.redis = client
		a.closers = append(a.closers, func() { _ = client.Close() })
		a.snapshot = store.NewRedis(client.Client, ttl)
		return nil
	}

	if a.Config.DatabaseURL != "" {
		db, err := sql.Open("postgres", a.Config.DatabaseURL)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		a.db = db
		a.closers = append(a.closers, func() { _ = db.Close() })
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("ping postgres: %w", err)
		}
		a.snapshot = store.NewPostgres(db, ttl)
		return nil
	}

	a.snapshot = store.NewInMemory(ttl)
	return nil
}

// Router builds the HTTP API.
func (a *App) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(metadata.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(a.metrics.Middleware)

	r.Get("/healthz", a.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{}))

	sessionHandler.New(a.Sessions, a.Tokens, a.Tokens, a.Logger,
		sessionHandler.WithTokenTTL(a.Config.SessionTokenTTL),
		sessionHandler.WithAuditor(a.Audit),
		sessionHandler.WithStartMiddleware(a.limiter.Handler),
	).Register(r)
	return r
}

// Health checks every connected backend. Authority failures are reported
// but do not make the service unhealthy.
func (a *App) Health(ctx context.Context) (map[string]string, bool) {
	checks := map[string]string{}
	healthy := true
	record := func(name string, err error, critical bool) {
		if err == nil {
			checks[name] = "ok"
			return
		}
		checks[name] = err.Error()
		if critical {
			healthy = false
		}
	}
	if a.redis != nil {
		record("redis", a.redis.Health(ctx), true)
	}
	if a.pool != nil {
		record("postgres_directory", a.pool.Ping(ctx), true)
	}
	if a.db != nil {
		record("postgres_snapshots", a.db.PingContext(ctx), true)
	}
	if a.sink != nil {
		record("kafka", a.sink.Ping(ctx), false)
	}
	for authorityID, err := range a.Authorities.HealthReport(ctx) {
		record("authority:"+authorityID, err, false)
	}
	return checks, healthy
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	checks, healthy := a.Health(ctx)
	status := http.StatusOK
	state := "ok"
	if !healthy {
		status = http.StatusServiceUnavailable
		state = "degraded"
	}
	httputil.WriteJSON(w, status, map[string]any{"status": state, "checks": checks})
}

// Serve runs the HTTP server and the snapshot sweeper until ctx is done,
// then shuts the server down gracefully.
func (a *App) Serve(ctx context.Context) error {
	srv := httpserver.New(a.Config.Addr, a.Router())
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfoContext(gctx, "starting drivematch", "addr", a.Config.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		a.Logger.InfoContext(shutdownCtx, "server stopped")
		return nil
	})
	g.Go(func() error {
		a.sweep(gctx)
		return nil
	})
	return g.Wait()
}

// sweep drops expired snapshots from stores that do not expire them on
// their own.
func (a *App) sweep(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs one expiry pass.
func (a *App) SweepOnce(ctx context.Context) {
	if n := a.limiter.Store().Sweep(a.limiter.Window()); n > 0 {
		a.Logger.DebugContext(ctx, "idle rate limit buckets removed", "count", n)
	}
	a.Sessions.Sweep(ctx, a.Config.SessionIdleTTL)
	switch s := a.snapshot.(type) {
	case *store.InMemory:
		if n := s.Sweep(); n > 0 {
			a.Logger.InfoContext(ctx, "expired session snapshots removed", "count", n)
		}
	case *store.Postgres:
		n, err := s.Sweep(ctx)
		if err != nil {
			a.Logger.WarnContext(ctx, "snapshot sweep failed", "error", err)
			return
		}
		if n > 0 {
			a.Logger.InfoContext(ctx, "expired session snapshots removed", "count", n)
		}
	}
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
