//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"drivematch/internal/navigation"
	profile "drivematch/internal/profile/models"
	"drivematch/internal/session"
	"drivematch/internal/session/models"
	"drivematch/internal/session/store"
	id "drivematch/pkg/domain"
	"drivematch/pkg/platform/sentinel"
	"drivematch/pkg/testutil/containers"
)

func snapshotFixture() *models.Snapshot {
	now := time.Now().UTC().Truncate(time.Second)
	p := profile.New()
	if err := p.SelectActor(id.ActorProvider, now); err != nil {
		panic(err)
	}
	return &models.Snapshot{
		SessionID: id.NewSessionID(),
		Actor:     id.ActorProvider,
		History:   []id.ScreenID{navigation.ScreenWelcome, navigation.ScreenProviderCredentials},
		Profile:   p,
		CreatedAt: now,
		SavedAt:   now,
	}
}

// snapshotStoreContract runs the same checks against every backend.
func snapshotStoreContract(s *suite.Suite, st session.ProfileStore) {
	ctx := context.Background()
	snap := snapshotFixture()

	s.Require().NoError(st.Save(ctx, snap))
	got, err := st.Load(ctx, snap.SessionID)
	s.Require().NoError(err)
	s.Equal(snap.History, got.History)
	s.Equal(id.ActorProvider, got.Profile.Actor)
	s.True(snap.CreatedAt.Equal(got.CreatedAt))

	snap.History = append(snap.History, navigation.ScreenDocumentValidation)
	s.Require().NoError(st.Save(ctx, snap))
	got, err = st.Load(ctx, snap.SessionID)
	s.Require().NoError(err)
	s.Len(got.History, 3)

	s.Require().NoError(st.Delete(ctx, snap.SessionID))
	_, err = st.Load(ctx, snap.SessionID)
	s.ErrorIs(err, sentinel.ErrNotFound)

	_, err = st.Load(ctx, id.NewSessionID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) TestContract() {
	snapshotStoreContract(&s.Suite, store.NewRedis(s.redis.Client, time.Hour))
}

func (s *RedisStoreSuite) TestSnapshotsExpire() {
	ctx := context.Background()
	st := store.NewRedis(s.redis.Client, time.Second)
	snap := snapshotFixture()
	s.Require().NoError(st.Save(ctx, snap))

	s.Eventually(func() bool {
		_, err := st.Load(ctx, snap.SessionID)
		return err != nil
	}, 5*time.Second, 100*time.Millisecond)
}

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "profile_snapshots"))
}

func (s *PostgresStoreSuite) TestContract() {
	snapshotStoreContract(&s.Suite, store.NewPostgres(s.postgres.DB, time.Hour))
}

func (s *PostgresStoreSuite) TestDeleteExpired() {
	ctx := context.Background()
	now := time.Now()
	st := store.NewPostgres(s.postgres.DB, time.Minute, store.WithPostgresClock(func() time.Time { return now }))
	snap := snapshotFixture()
	s.Require().NoError(st.Save(ctx, snap))

	now = now.Add(2 * time.Minute)
	_, err := st.Load(ctx, snap.SessionID)
	s.ErrorIs(err, sentinel.ErrNotFound)

	n, err := st.DeleteExpired(ctx)
	s.Require().NoError(err)
	s.Equal(int64(1), n)
}
