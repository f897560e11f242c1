package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	discovery "drivematch/internal/discovery/models"
	discoveryService "drivematch/internal/discovery/service"
	"drivematch/internal/discovery/store/memory"
	jwttoken "drivematch/internal/jwt_token"
	"drivematch/internal/navigation"
	profile "drivematch/internal/profile/models"
	"drivematch/internal/session"
	"drivematch/internal/session/handler/mocks"
	"drivematch/internal/verification"
	"drivematch/internal/verification/authorities"
	id "drivematch/pkg/domain"
	dErrors "drivematch/pkg/domain-errors"
	"drivematch/pkg/platform/audit"
	"drivematch/pkg/platform/audit/publisher"
	auditmemory "drivematch/pkg/platform/audit/store/memory"
	"drivematch/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

type SessionHandlerSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	service *mocks.MockService
	jwt     *jwttoken.JWTService
	audit   *auditmemory.InMemoryStore
	router  chi.Router
	sid     id.SessionID
	token   string
}

func TestSessionHandlerSuite(t *testing.T) {
	suite.Run(t, new(SessionHandlerSuite))
}

func (s *SessionHandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.service = mocks.NewMockService(s.ctrl)
	s.jwt = jwttoken.NewJWTService("test-signing-key", "drivematch", "drivematch-app")
	s.audit = auditmemory.NewInMemoryStore()

	h := New(s.service, s.jwt, s.jwt, slog.New(slog.NewTextHandler(io.Discard, nil)),
		WithTokenTTL(30*time.Minute),
		WithAuditor(publisher.NewPublisher(s.audit)),
	)
	s.router = chi.NewRouter()
	h.Register(s.router)

	s.sid = id.NewSessionID()
	token, err := s.jwt.GenerateSessionToken(s.sid, time.Hour)
	s.Require().NoError(err)
	s.token = token
}

func (s *SessionHandlerSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *SessionHandlerSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	req := testutil.NewJSONRequest(s.T(), method, path, body)
	testutil.WithBearer(req, s.token)
	return testutil.DoRequest(s.router, req)
}

func (s *SessionHandlerSuite) TestStartIssuesBoundToken() {
	view := &session.View{SessionID: s.sid, Screen: navigation.ScreenWelcome, History: []id.ScreenID{navigation.ScreenWelcome}}
	s.service.EXPECT().Start(gomock.Any()).Return(view, nil)

	rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/sessions", nil))

	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
	resp := testutil.UnmarshalResponse[struct {
		SessionID string `json:"session_id"`
		Token     string `json:"token"`
		TokenType string `json:"token_type"`
		ExpiresIn int    `json:"expires_in"`
	}](s.T(), rr)
	s.Equal(s.sid.String(), resp.SessionID)
	s.Equal("Bearer", resp.TokenType)
	s.Equal(1800, resp.ExpiresIn)

	bound, err := s.jwt.ValidateToken(resp.Token)
	s.Require().NoError(err)
	s.Equal(s.sid, bound)
}

func (s *SessionHandlerSuite) TestMissingTokenIsRejectedAndAudited() {
	rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodGet, "/session", nil))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, "unauthorized")

	req := testutil.NewJSONRequest(s.T(), http.MethodGet, "/session", nil)
	rr = testutil.DoRequest(s.router, testutil.WithBearer(req, "garbage"))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, "unauthorized")

	events, err := s.audit.ListRecent(context.Background(), 10)
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	reasons := []string{events[0].Reason, events[1].Reason}
	s.ElementsMatch([]string{"missing_token", "invalid_token"}, reasons)
	s.Equal(string(audit.EventTokenRejected), events[0].Action)
}

func (s *SessionHandlerSuite) TestViewUsesTokenSession() {
	s.service.EXPECT().View(gomock.Any(), s.sid).Return(&session.View{SessionID: s.sid, Screen: navigation.ScreenWelcome}, nil)

	rr := s.do(http.MethodGet, "/session", nil)

	s.Require().Equal(http.StatusOK, rr.Code)
	resp := testutil.UnmarshalResponse[map[string]any](s.T(), rr)
	s.Equal("welcome", (*resp)["screen"])
}

func (s *SessionHandlerSuite) TestEnd() {
	s.service.EXPECT().End(gomock.Any(), s.sid).Return(nil)
	rr := s.do(http.MethodDelete, "/session", nil)
	s.Equal(http.StatusNoContent, rr.Code)
}

func (s *SessionHandlerSuite) TestSelectActor() {
	s.Run("parses actor", func() {
		s.service.EXPECT().SelectActor(gomock.Any(), s.sid, id.ActorProvider).Return(&session.View{SessionID: s.sid, Actor: id.ActorProvider}, nil)
		rr := s.do(http.MethodPost, "/session/actor", map[string]string{"actor": "Provider"})
		s.Equal(http.StatusOK, rr.Code, rr.Body.String())
	})
	s.Run("unknown actor never reaches the service", func() {
		rr := s.do(http.MethodPost, "/session/actor", map[string]string{"actor": "admin"})
		s.Equal(http.StatusBadRequest, rr.Code)
	})
	s.Run("unknown fields are rejected", func() {
		rr := s.do(http.MethodPost, "/session/actor", map[string]string{"actor": "seeker", "role": "x"})
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
	})
}

func (s *SessionHandlerSuite) TestNavigateMapsDomainErrors() {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"wrong actor", dErrors.New(dErrors.CodeForbidden, "screen belongs to provider"), http.StatusForbidden},
		{"no edge", dErrors.New(dErrors.CodeInvariantViolation, "no transition"), http.StatusUnprocessableEntity},
		{"unverified", dErrors.New(dErrors.CodePreconditionFailed, "verification incomplete"), http.StatusPreconditionFailed},
		{"unexpected", io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			s.service.EXPECT().GoTo(gomock.Any(), s.sid, navigation.ScreenSeekerHome).Return(nil, tc.err)
			rr := s.do(http.MethodPost, "/session/navigate", map[string]string{"screen": "seeker-home"})
			s.Equal(tc.status, rr.Code)
		})
	}
}

func (s *SessionHandlerSuite) TestBackAdvanceReset() {
	v := &session.View{SessionID: s.sid}
	s.service.EXPECT().GoBack(gomock.Any(), s.sid).Return(v, nil)
	s.service.EXPECT().Advance(gomock.Any(), s.sid).Return(v, nil)
	s.service.EXPECT().Reset(gomock.Any(), s.sid).Return(v, nil)

	for _, path := range []string{"/session/back", "/session/advance", "/session/reset"} {
		rr := s.do(http.MethodPost, path, nil)
		s.Equal(http.StatusOK, rr.Code, path)
	}
}

func (s *SessionHandlerSuite) TestMergeProfileParsesEnums() {
	s.service.EXPECT().MergeProfile(gomock.Any(), s.sid, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ id.SessionID, patch profile.Patch) (*session.View, error) {
			s.Require().NotNil(patch.Provider)
			s.Equal(id.CategoryB, *patch.Provider.VehicleCategory)
			s.Equal(id.TransmissionAutomatic, *patch.Provider.VehicleTransmission)
			s.Require().NotNil(patch.Provider.Availability)
			s.Equal([]profile.AvailabilityWindow{{Weekday: id.Monday, Start: "08:00", End: "12:00"}}, *patch.Provider.Availability)
			s.Nil(patch.Seeker)
			return &session.View{SessionID: s.sid}, nil
		})

	rr := s.do(http.MethodPatch, "/session/profile", map[string]any{
		"provider": map[string]any{
			"vehicle_category":     "B",
			"vehicle_transmission": "automatic",
			"availability": []map[string]string{
				{"weekday": "monday", "start": "08:00", "end": "12:00"},
			},
		},
	})
	s.Equal(http.StatusOK, rr.Code, rr.Body.String())
}

func (s *SessionHandlerSuite) TestMergeProfileRejectsBadInput() {
	cases := map[string]any{
		"empty patch":  map[string]any{},
		"bad category": map[string]any{"seeker": map[string]any{"category": "Z"}},
		"bad weekday": map[string]any{"provider": map[string]any{
			"availability": []map[string]string{{"weekday": "someday", "start": "08:00", "end": "09:00"}},
		}},
	}
	for name, body := range cases {
		s.Run(name, func() {
			rr := s.do(http.MethodPatch, "/session/profile", body)
			s.Equal(http.StatusBadRequest, rr.Code, rr.Body.String())
		})
	}
}

func (s *SessionHandlerSuite) TestVerificationRoutes() {
	running := &session.VerificationView{Running: true, Generation: 1}
	done := &session.VerificationView{Passed: true, Generation: 1}

	s.Run("start is accepted", func() {
		s.service.EXPECT().StartVerification(gomock.Any(), s.sid).Return(running, nil)
		rr := s.do(http.MethodPost, "/session/verification", nil)
		s.Equal(http.StatusAccepted, rr.Code)
	})
	s.Run("status without wait", func() {
		s.service.EXPECT().VerificationStatus(gomock.Any(), s.sid).Return(running, nil)
		rr := s.do(http.MethodGet, "/session/verification", nil)
		s.Equal(http.StatusOK, rr.Code)
	})
	s.Run("wait returns the finished run", func() {
		s.service.EXPECT().AwaitVerification(gomock.Any(), s.sid).Return(done, nil)
		rr := s.do(http.MethodGet, "/session/verification?wait=5", nil)
		s.Require().Equal(http.StatusOK, rr.Code)
		resp := testutil.UnmarshalResponse[session.VerificationView](s.T(), rr)
		s.True(resp.Passed)
	})
	s.Run("wait that elapses reports progress", func() {
		s.service.EXPECT().AwaitVerification(gomock.Any(), s.sid).Return(nil, dErrors.New(dErrors.CodeTimeout, "still running"))
		s.service.EXPECT().VerificationStatus(gomock.Any(), s.sid).Return(running, nil)
		rr := s.do(http.MethodGet, "/session/verification?wait=1", nil)
		s.Require().Equal(http.StatusOK, rr.Code)
		resp := testutil.UnmarshalResponse[session.VerificationView](s.T(), rr)
		s.True(resp.Running)
	})
	s.Run("huge wait is capped", func() {
		s.service.EXPECT().AwaitVerification(gomock.Any(), s.sid).DoAndReturn(
			func(ctx context.Context, _ id.SessionID) (*session.VerificationView, error) {
				deadline, ok := ctx.Deadline()
				s.Require().True(ok)
				left := time.Until(deadline)
				s.Greater(left, 50*time.Second)
				s.LessOrEqual(left, 60*time.Second)
				return done, nil
			})
		rr := s.do(http.MethodGet, "/session/verification?wait=99999999999", nil)
		s.Equal(http.StatusOK, rr.Code)
	})
	s.Run("bad wait", func() {
		rr := s.do(http.MethodGet, "/session/verification?wait=soon", nil)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})
	s.Run("cancel", func() {
		s.service.EXPECT().CancelVerification(gomock.Any(), s.sid).Return(true, &session.VerificationView{Generation: 2}, nil)
		rr := s.do(http.MethodDelete, "/session/verification", nil)
		s.Require().Equal(http.StatusOK, rr.Code)
		resp := testutil.UnmarshalResponse[map[string]any](s.T(), rr)
		s.Equal(true, (*resp)["canceled"])
	})
}

func (s *SessionHandlerSuite) TestDiscover() {
	s.Run("filters are parsed", func() {
		s.service.EXPECT().Discover(gomock.Any(), s.sid, gomock.Any()).
			DoAndReturn(func(_ context.Context, _ id.SessionID, f discovery.Filters) ([]discovery.Candidate, error) {
				s.Equal(id.TransmissionManual, f.Transmission)
				s.Equal(discovery.SortPrice, f.SortBy)
				s.Require().NotNil(f.MaxPrice)
				s.InDelta(90.0, *f.MaxPrice, 0.001)
				return nil, nil
			})
		rr := s.do(http.MethodPost, "/session/discovery", map[string]any{
			"transmission": "manual",
			"max_price":    90,
			"sort_by":      "price",
		})
		s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
		resp := testutil.UnmarshalResponse[map[string]any](s.T(), rr)
		s.Equal([]any{}, (*resp)["candidates"])
	})
	s.Run("unknown sort", func() {
		rr := s.do(http.MethodPost, "/session/discovery", map[string]any{"sort_by": "age"})
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})
}

func (s *SessionHandlerSuite) TestScheduleAndLive() {
	date := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)

	s.Run("schedule", func() {
		s.service.EXPECT().ScheduleSession(gomock.Any(), s.sid, date, "09:00").Return(profile.Lesson{TimeSlot: "09:00"}, nil)
		rr := s.do(http.MethodPost, "/session/schedule", map[string]string{"date": "2026-03-05", "time_slot": "09:00"})
		s.Equal(http.StatusCreated, rr.Code, rr.Body.String())
	})
	s.Run("schedule with a bad date", func() {
		rr := s.do(http.MethodPost, "/session/schedule", map[string]string{"date": "05/03/2026", "time_slot": "09:00"})
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})
	s.Run("live start and end", func() {
		s.service.EXPECT().StartLiveSession(gomock.Any(), s.sid, "Ana Paula").Return(profile.LiveSession{CounterpartName: "Ana Paula"}, nil)
		s.service.EXPECT().EndLiveSession(gomock.Any(), s.sid, 5, "great").Return(profile.CompletedSession{Rating: 5}, nil)

		rr := s.do(http.MethodPost, "/session/live", map[string]string{"counterpart": "Ana Paula"})
		s.Equal(http.StatusCreated, rr.Code, rr.Body.String())
		rr = s.do(http.MethodPost, "/session/live/end", map[string]any{"rating": 5, "comment": "great"})
		s.Equal(http.StatusOK, rr.Code, rr.Body.String())
	})
}

func (s *SessionHandlerSuite) TestSelectProviderRequiresUUID() {
	rr := s.do(http.MethodPost, "/session/provider", map[string]string{"provider_id": "ana"})
	s.Equal(http.StatusBadRequest, rr.Code)
}

// TestOnboardingOverHTTP drives a seeker through the real service.
func TestOnboardingOverHTTP(t *testing.T) {
	reg := authorities.NewRegistry()
	require.NoError(t, reg.Register(authorities.NewScripted("gov-identity", authorities.KindIdentity)))
	require.NoError(t, reg.Register(authorities.NewScripted("driving-registry", authorities.KindDrivingRegistry)))
	require.NoError(t, reg.Register(authorities.NewScripted("medical", authorities.KindMedicalAptitude)))
	dir, err := memory.Default()
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := session.New(reg, discoveryService.New(dir), session.WithLogger(logger))
	jwt := jwttoken.NewJWTService("test-signing-key", "drivematch", "drivematch-app")
	router := chi.NewRouter()
	New(svc, jwt, jwt, logger).Register(router)

	var token string
	call := func(method, path string, body any) *httptest.ResponseRecorder {
		req := testutil.NewJSONRequest(t, method, path, body)
		if token != "" {
			testutil.WithBearer(req, token)
		}
		return testutil.DoRequest(router, req)
	}

	testutil.Given(t, "a new session", func(t *testing.T) {
		rr := call(http.MethodPost, "/sessions", nil)
		require.Equal(t, http.StatusCreated, rr.Code)
		token = testutil.UnmarshalResponse[struct {
			Token string `json:"token"`
		}](t, rr).Token
	})

	testutil.When(t, "the seeker submits documents and reaches validation", func(t *testing.T) {
		require.Equal(t, http.StatusOK, call(http.MethodPost, "/session/actor", map[string]string{"actor": "seeker"}).Code)
		require.Equal(t, http.StatusOK, call(http.MethodPost, "/session/advance", nil).Code)

		rr := call(http.MethodPost, "/session/advance", nil)
		testutil.AssertStatusAndError(t, rr, http.StatusPreconditionFailed, "precondition_failed")

		rr = call(http.MethodPatch, "/session/profile", map[string]any{"seeker": map[string]string{
			"id_number":             "123456789",
			"tax_id":                "529.982.247-25",
			"registry_number":       "SP123456789",
			"medical_clearance_ref": "ladv-2026-001",
		}})
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		rr = call(http.MethodPost, "/session/advance", nil)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		assert.Equal(t, "document-validation", (*testutil.UnmarshalResponse[map[string]any](t, rr))["screen"])
	})

	testutil.Then(t, "verification passes and unlocks the category screen", func(t *testing.T) {
		rr := call(http.MethodPost, "/session/verification", nil)
		require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())

		rr = call(http.MethodGet, "/session/verification?wait=5", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		result := testutil.UnmarshalResponse[session.VerificationView](t, rr)
		assert.True(t, result.Passed)
		require.Len(t, result.Steps, 3)
		for _, step := range result.Steps {
			assert.Equal(t, verification.StatusSuccess, step.Status)
		}

		rr = call(http.MethodPost, "/session/advance", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		view := testutil.UnmarshalResponse[session.View](t, rr)
		assert.Equal(t, navigation.ScreenSeekerCategory, view.Screen)
		assert.True(t, view.Verified)
	})
}
