package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/application/command"
	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/application/eventhandler"
	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/application/query"
	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/domain/lesson"
	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/domain/shared"
	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/infrastructure/identity"
	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/infrastructure/messaging"
	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/infrastructure/persistence/docstore"
	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/infrastructure/persistence/repository"
	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/interface/http/handlers"
	"github.com/Ruben-Makrati/gamified-bible-study-app/pkg/retry"
	"github.com/Ruben-Makrati/gamified-bible-study-app/pkg/timeutil"
)

const testAdminKey = "admin-secret"

type envelope struct {
	Success bool               `json:"success"`
	Data    json.RawMessage    `json:"data"`
	Error   *handlers.APIError `json:"error"`
}

type failingCatalog struct{}

func (failingCatalog) List(context.Context) ([]*lesson.Lesson, error) {
	return nil, shared.ErrCatalogUnavailable.Wrap(errors.New("connection refused"))
}

func (failingCatalog) Get(context.Context, string) (*lesson.Lesson, error) {
	return nil, shared.ErrCatalogUnavailable.Wrap(errors.New("connection refused"))
}

func (failingCatalog) Save(context.Context, *lesson.Lesson) error {
	return shared.ErrCatalogUnavailable.Wrap(errors.New("connection refused"))
}

type testServer struct {
	handler http.Handler
	store   *docstore.MemoryStore
}

func newTestServer(t *testing.T, catalog lesson.Catalog) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := docstore.NewMemoryStore()
	users := repository.NewProgressRepository(store)
	if catalog == nil {
		catalog = repository.NewLessonRepository(store)
	}
	feeds := repository.NewActivityRepository(store)
	clock := timeutil.NewFixedClock(time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC))

	bus := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{})
	t.Cleanup(func() { _ = bus.Close() })
	require.NoError(t, eventhandler.NewActivityFeedHandler(feeds, nil, eventhandler.DefaultActivityFeedConfig()).Register(bus))

	profiles := command.NewCreateProfileHandler(users, bus, clock, nil)
	auth, err := identity.NewProvider(identity.Config{
		Secret:     "test-secret-0123456789",
		TokenTTL:   time.Hour,
		Issuer:     "test",
		BcryptCost: bcrypt.MinCost,
	}, repository.NewAccountRepository(store), profiles, clock, nil)
	require.NoError(t, err)

	health := handlers.NewCompositeHealthChecker("test")
	health.AddCheck("store", handlers.NewPingCheck(store))

	cfg := DefaultConfig()
	cfg.Mode = gin.TestMode
	cfg.AdminKey = testAdminKey

	srv, err := NewServer(cfg, Dependencies{
		Auth:           auth,
		CompleteLesson: command.NewCompleteLessonHandler(users, catalog, bus, clock, nil, command.CompleteLessonConfig{}),
		SeedLessons:    command.NewSeedLessonsHandler(catalog, nil, bus, clock, nil),
		ListLessons:    query.NewListLessonsHandler(users, catalog, false),
		GetLesson:      query.NewGetLessonHandler(users, catalog, false),
		GetDashboard:   query.NewGetDashboardHandler(users, catalog, false),
		GetProfile:     query.NewGetProfileHandler(users),
		GetActivity:    query.NewGetActivityHandler(feeds),
		HealthChecker:  health,
		Retry:          retry.StorePolicy(shared.IsRetryable),
	})
	require.NoError(t, err)
	return &testServer{handler: srv.Handler(), store: store}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any, headers ...string) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") != "text/plain; charset=utf-8" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec.Code, env
}

func (ts *testServer) signUp(t *testing.T, email string) string {
	t.Helper()
	code, env := ts.do(t, http.MethodPost, "/api/auth/signup", "", gin.H{
		"email": email, "password": "secret123", "displayName": "Lydia",
	})
	require.Equal(t, http.StatusCreated, code)

	var resp struct {
		Token   string           `json:"token"`
		Profile query.ProfileDTO `json:"profile"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func (ts *testServer) seed(t *testing.T) {
	t.Helper()
	code, _ := ts.do(t, http.MethodPost, "/api/init-lessons", "", nil, handlers.HeaderAdminKey, testAdminKey)
	require.Equal(t, http.StatusCreated, code)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)

	code, env := ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)

	code, _ = ts.do(t, http.MethodGet, "/live", "", nil)
	assert.Equal(t, http.StatusOK, code)

	require.NoError(t, ts.store.Close())
	code, env = ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", env.Error.Code)
}

func TestAuthFlow(t *testing.T) {
	ts := newTestServer(t, nil)
	token := ts.signUp(t, "lydia@example.com")

	code, env := ts.do(t, http.MethodPost, "/api/auth/signup", "", gin.H{"email": "Lydia@Example.com", "password": "secret123"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "already_exists", env.Error.Code)

	code, env = ts.do(t, http.MethodPost, "/api/auth/signin", "", gin.H{"email": "lydia@example.com", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "unauthorized", env.Error.Code)

	code, _ = ts.do(t, http.MethodPost, "/api/auth/signin", "", gin.H{"email": "lydia@example.com", "password": "secret123"})
	assert.Equal(t, http.StatusOK, code)

	code, env = ts.do(t, http.MethodPost, "/api/auth/signup", "", gin.H{"email": "x@example.com"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_request", env.Error.Code)

	code, env = ts.do(t, http.MethodGet, "/api/me", token, nil)
	require.Equal(t, http.StatusOK, code)
	var profile query.ProfileDTO
	require.NoError(t, json.Unmarshal(env.Data, &profile))
	assert.Equal(t, "lydia@example.com", profile.Email)
	assert.Equal(t, 0, profile.TotalXP)
	assert.Equal(t, 1, profile.Level)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	ts := newTestServer(t, nil)

	code, env := ts.do(t, http.MethodGet, "/api/dashboard", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "missing_token", env.Error.Code)

	code, _ = ts.do(t, http.MethodGet, "/api/lessons", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestInitLessons(t *testing.T) {
	ts := newTestServer(t, nil)

	code, env := ts.do(t, http.MethodPost, "/api/init-lessons", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "invalid_admin_key", env.Error.Code)

	code, env = ts.do(t, http.MethodPost, "/api/init-lessons", "", nil, handlers.HeaderAdminKey, testAdminKey)
	require.Equal(t, http.StatusCreated, code)
	var result command.SeedLessonsResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, 5, result.Seeded)

	code, env = ts.do(t, http.MethodPost, "/api/init-lessons", "", nil, handlers.HeaderAdminKey, testAdminKey)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.True(t, result.Skipped)

	code, env = ts.do(t, http.MethodPost, "/api/init-lessons?force=", "", nil, handlers.HeaderAdminKey, testAdminKey)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.True(t, result.Skipped)

	code, env = ts.do(t, http.MethodPost, "/api/init-lessons?force=true", "", nil, handlers.HeaderAdminKey, testAdminKey)
	require.Equal(t, http.StatusCreated, code)
	result = command.SeedLessonsResult{}
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.False(t, result.Skipped)
	assert.Equal(t, 5, result.Seeded)
}

func TestInitLessons_RejectsMalformedForce(t *testing.T) {
	ts := newTestServer(t, nil)

	for _, raw := range []string{"yes", "2", "maybe"} {
		code, env := ts.do(t, http.MethodPost, "/api/init-lessons?force="+raw, "", nil, handlers.HeaderAdminKey, testAdminKey)
		assert.Equal(t, http.StatusBadRequest, code, "force=%s", raw)
		assert.Equal(t, "invalid_force", env.Error.Code)
	}

	code, env := ts.do(t, http.MethodGet, "/api/lessons", ts.signUp(t, "lydia@example.com"), nil)
	require.Equal(t, http.StatusOK, code)
	var list query.ListLessonsResult
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Empty(t, list.Lessons)
}

func TestCompleteLessonFlow(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.seed(t)
	token := ts.signUp(t, "timothy@example.com")

	code, env := ts.do(t, http.MethodGet, "/api/lessons", token, nil)
	require.Equal(t, http.StatusOK, code)
	var list query.ListLessonsResult
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list.Lessons, 5)
	first := list.Lessons[0].ID

	code, env = ts.do(t, http.MethodGet, "/api/lessons/"+first, token, nil)
	require.Equal(t, http.StatusOK, code)
	var dto query.LessonDTO
	require.NoError(t, json.Unmarshal(env.Data, &dto))
	assert.NotEmpty(t, dto.Content)

	code, env = ts.do(t, http.MethodPost, "/api/lessons/"+first+"/complete", token, nil)
	require.Equal(t, http.StatusOK, code)
	var result command.CompleteLessonResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, 10, result.XPGained)
	assert.Equal(t, 10, result.NewTotalXP)
	assert.Equal(t, 1, result.NewStreak)

	code, env = ts.do(t, http.MethodPost, "/api/lessons/"+first+"/complete", token, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "already_completed", env.Error.Code)

	code, env = ts.do(t, http.MethodPost, "/api/lessons/missing/complete", token, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_found", env.Error.Code)

	code, env = ts.do(t, http.MethodGet, "/api/dashboard", token, nil)
	require.Equal(t, http.StatusOK, code)
	var dash query.DashboardDTO
	require.NoError(t, json.Unmarshal(env.Data, &dash))
	assert.Equal(t, 10, dash.Profile.TotalXP)
	assert.Equal(t, 1, dash.CompletedCount)
	require.NotNil(t, dash.NextLesson)
	assert.Equal(t, list.Lessons[1].ID, dash.NextLesson.ID)

	code, env = ts.do(t, http.MethodGet, "/api/activity?limit=10", token, nil)
	require.Equal(t, http.StatusOK, code)
	var feed query.ActivityDTO
	require.NoError(t, json.Unmarshal(env.Data, &feed))
	kinds := make([]string, 0, len(feed.Entries))
	for _, e := range feed.Entries {
		kinds = append(kinds, string(e.Kind))
	}
	assert.Contains(t, kinds, "lesson_completed")
	assert.Contains(t, kinds, "joined")

	code, env = ts.do(t, http.MethodGet, "/api/activity?limit=abc", token, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_limit", env.Error.Code)
}

func TestListLessonsDegradesOnCatalogOutage(t *testing.T) {
	ts := newTestServer(t, failingCatalog{})
	token := ts.signUp(t, "silas@example.com")

	code, env := ts.do(t, http.MethodGet, "/api/lessons", token, nil)
	require.Equal(t, http.StatusOK, code)
	var list query.ListLessonsResult
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Empty(t, list.Lessons)

	code, env = ts.do(t, http.MethodGet, "/api/dashboard", token, nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unavailable", env.Error.Code)
}

func TestUnknownRoute(t *testing.T) {
	ts := newTestServer(t, nil)
	code, env := ts.do(t, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "route_not_found", env.Error.Code)
}
