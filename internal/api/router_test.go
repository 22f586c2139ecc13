package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
	"tle_zone_contest/internal/api/middleware"
	"tle_zone_contest/internal/app/service"
	"tle_zone_contest/internal/common/security"
	"tle_zone_contest/internal/domain/model"
	"tle_zone_contest/internal/domain/rating"
	"tle_zone_contest/internal/domain/repository"
	"tle_zone_contest/internal/platform/clock"
	"tle_zone_contest/internal/platform/lock"
	"tle_zone_contest/internal/platform/metrics"
	"tle_zone_contest/internal/platform/queue"

	"github.com/go-chi/jwtauth/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWebhookSecret = "judge-secret"

var now = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

type apiEnv struct {
	server   *httptest.Server
	auth     *jwtauth.JWTAuth
	clock    *clock.Manual
	store    *repository.MemoryStore
	contests *service.ContestService
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	m := metrics.New()
	store := repository.NewMemoryStore()
	clk := clock.NewManual(now)
	auth := security.NewTokenAuth([]byte("router-test-secret"))

	ratings, err := service.NewRatingService(store, lock.NewLocalLocker(), clk, rating.DefaultParams(), m, logger)
	require.NoError(t, err)
	registrations := service.NewRegistrationService(store, store, clk, m, logger)
	contests := service.NewContestService(store, registrations, clk, time.Hour, logger)

	router := NewRouter(Dependencies{
		TokenAuth:     auth,
		Metrics:       m,
		Logger:        logger,
		WebhookSecret: testWebhookSecret,
		Auth:          service.NewAuthService(store, auth, time.Hour, logger),
		Contests:      contests,
		Registrations: registrations,
		Ratings:       ratings,
		Reports:       service.NewReportService(store, store, store, store, ratings, clk, m, logger),
		Finalization:  service.NewFinalizationService(store, queue.NewChannelFinalizationQueue(4), clk, m, logger),
		Webhook:       service.NewWebhookService(store, store, store, clk, m, logger),
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &apiEnv{server: srv, auth: auth, clock: clk, store: store, contests: contests}
}

func (e *apiEnv) token(t *testing.T, userID, role string) string {
	t.Helper()
	tok, err := security.GenerateTokenWith(e.auth, userID, role, time.Hour)
	require.NoError(t, err)
	return tok
}

func (e *apiEnv) do(t *testing.T, method, path, token string, body interface{}, headers ...string) (int, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func (e *apiEnv) createContest(t *testing.T, start time.Time, length time.Duration) *model.Contest {
	t.Helper()
	c, err := e.contests.CreateContest(context.Background(), "admin", service.CreateContestRequest{
		Name:      "Round " + start.Format("150405"),
		StartTime: start,
		EndTime:   start.Add(length),
		Problems:  []model.ContestProblem{{ProblemID: "p1", Marks: 100}},
	})
	require.NoError(t, err)
	return c
}

func TestHealth(t *testing.T) {
	env := newAPIEnv(t)
	resp, err := http.Get(env.server.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(env.server.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRegisterEndpoint(t *testing.T) {
	env := newAPIEnv(t)
	c := env.createContest(t, now.Add(2*time.Hour), time.Hour)
	path := "/api/v1/contests/" + c.ID + "/register"

	code, _ := env.do(t, http.MethodPost, path, "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	tok := env.token(t, "u1", model.RoleUser)
	for i := 0; i < 2; i++ {
		code, body := env.do(t, http.MethodPost, path, tok, nil)
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, true, body["registered"])
	}
	assert.Equal(t, 1, env.store.RegistrationCount(c.ID))

	code, body := env.do(t, http.MethodGet, "/api/v1/contests/"+c.ID+"/status?view=upcoming", tok, nil)
	require.Equal(t, http.StatusOK, code)
	action := body["action"].(map[string]interface{})
	assert.Equal(t, "Registered", action["kind"])
	assert.Equal(t, false, action["navigates"])

	code, _ = env.do(t, http.MethodPost, "/api/v1/contests/missing/register", tok, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestEnterEndpoint(t *testing.T) {
	env := newAPIEnv(t)
	c := env.createContest(t, now.Add(time.Hour), time.Hour)
	tok := env.token(t, "u1", model.RoleUser)
	path := "/api/v1/contests/" + c.ID + "/enter"

	code, _ := env.do(t, http.MethodPost, path, tok, nil)
	assert.Equal(t, http.StatusConflict, code)

	env.clock.Advance(70 * time.Minute)
	code, body := env.do(t, http.MethodPost, path, tok, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["entered"])
	assert.Equal(t, "/contests/"+c.ID+"/arena", body["path"])
}

func TestListContestsEndpoint(t *testing.T) {
	env := newAPIEnv(t)
	env.createContest(t, now.Add(-10*time.Minute), time.Hour)

	code, body := env.do(t, http.MethodGet, "/api/v1/contests?view=current", "", nil)
	require.Equal(t, http.StatusOK, code)
	contests := body["contests"].([]interface{})
	require.Len(t, contests, 1)
	status := contests[0].(map[string]interface{})["status"].(map[string]interface{})
	assert.Equal(t, "Live", status["phase"])

	code, _ = env.do(t, http.MethodGet, "/api/v1/contests?view=my", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = env.do(t, http.MethodGet, "/api/v1/contests?view=someday", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestAdminRoutes(t *testing.T) {
	env := newAPIEnv(t)
	req := map[string]interface{}{
		"name":       "Admin Round",
		"start_time": now.Add(time.Hour),
		"end_time":   now.Add(2 * time.Hour),
		"problems":   []map[string]interface{}{{"problem_id": "p1", "marks": 50}},
	}

	code, _ := env.do(t, http.MethodPost, "/api/v1/contests", env.token(t, "u1", model.RoleUser), req)
	assert.Equal(t, http.StatusForbidden, code)

	admin := env.token(t, "root", model.RoleAdmin)
	code, body := env.do(t, http.MethodPost, "/api/v1/contests", admin, req)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "admin-round", body["slug"])

	req["end_time"] = now
	code, _ = env.do(t, http.MethodPost, "/api/v1/contests", admin, req)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = env.do(t, http.MethodPost, "/api/v1/contests/"+body["id"].(string)+"/finalize", admin, nil)
	assert.Equal(t, http.StatusConflict, code)
}

func TestWebhookAndReport(t *testing.T) {
	env := newAPIEnv(t)
	c := env.createContest(t, now.Add(-30*time.Minute), time.Hour)
	tok := env.token(t, "u1", model.RoleUser)
	code, _ := env.do(t, http.MethodPost, "/api/v1/contests/"+c.ID+"/register", tok, nil)
	require.Equal(t, http.StatusOK, code)

	payload := service.JudgeResultsPayload{
		ContestID: c.ID,
		UserID:    "u1",
		Results: []service.JudgeProblemResult{
			{ProblemID: "p1", Status: model.StatusAccepted, TestCasesPassed: 3, TotalTestCases: 3, MarksAwarded: 100},
		},
	}
	code, _ = env.do(t, http.MethodPost, "/api/v1/webhook/results", "", payload)
	assert.Equal(t, http.StatusUnauthorized, code)
	code, body := env.do(t, http.MethodPost, "/api/v1/webhook/results", "", payload, middleware.WebhookSecretHeader, testWebhookSecret)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["stored"])

	code, _ = env.do(t, http.MethodGet, "/api/v1/contests/"+c.ID+"/report", tok, nil)
	assert.Equal(t, http.StatusConflict, code)

	env.clock.Advance(time.Hour)
	code, body = env.do(t, http.MethodGet, "/api/v1/contests/"+c.ID+"/report", tok, nil)
	require.Equal(t, http.StatusOK, code)
	result := body["result"].(map[string]interface{})
	assert.Equal(t, float64(1), result["rank"])
	assert.Equal(t, float64(100), result["percentage"])

	code, body = env.do(t, http.MethodGet, "/api/v1/users/me/ratings", tok, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["history"], 1)

	code, body = env.do(t, http.MethodGet, "/api/v1/users/u1/rating", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["contests_rated"])
}

func TestPrivateContestRoutes(t *testing.T) {
	env := newAPIEnv(t)
	private := false
	c, err := env.contests.CreateContest(context.Background(), "root", service.CreateContestRequest{
		Name:      "Staff Only",
		StartTime: now.Add(time.Hour),
		EndTime:   now.Add(2 * time.Hour),
		IsPublic:  &private,
		Problems:  []model.ContestProblem{{ProblemID: "p1", Marks: 10}},
	})
	require.NoError(t, err)
	base := "/api/v1/contests/" + c.ID

	user := env.token(t, "u1", model.RoleUser)
	code, _ := env.do(t, http.MethodPost, base+"/register", user, nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = env.do(t, http.MethodGet, base+"/status?view=upcoming", "", nil)
	assert.Equal(t, http.StatusNotFound, code)

	invite := map[string]string{"user_id": "u1"}
	code, _ = env.do(t, http.MethodPost, base+"/invite", user, invite)
	assert.Equal(t, http.StatusForbidden, code)
	code, body := env.do(t, http.MethodPost, base+"/invite", env.token(t, "root", model.RoleAdmin), invite)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["created"])

	code, _ = env.do(t, http.MethodPost, base+"/register", user, nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = env.do(t, http.MethodGet, base+"/status?view=upcoming", user, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, env.store.RegistrationCount(c.ID))
}
