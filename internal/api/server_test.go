package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/myerscreative/doloop-sub000/internal/aigen"
	"github.com/myerscreative/doloop-sub000/internal/appstate"
	"github.com/myerscreative/doloop-sub000/internal/health"
	"github.com/myerscreative/doloop-sub000/internal/metrics"
	"github.com/myerscreative/doloop-sub000/internal/models"
	"github.com/myerscreative/doloop-sub000/internal/store"
	"github.com/myerscreative/doloop-sub000/internal/streak"
	"github.com/myerscreative/doloop-sub000/internal/templates"
)

type stubProvider struct{ response string }

func (p *stubProvider) GenerateLoopJSON(ctx context.Context, prompt string) (string, error) {
	return p.response, nil
}

// testApp creates a Fiber app with all routes over a temp store.
func testApp(t *testing.T, cfg ServerConfig) (*fiber.App, *store.Store) {
	t.Helper()
	logger := zerolog.Nop()

	st, err := store.New(filepath.Join(t.TempDir(), "api-test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	checker := health.NewChecker(logger)
	m := metrics.New()
	provider := &stubProvider{
		response: `{"name":"Generated","color":"teal","resetRule":"daily","tasks":[{"description":"one","isRecurring":true}]}`,
	}
	gen := aigen.NewService(st, provider, aigen.NewPromptRules(), aigen.Limits{Hourly: 5}, logger)

	h := NewHandlers(
		st,
		streak.NewService(st, logger),
		templates.NewService(st, logger),
		gen,
		appstate.NewManager(st, logger),
		checker,
		m,
		logger,
	)

	srv := NewServer(cfg, h, m, logger)
	return srv.App(), st
}

func noAuthApp(t *testing.T) (*fiber.App, *store.Store) {
	t.Helper()
	return testApp(t, ServerConfig{AuthConfig: AuthConfig{Mode: "none"}})
}

func doJSON(t *testing.T, app *fiber.App, method, path, body, user string, admin bool) *http.Response {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	if admin {
		req.Header.Set("X-Admin", "true")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestServer_Healthz(t *testing.T) {
	app, _ := noAuthApp(t)

	resp := doJSON(t, app, "GET", "/healthz", "", "", false)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	decodeBody(t, resp, &body)
	assert.Equal(t, "ok", body["status"])
}

func TestServer_LoopLifecycle(t *testing.T) {
	app, _ := noAuthApp(t)

	resp := doJSON(t, app, "POST", "/api/v1/loops",
		`{"title":"Morning","color":"teal","reset_rule":"daily","tasks":[{"description":"stretch","is_recurring":true},{"description":"journal","is_recurring":true}]}`,
		"user-1", false)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var loop models.LoopRow
	decodeBody(t, resp, &loop)
	assert.Equal(t, "user-1", loop.OwnerID)
	assert.NotEmpty(t, loop.ID)

	resp = doJSON(t, app, "GET", "/api/v1/loops/"+loop.ID, "", "user-1", false)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var lr LoopResponse
	decodeBody(t, resp, &lr)
	assert.Equal(t, 2, lr.Total)
	assert.Equal(t, 0, lr.Completed)
	require.Len(t, lr.Tasks, 2)

	// toggle the first task done
	resp = doJSON(t, app, "POST", "/api/v1/tasks/"+lr.Tasks[0].ID+"/toggle",
		`{"done":true}`, "user-1", false)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, app, "GET", "/api/v1/loops/"+loop.ID, "", "user-1", false)
	decodeBody(t, resp, &lr)
	assert.Equal(t, 1, lr.Completed)

	resp = doJSON(t, app, "DELETE", "/api/v1/loops/"+loop.ID, "", "user-1", false)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, app, "GET", "/api/v1/loops/"+loop.ID, "", "user-1", false)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_LoopOwnershipEnforced(t *testing.T) {
	app, _ := noAuthApp(t)

	resp := doJSON(t, app, "POST", "/api/v1/loops",
		`{"title":"Private","color":"coral","reset_rule":"manual"}`, "user-1", false)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var loop models.LoopRow
	decodeBody(t, resp, &loop)

	resp = doJSON(t, app, "GET", "/api/v1/loops/"+loop.ID, "", "user-2", false)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	var problem ProblemDetail
	decodeBody(t, resp, &problem)
	assert.Equal(t, "not_owner", problem.Type)

	// admins can read any loop
	resp = doJSON(t, app, "GET", "/api/v1/loops/"+loop.ID, "", "user-2", true)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_ReloopManualLoop(t *testing.T) {
	app, _ := noAuthApp(t)

	resp := doJSON(t, app, "POST", "/api/v1/loops",
		`{"title":"Packing","color":"gold","reset_rule":"manual","tasks":[{"description":"passport","is_recurring":true}]}`,
		"user-1", false)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var loop models.LoopRow
	decodeBody(t, resp, &loop)

	resp = doJSON(t, app, "POST", "/api/v1/loops/"+loop.ID+"/reloop", `{}`, "user-1", false)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var outcome streak.ReloopOutcome
	decodeBody(t, resp, &outcome)
	assert.True(t, outcome.Executed)
}

func TestServer_ReloopNotYetEligible(t *testing.T) {
	app, _ := noAuthApp(t)

	resp := doJSON(t, app, "POST", "/api/v1/loops",
		`{"title":"Daily","color":"teal","reset_rule":"daily"}`, "user-1", false)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var loop models.LoopRow
	decodeBody(t, resp, &loop)

	resp = doJSON(t, app, "POST", "/api/v1/loops/"+loop.ID+"/reloop", `{}`, "user-1", false)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var outcome streak.ReloopOutcome
	decodeBody(t, resp, &outcome)
	assert.False(t, outcome.Executed)
	assert.Equal(t, "not yet eligible", outcome.Reason)

	// the long-press override forces it
	resp = doJSON(t, app, "POST", "/api/v1/loops/"+loop.ID+"/reloop", `{"force":true}`, "user-1", false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &outcome)
	assert.True(t, outcome.Executed)
}

func TestServer_TemplateWritesRequireAdmin(t *testing.T) {
	app, _ := noAuthApp(t)

	body := `{"creator_id":"","name":"Starter","color":"sage","reset_rule":"daily","tasks":[{"description":"one"}]}`
	resp := doJSON(t, app, "POST", "/api/v1/templates", body, "user-1", false)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestServer_TemplateCatalogAndUse(t *testing.T) {
	app, st := noAuthApp(t)

	require.NoError(t, st.SaveCreator(&models.TemplateCreator{ID: "creator-1", Name: "Jo"}))

	body := `{"creator_id":"creator-1","name":"Starter","color":"sage","reset_rule":"daily","published":true,"tasks":[{"description":"one","is_recurring":true},{"description":"two","is_recurring":true}]}`
	resp := doJSON(t, app, "POST", "/api/v1/templates", body, "admin-1", true)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var tpl models.LoopTemplate
	decodeBody(t, resp, &tpl)
	require.NotEmpty(t, tpl.ID)

	resp = doJSON(t, app, "GET", "/api/v1/templates", "", "user-1", false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list struct {
		Templates []*models.LoopTemplate `json:"templates"`
	}
	decodeBody(t, resp, &list)
	require.Len(t, list.Templates, 1)

	resp = doJSON(t, app, "POST", "/api/v1/templates/"+tpl.ID+"/use", "", "user-1", false)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var loop models.LoopRow
	decodeBody(t, resp, &loop)
	assert.Equal(t, "user-1", loop.OwnerID)
	assert.Equal(t, "Starter", loop.Title)

	tasks, err := st.ListTasks(loop.ID)
	require.NoError(t, err)
	assert.Len(t, tasks, 2)
}

func TestServer_UnpublishedTemplateHiddenFromUsers(t *testing.T) {
	app, st := noAuthApp(t)

	require.NoError(t, st.SaveCreator(&models.TemplateCreator{ID: "creator-1", Name: "Jo"}))
	body := `{"creator_id":"creator-1","name":"Draft","color":"teal","reset_rule":"manual","published":false,"tasks":[{"description":"one"}]}`
	resp := doJSON(t, app, "POST", "/api/v1/templates", body, "admin-1", true)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var tpl models.LoopTemplate
	decodeBody(t, resp, &tpl)

	resp = doJSON(t, app, "GET", "/api/v1/templates/"+tpl.ID, "", "user-1", false)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doJSON(t, app, "GET", "/api/v1/templates/"+tpl.ID, "", "admin-1", true)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_Reviews(t *testing.T) {
	app, st := noAuthApp(t)

	require.NoError(t, st.SaveCreator(&models.TemplateCreator{ID: "creator-1", Name: "Jo"}))
	body := `{"creator_id":"creator-1","name":"Starter","color":"teal","reset_rule":"daily","published":true,"tasks":[{"description":"one"}]}`
	resp := doJSON(t, app, "POST", "/api/v1/templates", body, "admin-1", true)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var tpl models.LoopTemplate
	decodeBody(t, resp, &tpl)

	resp = doJSON(t, app, "POST", "/api/v1/templates/"+tpl.ID+"/reviews",
		`{"rating":5,"comment":"great"}`, "user-1", false)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, app, "POST", "/api/v1/templates/"+tpl.ID+"/reviews",
		`{"rating":9}`, "user-1", false)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, app, "GET", "/api/v1/templates/"+tpl.ID+"/reviews", "", "user-1", false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rl struct {
		Reviews []*models.TemplateReview `json:"reviews"`
	}
	decodeBody(t, resp, &rl)
	assert.Len(t, rl.Reviews, 1)
}

func TestServer_AffiliateTracking(t *testing.T) {
	app, _ := noAuthApp(t)

	resp := doJSON(t, app, "POST", "/api/v1/affiliate/track_affiliate_click",
		`{"creator_id":"creator-1","ref_code":"JO10","visitor_id":"v-1"}`, "", false)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, app, "POST", "/api/v1/affiliate/mark_affiliate_conversion",
		`{"ref_code":"JO10","visitor_id":"v-1"}`, "", false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var conv map[string]bool
	decodeBody(t, resp, &conv)
	assert.True(t, conv["converted"])

	// unknown click converts nothing
	resp = doJSON(t, app, "POST", "/api/v1/affiliate/mark_affiliate_conversion",
		`{"ref_code":"NOPE","visitor_id":"v-2"}`, "", false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &conv)
	assert.False(t, conv["converted"])
}

func TestServer_GenerateAILoop(t *testing.T) {
	app, st := noAuthApp(t)

	resp := doJSON(t, app, "POST", "/functions/v1/generate_ai_loop",
		`{"prompt":"a simple morning routine","userId":"user-1"}`, "user-1", false)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res aigen.GenerateResult
	decodeBody(t, resp, &res)
	require.True(t, res.Success)
	require.NotNil(t, res.Loop)
	assert.Equal(t, "Generated", res.Loop.Title)

	loops, err := st.ListLoops("user-1")
	require.NoError(t, err)
	assert.Len(t, loops, 1)
}

func TestServer_GenerateAILoopRejectsBadPrompt(t *testing.T) {
	app, _ := noAuthApp(t)

	resp := doJSON(t, app, "POST", "/functions/v1/generate_ai_loop",
		`{"prompt":"","userId":"user-1"}`, "user-1", false)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res aigen.GenerateResult
	decodeBody(t, resp, &res)
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
}

func TestServer_GenerateAILoopRateLimit(t *testing.T) {
	app, _ := noAuthApp(t)

	for i := 0; i < 5; i++ {
		resp := doJSON(t, app, "POST", "/functions/v1/generate_ai_loop",
			fmt.Sprintf(`{"prompt":"routine number %d","userId":"user-1"}`, i), "user-1", false)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp := doJSON(t, app, "POST", "/functions/v1/generate_ai_loop",
		`{"prompt":"one more routine","userId":"user-1"}`, "user-1", false)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	var res aigen.GenerateResult
	decodeBody(t, resp, &res)
	require.NotNil(t, res.Limits)
	assert.Equal(t, 5, res.Limits.Hourly)
}

func TestServer_JWTAuth(t *testing.T) {
	secret := "test-secret"
	app, _ := testApp(t, ServerConfig{AuthConfig: AuthConfig{Mode: "jwt", Secret: secret}})

	// no token
	req, _ := http.NewRequest("GET", "/api/v1/loops", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// probes stay open
	req, _ = http.NewRequest("GET", "/healthz", nil)
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// valid token
	token, err := GenerateToken([]byte(secret), "user-1", false, time.Hour)
	require.NoError(t, err)
	req, _ = http.NewRequest("GET", "/api/v1/loops", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// token signed with another secret
	bad, err := GenerateToken([]byte("other-secret"), "user-1", false, time.Hour)
	require.NoError(t, err)
	req, _ = http.NewRequest("GET", "/api/v1/loops", nil)
	req.Header.Set("Authorization", "Bearer "+bad)
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServer_AdminClaimGatesTemplateWrites(t *testing.T) {
	secret := "test-secret"
	app, st := testApp(t, ServerConfig{AuthConfig: AuthConfig{Mode: "jwt", Secret: secret}})
	require.NoError(t, st.SaveCreator(&models.TemplateCreator{ID: "creator-1", Name: "Jo"}))

	body := `{"creator_id":"creator-1","name":"Starter","color":"teal","reset_rule":"daily","tasks":[{"description":"one"}]}`

	userToken, err := GenerateToken([]byte(secret), "user-1", false, time.Hour)
	require.NoError(t, err)
	req, _ := http.NewRequest("POST", "/api/v1/templates", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+userToken)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	adminToken, err := GenerateToken([]byte(secret), "admin-1", true, time.Hour)
	require.NoError(t, err)
	req, _ = http.NewRequest("POST", "/api/v1/templates", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+adminToken)
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestServer_StreakEndpoint(t *testing.T) {
	app, st := noAuthApp(t)

	// empty streak comes back zeroed, not 404
	resp := doJSON(t, app, "GET", "/api/v1/streak", "", "user-1", false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var us models.UserStreak
	decodeBody(t, resp, &us)
	assert.Zero(t, us.CurrentStreak)

	require.NoError(t, st.SaveUserStreak(&models.UserStreak{
		UserID: "user-1", CurrentStreak: 3, LongestStreak: 7, LastCompletedDate: "2026-08-30",
	}))
	resp = doJSON(t, app, "GET", "/api/v1/streak", "", "user-1", false)
	decodeBody(t, resp, &us)
	assert.Equal(t, 3, us.CurrentStreak)
	assert.Equal(t, 7, us.LongestStreak)
}

func TestServer_ThemeVibe(t *testing.T) {
	app, st := noAuthApp(t)

	resp := doJSON(t, app, "PUT", "/api/v1/profile/theme_vibe",
		`{"theme_vibe":"dusk"}`, "user-1", false)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	p, err := st.GetProfile("user-1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "dusk", p.ThemeVibe)
}

func TestServer_AnalyticsRequireAdmin(t *testing.T) {
	app, _ := noAuthApp(t)

	resp := doJSON(t, app, "GET", "/api/v1/analytics/dashboard", "", "user-1", false)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = doJSON(t, app, "GET", "/api/v1/analytics/dashboard", "", "admin-1", true)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
