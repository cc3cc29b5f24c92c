package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"voice-outreach/internal/auth"
	"voice-outreach/internal/calls"
	"voice-outreach/internal/campaigns"
	"voice-outreach/internal/compliance"
	"voice-outreach/internal/config"
	"voice-outreach/internal/dispatch"
	"voice-outreach/internal/reporting"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dispatchCall struct {
	campaignID string
	max        int
	skip       bool
}

type fakeDispatcher struct {
	calls []dispatchCall
	n     int
}

func (f *fakeDispatcher) ProcessNextCalls(_ context.Context, id string, max int, skip bool) (int, error) {
	f.calls = append(f.calls, dispatchCall{id, max, skip})
	if id == "" {
		return 0, dispatch.ErrInvalidArgument
	}
	return f.n, nil
}

type apiFixture struct {
	router     *gin.Engine
	auth       *auth.Manager
	store      *calls.MemoryStore
	dispatcher *fakeDispatcher
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	m, err := auth.NewManager(config.AuthConfig{
		JWTSecret:       "secret",
		AccessTokenTTL:  time.Hour,
		ServiceTokenTTL: 24 * time.Hour,
	})
	require.NoError(t, err)

	store := calls.NewMemoryStore()
	store.PutCampaign(calls.Campaign{ID: "camp-1", Name: "Leeds cafes", Status: calls.CampaignStatusCalling})
	store.SetVoiceConfig(&calls.VoiceConfig{CallingEnabled: true, MaxConcurrent: 2, MaxAttempts: 2})

	d := &fakeDispatcher{n: 2}
	h := Handlers{
		Auth:       m,
		Dispatcher: d,
		Screener:   compliance.NewScreener(store, compliance.NotRegistered{}),
		Reporting:  reporting.NewService(store),
		Campaigns:  campaigns.NewService(store),
		Config:     store,
	}

	r := gin.New()
	v1 := r.Group("/v1")
	v1.Use(auth.RequireToken(m))
	h.Register(v1)

	return &apiFixture{router: r, auth: m, store: store, dispatcher: d}
}

func (f *apiFixture) do(t *testing.T, role, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if role != "" {
		tok, err := f.auth.IssueAccess(time.Now(), "user-"+role, role)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestDispatch(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, "operator", http.MethodPost, "/v1/campaigns/camp-1/dispatch", `{"max_concurrent":3}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decode(t, w)["dispatched"])
	assert.Equal(t, []dispatchCall{{"camp-1", 3, false}}, f.dispatcher.calls)

	w = f.do(t, "scheduler", http.MethodPost, "/v1/campaigns/camp-1/dispatch", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dispatchCall{"camp-1", 0, false}, f.dispatcher.calls[1])
}

func TestDispatch_SkipWindowIsAdminOnly(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, "operator", http.MethodPost, "/v1/campaigns/camp-1/dispatch", `{"skip_window":true}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, f.dispatcher.calls)

	w = f.do(t, "admin", http.MethodPost, "/v1/campaigns/camp-1/dispatch", `{"skip_window":true}`)
	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, f.dispatcher.calls, 1)
	assert.True(t, f.dispatcher.calls[0].skip)
}

func TestDispatch_RoleAndBodyChecks(t *testing.T) {
	f := newAPIFixture(t)

	assert.Equal(t, http.StatusUnauthorized, f.do(t, "", http.MethodPost, "/v1/campaigns/camp-1/dispatch", "").Code)
	assert.Equal(t, http.StatusForbidden, f.do(t, "viewer", http.MethodPost, "/v1/campaigns/camp-1/dispatch", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, "operator", http.MethodPost, "/v1/campaigns/camp-1/dispatch", `{"max_concurrent":`).Code)
}

func TestScreenAndStats(t *testing.T) {
	f := newAPIFixture(t)
	now := time.Now().UTC()
	f.store.PutBusiness(calls.CampaignBusiness{ID: "cb-1", CampaignID: "camp-1", BusinessName: "Cafe One", Phone: "0113 496 0000", CallStatus: calls.CallStatusPending, CreatedAt: now})
	f.store.PutBusiness(calls.CampaignBusiness{ID: "cb-2", CampaignID: "camp-1", BusinessName: "No Phone Ltd", CallStatus: calls.CallStatusPending, CreatedAt: now})
	f.store.PutBusiness(calls.CampaignBusiness{ID: "cb-3", CampaignID: "camp-1", BusinessName: "Won", Phone: "0113 496 0001", CallStatus: calls.CallStatusLeadCaptured, CreatedAt: now})

	w := f.do(t, "operator", http.MethodPost, "/v1/campaigns/camp-1/screen", "")
	require.Equal(t, http.StatusOK, w.Code)
	res := decode(t, w)
	assert.Equal(t, float64(1), res["screened"])
	assert.Equal(t, float64(1), res["skipped"])

	w = f.do(t, "viewer", http.MethodGet, "/v1/campaigns/camp-1/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode(t, w)
	assert.Equal(t, float64(3), stats["total"])
	assert.Equal(t, float64(2), stats["pending"])
	assert.Equal(t, float64(1), stats["lead_captured"])
}

func TestCompletionCheck(t *testing.T) {
	f := newAPIFixture(t)
	f.store.PutBusiness(calls.CampaignBusiness{ID: "cb-1", CampaignID: "camp-1", Phone: "0113 496 0000", CallStatus: calls.CallStatusVoicemail, CallAttempts: 1})

	w := f.do(t, "operator", http.MethodPost, "/v1/campaigns/camp-1/completion-check", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["completed"])

	// Voice config caps attempts at 2, so a second voicemail closes the row.
	f.store.PutBusiness(calls.CampaignBusiness{ID: "cb-1", CampaignID: "camp-1", Phone: "0113 496 0000", CallStatus: calls.CallStatusVoicemail, CallAttempts: 2})
	w = f.do(t, "operator", http.MethodPost, "/v1/campaigns/camp-1/completion-check", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["completed"])

	c, err := f.store.GetCampaign(context.Background(), "camp-1")
	require.NoError(t, err)
	assert.Equal(t, calls.CampaignStatusCompleted, c.Status)
}

func TestPauseResume(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, "operator", http.MethodPost, "/v1/campaigns/camp-1/pause", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "PAUSED", decode(t, w)["status"])

	w = f.do(t, "operator", http.MethodPost, "/v1/campaigns/camp-1/pause", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.do(t, "viewer", http.MethodPost, "/v1/campaigns/camp-1/resume", "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, "operator", http.MethodPost, "/v1/campaigns/camp-1/resume", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "CALLING", decode(t, w)["status"])

	w = f.do(t, "operator", http.MethodPost, "/v1/campaigns/missing/pause", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestIssueToken(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, "operator", http.MethodPost, "/v1/admin/tokens", `{"user_id":"cron","role":"scheduler","service":true}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, "admin", http.MethodPost, "/v1/admin/tokens", `{"user_id":"cron","role":"root"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, "admin", http.MethodPost, "/v1/admin/tokens", `{"user_id":"cron","role":"scheduler","service":true}`)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "service", body["token_type"])

	claims, err := f.auth.Verify(body["token"].(string), time.Now())
	require.NoError(t, err)
	assert.Equal(t, "scheduler", claims.Role)
	assert.Equal(t, auth.TokenTypeService, claims.TokenType)
}

func TestMe(t *testing.T) {
	f := newAPIFixture(t)
	w := f.do(t, "viewer", http.MethodGet, "/v1/me", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-viewer", decode(t, w)["user_id"])
}
