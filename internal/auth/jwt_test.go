package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"voice-outreach/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(config.AuthConfig{
		JWTSecret:       "secret",
		JWTIssuer:       "issuer",
		JWTAudience:     "aud",
		AccessTokenTTL:  15 * time.Minute,
		ServiceTokenTTL: 30 * 24 * time.Hour,
	})
	require.NoError(t, err)
	return m
}

func TestIssueAndVerifyAccessToken(t *testing.T) {
	m := testManager(t)
	now := time.Unix(1700000000, 0).UTC()

	tok, err := m.IssueAccess(now, "user-1", "operator")
	require.NoError(t, err)

	claims, err := m.Verify(tok, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "operator", claims.Role)
	assert.Equal(t, TokenTypeAccess, claims.TokenType)
}

func TestVerify_AccessTokenExpires(t *testing.T) {
	m := testManager(t)
	now := time.Unix(1700000000, 0).UTC()

	tok, err := m.IssueAccess(now, "user-1", "operator")
	require.NoError(t, err)
	_, err = m.Verify(tok, now.Add(time.Hour))
	assert.Error(t, err)
}

func TestVerify_ServiceTokenOutlivesAccess(t *testing.T) {
	m := testManager(t)
	now := time.Unix(1700000000, 0).UTC()

	tok, err := m.IssueService(now, "scheduler", "scheduler")
	require.NoError(t, err)
	claims, err := m.Verify(tok, now.Add(7*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, TokenTypeService, claims.TokenType)
}

func TestVerify_RejectsOtherSecretAndAudience(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	other, err := NewManager(config.AuthConfig{JWTSecret: "other", AccessTokenTTL: time.Minute})
	require.NoError(t, err)
	tok, err := other.IssueAccess(now, "u", "admin")
	require.NoError(t, err)

	_, err = testManager(t).Verify(tok, now)
	assert.Error(t, err)
}

func TestIssue_RequiresIdentity(t *testing.T) {
	_, err := testManager(t).IssueAccess(time.Now(), "", "admin")
	assert.Error(t, err)
	_, err = testManager(t).IssueAccess(time.Now(), "u", "")
	assert.Error(t, err)
}

func TestRequireToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := testManager(t)

	r := gin.New()
	r.GET("/me", RequireToken(m), func(c *gin.Context) {
		uid, _ := UserID(c.Request.Context())
		role, _ := Role(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"user_id": uid, "role": role, "actor": Actor(c.Request.Context())})
	})

	tok, err := m.IssueAccess(time.Now(), "user-1", "viewer")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user_id":"user-1"`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
