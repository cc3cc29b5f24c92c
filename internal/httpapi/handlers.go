package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"voice-outreach/internal/auth"
	"voice-outreach/internal/calls"
	"voice-outreach/internal/campaigns"
	"voice-outreach/internal/compliance"
	"voice-outreach/internal/dispatch"
	"voice-outreach/internal/rbac"
	"voice-outreach/internal/reporting"
	"voice-outreach/pkg/logger"

	"github.com/gin-gonic/gin"
)

type Dispatcher interface {
	ProcessNextCalls(ctx context.Context, campaignID string, maxConcurrent int, skipWindowCheck bool) (int, error)
}

type Screener interface {
	ScreenCampaign(ctx context.Context, campaignID string) (compliance.Result, error)
}

type Reporter interface {
	CampaignStats(ctx context.Context, campaignID string) (reporting.CampaignStats, error)
	CheckCampaignCompletion(ctx context.Context, campaignID string, maxAttempts int) (bool, error)
}

type Lifecycle interface {
	Pause(ctx context.Context, id, actor string) (calls.Campaign, error)
	Resume(ctx context.Context, id, actor string) (calls.Campaign, error)
}

type VoiceConfigSource interface {
	GetVoiceConfig(ctx context.Context) (calls.VoiceConfig, bool, error)
}

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth       *auth.Manager
	Dispatcher Dispatcher
	Screener   Screener
	Reporting  Reporter
	Campaigns  Lifecycle
	Config     VoiceConfigSource
}

// --- Identity ---

func (h Handlers) Me(c *gin.Context) {
	ctx := c.Request.Context()
	uid, _ := auth.UserID(ctx)
	role, _ := auth.Role(ctx)
	c.JSON(http.StatusOK, gin.H{"user_id": uid, "role": role})
}

type issueTokenRequest struct {
	UserID  string `json:"user_id"`
	Role    string `json:"role"`
	Service bool   `json:"service"`
}

// IssueToken mints an access token, or a long-lived service token for the
// dispatch scheduler. RBAC: admin.
func (h Handlers) IssueToken(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req issueTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || !rbac.IsKnown(req.Role) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id and a known role are required"})
		return
	}

	issue := h.Auth.IssueAccess
	kind := auth.TokenTypeAccess
	if req.Service {
		issue = h.Auth.IssueService
		kind = auth.TokenTypeService
	}
	tok, err := issue(time.Now(), req.UserID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	logger.FromGin(c).Info("token issued",
		"subject", req.UserID,
		"role", req.Role,
		"token_type", kind,
		"actor", auth.Actor(c.Request.Context()),
	)
	c.JSON(http.StatusOK, gin.H{"token": tok, "token_type": kind})
}

// --- Campaign operations ---

type dispatchRequest struct {
	MaxConcurrent int  `json:"max_concurrent"`
	SkipWindow    bool `json:"skip_window"`
}

// Dispatch runs one batch for the campaign. This is what the external
// scheduler calls every few minutes. skip_window is admin-only.
func (h Handlers) Dispatch(c *gin.Context) {
	if h.Dispatcher == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "dispatcher not configured"})
		return
	}
	var req dispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.SkipWindow {
		role, _ := auth.Role(c.Request.Context())
		if !rbac.IsAdmin(role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "skip_window requires admin"})
			return
		}
	}

	n, err := h.Dispatcher.ProcessNextCalls(c.Request.Context(), c.Param("id"), req.MaxConcurrent, req.SkipWindow)
	if err != nil {
		writeError(c, err, "dispatch failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"dispatched": n})
}

func (h Handlers) Screen(c *gin.Context) {
	if h.Screener == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "screener not configured"})
		return
	}
	res, err := h.Screener.ScreenCampaign(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err, "screening failed")
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h Handlers) Stats(c *gin.Context) {
	if h.Reporting == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reporting not configured"})
		return
	}
	stats, err := h.Reporting.CampaignStats(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err, "stats lookup failed")
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h Handlers) CompletionCheck(c *gin.Context) {
	if h.Reporting == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reporting not configured"})
		return
	}
	ctx := c.Request.Context()

	maxAttempts := calls.DefaultMaxAttempts
	if h.Config != nil {
		cfg, ok, err := h.Config.GetVoiceConfig(ctx)
		if err != nil {
			writeError(c, err, "voice config lookup failed")
			return
		}
		if ok {
			maxAttempts = cfg.AttemptCeiling()
		}
	}

	done, err := h.Reporting.CheckCampaignCompletion(ctx, c.Param("id"), maxAttempts)
	if err != nil {
		writeError(c, err, "completion check failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"completed": done})
}

func (h Handlers) Pause(c *gin.Context) {
	h.lifecycle(c, func(ctx context.Context, id, actor string) (calls.Campaign, error) {
		return h.Campaigns.Pause(ctx, id, actor)
	})
}

func (h Handlers) Resume(c *gin.Context) {
	h.lifecycle(c, func(ctx context.Context, id, actor string) (calls.Campaign, error) {
		return h.Campaigns.Resume(ctx, id, actor)
	})
}

func (h Handlers) lifecycle(c *gin.Context, move func(ctx context.Context, id, actor string) (calls.Campaign, error)) {
	if h.Campaigns == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "campaigns not configured"})
		return
	}
	ctx := c.Request.Context()
	camp, err := move(ctx, c.Param("id"), auth.Actor(ctx))
	if err != nil {
		writeError(c, err, "status change failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": camp.ID, "status": camp.Status})
}

// writeError maps package sentinels to status codes. Anything unrecognised
// is logged and reported as a generic 500.
func writeError(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, dispatch.ErrInvalidArgument),
		errors.Is(err, compliance.ErrInvalidArgument),
		errors.Is(err, reporting.ErrInvalidRequest),
		errors.Is(err, campaigns.ErrInvalidArgument):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "campaign id required"})
	case errors.Is(err, campaigns.ErrNotFound), errors.Is(err, calls.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "campaign not found"})
	case errors.Is(err, campaigns.ErrInvalidTransition):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": msg})
	default:
		logger.FromGin(c).Error(msg, "campaign_id", c.Param("id"), "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": msg})
	}
}
