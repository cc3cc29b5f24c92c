package telephony

import (
	"crypto/subtle"
	"errors"
	"io"
	"net/http"

	"voice-outreach/pkg/logger"

	"github.com/gin-gonic/gin"
)

const headerVapiSecret = "X-Vapi-Secret"

// maxWebhookBody caps the payload; transcripts can be long.
const maxWebhookBody = 4 << 20

// VoiceWebhookHandler converts the provider's server messages to CallReports
// and hands them to the sink.
//
// No business logic here.
type VoiceWebhookHandler struct {
	Sink ReportSink

	// Secret must match the X-Vapi-Secret header when set.
	Secret string
}

func (h VoiceWebhookHandler) HandleEvent(c *gin.Context) {
	log := logger.FromGin(c)

	if h.Sink == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "report sink not configured"})
		return
	}
	if h.Secret != "" && subtle.ConstantTimeCompare([]byte(c.GetHeader(headerVapiSecret)), []byte(h.Secret)) != 1 {
		log.Warn("voice webhook rejected: bad secret")
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			log.Error("voice webhook body too large", "limit", tooLarge.Limit)
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload too large"})
			return
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}
	msg, err := ParseVapiMessage(body)
	if err != nil {
		log.Warn("voice webhook parse failed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if !msg.IsEndOfCallReport() {
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	report := msg.ToCallReport()
	ctx := logger.With(c.Request.Context(), log.With(
		"external_call_id", report.ExternalCallID,
		"campaign_business_id", report.CorrelationID,
	))
	err = h.Sink.HandleCallReport(ctx, report)
	switch {
	case errors.Is(err, ErrUnknownCall):
		// A retry will not help; acknowledge so the provider stops resending.
		log.Warn("call report for unknown call", "external_call_id", report.ExternalCallID)
		c.JSON(http.StatusOK, gin.H{"status": "unknown_call"})
	case err != nil:
		log.Error("call report handling failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "report failed"})
	default:
		c.JSON(http.StatusOK, gin.H{"status": "recorded"})
	}
}
