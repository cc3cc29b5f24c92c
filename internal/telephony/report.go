package telephony

import (
	"context"
	"errors"
)

// Metadata keys carried on the provider call and echoed back in the report.
const (
	MetadataCorrelationKey = "campaignBusinessId"
	MetadataCampaignKey    = "campaignId"
)

// ErrUnknownCall is returned by a ReportSink when a report matches no call.
var ErrUnknownCall = errors.New("telephony: unknown call")

// CallReport is the provider-agnostic end-of-call result.
// Empty strings mean the provider did not send the field.
type CallReport struct {
	ExternalCallID string
	CorrelationID  string
	CampaignID     string

	EndedReason string

	Summary      string
	Transcript   string
	RecordingURL string

	// DurationSeconds is nil when the provider omitted it.
	DurationSeconds *float64

	Analysis *Analysis
}

// Analysis is the structured data the assistant extracted from the conversation.
type Analysis struct {
	Outcome      string
	Summary      string
	ContactName  string
	ContactEmail string
	ContactPhone string
	CallbackTime string
}

// ReportSink consumes end-of-call reports.
type ReportSink interface {
	HandleCallReport(ctx context.Context, report CallReport) error
}
