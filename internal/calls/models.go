package calls

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("calls: not found")

// CampaignBusiness is one (campaign, business) pairing being called.
//
// Rows are never deleted; they are the record of the outreach attempt.
// CallAttempts only increases. Nullable outcome fields stay nil when the
// provider did not report them, never "".
type CampaignBusiness struct {
	ID           string `json:"id" db:"id"`
	CampaignID   string `json:"campaign_id" db:"campaign_id"`
	BusinessID   string `json:"business_id" db:"business_id"`
	BusinessName string `json:"business_name" db:"business_name"`

	// Phone is the number on file for the business, free-form. Empty means none.
	Phone string `json:"phone,omitempty" db:"phone"`

	CallStatus   CallStatus `json:"call_status" db:"call_status"`
	CallAttempts int        `json:"call_attempts" db:"call_attempts"`
	LastCallAt   *time.Time `json:"last_call_at,omitempty" db:"last_call_at"`
	NextCallAt   *time.Time `json:"next_call_at,omitempty" db:"next_call_at"`
	ScreenedAt   *time.Time `json:"screened_at,omitempty" db:"screened_at"`

	ExternalCallID *string `json:"external_call_id,omitempty" db:"external_call_id"`
	EndedReason    *string `json:"ended_reason,omitempty" db:"ended_reason"`

	CallSummary    *string `json:"call_summary,omitempty" db:"call_summary"`
	Transcript     *string `json:"transcript,omitempty" db:"transcript"`
	RecordingURL   *string `json:"recording_url,omitempty" db:"recording_url"`
	CallDuration   *int    `json:"call_duration,omitempty" db:"call_duration"`
	ExtractedName  *string `json:"extracted_name,omitempty" db:"extracted_name"`
	ExtractedEmail *string `json:"extracted_email,omitempty" db:"extracted_email"`
	ExtractedPhone *string `json:"extracted_phone,omitempty" db:"extracted_phone"`
	CallbackTime   *string `json:"callback_time,omitempty" db:"callback_time"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsCallable reports whether the row would be returned by the callable query.
// PENDING rows must have been through compliance screening first.
func (b CampaignBusiness) IsCallable(now time.Time, maxAttempts int) bool {
	if b.Phone == "" {
		return false
	}
	switch b.CallStatus {
	case CallStatusPending:
		return b.ScreenedAt != nil
	case CallStatusQueued:
		return true
	case CallStatusVoicemail, CallStatusNoAnswer:
		return b.CallAttempts < maxAttempts && b.NextCallAt != nil && !b.NextCallAt.After(now)
	default:
		return false
	}
}

// Outcome is the fixed-shape result of decoding a provider result callback.
type Outcome struct {
	Status      CallStatus `json:"call_status"`
	EndedReason *string    `json:"ended_reason,omitempty"`

	CallSummary    *string `json:"call_summary"`
	Transcript     *string `json:"transcript"`
	RecordingURL   *string `json:"recording_url"`
	CallDuration   *int    `json:"call_duration"`
	ExtractedName  *string `json:"extracted_name"`
	ExtractedEmail *string `json:"extracted_email"`
	ExtractedPhone *string `json:"extracted_phone"`
	CallbackTime   *string `json:"callback_time"`

	// NextCallAt is written with the status so a retryable row is never left
	// without a retry time.
	NextCallAt *time.Time `json:"next_call_at,omitempty"`
}

// Campaign is one outreach run for a location.
type Campaign struct {
	ID         string         `json:"id" db:"id"`
	Name       string         `json:"name" db:"name"`
	LocationID string         `json:"location_id,omitempty" db:"location_id"`
	Status     CampaignStatus `json:"status" db:"status"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at" db:"updated_at"`
}

const LocationStatusLive = "LIVE"

// Location is the tracked place a campaign was built for.
type Location struct {
	ID     string `json:"id" db:"id"`
	Name   string `json:"name" db:"name"`
	Status string `json:"status" db:"status"`
}

func (l Location) IsLive() bool { return l.Status == LocationStatusLive }

const (
	MinBatchSize = 1
	MaxBatchSize = 5

	MinAttempts = 1
	MaxAttempts = 5

	DefaultMaxAttempts = 3
)

// ProviderCredentials identify the voice provider account and assistant.
type ProviderCredentials struct {
	APIKey        string `json:"-"`
	AssistantID   string `json:"assistant_id"`
	PhoneNumberID string `json:"phone_number_id"`
}

// VoiceConfig is the global outreach configuration.
// It is loaded once per invocation and passed by value.
type VoiceConfig struct {
	Credentials    ProviderCredentials `json:"credentials"`
	CallingEnabled bool                `json:"calling_enabled"`
	MaxConcurrent  int                 `json:"max_concurrent"`
	MaxAttempts    int                 `json:"max_attempts"`
}

// BatchSize resolves the number of businesses to dispatch in one batch.
// A non-positive request falls back to MaxConcurrent.
func (c VoiceConfig) BatchSize(requested int) int {
	n := requested
	if n <= 0 {
		n = c.MaxConcurrent
	}
	return clamp(n, MinBatchSize, MaxBatchSize)
}

// AttemptCeiling is MaxAttempts bounded to 1..5.
func (c VoiceConfig) AttemptCeiling() int {
	if c.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return clamp(c.MaxAttempts, MinAttempts, MaxAttempts)
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

// CallableQuery selects the next businesses to dial for a campaign.
type CallableQuery struct {
	CampaignID  string
	MaxAttempts int
	Now         time.Time
	Limit       int
}
