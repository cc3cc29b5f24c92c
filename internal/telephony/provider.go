package telephony

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"voice-outreach/internal/calls"
)

// Provider places outbound AI-voice calls.
//
// Rules:
// - No provider SDK or HTTP calls outside telephony adapters.
// - Request/response types stay provider-agnostic.
// - Results arrive later through the webhook as a CallReport.
type Provider interface {
	Name() string
	Dispatch(ctx context.Context, req DispatchRequest) (DispatchResult, error)
}

// DispatchRequest is one outbound call.
type DispatchRequest struct {
	Credentials calls.ProviderCredentials

	// To is the E.164 target number.
	To string
	// CustomerName is shown to the assistant as the business display name.
	CustomerName string

	// Variables are substituted into the assistant prompt.
	Variables map[string]string

	// CorrelationID links the callback back to the CampaignBusiness row.
	CorrelationID string
	CampaignID    string
}

func (r DispatchRequest) Validate() error {
	if r.To == "" {
		return errors.New("telephony: target number required")
	}
	if r.CorrelationID == "" {
		return errors.New("telephony: correlation id required")
	}
	if r.Credentials.AssistantID == "" || r.Credentials.PhoneNumberID == "" {
		return errors.New("telephony: assistant and phone number ids required")
	}
	return nil
}

type DispatchResult struct {
	ExternalCallID string `json:"external_call_id"`
}

// DispatchError is a provider rejection with its machine-readable reason.
// Transport failures are returned as plain errors.
type DispatchError struct {
	StatusCode int
	Reason     string
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("provider rejected call (%d): %s", e.StatusCode, e.Reason)
}

// InvalidNumber reports whether the provider rejected the target number itself.
func (e *DispatchError) InvalidNumber() bool {
	r := strings.ToLower(e.Reason)
	switch {
	case strings.Contains(r, "invalid") && strings.Contains(r, "number"):
		return true
	case strings.Contains(r, "not a valid phone"):
		return true
	case strings.Contains(r, "e.164") || strings.Contains(r, "e164"):
		return true
	}
	return false
}

// IsInvalidNumber reports whether err is a provider rejection of the number.
func IsInvalidNumber(err error) bool {
	var de *DispatchError
	return errors.As(err, &de) && de.InvalidNumber()
}
