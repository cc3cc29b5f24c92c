package telephony

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const DefaultVapiBaseURL = "https://api.vapi.ai"

// VapiProvider dispatches calls through the Vapi REST API.
// Credentials travel with each request so a config change needs no restart.
type VapiProvider struct {
	client *resty.Client
}

func NewVapiProvider(baseURL string, timeout time.Duration) *VapiProvider {
	if baseURL == "" {
		baseURL = DefaultVapiBaseURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &VapiProvider{client: client}
}

func (p *VapiProvider) Name() string { return "vapi" }

type vapiCustomer struct {
	Number string `json:"number"`
	Name   string `json:"name,omitempty"`
}

type vapiAssistantOverrides struct {
	VariableValues map[string]string `json:"variableValues,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

type vapiCreateCall struct {
	AssistantID        string                 `json:"assistantId"`
	PhoneNumberID      string                 `json:"phoneNumberId"`
	Customer           vapiCustomer           `json:"customer"`
	AssistantOverrides vapiAssistantOverrides `json:"assistantOverrides"`
}

type vapiCall struct {
	ID string `json:"id"`
}

// vapiError is the error body; message is a string or a list of strings.
type vapiError struct {
	Message json.RawMessage `json:"message"`
	Error   string          `json:"error"`
}

func (e vapiError) reason() string {
	var s string
	if err := json.Unmarshal(e.Message, &s); err == nil && s != "" {
		return s
	}
	var list []string
	if err := json.Unmarshal(e.Message, &list); err == nil && len(list) > 0 {
		return strings.Join(list, "; ")
	}
	return e.Error
}

func (p *VapiProvider) Dispatch(ctx context.Context, req DispatchRequest) (DispatchResult, error) {
	if err := req.Validate(); err != nil {
		return DispatchResult{}, err
	}

	body := vapiCreateCall{
		AssistantID:   req.Credentials.AssistantID,
		PhoneNumberID: req.Credentials.PhoneNumberID,
		Customer:      vapiCustomer{Number: req.To, Name: req.CustomerName},
		AssistantOverrides: vapiAssistantOverrides{
			VariableValues: req.Variables,
			Metadata: map[string]string{
				MetadataCorrelationKey: req.CorrelationID,
				MetadataCampaignKey:    req.CampaignID,
			},
		},
	}

	var (
		out     vapiCall
		errBody vapiError
	)
	resp, err := p.client.R().
		SetContext(ctx).
		SetAuthToken(req.Credentials.APIKey).
		SetBody(body).
		SetResult(&out).
		SetError(&errBody).
		Post("/call")
	if err != nil {
		return DispatchResult{}, fmt.Errorf("vapi create call: %w", err)
	}
	if resp.IsError() {
		reason := errBody.reason()
		if reason == "" {
			reason = strings.TrimSpace(resp.String())
		}
		return DispatchResult{}, &DispatchError{StatusCode: resp.StatusCode(), Reason: reason}
	}
	if out.ID == "" {
		return DispatchResult{}, fmt.Errorf("vapi create call: response missing call id")
	}
	return DispatchResult{ExternalCallID: out.ID}, nil
}
