package telephony

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"voice-outreach/internal/calls"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRequest() DispatchRequest {
	return DispatchRequest{
		Credentials: calls.ProviderCredentials{
			APIKey:        "sk-test",
			AssistantID:   "asst-1",
			PhoneNumberID: "pn-1",
		},
		To:            "+447700900001",
		CustomerName:  "Acme Plumbing",
		Variables:     map[string]string{"businessName": "Acme Plumbing"},
		CorrelationID: "cb-1",
		CampaignID:    "c-1",
	}
}

func TestVapiProvider_Dispatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/call", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "asst-1", body["assistantId"])
		assert.Equal(t, "pn-1", body["phoneNumberId"])
		customer := body["customer"].(map[string]any)
		assert.Equal(t, "+447700900001", customer["number"])
		overrides := body["assistantOverrides"].(map[string]any)
		meta := overrides["metadata"].(map[string]any)
		assert.Equal(t, "cb-1", meta[MetadataCorrelationKey])
		assert.Equal(t, "c-1", meta[MetadataCampaignKey])

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"call-123","status":"queued"}`))
	}))
	defer srv.Close()

	p := NewVapiProvider(srv.URL, time.Second)
	res, err := p.Dispatch(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "call-123", res.ExternalCallID)
}

func TestVapiProvider_Rejection(t *testing.T) {
	cases := []struct {
		name          string
		body          string
		invalidNumber bool
	}{
		{"string message", `{"message":"Invalid phone number format","statusCode":400}`, true},
		{"list message", `{"message":["customer.number must be a valid phone number in E.164 format"],"statusCode":400}`, true},
		{"other", `{"message":"Assistant not found","statusCode":400}`, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := NewVapiProvider(srv.URL, time.Second).Dispatch(context.Background(), testRequest())
			require.Error(t, err)
			var de *DispatchError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, http.StatusBadRequest, de.StatusCode)
			assert.Equal(t, tc.invalidNumber, IsInvalidNumber(err))
		})
	}
}

func TestVapiProvider_MissingCallID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := NewVapiProvider(srv.URL, time.Second).Dispatch(context.Background(), testRequest())
	assert.Error(t, err)
	assert.False(t, IsInvalidNumber(err))
}

func TestDispatchRequest_Validate(t *testing.T) {
	req := testRequest()
	require.NoError(t, req.Validate())

	req.To = ""
	assert.Error(t, req.Validate())

	req = testRequest()
	req.Credentials.AssistantID = ""
	assert.Error(t, req.Validate())
}
