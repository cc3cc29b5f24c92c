package telephony

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const VapiEndOfCallReport = "end-of-call-report"

// VapiServerMessage is the envelope Vapi posts to the server URL.
// Ref: https://docs.vapi.ai/server-url/events
type VapiServerMessage struct {
	Message VapiMessage `json:"message"`
}

// VapiMessage captures the subset of server message fields we care about.
type VapiMessage struct {
	Type        string `json:"type"`
	EndedReason string `json:"endedReason"`

	Call struct {
		ID                 string            `json:"id"`
		Metadata           map[string]string `json:"metadata"`
		AssistantOverrides struct {
			Metadata map[string]string `json:"metadata"`
		} `json:"assistantOverrides"`
	} `json:"call"`

	Summary         string   `json:"summary"`
	Transcript      string   `json:"transcript"`
	RecordingURL    string   `json:"recordingUrl"`
	DurationSeconds *float64 `json:"durationSeconds"`

	Artifact struct {
		Transcript   string `json:"transcript"`
		RecordingURL string `json:"recordingUrl"`
	} `json:"artifact"`

	Analysis *struct {
		Summary        string         `json:"summary"`
		StructuredData map[string]any `json:"structuredData"`
	} `json:"analysis"`
}

func ParseVapiMessage(body []byte) (VapiMessage, error) {
	var env VapiServerMessage
	if err := json.Unmarshal(body, &env); err != nil {
		return VapiMessage{}, fmt.Errorf("decode vapi message: %w", err)
	}
	if env.Message.Type == "" {
		return VapiMessage{}, errors.New("decode vapi message: missing type")
	}
	return env.Message, nil
}

func (m VapiMessage) IsEndOfCallReport() bool {
	return m.Type == VapiEndOfCallReport
}

func (m VapiMessage) ToCallReport() CallReport {
	r := CallReport{
		ExternalCallID:  strings.TrimSpace(m.Call.ID),
		CorrelationID:   m.metadata(MetadataCorrelationKey),
		CampaignID:      m.metadata(MetadataCampaignKey),
		EndedReason:     strings.TrimSpace(m.EndedReason),
		Summary:         firstNonEmpty(m.Summary),
		Transcript:      firstNonEmpty(m.Artifact.Transcript, m.Transcript),
		RecordingURL:    firstNonEmpty(m.Artifact.RecordingURL, m.RecordingURL),
		DurationSeconds: m.DurationSeconds,
	}
	if m.Analysis != nil {
		sd := m.Analysis.StructuredData
		r.Summary = firstNonEmpty(m.Analysis.Summary, r.Summary)
		r.Analysis = &Analysis{
			Outcome:      pick(sd, "outcome", "callOutcome"),
			Summary:      strings.TrimSpace(m.Analysis.Summary),
			ContactName:  pick(sd, "contactName", "name", "decisionMakerName"),
			ContactEmail: pick(sd, "contactEmail", "email"),
			ContactPhone: pick(sd, "contactPhone", "phone", "directNumber"),
			CallbackTime: pick(sd, "callbackTime", "callback_time", "callbackAt"),
		}
	}
	return r
}

func (m VapiMessage) metadata(key string) string {
	if v := strings.TrimSpace(m.Call.AssistantOverrides.Metadata[key]); v != "" {
		return v
	}
	return strings.TrimSpace(m.Call.Metadata[key])
}

// pick returns the first non-empty string value among keys.
func pick(data map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := data[k].(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
