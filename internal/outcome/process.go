package outcome

import (
	"math"
	"strings"

	"voice-outreach/internal/calls"
	"voice-outreach/internal/telephony"
)

var voicemailReasons = map[string]bool{
	"voicemail":          true,
	"voicemail-detected": true,
}

var noAnswerReasons = map[string]bool{
	"customer-did-not-answer": true,
	"customer-busy":           true,
	"no-answer":               true,
}

// analysisStatuses maps the assistant's outcome label to a call status.
var analysisStatuses = map[string]calls.CallStatus{
	"LEAD_CAPTURED":      calls.CallStatusLeadCaptured,
	"CALLBACK_BOOKED":    calls.CallStatusCallbackBooked,
	"NOT_INTERESTED":     calls.CallStatusNotInterested,
	"VOICEMAIL":          calls.CallStatusVoicemail,
	"GATEKEEPER_BLOCKED": calls.CallStatusGatekeeperBlocked,
	"GATEKEEPER":         calls.CallStatusGatekeeperBlocked,
	"NO_ANSWER":          calls.CallStatusNoAnswer,
}

// Process maps a call report to its fixed-shape outcome. It is pure.
//
// Precedence: a voicemail end reason, then the assistant's analysis, then a
// no-answer end reason, and FAILED otherwise.
func Process(r telephony.CallReport) calls.Outcome {
	out := calls.Outcome{
		Status:       classify(r),
		EndedReason:  optional(r.EndedReason),
		CallSummary:  optional(r.Summary),
		Transcript:   optional(r.Transcript),
		RecordingURL: optional(r.RecordingURL),
		CallDuration: seconds(r.DurationSeconds),
	}
	if a := r.Analysis; a != nil {
		if out.CallSummary == nil {
			out.CallSummary = optional(a.Summary)
		}
		out.ExtractedName = optional(a.ContactName)
		out.ExtractedEmail = optional(a.ContactEmail)
		out.ExtractedPhone = optional(a.ContactPhone)
		out.CallbackTime = optional(a.CallbackTime)
	}
	return out
}

func classify(r telephony.CallReport) calls.CallStatus {
	reason := strings.ToLower(strings.TrimSpace(r.EndedReason))
	if voicemailReasons[reason] {
		return calls.CallStatusVoicemail
	}
	if r.Analysis != nil {
		if s, ok := analysisStatuses[normalizeLabel(r.Analysis.Outcome)]; ok {
			return s
		}
	}
	if noAnswerReasons[reason] {
		return calls.CallStatusNoAnswer
	}
	return calls.CallStatusFailed
}

func normalizeLabel(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}

// optional passes s through unchanged; only an absent value becomes nil.
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func seconds(d *float64) *int {
	if d == nil || *d < 0 || math.IsNaN(*d) {
		return nil
	}
	n := int(math.Round(*d))
	return &n
}
