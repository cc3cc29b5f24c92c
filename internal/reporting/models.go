package reporting

import "voice-outreach/internal/calls"

// CampaignStats are per-status business counts for one campaign.
//
// Every status is always present, zero included, so dashboards render a
// stable set of columns.
type CampaignStats struct {
	CampaignID string `json:"campaign_id"`

	Pending    int `json:"pending"`
	Queued     int `json:"queued"`
	InProgress int `json:"in_progress"`

	Voicemail int `json:"voicemail"`
	NoAnswer  int `json:"no_answer"`

	LeadCaptured      int `json:"lead_captured"`
	CallbackBooked    int `json:"callback_booked"`
	NotInterested     int `json:"not_interested"`
	GatekeeperBlocked int `json:"gatekeeper_blocked"`
	InvalidNumber     int `json:"invalid_number"`
	Failed            int `json:"failed"`
	CTPSBlocked       int `json:"ctps_blocked"`
	RetriesExhausted  int `json:"retries_exhausted"`

	Total int `json:"total"`

	// Conversions is leads plus booked callbacks.
	Conversions    int     `json:"conversions"`
	ConversionRate float64 `json:"conversion_rate"`
}

func newCampaignStats(campaignID string, counts map[calls.CallStatus]int) CampaignStats {
	out := CampaignStats{CampaignID: campaignID}
	fields := map[calls.CallStatus]*int{
		calls.CallStatusPending:           &out.Pending,
		calls.CallStatusQueued:            &out.Queued,
		calls.CallStatusInProgress:        &out.InProgress,
		calls.CallStatusVoicemail:         &out.Voicemail,
		calls.CallStatusNoAnswer:          &out.NoAnswer,
		calls.CallStatusLeadCaptured:      &out.LeadCaptured,
		calls.CallStatusCallbackBooked:    &out.CallbackBooked,
		calls.CallStatusNotInterested:     &out.NotInterested,
		calls.CallStatusGatekeeperBlocked: &out.GatekeeperBlocked,
		calls.CallStatusInvalidNumber:     &out.InvalidNumber,
		calls.CallStatusFailed:            &out.Failed,
		calls.CallStatusCTPSBlocked:       &out.CTPSBlocked,
		calls.CallStatusRetriesExhausted:  &out.RetriesExhausted,
	}
	for status, n := range counts {
		out.Total += n
		if f, ok := fields[status]; ok {
			*f += n
		}
	}
	out.Conversions = out.LeadCaptured + out.CallbackBooked
	if out.Total > 0 {
		out.ConversionRate = float64(out.Conversions) / float64(out.Total)
	}
	return out
}
