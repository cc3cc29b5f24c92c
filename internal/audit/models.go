package audit

import "time"

// Event is an immutable, append-only record of an outreach state change.
//
// Invariants:
// - Events are never updated or deleted.
// - campaign_id is always set; campaign_business_id is set for per-business events.
// - Audit capture is best-effort; it never blocks dispatch or screening.
//
// Storage (Postgres): table audit_events, INSERT only.

type Event struct {
	ID string `json:"id" db:"id"`

	Type EventType `json:"type" db:"type"`

	CampaignID         string `json:"campaign_id" db:"campaign_id"`
	CampaignBusinessID string `json:"campaign_business_id,omitempty" db:"campaign_business_id"`

	FromStatus string `json:"from_status,omitempty" db:"from_status"`
	ToStatus   string `json:"to_status,omitempty" db:"to_status"`

	// Actor is the operator user id, or "system" for scheduled work.
	Actor string `json:"actor,omitempty" db:"actor"`

	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeScreened          EventType = "screened"
	EventTypeDispatched        EventType = "dispatched"
	EventTypeDispatchFailed    EventType = "dispatch_failed"
	EventTypeOutcomeRecorded   EventType = "outcome_recorded"
	EventTypeRetryScheduled    EventType = "retry_scheduled"
	EventTypeCampaignCompleted EventType = "campaign_completed"
	EventTypeCampaignPaused    EventType = "campaign_paused"
	EventTypeCampaignResumed   EventType = "campaign_resumed"
)

const ActorSystem = "system"
