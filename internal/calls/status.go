package calls

// CallStatus is the per-business call state.
type CallStatus string

const (
	CallStatusPending    CallStatus = "PENDING"
	CallStatusQueued     CallStatus = "QUEUED"
	CallStatusInProgress CallStatus = "IN_PROGRESS"

	// Soft outcomes, retried until the attempt ceiling.
	CallStatusVoicemail CallStatus = "VOICEMAIL"
	CallStatusNoAnswer  CallStatus = "NO_ANSWER"

	CallStatusLeadCaptured      CallStatus = "LEAD_CAPTURED"
	CallStatusCallbackBooked    CallStatus = "CALLBACK_BOOKED"
	CallStatusNotInterested     CallStatus = "NOT_INTERESTED"
	CallStatusGatekeeperBlocked CallStatus = "GATEKEEPER_BLOCKED"
	CallStatusInvalidNumber     CallStatus = "INVALID_NUMBER"
	CallStatusFailed            CallStatus = "FAILED"
	CallStatusCTPSBlocked       CallStatus = "CTPS_BLOCKED"
	CallStatusRetriesExhausted  CallStatus = "RETRIES_EXHAUSTED"
)

// AllCallStatuses lists every status in display order.
var AllCallStatuses = []CallStatus{
	CallStatusPending,
	CallStatusQueued,
	CallStatusInProgress,
	CallStatusVoicemail,
	CallStatusNoAnswer,
	CallStatusLeadCaptured,
	CallStatusCallbackBooked,
	CallStatusNotInterested,
	CallStatusGatekeeperBlocked,
	CallStatusInvalidNumber,
	CallStatusFailed,
	CallStatusCTPSBlocked,
	CallStatusRetriesExhausted,
}

// statusClass is the classification every status must have.
// A status missing from this table is invalid; TestEveryStatusIsClassified
// keeps AllCallStatuses and the table in lockstep.
type statusClass int

const (
	classActive statusClass = iota + 1
	classRetryable
	classTerminal
)

var callStatusClass = map[CallStatus]statusClass{
	CallStatusPending:           classActive,
	CallStatusQueued:            classActive,
	CallStatusInProgress:        classActive,
	CallStatusVoicemail:         classRetryable,
	CallStatusNoAnswer:          classRetryable,
	CallStatusLeadCaptured:      classTerminal,
	CallStatusCallbackBooked:    classTerminal,
	CallStatusNotInterested:     classTerminal,
	CallStatusGatekeeperBlocked: classTerminal,
	CallStatusInvalidNumber:     classTerminal,
	CallStatusFailed:            classTerminal,
	CallStatusCTPSBlocked:       classTerminal,
	CallStatusRetriesExhausted:  classTerminal,
}

func (s CallStatus) Valid() bool {
	_, ok := callStatusClass[s]
	return ok
}

// IsTerminal reports whether a business in this status is never selected again.
func (s CallStatus) IsTerminal() bool { return callStatusClass[s] == classTerminal }

// IsRetryable reports whether the status is a soft contact failure.
func (s CallStatus) IsRetryable() bool { return callStatusClass[s] == classRetryable }

// TerminalCallStatuses returns the terminal statuses in display order.
func TerminalCallStatuses() []CallStatus {
	out := make([]CallStatus, 0, len(AllCallStatuses))
	for _, s := range AllCallStatuses {
		if s.IsTerminal() {
			out = append(out, s)
		}
	}
	return out
}

// IsOpen reports whether a business still has work left: it is neither
// terminal nor a soft outcome that has used up its attempts.
func IsOpen(status CallStatus, attempts, maxAttempts int) bool {
	if status.IsTerminal() {
		return false
	}
	if status.IsRetryable() && attempts >= maxAttempts {
		return false
	}
	return true
}

var callTransitions = map[CallStatus][]CallStatus{
	CallStatusPending: {CallStatusInProgress, CallStatusInvalidNumber, CallStatusCTPSBlocked},
	CallStatusQueued:  {CallStatusInProgress, CallStatusInvalidNumber, CallStatusCTPSBlocked},
	CallStatusInProgress: {
		CallStatusVoicemail,
		CallStatusNoAnswer,
		CallStatusLeadCaptured,
		CallStatusCallbackBooked,
		CallStatusNotInterested,
		CallStatusGatekeeperBlocked,
		CallStatusInvalidNumber,
		CallStatusFailed,
		CallStatusRetriesExhausted,
	},
	CallStatusVoicemail: {CallStatusInProgress, CallStatusRetriesExhausted},
	CallStatusNoAnswer:  {CallStatusInProgress, CallStatusRetriesExhausted},
}

// CanTransition reports whether the call state machine allows from -> to.
func (s CallStatus) CanTransition(to CallStatus) bool {
	for _, next := range callTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// CampaignStatus is the campaign lifecycle state.
type CampaignStatus string

const (
	CampaignStatusCreated       CampaignStatus = "CREATED"
	CampaignStatusEnriching     CampaignStatus = "ENRICHING"
	CampaignStatusEnriched      CampaignStatus = "ENRICHED"
	CampaignStatusReadyToLaunch CampaignStatus = "READY_TO_LAUNCH"
	CampaignStatusCalling       CampaignStatus = "CALLING"
	CampaignStatusCompleted     CampaignStatus = "COMPLETED"
	CampaignStatusPaused        CampaignStatus = "PAUSED"
)

var campaignTransitions = map[CampaignStatus][]CampaignStatus{
	CampaignStatusCreated:       {CampaignStatusEnriching},
	CampaignStatusEnriching:     {CampaignStatusEnriched},
	CampaignStatusEnriched:      {CampaignStatusReadyToLaunch},
	CampaignStatusReadyToLaunch: {CampaignStatusCalling},
	CampaignStatusCalling:       {CampaignStatusCompleted, CampaignStatusPaused},
	CampaignStatusPaused:        {CampaignStatusCalling},
}

// CanTransition reports whether the campaign lifecycle allows from -> to.
// Status only moves forward, except CALLING <-> PAUSED.
func (s CampaignStatus) CanTransition(to CampaignStatus) bool {
	for _, next := range campaignTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}
