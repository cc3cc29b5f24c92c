package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the outreach counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	dispatch         *prometheus.CounterVec
	dispatchSkipped  *prometheus.CounterVec
	screening        *prometheus.CounterVec
	outcomes         *prometheus.CounterVec
	retriesScheduled prometheus.Counter
	completed        prometheus.Counter
}

// Dispatch results.
const (
	DispatchPlaced        = "placed"
	DispatchInvalidNumber = "invalid_number"
	DispatchFailed        = "failed"
	DispatchLostRace      = "lost_race"
)

// Skip reasons for a whole dispatch invocation.
const (
	SkipWindowClosed      = "window_closed"
	SkipCallingDisabled   = "calling_disabled"
	SkipCampaignNotActive = "campaign_not_calling"
	SkipLocationOffline   = "location_offline"
	SkipLocked            = "locked"
	SkipUnscreened        = "unscreened"
)

// Screening results.
const (
	ScreenClear         = "clear"
	ScreenBlocked       = "blocked"
	ScreenInvalidNumber = "invalid_number"
	ScreenRegistryError = "registry_error"
)

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		dispatch: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outreach_dispatch_total",
			Help: "Per-business dispatch attempts by result.",
		}, []string{"result"}),
		dispatchSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outreach_dispatch_skipped_total",
			Help: "Dispatch invocations that placed no calls, by reason.",
		}, []string{"reason"}),
		screening: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outreach_screening_total",
			Help: "Compliance screening results.",
		}, []string{"result"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outreach_outcomes_total",
			Help: "Recorded call outcomes by call status.",
		}, []string{"status"}),
		retriesScheduled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "outreach_retries_scheduled_total",
			Help: "Retries scheduled for voicemail and no-answer outcomes.",
		}),
		completed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "outreach_campaigns_completed_total",
			Help: "Campaigns transitioned to COMPLETED.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.dispatch, m.dispatchSkipped, m.screening, m.outcomes, m.retriesScheduled, m.completed)
	}
	return m
}

func (m *Metrics) Dispatch(result string) {
	if m == nil {
		return
	}
	m.dispatch.WithLabelValues(result).Inc()
}

func (m *Metrics) DispatchSkipped(reason string) {
	if m == nil {
		return
	}
	m.dispatchSkipped.WithLabelValues(reason).Inc()
}

func (m *Metrics) Screening(result string) {
	if m == nil {
		return
	}
	m.screening.WithLabelValues(result).Inc()
}

func (m *Metrics) Outcome(status string) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(status).Inc()
}

func (m *Metrics) RetryScheduled() {
	if m == nil {
		return
	}
	m.retriesScheduled.Inc()
}

func (m *Metrics) CampaignCompleted() {
	if m == nil {
		return
	}
	m.completed.Inc()
}
