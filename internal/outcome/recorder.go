package outcome

import (
	"context"
	"errors"
	"fmt"
	"time"

	"voice-outreach/internal/audit"
	"voice-outreach/internal/calls"
	"voice-outreach/internal/metrics"
	"voice-outreach/internal/telephony"
	"voice-outreach/pkg/logger"
)

type Store interface {
	GetBusiness(ctx context.Context, id string) (calls.CampaignBusiness, error)
	FindByExternalCallID(ctx context.Context, callID string) (calls.CampaignBusiness, error)
	GetVoiceConfig(ctx context.Context) (calls.VoiceConfig, bool, error)
	RecordOutcome(ctx context.Context, id string, o calls.Outcome, at time.Time) (bool, error)
}

// RetryPlanner picks the next attempt before the outcome is written and
// reports it once the write has landed.
type RetryPlanner interface {
	PlanRetry(b calls.CampaignBusiness, status calls.CallStatus, maxAttempts int) (time.Time, bool)
	RetryScheduled(ctx context.Context, b calls.CampaignBusiness, status calls.CallStatus, next time.Time)
}

type CompletionChecker interface {
	CheckCampaignCompletion(ctx context.Context, campaignID string, maxAttempts int) (bool, error)
}

// Recorder applies end-of-call reports to campaign businesses.
//
// Only IN_PROGRESS rows are updated, so duplicate or late reports are no-ops.
type Recorder struct {
	Store      Store
	Retries    RetryPlanner
	Completion CompletionChecker
	Audit      audit.Recorder
	Metrics    *metrics.Metrics
	Now        func() time.Time
}

func NewRecorder(store Store, retries RetryPlanner, completion CompletionChecker) *Recorder {
	return &Recorder{Store: store, Retries: retries, Completion: completion, Now: time.Now}
}

func (r *Recorder) HandleCallReport(ctx context.Context, report telephony.CallReport) error {
	log := logger.From(ctx)

	b, err := r.resolve(ctx, report)
	if err != nil {
		return err
	}
	log = log.With("campaign_id", b.CampaignID, "campaign_business_id", b.ID)
	if b.CallStatus != calls.CallStatusInProgress {
		log.Info("call report ignored, business not in progress", "status", b.CallStatus)
		return nil
	}

	maxAttempts := calls.DefaultMaxAttempts
	cfg, ok, err := r.Store.GetVoiceConfig(ctx)
	if err != nil {
		return fmt.Errorf("load voice config: %w", err)
	}
	if ok {
		maxAttempts = cfg.AttemptCeiling()
	}

	out := Process(report)
	if out.Status.IsRetryable() && b.CallAttempts >= maxAttempts {
		out.Status = calls.CallStatusRetriesExhausted
	}
	if out.Status.IsRetryable() && r.Retries != nil {
		if next, ok := r.Retries.PlanRetry(b, out.Status, maxAttempts); ok {
			out.NextCallAt = &next
		}
	}

	applied, err := r.Store.RecordOutcome(ctx, b.ID, out, r.now())
	if err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	if !applied {
		log.Info("call report ignored, outcome already recorded")
		return nil
	}
	r.Metrics.Outcome(string(out.Status))
	log.Info("call outcome recorded",
		"status", out.Status,
		"attempts", b.CallAttempts,
		"ended_reason", report.EndedReason,
	)
	audit.TryAppend(ctx, r.Audit, audit.Event{
		Type:               audit.EventTypeOutcomeRecorded,
		CampaignID:         b.CampaignID,
		CampaignBusinessID: b.ID,
		FromStatus:         string(calls.CallStatusInProgress),
		ToStatus:           string(out.Status),
		Message:            report.EndedReason,
	})

	if out.NextCallAt != nil {
		r.Retries.RetryScheduled(ctx, b, out.Status, *out.NextCallAt)
	}

	if r.Completion != nil {
		if _, err := r.Completion.CheckCampaignCompletion(ctx, b.CampaignID, maxAttempts); err != nil {
			log.Error("completion check failed", "err", err)
		}
	}
	return nil
}

// resolve finds the business by correlation id, falling back to the
// provider call id.
func (r *Recorder) resolve(ctx context.Context, report telephony.CallReport) (calls.CampaignBusiness, error) {
	if report.CorrelationID != "" {
		b, err := r.Store.GetBusiness(ctx, report.CorrelationID)
		if err == nil {
			return b, nil
		}
		if !errors.Is(err, calls.ErrNotFound) {
			return calls.CampaignBusiness{}, fmt.Errorf("load business: %w", err)
		}
	}
	if report.ExternalCallID != "" {
		b, err := r.Store.FindByExternalCallID(ctx, report.ExternalCallID)
		if err == nil {
			return b, nil
		}
		if !errors.Is(err, calls.ErrNotFound) {
			return calls.CampaignBusiness{}, fmt.Errorf("find by call id: %w", err)
		}
	}
	return calls.CampaignBusiness{}, telephony.ErrUnknownCall
}

func (r *Recorder) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}
