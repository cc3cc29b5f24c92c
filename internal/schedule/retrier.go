package schedule

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"voice-outreach/internal/audit"
	"voice-outreach/internal/calls"
	"voice-outreach/internal/metrics"
	"voice-outreach/pkg/logger"
)

type RetryStore interface {
	GetBusiness(ctx context.Context, id string) (calls.CampaignBusiness, error)
	SetNextCallAt(ctx context.Context, id string, next, at time.Time) error
}

// Retrier persists the next retry time for soft-failed businesses.
type Retrier struct {
	Store   RetryStore
	Audit   audit.Recorder
	Metrics *metrics.Metrics
	Now     func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

func NewRetrier(store RetryStore, rng *rand.Rand) *Retrier {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Retrier{Store: store, Now: time.Now, rng: rng}
}

// ScheduleRetry sets nextCallAt for a VOICEMAIL/NO_ANSWER business that still
// has attempts left. It returns scheduled=false when the business does not
// qualify; that is not an error.
func (r *Retrier) ScheduleRetry(ctx context.Context, campaignBusinessID string, maxAttempts int) (time.Time, bool, error) {
	b, err := r.Store.GetBusiness(ctx, campaignBusinessID)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("load business: %w", err)
	}
	next, ok := r.PlanRetry(b, b.CallStatus, maxAttempts)
	if !ok {
		return time.Time{}, false, nil
	}
	if err := r.Store.SetNextCallAt(ctx, b.ID, next, r.now()); err != nil {
		return time.Time{}, false, fmt.Errorf("set next_call_at: %w", err)
	}
	r.RetryScheduled(ctx, b, b.CallStatus, next)
	return next, true, nil
}

// PlanRetry computes the next attempt for b once it holds status. It does
// not write anything, so callers can persist the time together with the
// outcome.
func (r *Retrier) PlanRetry(b calls.CampaignBusiness, status calls.CallStatus, maxAttempts int) (time.Time, bool) {
	if !status.IsRetryable() || b.CallAttempts >= maxAttempts {
		return time.Time{}, false
	}
	now := r.now()
	last := now
	if b.LastCallAt != nil {
		last = *b.LastCallAt
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return NextRetryAt(last, now, r.rng), true
}

// RetryScheduled reports a persisted retry.
func (r *Retrier) RetryScheduled(ctx context.Context, b calls.CampaignBusiness, status calls.CallStatus, next time.Time) {
	r.Metrics.RetryScheduled()
	logger.From(ctx).Info("retry scheduled",
		"campaign_id", b.CampaignID,
		"campaign_business_id", b.ID,
		"status", status,
		"attempts", b.CallAttempts,
		"next_call_at", next,
	)
	audit.TryAppend(ctx, r.Audit, audit.Event{
		Type:               audit.EventTypeRetryScheduled,
		CampaignID:         b.CampaignID,
		CampaignBusinessID: b.ID,
		FromStatus:         string(status),
		ToStatus:           string(status),
		Message:            "next attempt at " + next.Format(time.RFC3339),
	})
}

func (r *Retrier) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}
