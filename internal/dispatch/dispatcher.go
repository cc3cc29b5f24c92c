package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"voice-outreach/internal/audit"
	"voice-outreach/internal/calls"
	"voice-outreach/internal/metrics"
	"voice-outreach/internal/phone"
	"voice-outreach/internal/schedule"
	"voice-outreach/internal/telephony"
	"voice-outreach/pkg/logger"
)

const DefaultPacing = 30 * time.Second

var ErrInvalidArgument = errors.New("dispatch: invalid argument")

type Store interface {
	GetVoiceConfig(ctx context.Context) (calls.VoiceConfig, bool, error)
	GetCampaign(ctx context.Context, id string) (calls.Campaign, error)
	GetLocation(ctx context.Context, id string) (calls.Location, bool, error)
	ListCallable(ctx context.Context, q calls.CallableQuery) ([]calls.CampaignBusiness, error)
	CountUnscreened(ctx context.Context, campaignID string) (int, error)
	MarkDialing(ctx context.Context, id string, from calls.CallStatus, attempts int, at time.Time) (bool, error)
	TransitionCallStatus(ctx context.Context, id string, from, to calls.CallStatus, reason string, at time.Time) (bool, error)
	SetExternalCallID(ctx context.Context, id, externalID string, at time.Time) error
}

type CompletionChecker interface {
	CheckCampaignCompletion(ctx context.Context, campaignID string, maxAttempts int) (bool, error)
}

// Dispatcher places the next batch of outbound calls for a campaign.
//
// Calls within a batch are sequential with a fixed pacing wait between
// provider requests. One business failing never aborts the batch.
type Dispatcher struct {
	Store      Store
	Provider   telephony.Provider
	Completion CompletionChecker
	Locker     Locker
	Audit      audit.Recorder
	Metrics    *metrics.Metrics

	Pacing time.Duration
	Region string
	Now    func() time.Time
	// Wait blocks for d or until ctx is done.
	Wait func(ctx context.Context, d time.Duration) error
}

func NewDispatcher(store Store, provider telephony.Provider, completion CompletionChecker) *Dispatcher {
	return &Dispatcher{
		Store:      store,
		Provider:   provider,
		Completion: completion,
		Locker:     NewLocalLocker(),
		Pacing:     DefaultPacing,
		Region:     phone.HomeRegion,
		Now:        time.Now,
		Wait:       sleep,
	}
}

// ProcessNextCalls dispatches up to maxConcurrent callable businesses and
// returns how many calls the provider accepted. A non-positive
// maxConcurrent falls back to the configured batch size.
//
// It returns 0 without touching any business when outside the calling
// window (unless skipWindowCheck), when calling is disabled or unconfigured,
// when the campaign is not CALLING, when its location is tracked but not
// live, or when another invocation holds the campaign.
func (d *Dispatcher) ProcessNextCalls(ctx context.Context, campaignID string, maxConcurrent int, skipWindowCheck bool) (int, error) {
	if campaignID == "" {
		return 0, ErrInvalidArgument
	}
	log := logger.From(ctx).With("campaign_id", campaignID)
	ctx = logger.With(ctx, log)

	if !skipWindowCheck && !schedule.IsCallingWindow(d.now()) {
		d.Metrics.DispatchSkipped(metrics.SkipWindowClosed)
		log.Debug("dispatch skipped: outside calling window")
		return 0, nil
	}

	cfg, ok, err := d.Store.GetVoiceConfig(ctx)
	if err != nil {
		return 0, fmt.Errorf("load voice config: %w", err)
	}
	if !ok || !cfg.CallingEnabled {
		d.Metrics.DispatchSkipped(metrics.SkipCallingDisabled)
		log.Info("dispatch skipped: calling disabled")
		return 0, nil
	}

	campaign, err := d.Store.GetCampaign(ctx, campaignID)
	if errors.Is(err, calls.ErrNotFound) {
		d.Metrics.DispatchSkipped(metrics.SkipCampaignNotActive)
		log.Info("dispatch skipped: campaign not found")
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load campaign: %w", err)
	}
	if campaign.Status != calls.CampaignStatusCalling {
		d.Metrics.DispatchSkipped(metrics.SkipCampaignNotActive)
		log.Info("dispatch skipped: campaign not calling", "status", campaign.Status)
		return 0, nil
	}
	var locationName string
	if campaign.LocationID != "" {
		loc, tracked, err := d.Store.GetLocation(ctx, campaign.LocationID)
		if err != nil {
			return 0, fmt.Errorf("load location: %w", err)
		}
		if tracked && !loc.IsLive() {
			d.Metrics.DispatchSkipped(metrics.SkipLocationOffline)
			log.Info("dispatch skipped: location not live", "location_id", loc.ID, "location_status", loc.Status)
			return 0, nil
		}
		locationName = loc.Name
	}

	unlock, locked, err := d.Locker.TryLock(ctx, lockKey(campaignID))
	if err != nil {
		return 0, fmt.Errorf("acquire dispatch lock: %w", err)
	}
	if !locked {
		d.Metrics.DispatchSkipped(metrics.SkipLocked)
		log.Info("dispatch skipped: another dispatch holds the campaign")
		return 0, nil
	}
	defer unlock()

	maxAttempts := cfg.AttemptCeiling()
	batch, err := d.Store.ListCallable(ctx, calls.CallableQuery{
		CampaignID:  campaignID,
		MaxAttempts: maxAttempts,
		Now:         d.now(),
		Limit:       cfg.BatchSize(maxConcurrent),
	})
	if err != nil {
		return 0, fmt.Errorf("list callable: %w", err)
	}
	if len(batch) == 0 {
		d.warnUnscreened(ctx, campaignID)
	}

	b := batchRun{d: d, cfg: cfg, campaign: campaign, locationName: locationName}
	for _, biz := range batch {
		if err := ctx.Err(); err != nil {
			log.Warn("dispatch interrupted", "err", err, "placed", b.placed)
			break
		}
		b.dispatchOne(ctx, biz)
	}

	log.Info("dispatch batch finished", "selected", len(batch), "placed", b.placed)

	if d.Completion != nil {
		if _, err := d.Completion.CheckCampaignCompletion(ctx, campaignID, maxAttempts); err != nil {
			log.Error("completion check failed", "err", err)
		}
	}
	return b.placed, nil
}

// warnUnscreened flags an idle batch caused by PENDING rows that were never
// screened; they stay uncallable and keep the campaign open.
func (d *Dispatcher) warnUnscreened(ctx context.Context, campaignID string) {
	log := logger.From(ctx).With("campaign_id", campaignID)
	n, err := d.Store.CountUnscreened(ctx, campaignID)
	if err != nil {
		log.Warn("count unscreened businesses failed", "err", err)
		return
	}
	if n == 0 {
		return
	}
	d.Metrics.DispatchSkipped(metrics.SkipUnscreened)
	log.Warn("dispatch skipped: businesses awaiting compliance screening", "unscreened", n)
}

// batchRun carries per-invocation state through one batch.
type batchRun struct {
	d            *Dispatcher
	cfg          calls.VoiceConfig
	campaign     calls.Campaign
	locationName string

	placed      int
	calledSoFar int
}

func (b *batchRun) dispatchOne(ctx context.Context, biz calls.CampaignBusiness) {
	d := b.d
	log := logger.From(ctx).With("campaign_business_id", biz.ID)

	// Normalizing is pure, so it can run before the state write to decide
	// whether this entry will reach the provider and owes a pacing wait.
	e164, normErr := phone.Normalize(biz.Phone, d.Region)
	if normErr == nil && b.calledSoFar > 0 && d.Pacing > 0 {
		if err := d.wait(ctx, d.Pacing); err != nil {
			log.Info("dispatch cancelled during pacing", "err", err)
			return
		}
	}

	won, err := d.Store.MarkDialing(ctx, biz.ID, biz.CallStatus, biz.CallAttempts, d.now())
	if err != nil {
		log.Error("mark dialing failed", "err", err)
		return
	}
	if !won {
		d.Metrics.Dispatch(metrics.DispatchLostRace)
		log.Info("business taken by another dispatch")
		return
	}

	if normErr != nil {
		b.fail(ctx, biz, calls.CallStatusInvalidNumber, "invalid-number", metrics.DispatchInvalidNumber)
		return
	}
	b.calledSoFar++

	res, err := d.Provider.Dispatch(ctx, telephony.DispatchRequest{
		Credentials:  b.cfg.Credentials,
		To:           e164,
		CustomerName: biz.BusinessName,
		Variables: map[string]string{
			"businessName": biz.BusinessName,
			"campaignName": b.campaign.Name,
			"locationName": b.locationName,
		},
		CorrelationID: biz.ID,
		CampaignID:    biz.CampaignID,
	})
	if err != nil {
		log.Warn("provider dispatch failed", "phone", phone.Redact(e164), "err", err)
		if telephony.IsInvalidNumber(err) {
			b.fail(ctx, biz, calls.CallStatusInvalidNumber, "provider-rejected-number", metrics.DispatchInvalidNumber)
			return
		}
		b.fail(ctx, biz, calls.CallStatusFailed, "provider-error", metrics.DispatchFailed)
		return
	}

	if err := d.Store.SetExternalCallID(ctx, biz.ID, res.ExternalCallID, d.now()); err != nil {
		// The callback can still resolve the row by correlation id.
		log.Error("store external call id failed", "external_call_id", res.ExternalCallID, "err", err)
	}
	b.placed++
	d.Metrics.Dispatch(metrics.DispatchPlaced)
	log.Info("call dispatched",
		"external_call_id", res.ExternalCallID,
		"attempt", biz.CallAttempts+1,
		"phone", phone.Redact(e164),
	)
	audit.TryAppend(ctx, d.Audit, audit.Event{
		Type:               audit.EventTypeDispatched,
		CampaignID:         biz.CampaignID,
		CampaignBusinessID: biz.ID,
		FromStatus:         string(biz.CallStatus),
		ToStatus:           string(calls.CallStatusInProgress),
		Message:            res.ExternalCallID,
	})
}

func (b *batchRun) fail(ctx context.Context, biz calls.CampaignBusiness, to calls.CallStatus, reason, result string) {
	d := b.d
	log := logger.From(ctx).With("campaign_business_id", biz.ID)

	// The status write must land even if the batch context was cancelled.
	ok, err := d.Store.TransitionCallStatus(context.WithoutCancel(ctx), biz.ID, calls.CallStatusInProgress, to, reason, d.now())
	if err != nil {
		log.Error("record dispatch failure failed", "to", to, "err", err)
		return
	}
	if !ok {
		return
	}
	d.Metrics.Dispatch(result)
	log.Info("dispatch failed", "to", to, "reason", reason)
	audit.TryAppend(ctx, d.Audit, audit.Event{
		Type:               audit.EventTypeDispatchFailed,
		CampaignID:         biz.CampaignID,
		CampaignBusinessID: biz.ID,
		FromStatus:         string(calls.CallStatusInProgress),
		ToStatus:           string(to),
		Message:            reason,
	})
}

func (d *Dispatcher) now() time.Time {
	if d.Now == nil {
		return time.Now()
	}
	return d.Now()
}

func (d *Dispatcher) wait(ctx context.Context, dur time.Duration) error {
	if d.Wait == nil {
		return sleep(ctx, dur)
	}
	return d.Wait(ctx, dur)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
