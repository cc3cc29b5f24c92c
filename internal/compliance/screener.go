package compliance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"voice-outreach/internal/audit"
	"voice-outreach/internal/calls"
	"voice-outreach/internal/metrics"
	"voice-outreach/internal/phone"
	"voice-outreach/pkg/logger"
)

var ErrInvalidArgument = errors.New("compliance: invalid argument")

type Store interface {
	ListPendingForScreening(ctx context.Context, campaignID string) ([]calls.CampaignBusiness, error)
	MarkScreened(ctx context.Context, id string, to calls.CallStatus, at time.Time) (bool, error)
}

// Result summarises one screening pass.
// Screened counts every PENDING business that had a number on file.
type Result struct {
	Screened int `json:"screened"`
	Blocked  int `json:"blocked"`
	Invalid  int `json:"invalid"`
	Skipped  int `json:"skipped"`
}

// Screener runs the do-not-call check over a campaign's PENDING businesses.
//
// Registry failures fail open: the number is treated as not registered and
// the business stays callable.
type Screener struct {
	Store    Store
	Registry Registry
	Audit    audit.Recorder
	Metrics  *metrics.Metrics

	// LookupTimeout bounds each registry query. Zero means no extra bound.
	LookupTimeout time.Duration
	Region        string
	Now           func() time.Time
}

func NewScreener(store Store, registry Registry) *Screener {
	if registry == nil {
		registry = NotRegistered{}
	}
	return &Screener{Store: store, Registry: registry, Region: phone.HomeRegion, Now: time.Now}
}

// ScreenCampaign is idempotent: it only reads PENDING rows, and every write
// is conditional on the row still being PENDING.
func (s *Screener) ScreenCampaign(ctx context.Context, campaignID string) (Result, error) {
	if campaignID == "" {
		return Result{}, ErrInvalidArgument
	}
	log := logger.From(ctx).With("campaign_id", campaignID)

	rows, err := s.Store.ListPendingForScreening(ctx, campaignID)
	if err != nil {
		return Result{}, fmt.Errorf("list pending: %w", err)
	}

	var res Result
	for _, b := range rows {
		if b.Phone == "" {
			res.Skipped++
			continue
		}
		res.Screened++

		to := calls.CallStatusPending
		reason := metrics.ScreenClear
		e164, err := phone.Normalize(b.Phone, s.Region)
		switch {
		case err != nil:
			to = calls.CallStatusInvalidNumber
			reason = metrics.ScreenInvalidNumber
		case s.isRegistered(ctx, log, b, e164):
			to = calls.CallStatusCTPSBlocked
			reason = metrics.ScreenBlocked
		}

		ok, err := s.Store.MarkScreened(ctx, b.ID, to, s.now())
		if err != nil {
			log.Error("mark screened failed", "campaign_business_id", b.ID, "err", err)
			continue
		}
		if !ok {
			// Moved out of PENDING by a concurrent dispatch or screen.
			continue
		}
		s.Metrics.Screening(reason)

		switch to {
		case calls.CallStatusCTPSBlocked:
			res.Blocked++
		case calls.CallStatusInvalidNumber:
			res.Invalid++
		}
		if to != calls.CallStatusPending {
			log.Info("business screened out", "campaign_business_id", b.ID, "to", to)
			audit.TryAppend(ctx, s.Audit, audit.Event{
				Type:               audit.EventTypeScreened,
				CampaignID:         campaignID,
				CampaignBusinessID: b.ID,
				FromStatus:         string(calls.CallStatusPending),
				ToStatus:           string(to),
			})
		}
	}

	log.Info("screening pass finished",
		"screened", res.Screened,
		"blocked", res.Blocked,
		"invalid", res.Invalid,
		"skipped", res.Skipped,
	)
	return res, nil
}

func (s *Screener) isRegistered(ctx context.Context, log *slog.Logger, b calls.CampaignBusiness, e164 string) bool {
	lookupCtx := ctx
	if s.LookupTimeout > 0 {
		var cancel context.CancelFunc
		lookupCtx, cancel = context.WithTimeout(ctx, s.LookupTimeout)
		defer cancel()
	}

	registered, err := s.Registry.IsRegistered(lookupCtx, e164)
	if err != nil {
		s.Metrics.Screening(metrics.ScreenRegistryError)
		log.Warn("registry lookup failed, treating as not registered",
			"campaign_business_id", b.ID,
			"phone", phone.Redact(e164),
			"err", err,
		)
		return false
	}
	return registered
}

func (s *Screener) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}
