package campaigns

import (
	"context"
	"errors"
	"fmt"
	"time"

	"voice-outreach/internal/audit"
	"voice-outreach/internal/calls"
	"voice-outreach/pkg/logger"
)

var (
	ErrNotFound          = errors.New("campaigns: not found")
	ErrInvalidTransition = errors.New("campaigns: invalid status transition")
	ErrInvalidArgument   = errors.New("campaigns: invalid argument")
)

type Store interface {
	GetCampaign(ctx context.Context, id string) (calls.Campaign, error)
	UpdateCampaignStatus(ctx context.Context, id string, from, to calls.CampaignStatus, at time.Time) (bool, error)
}

// Service owns operator-driven lifecycle changes.
//
// Only CALLING <-> PAUSED is exposed here. COMPLETED is reached through
// reporting.Service and the earlier states belong to campaign setup.
type Service struct {
	Store Store
	Audit audit.Recorder
	Now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{Store: store, Now: time.Now}
}

func (s *Service) Get(ctx context.Context, id string) (calls.Campaign, error) {
	if id == "" {
		return calls.Campaign{}, ErrInvalidArgument
	}
	c, err := s.Store.GetCampaign(ctx, id)
	if errors.Is(err, calls.ErrNotFound) {
		return calls.Campaign{}, ErrNotFound
	}
	return c, err
}

// Pause stops dispatch for a CALLING campaign. Calls already in flight
// still record their outcomes.
func (s *Service) Pause(ctx context.Context, id, actor string) (calls.Campaign, error) {
	return s.move(ctx, id, actor, calls.CampaignStatusCalling, calls.CampaignStatusPaused, audit.EventTypeCampaignPaused)
}

func (s *Service) Resume(ctx context.Context, id, actor string) (calls.Campaign, error) {
	return s.move(ctx, id, actor, calls.CampaignStatusPaused, calls.CampaignStatusCalling, audit.EventTypeCampaignResumed)
}

func (s *Service) move(ctx context.Context, id, actor string, from, to calls.CampaignStatus, evt audit.EventType) (calls.Campaign, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return calls.Campaign{}, err
	}
	if c.Status != from || !from.CanTransition(to) {
		return c, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.Status, to)
	}

	now := s.now()
	ok, err := s.Store.UpdateCampaignStatus(ctx, id, from, to, now)
	if err != nil {
		return calls.Campaign{}, fmt.Errorf("update campaign status: %w", err)
	}
	if !ok {
		// Someone else moved it between the read and the write.
		return c, fmt.Errorf("%w: %s changed concurrently", ErrInvalidTransition, id)
	}

	c.Status = to
	c.UpdatedAt = now

	logger.From(ctx).Info("campaign status changed",
		"campaign_id", id,
		"from", from,
		"to", to,
		"actor", actor,
	)
	audit.TryAppend(ctx, s.Audit, audit.Event{
		Type:       evt,
		CampaignID: id,
		FromStatus: string(from),
		ToStatus:   string(to),
		Actor:      actor,
	})
	return c, nil
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}
