package reporting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"voice-outreach/internal/audit"
	"voice-outreach/internal/calls"
	"voice-outreach/internal/metrics"
	"voice-outreach/pkg/logger"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Repository abstracts data access for reporting.
//
// calls.PostgresStore and calls.MemoryStore implement it.
type Repository interface {
	CountByStatus(ctx context.Context, campaignID string) (map[calls.CallStatus]int, error)
	CountOpen(ctx context.Context, campaignID string, maxAttempts int) (int, error)
	UpdateCampaignStatus(ctx context.Context, id string, from, to calls.CampaignStatus, at time.Time) (bool, error)
}

type Service struct {
	repo    Repository
	Audit   audit.Recorder
	Metrics *metrics.Metrics
	Now     func() time.Time
}

func NewService(repo Repository) *Service { return &Service{repo: repo, Now: time.Now} }

func (s *Service) CampaignStats(ctx context.Context, campaignID string) (CampaignStats, error) {
	if campaignID == "" {
		return CampaignStats{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return CampaignStats{}, errors.New("reporting: repository not configured")
	}
	counts, err := s.repo.CountByStatus(ctx, campaignID)
	if err != nil {
		return CampaignStats{}, err
	}
	return newCampaignStats(campaignID, counts), nil
}

// CheckCampaignCompletion moves a CALLING campaign to COMPLETED once no
// business has work left. Soft outcomes at the attempt ceiling count as done.
// It reports whether this call performed the transition.
func (s *Service) CheckCampaignCompletion(ctx context.Context, campaignID string, maxAttempts int) (bool, error) {
	if campaignID == "" {
		return false, ErrInvalidRequest
	}
	if s.repo == nil {
		return false, errors.New("reporting: repository not configured")
	}
	if maxAttempts <= 0 {
		maxAttempts = calls.DefaultMaxAttempts
	}

	open, err := s.repo.CountOpen(ctx, campaignID, maxAttempts)
	if err != nil {
		return false, fmt.Errorf("count open: %w", err)
	}
	if open > 0 {
		return false, nil
	}

	done, err := s.repo.UpdateCampaignStatus(ctx, campaignID, calls.CampaignStatusCalling, calls.CampaignStatusCompleted, s.now())
	if err != nil {
		return false, fmt.Errorf("complete campaign: %w", err)
	}
	if !done {
		// Not CALLING: paused, already completed, or not launched.
		return false, nil
	}

	s.Metrics.CampaignCompleted()
	logger.From(ctx).Info("campaign completed", "campaign_id", campaignID)
	audit.TryAppend(ctx, s.Audit, audit.Event{
		Type:       audit.EventTypeCampaignCompleted,
		CampaignID: campaignID,
		FromStatus: string(calls.CampaignStatusCalling),
		ToStatus:   string(calls.CampaignStatusCompleted),
	})
	return true, nil
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now().UTC()
}
