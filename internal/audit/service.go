package audit

import (
	"context"
	"errors"
	"time"

	"voice-outreach/pkg/logger"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
// It is append-only: there are no Update/Delete methods.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Recorder is what outreach components depend on.
// *Service implements it.
type Recorder interface {
	Append(ctx context.Context, e Event) error
}

// Service stamps and stores audit events.
//
// IMPORTANT:
// - Callers should treat audit logging as best-effort (see TryAppend).

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.CampaignID == "" {
		return ErrInvalidEvent
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	if e.Actor == "" {
		e.Actor = ActorSystem
	}
	return s.repo.Append(ctx, e)
}

// TryAppend records e and only logs a failure. A nil recorder is a no-op.
func TryAppend(ctx context.Context, r Recorder, e Event) {
	if r == nil {
		return
	}
	if err := r.Append(ctx, e); err != nil {
		logger.From(ctx).Warn("audit append failed",
			"type", e.Type,
			"campaign_id", e.CampaignID,
			"campaign_business_id", e.CampaignBusinessID,
			"err", err,
		)
	}
}
