package calls

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store used by tests and local runs.
// Every write is a single-row compare-and-set, like the SQL store.
type MemoryStore struct {
	mu sync.Mutex

	campaigns  map[string]Campaign
	locations  map[string]Location
	businesses map[string]CampaignBusiness
	config     *VoiceConfig
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		campaigns:  map[string]Campaign{},
		locations:  map[string]Location{},
		businesses: map[string]CampaignBusiness{},
	}
}

func (s *MemoryStore) PutCampaign(c Campaign) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.campaigns[c.ID] = c
}

func (s *MemoryStore) PutLocation(l Location) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locations[l.ID] = l
}

func (s *MemoryStore) PutBusiness(b CampaignBusiness) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.businesses[b.ID] = b
}

func (s *MemoryStore) SetVoiceConfig(c *VoiceConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c == nil {
		s.config = nil
		return
	}
	cp := *c
	s.config = &cp
}

func (s *MemoryStore) GetCampaign(ctx context.Context, id string) (Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok {
		return Campaign{}, ErrNotFound
	}
	return c, nil
}

func (s *MemoryStore) ListCampaignIDsByStatus(ctx context.Context, status CampaignStatus) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, c := range s.campaigns {
		if c.Status == status {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) UpdateCampaignStatus(ctx context.Context, id string, from, to CampaignStatus, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok || c.Status != from {
		return false, nil
	}
	c.Status = to
	c.UpdatedAt = at
	s.campaigns[id] = c
	return true, nil
}

func (s *MemoryStore) GetLocation(ctx context.Context, id string) (Location, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locations[id]
	return l, ok, nil
}

func (s *MemoryStore) GetVoiceConfig(ctx context.Context) (VoiceConfig, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.config == nil {
		return VoiceConfig{}, false, nil
	}
	return *s.config, true, nil
}

func (s *MemoryStore) GetBusiness(ctx context.Context, id string) (CampaignBusiness, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.businesses[id]
	if !ok {
		return CampaignBusiness{}, ErrNotFound
	}
	return b, nil
}

func (s *MemoryStore) FindByExternalCallID(ctx context.Context, callID string) (CampaignBusiness, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.businesses {
		if b.ExternalCallID != nil && *b.ExternalCallID == callID {
			return b, nil
		}
	}
	return CampaignBusiness{}, ErrNotFound
}

func (s *MemoryStore) ListPendingForScreening(ctx context.Context, campaignID string) ([]CampaignBusiness, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]CampaignBusiness, 0)
	for _, b := range s.businesses {
		if b.CampaignID == campaignID && b.CallStatus == CallStatusPending {
			out = append(out, b)
		}
	}
	sortByCreated(out)
	return out, nil
}

func (s *MemoryStore) MarkScreened(ctx context.Context, id string, to CallStatus, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.businesses[id]
	if !ok || b.CallStatus != CallStatusPending {
		return false, nil
	}
	b.CallStatus = to
	b.ScreenedAt = &at
	b.UpdatedAt = at
	s.businesses[id] = b
	return true, nil
}

func (s *MemoryStore) ListCallable(ctx context.Context, q CallableQuery) ([]CampaignBusiness, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]CampaignBusiness, 0)
	for _, b := range s.businesses {
		if b.CampaignID == q.CampaignID && b.IsCallable(q.Now, q.MaxAttempts) {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CallAttempts != out[j].CallAttempts {
			return out[i].CallAttempts < out[j].CallAttempts
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *MemoryStore) MarkDialing(ctx context.Context, id string, from CallStatus, attempts int, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.businesses[id]
	if !ok || b.CallStatus != from || b.CallAttempts != attempts {
		return false, nil
	}
	b.CallStatus = CallStatusInProgress
	b.CallAttempts++
	b.LastCallAt = &at
	b.NextCallAt = nil
	b.UpdatedAt = at
	s.businesses[id] = b
	return true, nil
}

func (s *MemoryStore) TransitionCallStatus(ctx context.Context, id string, from, to CallStatus, reason string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.businesses[id]
	if !ok || b.CallStatus != from {
		return false, nil
	}
	b.CallStatus = to
	if reason != "" {
		r := reason
		b.EndedReason = &r
	}
	b.UpdatedAt = at
	s.businesses[id] = b
	return true, nil
}

func (s *MemoryStore) SetExternalCallID(ctx context.Context, id, externalID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.businesses[id]
	if !ok {
		return ErrNotFound
	}
	b.ExternalCallID = &externalID
	b.UpdatedAt = at
	s.businesses[id] = b
	return nil
}

func (s *MemoryStore) RecordOutcome(ctx context.Context, id string, o Outcome, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.businesses[id]
	if !ok || b.CallStatus != CallStatusInProgress {
		return false, nil
	}
	b.CallStatus = o.Status
	b.EndedReason = o.EndedReason
	b.CallSummary = o.CallSummary
	b.Transcript = o.Transcript
	b.RecordingURL = o.RecordingURL
	b.CallDuration = o.CallDuration
	b.ExtractedName = o.ExtractedName
	b.ExtractedEmail = o.ExtractedEmail
	b.ExtractedPhone = o.ExtractedPhone
	b.CallbackTime = o.CallbackTime
	b.NextCallAt = o.NextCallAt
	b.UpdatedAt = at
	s.businesses[id] = b
	return true, nil
}

func (s *MemoryStore) SetNextCallAt(ctx context.Context, id string, next, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.businesses[id]
	if !ok {
		return ErrNotFound
	}
	b.NextCallAt = &next
	b.UpdatedAt = at
	s.businesses[id] = b
	return nil
}

func (s *MemoryStore) CountByStatus(ctx context.Context, campaignID string) (map[CallStatus]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[CallStatus]int{}
	for _, b := range s.businesses {
		if b.CampaignID == campaignID {
			out[b.CallStatus]++
		}
	}
	return out, nil
}

func (s *MemoryStore) CountUnscreened(ctx context.Context, campaignID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int
	for _, b := range s.businesses {
		if b.CampaignID == campaignID && b.CallStatus == CallStatusPending && b.ScreenedAt == nil && b.Phone != "" {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) CountOpen(ctx context.Context, campaignID string, maxAttempts int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int
	for _, b := range s.businesses {
		if b.CampaignID == campaignID && IsOpen(b.CallStatus, b.CallAttempts, maxAttempts) {
			n++
		}
	}
	return n, nil
}

func sortByCreated(rows []CampaignBusiness) {
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].CreatedAt.Before(rows[j].CreatedAt)
		}
		return rows[i].ID < rows[j].ID
	})
}
