package calls

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_ListCallableOrdering(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Unix(1700000000, 0).UTC()
	due := base.Add(-time.Hour)

	s.PutBusiness(CampaignBusiness{ID: "late", CampaignID: "c", Phone: "1", CallStatus: CallStatusPending, ScreenedAt: &due, CreatedAt: base.Add(2 * time.Minute)})
	s.PutBusiness(CampaignBusiness{ID: "early", CampaignID: "c", Phone: "1", CallStatus: CallStatusPending, ScreenedAt: &due, CreatedAt: base})
	s.PutBusiness(CampaignBusiness{ID: "retry", CampaignID: "c", Phone: "1", CallStatus: CallStatusVoicemail, CallAttempts: 1, NextCallAt: &due, CreatedAt: base.Add(-time.Hour)})
	s.PutBusiness(CampaignBusiness{ID: "queued", CampaignID: "c", Phone: "1", CallStatus: CallStatusQueued, CreatedAt: base.Add(time.Minute)})
	s.PutBusiness(CampaignBusiness{ID: "other", CampaignID: "x", Phone: "1", CallStatus: CallStatusQueued, CreatedAt: base})

	got, err := s.ListCallable(ctx, CallableQuery{CampaignID: "c", MaxAttempts: 3, Now: base, Limit: 10})
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, []string{"early", "queued", "late", "retry"}, ids(got))

	got, err = s.ListCallable(ctx, CallableQuery{CampaignID: "c", MaxAttempts: 3, Now: base, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"early", "queued"}, ids(got))
}

func TestMemoryStore_MarkDialingIsCompareAndSet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Unix(1700000000, 0).UTC()
	s.PutBusiness(CampaignBusiness{ID: "b", CampaignID: "c", CallStatus: CallStatusPending})

	ok, err := s.MarkDialing(ctx, "b", CallStatusPending, 0, now)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.MarkDialing(ctx, "b", CallStatusPending, 0, now)
	require.NoError(t, err)
	assert.False(t, ok)

	b, err := s.GetBusiness(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, CallStatusInProgress, b.CallStatus)
	assert.Equal(t, 1, b.CallAttempts)
	require.NotNil(t, b.LastCallAt)
	assert.True(t, b.LastCallAt.Equal(now))
}

func TestMemoryStore_RecordOutcomeOnlyFromInProgress(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Unix(1700000000, 0).UTC()
	s.PutBusiness(CampaignBusiness{ID: "b", CampaignID: "c", CallStatus: CallStatusInProgress})

	ok, err := s.RecordOutcome(ctx, "b", Outcome{Status: CallStatusLeadCaptured}, now)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.RecordOutcome(ctx, "b", Outcome{Status: CallStatusFailed}, now)
	require.NoError(t, err)
	assert.False(t, ok)

	b, _ := s.GetBusiness(ctx, "b")
	assert.Equal(t, CallStatusLeadCaptured, b.CallStatus)
}

func TestMemoryStore_CountOpenTreatsExhaustedAsClosed(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	for i, st := range []CallStatus{CallStatusLeadCaptured, CallStatusFailed, CallStatusVoicemail} {
		s.PutBusiness(CampaignBusiness{ID: fmt.Sprint(i), CampaignID: "c", CallStatus: st, CallAttempts: 3})
	}

	n, err := s.CountOpen(ctx, "c", 3)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = s.CountOpen(ctx, "c", 4)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func ids(rows []CampaignBusiness) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.ID
	}
	return out
}
