package reporting

import (
	"context"
	"testing"
	"time"

	"voice-outreach/internal/audit"
	"voice-outreach/internal/calls"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedCampaign(store *calls.MemoryStore, status calls.CampaignStatus, rows ...calls.CampaignBusiness) {
	store.PutCampaign(calls.Campaign{ID: "camp", Name: "Leeds plumbers", Status: status})
	for _, b := range rows {
		b.CampaignID = "camp"
		store.PutBusiness(b)
	}
}

func TestCampaignStats(t *testing.T) {
	store := calls.NewMemoryStore()
	seedCampaign(store, calls.CampaignStatusCalling,
		calls.CampaignBusiness{ID: "1", CallStatus: calls.CallStatusPending},
		calls.CampaignBusiness{ID: "2", CallStatus: calls.CallStatusLeadCaptured},
		calls.CampaignBusiness{ID: "3", CallStatus: calls.CallStatusLeadCaptured},
		calls.CampaignBusiness{ID: "4", CallStatus: calls.CallStatusCallbackBooked},
		calls.CampaignBusiness{ID: "5", CallStatus: calls.CallStatusVoicemail},
		calls.CampaignBusiness{ID: "6", CallStatus: calls.CallStatusCTPSBlocked},
	)
	store.PutBusiness(calls.CampaignBusiness{ID: "other", CampaignID: "elsewhere", CallStatus: calls.CallStatusFailed})

	stats, err := NewService(store).CampaignStats(context.Background(), "camp")
	require.NoError(t, err)
	assert.Equal(t, 6, stats.Total)
	assert.Equal(t, 1, stats.Pending)
	assert.Equal(t, 2, stats.LeadCaptured)
	assert.Equal(t, 1, stats.CallbackBooked)
	assert.Equal(t, 1, stats.Voicemail)
	assert.Equal(t, 1, stats.CTPSBlocked)
	assert.Equal(t, 0, stats.Failed)
	assert.Equal(t, 3, stats.Conversions)
	assert.InDelta(t, 0.5, stats.ConversionRate, 1e-9)
}

func TestCampaignStats_Empty(t *testing.T) {
	stats, err := NewService(calls.NewMemoryStore()).CampaignStats(context.Background(), "camp")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Total)
	assert.Zero(t, stats.ConversionRate)

	_, err = NewService(calls.NewMemoryStore()).CampaignStats(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestCheckCampaignCompletion_AllTerminal(t *testing.T) {
	ctx := context.Background()
	store := calls.NewMemoryStore()
	seedCampaign(store, calls.CampaignStatusCalling,
		calls.CampaignBusiness{ID: "1", CallStatus: calls.CallStatusLeadCaptured, CallAttempts: 1},
		calls.CampaignBusiness{ID: "2", CallStatus: calls.CallStatusLeadCaptured, CallAttempts: 1},
		calls.CampaignBusiness{ID: "3", CallStatus: calls.CallStatusFailed, CallAttempts: 1},
	)
	auditRepo := audit.NewMemoryRepo()
	svc := NewService(store)
	svc.Audit = audit.NewService(auditRepo)

	done, err := svc.CheckCampaignCompletion(ctx, "camp", 3)
	require.NoError(t, err)
	assert.True(t, done)

	c, err := store.GetCampaign(ctx, "camp")
	require.NoError(t, err)
	assert.Equal(t, calls.CampaignStatusCompleted, c.Status)
	assert.Len(t, auditRepo.OfType(audit.EventTypeCampaignCompleted), 1)

	// Second check is a no-op.
	done, err = svc.CheckCampaignCompletion(ctx, "camp", 3)
	require.NoError(t, err)
	assert.False(t, done)
}

func TestCheckCampaignCompletion_OpenWork(t *testing.T) {
	cases := []struct {
		name string
		row  calls.CampaignBusiness
	}{
		{"pending", calls.CampaignBusiness{ID: "p", CallStatus: calls.CallStatusPending}},
		{"in progress", calls.CampaignBusiness{ID: "ip", CallStatus: calls.CallStatusInProgress, CallAttempts: 1}},
		{"voicemail with retries left", calls.CampaignBusiness{ID: "vm", CallStatus: calls.CallStatusVoicemail, CallAttempts: 2}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			store := calls.NewMemoryStore()
			seedCampaign(store, calls.CampaignStatusCalling,
				calls.CampaignBusiness{ID: "done", CallStatus: calls.CallStatusNotInterested, CallAttempts: 1},
				tc.row,
			)
			done, err := NewService(store).CheckCampaignCompletion(ctx, "camp", 3)
			require.NoError(t, err)
			assert.False(t, done)
			c, _ := store.GetCampaign(ctx, "camp")
			assert.Equal(t, calls.CampaignStatusCalling, c.Status)
		})
	}
}

func TestCheckCampaignCompletion_ExhaustedRetriesCountAsDone(t *testing.T) {
	ctx := context.Background()
	store := calls.NewMemoryStore()
	seedCampaign(store, calls.CampaignStatusCalling,
		calls.CampaignBusiness{ID: "vm", CallStatus: calls.CallStatusVoicemail, CallAttempts: 3},
		calls.CampaignBusiness{ID: "na", CallStatus: calls.CallStatusNoAnswer, CallAttempts: 3},
		calls.CampaignBusiness{ID: "rx", CallStatus: calls.CallStatusRetriesExhausted, CallAttempts: 3},
	)
	done, err := NewService(store).CheckCampaignCompletion(ctx, "camp", 3)
	require.NoError(t, err)
	assert.True(t, done)
}

func TestCheckCampaignCompletion_OnlyFromCalling(t *testing.T) {
	ctx := context.Background()
	store := calls.NewMemoryStore()
	seedCampaign(store, calls.CampaignStatusPaused,
		calls.CampaignBusiness{ID: "1", CallStatus: calls.CallStatusFailed, CallAttempts: 1},
	)
	done, err := NewService(store).CheckCampaignCompletion(ctx, "camp", 3)
	require.NoError(t, err)
	assert.False(t, done)
	c, _ := store.GetCampaign(ctx, "camp")
	assert.Equal(t, calls.CampaignStatusPaused, c.Status)
}

func TestCheckCampaignCompletion_UsesClock(t *testing.T) {
	ctx := context.Background()
	store := calls.NewMemoryStore()
	seedCampaign(store, calls.CampaignStatusCalling)
	at := time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)
	svc := NewService(store)
	svc.Now = func() time.Time { return at }

	done, err := svc.CheckCampaignCompletion(ctx, "camp", 0)
	require.NoError(t, err)
	assert.True(t, done)
	c, _ := store.GetCampaign(ctx, "camp")
	assert.Equal(t, at, c.UpdatedAt)
}
