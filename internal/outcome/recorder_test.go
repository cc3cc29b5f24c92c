package outcome

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"voice-outreach/internal/audit"
	"voice-outreach/internal/calls"
	"voice-outreach/internal/schedule"
	"voice-outreach/internal/telephony"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var retryAt = time.Date(2025, 3, 5, 14, 30, 0, 0, time.UTC)

type fakeRetries struct {
	scheduled []string
}

func (f *fakeRetries) PlanRetry(b calls.CampaignBusiness, status calls.CallStatus, maxAttempts int) (time.Time, bool) {
	if !status.IsRetryable() || b.CallAttempts >= maxAttempts {
		return time.Time{}, false
	}
	return retryAt, true
}

func (f *fakeRetries) RetryScheduled(_ context.Context, b calls.CampaignBusiness, _ calls.CallStatus, _ time.Time) {
	f.scheduled = append(f.scheduled, b.ID)
}

type fakeCompletion struct {
	checked []string
	max     int
}

func (f *fakeCompletion) CheckCampaignCompletion(_ context.Context, campaignID string, maxAttempts int) (bool, error) {
	f.checked = append(f.checked, campaignID)
	f.max = maxAttempts
	return false, nil
}

func newRecorderFixture(b calls.CampaignBusiness) (*calls.MemoryStore, *Recorder, *fakeRetries, *fakeCompletion, *audit.MemoryRepo) {
	store := calls.NewMemoryStore()
	store.SetVoiceConfig(&calls.VoiceConfig{CallingEnabled: true, MaxConcurrent: 5, MaxAttempts: 3})
	store.PutBusiness(b)
	retries := &fakeRetries{}
	completion := &fakeCompletion{}
	auditRepo := audit.NewMemoryRepo()
	r := NewRecorder(store, retries, completion)
	r.Audit = audit.NewService(auditRepo)
	r.Now = func() time.Time { return time.Date(2025, 3, 4, 10, 30, 0, 0, time.UTC) }
	return store, r, retries, completion, auditRepo
}

func inProgress(attempts int) calls.CampaignBusiness {
	ext := "call-1"
	return calls.CampaignBusiness{
		ID:             "cb-1",
		CampaignID:     "camp",
		Phone:          "07700 900001",
		CallStatus:     calls.CallStatusInProgress,
		CallAttempts:   attempts,
		ExternalCallID: &ext,
	}
}

func TestRecorder_TerminalOutcome(t *testing.T) {
	ctx := context.Background()
	store, r, retries, completion, auditRepo := newRecorderFixture(inProgress(1))

	err := r.HandleCallReport(ctx, telephony.CallReport{
		CorrelationID: "cb-1",
		EndedReason:   "assistant-ended-call",
		Analysis:      &telephony.Analysis{Outcome: "LEAD_CAPTURED", ContactName: "Jo"},
	})
	require.NoError(t, err)

	b, _ := store.GetBusiness(ctx, "cb-1")
	assert.Equal(t, calls.CallStatusLeadCaptured, b.CallStatus)
	require.NotNil(t, b.ExtractedName)
	assert.Equal(t, "Jo", *b.ExtractedName)
	assert.Empty(t, retries.scheduled)
	assert.Equal(t, []string{"camp"}, completion.checked)
	assert.Equal(t, 3, completion.max)
	assert.Len(t, auditRepo.OfType(audit.EventTypeOutcomeRecorded), 1)
}

func TestRecorder_SoftOutcomeSchedulesRetry(t *testing.T) {
	ctx := context.Background()
	store, r, retries, _, _ := newRecorderFixture(inProgress(1))

	require.NoError(t, r.HandleCallReport(ctx, telephony.CallReport{CorrelationID: "cb-1", EndedReason: "voicemail"}))

	b, _ := store.GetBusiness(ctx, "cb-1")
	assert.Equal(t, calls.CallStatusVoicemail, b.CallStatus)
	require.NotNil(t, b.NextCallAt)
	assert.True(t, b.NextCallAt.Equal(retryAt))
	assert.Equal(t, []string{"cb-1"}, retries.scheduled)
}

type failingStore struct {
	*calls.MemoryStore
	fail bool
}

func (s *failingStore) RecordOutcome(ctx context.Context, id string, o calls.Outcome, at time.Time) (bool, error) {
	if s.fail {
		return false, errors.New("db blip")
	}
	return s.MemoryStore.RecordOutcome(ctx, id, o, at)
}

func TestRecorder_FailedWriteLeavesReportRetryable(t *testing.T) {
	ctx := context.Background()
	mem := calls.NewMemoryStore()
	mem.SetVoiceConfig(&calls.VoiceConfig{CallingEnabled: true, MaxConcurrent: 5, MaxAttempts: 3})
	last := time.Date(2025, 3, 4, 10, 5, 0, 0, time.UTC)
	b := inProgress(1)
	b.LastCallAt = &last
	mem.PutBusiness(b)

	store := &failingStore{MemoryStore: mem, fail: true}
	retrier := schedule.NewRetrier(store, rand.New(rand.NewSource(3)))
	retrier.Now = func() time.Time { return last.Add(5 * time.Minute) }
	r := NewRecorder(store, retrier, nil)
	report := telephony.CallReport{CorrelationID: "cb-1", EndedReason: "voicemail"}

	require.Error(t, r.HandleCallReport(ctx, report))
	got, _ := mem.GetBusiness(ctx, "cb-1")
	assert.Equal(t, calls.CallStatusInProgress, got.CallStatus)

	// The provider resends; the second delivery lands status and retry together.
	store.fail = false
	require.NoError(t, r.HandleCallReport(ctx, report))
	got, _ = mem.GetBusiness(ctx, "cb-1")
	assert.Equal(t, calls.CallStatusVoicemail, got.CallStatus)
	require.NotNil(t, got.NextCallAt)
	assert.True(t, got.NextCallAt.After(last))

	callable, err := mem.ListCallable(ctx, calls.CallableQuery{CampaignID: "camp", MaxAttempts: 3, Now: last.Add(30 * 24 * time.Hour), Limit: 5})
	require.NoError(t, err)
	require.Len(t, callable, 1)
	assert.Equal(t, "cb-1", callable[0].ID)
}

func TestRecorder_SoftOutcomeAtCeilingIsExhausted(t *testing.T) {
	ctx := context.Background()
	store, r, retries, _, _ := newRecorderFixture(inProgress(3))

	require.NoError(t, r.HandleCallReport(ctx, telephony.CallReport{CorrelationID: "cb-1", EndedReason: "customer-did-not-answer"}))

	b, _ := store.GetBusiness(ctx, "cb-1")
	assert.Equal(t, calls.CallStatusRetriesExhausted, b.CallStatus)
	assert.Empty(t, retries.scheduled)
}

func TestRecorder_ResolvesByExternalCallID(t *testing.T) {
	ctx := context.Background()
	store, r, _, _, _ := newRecorderFixture(inProgress(1))

	require.NoError(t, r.HandleCallReport(ctx, telephony.CallReport{ExternalCallID: "call-1", EndedReason: "customer-busy"}))
	b, _ := store.GetBusiness(ctx, "cb-1")
	assert.Equal(t, calls.CallStatusNoAnswer, b.CallStatus)
}

func TestRecorder_UnknownCall(t *testing.T) {
	_, r, _, _, _ := newRecorderFixture(inProgress(1))
	err := r.HandleCallReport(context.Background(), telephony.CallReport{CorrelationID: "nope", ExternalCallID: "nope"})
	assert.ErrorIs(t, err, telephony.ErrUnknownCall)
}

func TestRecorder_DuplicateReportIsNoop(t *testing.T) {
	ctx := context.Background()
	store, r, retries, completion, auditRepo := newRecorderFixture(inProgress(1))
	report := telephony.CallReport{CorrelationID: "cb-1", EndedReason: "voicemail"}

	require.NoError(t, r.HandleCallReport(ctx, report))
	require.NoError(t, r.HandleCallReport(ctx, telephony.CallReport{
		CorrelationID: "cb-1",
		Analysis:      &telephony.Analysis{Outcome: "LEAD_CAPTURED"},
	}))

	b, _ := store.GetBusiness(ctx, "cb-1")
	assert.Equal(t, calls.CallStatusVoicemail, b.CallStatus)
	assert.Len(t, retries.scheduled, 1)
	assert.Len(t, completion.checked, 1)
	assert.Len(t, auditRepo.Events(), 1)
}

func TestRecorder_DefaultsWithoutConfig(t *testing.T) {
	ctx := context.Background()
	store := calls.NewMemoryStore()
	store.PutBusiness(inProgress(3))
	r := NewRecorder(store, nil, nil)

	require.NoError(t, r.HandleCallReport(ctx, telephony.CallReport{CorrelationID: "cb-1", EndedReason: "voicemail"}))
	b, _ := store.GetBusiness(ctx, "cb-1")
	assert.Equal(t, calls.CallStatusRetriesExhausted, b.CallStatus)
}
