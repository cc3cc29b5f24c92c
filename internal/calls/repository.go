package calls

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

// NOTE: PostgresStore assumes the schema in migrations/:
// - campaigns, locations, businesses
// - campaign_businesses (one row per campaign/business pairing)
// - voice_config (single row, id = 1)
//
// Every write is a single-row UPDATE guarded by the expected current state,
// so concurrent invocations cannot both win the same transition.

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore { return &PostgresStore{db: db} }

const businessColumns = `
cb.id, cb.campaign_id, cb.business_id, b.name, COALESCE(b.phone, ''),
cb.call_status, cb.call_attempts, cb.last_call_at, cb.next_call_at, cb.screened_at,
cb.external_call_id, cb.ended_reason, cb.call_summary, cb.transcript, cb.recording_url,
cb.call_duration, cb.extracted_name, cb.extracted_email, cb.extracted_phone, cb.callback_time,
cb.created_at, cb.updated_at`

const businessFrom = `
FROM campaign_businesses cb
JOIN businesses b ON b.id = cb.business_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBusiness(r rowScanner) (CampaignBusiness, error) {
	var (
		b                                   CampaignBusiness
		status                              string
		lastCall, nextCall, screened        sql.NullTime
		externalID, endedReason, summary    sql.NullString
		transcript, recording               sql.NullString
		duration                            sql.NullInt64
		name, email, extractedPhone, cbTime sql.NullString
	)
	if err := r.Scan(
		&b.ID,
		&b.CampaignID,
		&b.BusinessID,
		&b.BusinessName,
		&b.Phone,
		&status,
		&b.CallAttempts,
		&lastCall,
		&nextCall,
		&screened,
		&externalID,
		&endedReason,
		&summary,
		&transcript,
		&recording,
		&duration,
		&name,
		&email,
		&extractedPhone,
		&cbTime,
		&b.CreatedAt,
		&b.UpdatedAt,
	); err != nil {
		return CampaignBusiness{}, err
	}
	b.CallStatus = CallStatus(status)
	b.LastCallAt = timePtr(lastCall)
	b.NextCallAt = timePtr(nextCall)
	b.ScreenedAt = timePtr(screened)
	b.ExternalCallID = stringPtr(externalID)
	b.EndedReason = stringPtr(endedReason)
	b.CallSummary = stringPtr(summary)
	b.Transcript = stringPtr(transcript)
	b.RecordingURL = stringPtr(recording)
	if duration.Valid {
		d := int(duration.Int64)
		b.CallDuration = &d
	}
	b.ExtractedName = stringPtr(name)
	b.ExtractedEmail = stringPtr(email)
	b.ExtractedPhone = stringPtr(extractedPhone)
	b.CallbackTime = stringPtr(cbTime)
	return b, nil
}

func (s *PostgresStore) queryBusinesses(ctx context.Context, q string, args ...any) ([]CampaignBusiness, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]CampaignBusiness, 0)
	for rows.Next() {
		b, err := scanBusiness(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetCampaign(ctx context.Context, id string) (Campaign, error) {
	const q = `
SELECT id, name, COALESCE(location_id, ''), status, created_at, updated_at
FROM campaigns
WHERE id = $1
`
	var (
		c      Campaign
		status string
	)
	if err := s.db.QueryRowContext(ctx, q, id).Scan(
		&c.ID,
		&c.Name,
		&c.LocationID,
		&status,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Campaign{}, ErrNotFound
		}
		return Campaign{}, err
	}
	c.Status = CampaignStatus(status)
	return c, nil
}

func (s *PostgresStore) ListCampaignIDsByStatus(ctx context.Context, status CampaignStatus) ([]string, error) {
	const q = `
SELECT id
FROM campaigns
WHERE status = $1
ORDER BY created_at ASC
`
	rows, err := s.db.QueryContext(ctx, q, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PostgresStore) UpdateCampaignStatus(ctx context.Context, id string, from, to CampaignStatus, at time.Time) (bool, error) {
	const q = `
UPDATE campaigns
SET status = $3, updated_at = $4
WHERE id = $1 AND status = $2
`
	return s.execOne(ctx, q, id, string(from), string(to), at)
}

func (s *PostgresStore) GetLocation(ctx context.Context, id string) (Location, bool, error) {
	const q = `
SELECT id, name, status
FROM locations
WHERE id = $1
`
	var l Location
	if err := s.db.QueryRowContext(ctx, q, id).Scan(&l.ID, &l.Name, &l.Status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Location{}, false, nil
		}
		return Location{}, false, err
	}
	return l, true, nil
}

func (s *PostgresStore) GetVoiceConfig(ctx context.Context) (VoiceConfig, bool, error) {
	const q = `
SELECT api_key, assistant_id, phone_number_id, calling_enabled, max_concurrent, max_attempts
FROM voice_config
WHERE id = 1
`
	var c VoiceConfig
	if err := s.db.QueryRowContext(ctx, q).Scan(
		&c.Credentials.APIKey,
		&c.Credentials.AssistantID,
		&c.Credentials.PhoneNumberID,
		&c.CallingEnabled,
		&c.MaxConcurrent,
		&c.MaxAttempts,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return VoiceConfig{}, false, nil
		}
		return VoiceConfig{}, false, err
	}
	return c, true, nil
}

func (s *PostgresStore) GetBusiness(ctx context.Context, id string) (CampaignBusiness, error) {
	q := `SELECT` + businessColumns + businessFrom + `
WHERE cb.id = $1
`
	b, err := scanBusiness(s.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CampaignBusiness{}, ErrNotFound
		}
		return CampaignBusiness{}, err
	}
	return b, nil
}

func (s *PostgresStore) FindByExternalCallID(ctx context.Context, callID string) (CampaignBusiness, error) {
	q := `SELECT` + businessColumns + businessFrom + `
WHERE cb.external_call_id = $1
LIMIT 1
`
	b, err := scanBusiness(s.db.QueryRowContext(ctx, q, callID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CampaignBusiness{}, ErrNotFound
		}
		return CampaignBusiness{}, err
	}
	return b, nil
}

func (s *PostgresStore) ListPendingForScreening(ctx context.Context, campaignID string) ([]CampaignBusiness, error) {
	q := `SELECT` + businessColumns + businessFrom + `
WHERE cb.campaign_id = $1 AND cb.call_status = 'PENDING'
ORDER BY cb.created_at ASC, cb.id ASC
`
	return s.queryBusinesses(ctx, q, campaignID)
}

func (s *PostgresStore) MarkScreened(ctx context.Context, id string, to CallStatus, at time.Time) (bool, error) {
	const q = `
UPDATE campaign_businesses
SET call_status = $2, screened_at = $3, updated_at = $3
WHERE id = $1 AND call_status = 'PENDING'
`
	return s.execOne(ctx, q, id, string(to), at)
}

func (s *PostgresStore) ListCallable(ctx context.Context, cq CallableQuery) ([]CampaignBusiness, error) {
	q := `SELECT` + businessColumns + businessFrom + `
WHERE cb.campaign_id = $1
  AND COALESCE(b.phone, '') <> ''
  AND (
        (cb.call_status = 'PENDING' AND cb.screened_at IS NOT NULL)
     OR cb.call_status = 'QUEUED'
     OR (cb.call_status IN ('VOICEMAIL', 'NO_ANSWER') AND cb.call_attempts < $2 AND cb.next_call_at <= $3)
  )
ORDER BY cb.call_attempts ASC, cb.created_at ASC, cb.id ASC
LIMIT $4
`
	return s.queryBusinesses(ctx, q, cq.CampaignID, cq.MaxAttempts, cq.Now, cq.Limit)
}

func (s *PostgresStore) MarkDialing(ctx context.Context, id string, from CallStatus, attempts int, at time.Time) (bool, error) {
	const q = `
UPDATE campaign_businesses
SET call_status = 'IN_PROGRESS',
    call_attempts = call_attempts + 1,
    last_call_at = $4,
    next_call_at = NULL,
    updated_at = $4
WHERE id = $1 AND call_status = $2 AND call_attempts = $3
`
	return s.execOne(ctx, q, id, string(from), attempts, at)
}

func (s *PostgresStore) TransitionCallStatus(ctx context.Context, id string, from, to CallStatus, reason string, at time.Time) (bool, error) {
	const q = `
UPDATE campaign_businesses
SET call_status = $3, ended_reason = COALESCE($4, ended_reason), updated_at = $5
WHERE id = $1 AND call_status = $2
`
	return s.execOne(ctx, q, id, string(from), string(to), nullString(reason), at)
}

func (s *PostgresStore) SetExternalCallID(ctx context.Context, id, externalID string, at time.Time) error {
	const q = `
UPDATE campaign_businesses
SET external_call_id = $2, updated_at = $3
WHERE id = $1
`
	ok, err := s.execOne(ctx, q, id, externalID, at)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) RecordOutcome(ctx context.Context, id string, o Outcome, at time.Time) (bool, error) {
	const q = `
UPDATE campaign_businesses
SET call_status = $2,
    ended_reason = $3,
    call_summary = $4,
    transcript = $5,
    recording_url = $6,
    call_duration = $7,
    extracted_name = $8,
    extracted_email = $9,
    extracted_phone = $10,
    callback_time = $11,
    updated_at = $12,
    next_call_at = $13
WHERE id = $1 AND call_status = 'IN_PROGRESS'
`
	var duration, next any
	if o.CallDuration != nil {
		duration = *o.CallDuration
	}
	if o.NextCallAt != nil {
		next = *o.NextCallAt
	}
	return s.execOne(ctx, q,
		id,
		string(o.Status),
		ptrArg(o.EndedReason),
		ptrArg(o.CallSummary),
		ptrArg(o.Transcript),
		ptrArg(o.RecordingURL),
		duration,
		ptrArg(o.ExtractedName),
		ptrArg(o.ExtractedEmail),
		ptrArg(o.ExtractedPhone),
		ptrArg(o.CallbackTime),
		at,
		next,
	)
}

func (s *PostgresStore) SetNextCallAt(ctx context.Context, id string, next, at time.Time) error {
	const q = `
UPDATE campaign_businesses
SET next_call_at = $2, updated_at = $3
WHERE id = $1
`
	ok, err := s.execOne(ctx, q, id, next, at)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CountByStatus(ctx context.Context, campaignID string) (map[CallStatus]int, error) {
	const q = `
SELECT call_status, COUNT(*)
FROM campaign_businesses
WHERE campaign_id = $1
GROUP BY call_status
`
	rows, err := s.db.QueryContext(ctx, q, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[CallStatus]int{}
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[CallStatus(status)] = n
	}
	return out, rows.Err()
}

var countOpenQuery = `
SELECT COUNT(*)
FROM campaign_businesses
WHERE campaign_id = $1
  AND call_status NOT IN (` + sqlList(TerminalCallStatuses()) + `)
  AND NOT (call_status IN ('VOICEMAIL', 'NO_ANSWER') AND call_attempts >= $2)
`

// CountUnscreened counts PENDING businesses with a phone that screening has
// not reached yet.
func (s *PostgresStore) CountUnscreened(ctx context.Context, campaignID string) (int, error) {
	const q = `
SELECT COUNT(*)
FROM campaign_businesses cb
JOIN businesses b ON b.id = cb.business_id
WHERE cb.campaign_id = $1
  AND cb.call_status = 'PENDING'
  AND cb.screened_at IS NULL
  AND COALESCE(b.phone, '') <> ''
`
	var n int
	if err := s.db.QueryRowContext(ctx, q, campaignID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *PostgresStore) CountOpen(ctx context.Context, campaignID string, maxAttempts int) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, countOpenQuery, campaignID, maxAttempts).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *PostgresStore) execOne(ctx context.Context, q string, args ...any) (bool, error) {
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func sqlList(statuses []CallStatus) string {
	parts := make([]string, len(statuses))
	for i, s := range statuses {
		parts[i] = "'" + string(s) + "'"
	}
	return strings.Join(parts, ", ")
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func ptrArg(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
