package audit

import (
	"context"
	"database/sql"
)

// PostgresRepo writes to audit_events. The table has no UPDATE/DELETE grants.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO audit_events (
  id, type, campaign_id, campaign_business_id, from_status, to_status, actor, message, metadata, created_at
) VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), $7, $8, NULLIF($9, '')::jsonb, $10)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		string(e.Type),
		e.CampaignID,
		e.CampaignBusinessID,
		e.FromStatus,
		e.ToStatus,
		e.Actor,
		e.Message,
		e.Metadata,
		e.CreatedAt,
	)
	return err
}
