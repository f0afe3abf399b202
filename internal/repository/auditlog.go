package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

// AuditEntry is one recorded event for a document, with the names of
// any fields whose values were redacted before the event was stored.
type AuditEntry struct {
	Event          string
	RedactedFields []string
	CreatedAt      time.Time
}

// AuditLogRepo records one row per terminal pipeline event, with the
// names of any fields redacted before storage — stored as a Postgres
// text array via lib/pq rather than a joined child table, since the set
// is small and only ever read back whole.
type AuditLogRepo struct {
	pool *pgxpool.Pool
}

// NewAuditLogRepo creates an AuditLogRepo.
func NewAuditLogRepo(pool *pgxpool.Pool) *AuditLogRepo {
	return &AuditLogRepo{pool: pool}
}

// Record inserts one audit_log row for documentID.
func (r *AuditLogRepo) Record(ctx context.Context, documentID int64, event string, redactedFields []string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO audit_log (document_id, event, redacted_fields) VALUES ($1, $2, $3)`,
		documentID, event, pq.Array(redactedFields),
	)
	if err != nil {
		return fmt.Errorf("repository.AuditLogRepo.Record: %w", err)
	}
	return nil
}

// ListByDocument returns every audit event recorded for a document,
// oldest first.
func (r *AuditLogRepo) ListByDocument(ctx context.Context, documentID int64) ([]AuditEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT event, redacted_fields, created_at FROM audit_log WHERE document_id = $1 ORDER BY created_at ASC`,
		documentID,
	)
	if err != nil {
		return nil, fmt.Errorf("repository.AuditLogRepo.ListByDocument: %w", err)
	}
	defer rows.Close()

	var out []AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.Event, pq.Array(&e.RedactedFields), &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("repository.AuditLogRepo.ListByDocument: scan: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}
