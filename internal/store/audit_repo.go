package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/parcelgrid/survey-engine/internal/domain"
)

// AuditRepo handles persistence for AuditRecord entries.
type AuditRepo struct{}

// Record inserts an audit record, assigning a UUID when ID is empty.
// It returns the stored ID.
func (r *AuditRepo) Record(ctx context.Context, ex Execer, rec domain.AuditRecord) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.DetailJSON == "" {
		rec.DetailJSON = "{}"
	}
	if rec.Severity == "" {
		rec.Severity = string(domain.SeverityInfo)
	}
	const q = `INSERT INTO audit_records (id, plan_id, category, actor, action, detail_json, severity, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := ex.ExecContext(ctx, q,
		rec.ID,
		rec.PlanID,
		rec.Category,
		rec.Actor,
		rec.Action,
		rec.DetailJSON,
		rec.Severity,
		rec.CreatedAt,
	)
	if err != nil {
		return "", domain.WrapEngineError(domain.ErrStoreWrite.Code, "record audit", err)
	}
	return rec.ID, nil
}

// ListByPlan returns all audit records for a plan, ordered by creation time.
func (r *AuditRepo) ListByPlan(ctx context.Context, db *sql.DB, planID string) ([]domain.AuditRecord, error) {
	const q = `SELECT id, plan_id, category, actor, action, detail_json, severity, created_at
FROM audit_records
WHERE plan_id = ?
ORDER BY created_at ASC, rowid ASC`

	rows, err := db.QueryContext(ctx, q, planID)
	if err != nil {
		return nil, domain.WrapEngineError(domain.ErrStoreQuery.Code, "list audit records", err)
	}
	defer rows.Close()

	var records []domain.AuditRecord
	for rows.Next() {
		var a domain.AuditRecord
		if err := rows.Scan(&a.ID, &a.PlanID, &a.Category, &a.Actor, &a.Action,
			&a.DetailJSON, &a.Severity, &a.CreatedAt); err != nil {
			return nil, domain.WrapEngineError(domain.ErrStoreQuery.Code, "scan audit record", err)
		}
		records = append(records, a)
	}
	return records, rows.Err()
}
