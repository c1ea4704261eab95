package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/parcelgrid/survey-engine/internal/domain"
)

// SealRepo handles persistence for seal records. Seals are insert-only.
type SealRepo struct{}

// Save inserts a seal together with the facts it was computed from.
// Timestamps are stored as RFC 3339 text so verification sees the exact
// nanosecond value that was hashed.
func (r *SealRepo) Save(ctx context.Context, ex Execer, rec domain.SealRecord) error {
	const q = `INSERT INTO seals (plan_id, seal_hash, sealed_at, section_count, total_unit_area, parent_parcel_area, generated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := ex.ExecContext(ctx, q,
		rec.PlanID,
		rec.Seal.SealHash,
		rec.Seal.SealedAt.UTC().Format(time.RFC3339Nano),
		rec.Facts.SectionCount,
		rec.Facts.TotalUnitArea,
		rec.Facts.ParentParcelArea,
		rec.Facts.GeneratedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return domain.WrapEngineError(domain.ErrStoreWrite.Code, "save seal", err)
	}
	return nil
}

// Get returns the seal stored for a plan, or ErrSealNotFound.
func (r *SealRepo) Get(ctx context.Context, db *sql.DB, planID string) (*domain.SealRecord, error) {
	const q = `SELECT plan_id, seal_hash, sealed_at, section_count, total_unit_area, parent_parcel_area, generated_at
FROM seals WHERE plan_id = ?`

	var (
		rec                   domain.SealRecord
		sealedAt, generatedAt string
	)
	err := db.QueryRowContext(ctx, q, planID).Scan(
		&rec.PlanID, &rec.Seal.SealHash, &sealedAt,
		&rec.Facts.SectionCount, &rec.Facts.TotalUnitArea, &rec.Facts.ParentParcelArea, &generatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewEngineError(domain.ErrSealNotFound.Code, fmt.Sprintf("seal not found for plan %s", planID))
	}
	if err != nil {
		return nil, domain.WrapEngineError(domain.ErrStoreQuery.Code, "get seal", err)
	}

	if rec.Seal.SealedAt, err = time.Parse(time.RFC3339Nano, sealedAt); err != nil {
		return nil, domain.WrapEngineError(domain.ErrStoreQuery.Code, "parse sealed_at", err)
	}
	if rec.Facts.GeneratedAt, err = time.Parse(time.RFC3339Nano, generatedAt); err != nil {
		return nil, domain.WrapEngineError(domain.ErrStoreQuery.Code, "parse generated_at", err)
	}
	return &rec, nil
}
