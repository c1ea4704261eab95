package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"

	"github.com/parcelgrid/survey-engine/internal/domain"
)

// SnapshotRepo handles persistence for ComputationSnapshot records.
type SnapshotRepo struct{}

// Checksum returns the hex SHA-256 of a snapshot payload.
func Checksum(snapshotJSON string) string {
	sum := sha256.Sum256([]byte(snapshotJSON))
	return hex.EncodeToString(sum[:])
}

// Save inserts a stage snapshot. An empty checksum is computed from the payload.
func (r *SnapshotRepo) Save(ctx context.Context, ex Execer, snap domain.ComputationSnapshot) error {
	if snap.Checksum == "" {
		snap.Checksum = Checksum(snap.SnapshotJSON)
	}
	const q = `INSERT INTO computation_snapshots (plan_id, stage, snapshot_json, checksum, created_at)
VALUES (?, ?, ?, ?, ?)`
	_, err := ex.ExecContext(ctx, q,
		snap.PlanID,
		snap.Stage,
		snap.SnapshotJSON,
		snap.Checksum,
		snap.CreatedAt,
	)
	if err != nil {
		return domain.WrapEngineError(domain.ErrStoreWrite.Code, "save snapshot", err)
	}
	return nil
}

// GetLatest returns the most recent snapshot for a plan and stage.
// Returns nil if no snapshot exists, and ErrSnapshotCorrupt when the stored
// payload no longer matches its checksum.
func (r *SnapshotRepo) GetLatest(ctx context.Context, db *sql.DB, planID, stage string) (*domain.ComputationSnapshot, error) {
	const q = `SELECT id, plan_id, stage, snapshot_json, checksum, created_at
FROM computation_snapshots
WHERE plan_id = ? AND stage = ?
ORDER BY created_at DESC, id DESC
LIMIT 1`

	row := db.QueryRowContext(ctx, q, planID, stage)

	var s domain.ComputationSnapshot
	err := row.Scan(&s.ID, &s.PlanID, &s.Stage, &s.SnapshotJSON, &s.Checksum, &s.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, domain.WrapEngineError(domain.ErrStoreQuery.Code, "get latest snapshot", err)
	}
	if Checksum(s.SnapshotJSON) != s.Checksum {
		return nil, domain.NewEngineError(domain.ErrSnapshotCorrupt.Code,
			fmt.Sprintf("snapshot %d for plan %s stage %s: checksum mismatch", s.ID, planID, stage))
	}
	return &s, nil
}
