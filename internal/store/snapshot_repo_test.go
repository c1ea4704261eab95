package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/parcelgrid/survey-engine/internal/domain"
)

func TestSnapshotRepo_SaveAndGetLatest(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := &SnapshotRepo{}
	now := time.Now().Unix()

	// Save two snapshots for the same stage.
	snap1 := domain.ComputationSnapshot{
		PlanID: "plan-1", Stage: "compute", SnapshotJSON: `{"area":100}`, CreatedAt: now,
	}
	snap2 := domain.ComputationSnapshot{
		PlanID: "plan-1", Stage: "compute", SnapshotJSON: `{"area":101}`, CreatedAt: now + 1,
	}

	for _, s := range []domain.ComputationSnapshot{snap1, snap2} {
		tx, err := db.Begin()
		if err != nil {
			t.Fatalf("begin: %v", err)
		}
		if err := repo.Save(ctx, tx, s); err != nil {
			t.Fatalf("Save %s: %v", s.SnapshotJSON, err)
		}
		tx.Commit()
	}

	// GetLatest should return the second snapshot.
	got, err := repo.GetLatest(ctx, db, "plan-1", "compute")
	if err != nil {
		t.Fatalf("GetLatest: %v", err)
	}
	if got == nil {
		t.Fatal("expected snapshot, got nil")
	}
	if got.SnapshotJSON != `{"area":101}` {
		t.Errorf("SnapshotJSON = %q, want the later snapshot", got.SnapshotJSON)
	}
	if got.Checksum != Checksum(`{"area":101}`) {
		t.Errorf("Checksum = %q, want computed checksum", got.Checksum)
	}
}

func TestSnapshotRepo_GetLatest_NotFound(t *testing.T) {
	db := newTestDB(t)
	got, err := (&SnapshotRepo{}).GetLatest(context.Background(), db, "nope", "compute")
	if err != nil {
		t.Fatalf("GetLatest: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestSnapshotRepo_DifferentStages(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := &SnapshotRepo{}
	now := time.Now().Unix()

	for _, stage := range []string{"compute", "apportion"} {
		s := domain.ComputationSnapshot{PlanID: "plan-1", Stage: stage, SnapshotJSON: `{"stage":"` + stage + `"}`, CreatedAt: now}
		if err := repo.Save(ctx, db, s); err != nil {
			t.Fatalf("Save %s: %v", stage, err)
		}
	}

	got, err := repo.GetLatest(ctx, db, "plan-1", "apportion")
	if err != nil {
		t.Fatalf("GetLatest: %v", err)
	}
	if got == nil || got.Stage != "apportion" {
		t.Fatalf("got %+v, want apportion snapshot", got)
	}
}

func TestSnapshotRepo_DetectsCorruption(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := &SnapshotRepo{}

	snap := domain.ComputationSnapshot{PlanID: "plan-1", Stage: "apportion", SnapshotJSON: `{"quota":25}`, CreatedAt: 1}
	if err := repo.Save(ctx, db, snap); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := db.Exec(`UPDATE computation_snapshots SET snapshot_json = '{"quota":26}'`); err != nil {
		t.Fatalf("tamper: %v", err)
	}

	_, err := repo.GetLatest(ctx, db, "plan-1", "apportion")
	if !errors.Is(err, domain.ErrSnapshotCorrupt) {
		t.Fatalf("expected ErrSnapshotCorrupt, got %v", err)
	}
}
