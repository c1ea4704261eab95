package workflow

import (
	"errors"
	"testing"

	"github.com/parcelgrid/survey-engine/internal/domain"
)

func TestIsValidTransition(t *testing.T) {
	tests := []struct {
		from, to Stage
		want     bool
	}{
		{StageParse, StageCompute, true},
		{StageCompute, StageGenerate, true},
		{StageGenerate, StageApportion, true},
		{StageApportion, StageValidate, true},
		{StageValidate, StageSeal, true},
		{StageValidate, StageGenerate, true},
		{StageParse, StageSeal, false},
		{StageCompute, StageValidate, false},
		{StageSeal, StageParse, false},
		{StageApportion, StageGenerate, false},
	}
	for _, tt := range tests {
		if got := IsValidTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("IsValidTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestNext_ForwardPath(t *testing.T) {
	stage := StageParse
	var path []Stage
	for stage != StageSeal {
		next, err := Next(stage)
		if err != nil {
			t.Fatalf("Next(%s): %v", stage, err)
		}
		if !IsValidTransition(stage, next) {
			t.Fatalf("forward step %s -> %s is not a valid transition", stage, next)
		}
		path = append(path, next)
		stage = next
	}
	if len(path) != len(Stages)-1 {
		t.Errorf("path = %v, want %d steps", path, len(Stages)-1)
	}
}

func TestNext_FromSeal(t *testing.T) {
	_, err := Next(StageSeal)
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
	if _, err := Next(Stage("survey")); err == nil {
		t.Error("expected error for unknown stage")
	}
}
