// Package workflow runs a survey plan through the computation stages in
// order and gates each transition, ending with the seal.
package workflow

import (
	"fmt"

	"github.com/parcelgrid/survey-engine/internal/domain"
)

// Stage is a step of the survey plan pipeline.
type Stage string

const (
	StageParse     Stage = "parse"
	StageCompute   Stage = "compute"
	StageGenerate  Stage = "generate"
	StageApportion Stage = "apportion"
	StageValidate  Stage = "validate"
	StageSeal      Stage = "seal"
)

// Stages lists every stage in pipeline order.
var Stages = []Stage{StageParse, StageCompute, StageGenerate, StageApportion, StageValidate, StageSeal}

// validTransitions defines the legal stage transitions.
// Each key is a source stage, and the value is the set of valid target stages.
var validTransitions = map[Stage]map[Stage]bool{
	StageParse:     {StageCompute: true},
	StageCompute:   {StageGenerate: true},
	StageGenerate:  {StageApportion: true},
	StageApportion: {StageValidate: true},
	StageValidate:  {StageSeal: true, StageGenerate: true}, // validate->generate is rework
}

// IsValidTransition checks if a stage transition is legal.
func IsValidTransition(from, to Stage) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// Next returns the stage following current on the forward path.
func Next(current Stage) (Stage, error) {
	for i, s := range Stages {
		if s == current && i+1 < len(Stages) {
			return Stages[i+1], nil
		}
	}
	return "", domain.NewEngineError(
		domain.ErrInvalidTransition.Code,
		fmt.Sprintf("no forward transition from stage %s", current),
	)
}
