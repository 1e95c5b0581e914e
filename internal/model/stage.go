package model

import (
	"fmt"
	"strings"
)

// Stage represents one phase of the fixed forward-only task workflow.
type Stage string

const (
	// StageSpecification is the initial stage where the task is specified.
	StageSpecification Stage = "specification"
	// StagePlan is the stage where the implementation plan is produced.
	StagePlan Stage = "plan"
	// StageImplementation is the stage where the plan is implemented.
	StageImplementation Stage = "implementation"
	// StageVerification is the terminal stage where the work is verified.
	StageVerification Stage = "verification"
)

// stageSequence is the only allowed progression order.
var stageSequence = []Stage{
	StageSpecification,
	StagePlan,
	StageImplementation,
	StageVerification,
}

// ParseStage resolves a stage from its string name (case-insensitive).
func ParseStage(s string) (Stage, error) {
	normalized := Stage(strings.ToLower(strings.TrimSpace(s)))
	for _, stage := range stageSequence {
		if stage == normalized {
			return stage, nil
		}
	}
	return "", fmt.Errorf("unknown stage %q: %w", s, ErrNotValid)
}

// IsTerminal reports whether the stage has no successor.
func (s Stage) IsTerminal() bool {
	return s == stageSequence[len(stageSequence)-1]
}

// Next returns the stage that follows s in the workflow.
func (s Stage) Next() (Stage, error) {
	for i, stage := range stageSequence {
		if stage != s {
			continue
		}
		if i == len(stageSequence)-1 {
			return "", fmt.Errorf("stage %s is terminal: %w", s, ErrConflict)
		}
		return stageSequence[i+1], nil
	}
	return "", fmt.Errorf("unknown stage %q: %w", s, ErrNotValid)
}
