package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smart-tinker/ncrew/internal/model"
)

func TestParseStage(t *testing.T) {
	tests := map[string]struct {
		stage    string
		expStage model.Stage
		expErr   error
	}{
		"Known stage":                 {stage: "plan", expStage: model.StagePlan},
		"Case insensitive":            {stage: "Verification", expStage: model.StageVerification},
		"Surrounding spaces are fine": {stage: "  implementation ", expStage: model.StageImplementation},
		"Unknown stage is not valid":  {stage: "brainstorming", expErr: model.ErrNotValid},
		"Empty stage is not valid":    {stage: "", expErr: model.ErrNotValid},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			stage, err := model.ParseStage(tt.stage)

			if tt.expErr != nil {
				require.ErrorIs(t, err, tt.expErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expStage, stage)
		})
	}
}

func TestStageNext(t *testing.T) {
	tests := map[string]struct {
		stage    model.Stage
		expStage model.Stage
		expErr   error
	}{
		"Specification advances to plan":          {stage: model.StageSpecification, expStage: model.StagePlan},
		"Plan advances to implementation":         {stage: model.StagePlan, expStage: model.StageImplementation},
		"Implementation advances to verification": {stage: model.StageImplementation, expStage: model.StageVerification},
		"Verification is terminal":                {stage: model.StageVerification, expErr: model.ErrConflict},
		"Unknown stage is not valid":              {stage: model.Stage("weird"), expErr: model.ErrNotValid},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			next, err := tt.stage.Next()

			if tt.expErr != nil {
				require.ErrorIs(t, err, tt.expErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expStage, next)
		})
	}
}

func TestStageIsTerminal(t *testing.T) {
	assert.False(t, model.StageSpecification.IsTerminal())
	assert.False(t, model.StagePlan.IsTerminal())
	assert.False(t, model.StageImplementation.IsTerminal())
	assert.True(t, model.StageVerification.IsTerminal())
}
