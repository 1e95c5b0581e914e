package taskget_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/smart-tinker/ncrew/internal/app/taskget"
	"github.com/smart-tinker/ncrew/internal/model"
	"github.com/smart-tinker/ncrew/internal/storage/storagemock"
)

func TestServiceRun(t *testing.T) {
	tests := map[string]struct {
		setupMocks func(repo *storagemock.MockTaskRepository)
		expErr     error
	}{
		"Task is returned": {
			setupMocks: func(repo *storagemock.MockTaskRepository) {
				repo.On("GetTask", mock.Anything, "t1").Once().Return(&model.Task{ID: "t1", Title: "A task"}, nil)
			},
		},
		"Missing task": {
			setupMocks: func(repo *storagemock.MockTaskRepository) {
				repo.On("GetTask", mock.Anything, "t1").Once().Return((*model.Task)(nil), model.ErrNotFound)
			},
			expErr: model.ErrNotFound,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			repo := storagemock.NewMockTaskRepository(t)
			tt.setupMocks(repo)

			svc, err := taskget.NewService(taskget.ServiceConfig{Repository: repo})
			require.NoError(t, err)

			task, err := svc.Run(context.Background(), taskget.Request{TaskID: "t1"})

			if tt.expErr != nil {
				require.ErrorIs(t, err, tt.expErr)
				assert.Nil(t, task)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "t1", task.ID)
			assert.Equal(t, "A task", task.Title)
		})
	}
}
