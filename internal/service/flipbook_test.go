package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"flipbook/internal/convert"
	"flipbook/internal/model"
	"flipbook/internal/repository"
	repomocks "flipbook/internal/repository/mocks"
	storagemocks "flipbook/internal/storage/mocks"
	"flipbook/internal/worker"
)

type mockDispatcher struct {
	mock.Mock
}

func (m *mockDispatcher) Submit(job worker.Job) error {
	args := m.Called(job)
	return args.Error(0)
}

func allSupported(string) bool  { return true }
func noneSupported(string) bool { return false }

func TestUpload_Success(t *testing.T) {
	store := new(storagemocks.MockStorage)
	repo := new(repomocks.MockTaskRepository)
	disp := new(mockDispatcher)

	store.On("Upload", mock.Anything, mock.Anything, mock.MatchedBy(func(key string) bool {
		return strings.HasPrefix(key, "uploads/") && strings.HasSuffix(key, "/report.pdf")
	}), convert.MIMEPDF).Return("http://minio/flipbook/uploads/x/report.pdf", nil)
	repo.On("Create", mock.Anything, mock.MatchedBy(func(task *model.Task) bool {
		return task.OriginalName == "report.pdf" &&
			task.FileType == convert.MIMEPDF &&
			task.FileSize == int64(11) &&
			strings.HasPrefix(task.FileKey, "uploads/"+task.ID+"/")
	})).Return(&model.Task{}, nil)
	disp.On("Submit", mock.MatchedBy(func(job worker.Job) bool {
		return job.TaskID != "" && job.LocalPath != "" && job.MIMEType == convert.MIMEPDF
	})).Return(nil)

	svc := NewFlipbookService(store, repo, disp, allSupported, 1<<20)
	res, err := svc.Upload(context.Background(), strings.NewReader("hello world"), "report.pdf", convert.MIMEPDF, 11)

	assert.NoError(t, err)
	assert.NotEmpty(t, res.TaskID)
	assert.Equal(t, model.StatusUploaded, res.Status)
	store.AssertExpectations(t)
	repo.AssertExpectations(t)
	disp.AssertExpectations(t)
}

func TestUpload_UnsupportedType(t *testing.T) {
	svc := NewFlipbookService(new(storagemocks.MockStorage), new(repomocks.MockTaskRepository), new(mockDispatcher), noneSupported, 1<<20)

	_, err := svc.Upload(context.Background(), strings.NewReader("x"), "data.bin", "application/octet-stream", 1)

	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestUpload_FileTooLarge(t *testing.T) {
	svc := NewFlipbookService(new(storagemocks.MockStorage), new(repomocks.MockTaskRepository), new(mockDispatcher), allSupported, 10)

	_, err := svc.Upload(context.Background(), strings.NewReader("x"), "big.pdf", convert.MIMEPDF, 11)

	assert.ErrorIs(t, err, ErrFileTooLarge)
}

func TestUpload_NilReader(t *testing.T) {
	svc := NewFlipbookService(new(storagemocks.MockStorage), new(repomocks.MockTaskRepository), new(mockDispatcher), allSupported, 0)

	_, err := svc.Upload(context.Background(), nil, "report.pdf", convert.MIMEPDF, 1)

	assert.ErrorIs(t, err, ErrReaderNil)
}

func TestUpload_CreateFailureRollsBackObject(t *testing.T) {
	store := new(storagemocks.MockStorage)
	repo := new(repomocks.MockTaskRepository)
	disp := new(mockDispatcher)

	store.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("url", nil)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil, errors.New("db down"))
	store.On("Delete", mock.Anything, mock.MatchedBy(func(key string) bool {
		return strings.HasPrefix(key, "uploads/")
	})).Return(nil)

	svc := NewFlipbookService(store, repo, disp, allSupported, 0)
	_, err := svc.Upload(context.Background(), strings.NewReader("x"), "report.pdf", convert.MIMEPDF, 1)

	assert.ErrorContains(t, err, "db down")
	store.AssertExpectations(t)
	disp.AssertNotCalled(t, "Submit", mock.Anything)
}

func TestUpload_QueueFull(t *testing.T) {
	store := new(storagemocks.MockStorage)
	repo := new(repomocks.MockTaskRepository)
	disp := new(mockDispatcher)

	store.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("url", nil)
	repo.On("Create", mock.Anything, mock.Anything).Return(&model.Task{}, nil)
	disp.On("Submit", mock.Anything).Return(errors.New("job queue is full"))

	svc := NewFlipbookService(store, repo, disp, allSupported, 0)
	_, err := svc.Upload(context.Background(), strings.NewReader("x"), "report.pdf", convert.MIMEPDF, 1)

	assert.ErrorContains(t, err, "queue is full")
}

func TestStatus_ShapesPerState(t *testing.T) {
	tests := []struct {
		name        string
		task        *model.Task
		wantURL     string
		wantErrText string
	}{
		{
			name: "processing has neither url nor error",
			task: &model.Task{ID: "t1", Status: model.StatusProcessing, Progress: 50},
		},
		{
			name:    "completed has flipbook url",
			task:    &model.Task{ID: "t2", Status: model.StatusCompleted, Progress: 100},
			wantURL: "/flipbook/t2",
		},
		{
			name:        "failed carries error message",
			task:        &model.Task{ID: "t3", Status: model.StatusFailed, Progress: 10, ErrorMessage: "conversion produced no pages"},
			wantErrText: "conversion produced no pages",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(repomocks.MockTaskRepository)
			repo.On("FindByID", mock.Anything, tt.task.ID).Return(tt.task, nil)

			svc := NewFlipbookService(new(storagemocks.MockStorage), repo, new(mockDispatcher), allSupported, 0)
			res, err := svc.Status(context.Background(), tt.task.ID)

			assert.NoError(t, err)
			assert.Equal(t, tt.task.Status, res.Status)
			assert.Equal(t, tt.task.Progress, res.Progress)
			assert.Equal(t, tt.wantURL, res.FlipbookURL)
			assert.Equal(t, tt.wantErrText, res.Error)
		})
	}
}

func TestStatus_NotFound(t *testing.T) {
	repo := new(repomocks.MockTaskRepository)
	repo.On("FindByID", mock.Anything, "missing").Return(nil, sql.ErrNoRows)

	svc := NewFlipbookService(new(storagemocks.MockStorage), repo, new(mockDispatcher), allSupported, 0)
	_, err := svc.Status(context.Background(), "missing")

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStatus_EmptyID(t *testing.T) {
	svc := NewFlipbookService(new(storagemocks.MockStorage), new(repomocks.MockTaskRepository), new(mockDispatcher), allSupported, 0)

	_, err := svc.Status(context.Background(), "")

	assert.ErrorIs(t, err, ErrIDRequired)
}

func TestFlipbook_Completed(t *testing.T) {
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := new(repomocks.MockTaskRepository)
	repo.On("FindByID", mock.Anything, "t1").Return(&model.Task{
		ID:           "t1",
		OriginalName: "deck.pptx",
		Status:       model.StatusCompleted,
		TotalPages:   2,
		CreatedAt:    created,
	}, nil)
	repo.On("ListPages", mock.Anything, "t1").Return([]model.Page{
		{TaskID: "t1", PageNumber: 1, ImageURL: "http://minio/flipbook/flipbooks/t1/page_1.png"},
		{TaskID: "t1", PageNumber: 2, ImageURL: "http://minio/flipbook/flipbooks/t1/page_2.png"},
	}, nil)

	svc := NewFlipbookService(new(storagemocks.MockStorage), repo, new(mockDispatcher), allSupported, 0)
	fb, err := svc.Flipbook(context.Background(), "t1")

	assert.NoError(t, err)
	assert.Equal(t, "deck.pptx", fb.Title)
	assert.Equal(t, 2, fb.TotalPages)
	assert.Len(t, fb.Pages, 2)
	assert.Equal(t, 1, fb.Pages[0].PageNumber)
	assert.Equal(t, 2, fb.Pages[1].PageNumber)
	assert.Equal(t, created, fb.CreatedAt)
}

func TestFlipbook_NotReadyUntilCompleted(t *testing.T) {
	for _, status := range []model.TaskStatus{model.StatusUploaded, model.StatusProcessing, model.StatusFailed} {
		t.Run(string(status), func(t *testing.T) {
			repo := new(repomocks.MockTaskRepository)
			repo.On("FindByID", mock.Anything, "t1").Return(&model.Task{ID: "t1", Status: status}, nil)

			svc := NewFlipbookService(new(storagemocks.MockStorage), repo, new(mockDispatcher), allSupported, 0)
			_, err := svc.Flipbook(context.Background(), "t1")

			assert.ErrorIs(t, err, ErrNotReady)
			repo.AssertNotCalled(t, "ListPages", mock.Anything, mock.Anything)
		})
	}
}

func TestList_MapsTasksAndDefaults(t *testing.T) {
	repo := new(repomocks.MockTaskRepository)
	repo.On("List", mock.Anything, repository.PageQuery{Limit: 10, Offset: 0}).Return(&repository.PageResult[model.Task]{
		Items: []model.Task{
			{ID: "t1", Status: model.StatusCompleted, Progress: 100},
			{ID: "t2", Status: model.StatusProcessing, Progress: 50},
		},
		Total: 7,
	}, nil)

	svc := NewFlipbookService(new(storagemocks.MockStorage), repo, new(mockDispatcher), allSupported, 0)
	res, err := svc.List(context.Background(), 0, -3)

	assert.NoError(t, err)
	assert.Equal(t, 7, res.Total)
	assert.Len(t, res.Items, 2)
	assert.Equal(t, "/flipbook/t1", res.Items[0].FlipbookURL)
	assert.Empty(t, res.Items[1].FlipbookURL)
}
