package mocks

import (
	"context"
	"time"

	"flipbook/internal/model"
	"flipbook/internal/repository"

	"github.com/stretchr/testify/mock"
)

type MockTaskRepository struct {
	mock.Mock
}

func (m *MockTaskRepository) Create(ctx context.Context, task *model.Task) (*model.Task, error) {
	args := m.Called(ctx, task)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Task), args.Error(1)
}

func (m *MockTaskRepository) FindByID(ctx context.Context, id string) (*model.Task, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Task), args.Error(1)
}

func (m *MockTaskRepository) List(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.Task], error) {
	args := m.Called(ctx, pq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.Task]), args.Error(1)
}

func (m *MockTaskRepository) MarkProcessing(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockTaskRepository) UpdateStatus(ctx context.Context, id string, status model.TaskStatus, progress int, errMsg string) error {
	args := m.Called(ctx, id, status, progress, errMsg)
	return args.Error(0)
}

func (m *MockTaskRepository) AppendPages(ctx context.Context, id string, pages []model.Page) error {
	args := m.Called(ctx, id, pages)
	return args.Error(0)
}

func (m *MockTaskRepository) ListPages(ctx context.Context, id string) ([]model.Page, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Page), args.Error(1)
}

func (m *MockTaskRepository) FindInStatus(ctx context.Context, status model.TaskStatus) ([]model.Task, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Task), args.Error(1)
}

func (m *MockTaskRepository) FindStaleProcessing(ctx context.Context, olderThan time.Duration) ([]model.Task, error) {
	args := m.Called(ctx, olderThan)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Task), args.Error(1)
}
