package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"flipbook/internal/service"
)

// MockFlipbookService is a testify mock of service.FlipbookService.
type MockFlipbookService struct {
	mock.Mock
}

func (m *MockFlipbookService) Upload(ctx context.Context, r io.Reader, originalFilename, contentType string, size int64) (*service.UploadResult, error) {
	args := m.Called(ctx, r, originalFilename, contentType, size)
	var res *service.UploadResult
	if v := args.Get(0); v != nil {
		res = v.(*service.UploadResult)
	}
	return res, args.Error(1)
}

func (m *MockFlipbookService) Status(ctx context.Context, id string) (*service.TaskStatusResult, error) {
	args := m.Called(ctx, id)
	var res *service.TaskStatusResult
	if v := args.Get(0); v != nil {
		res = v.(*service.TaskStatusResult)
	}
	return res, args.Error(1)
}

func (m *MockFlipbookService) Flipbook(ctx context.Context, id string) (*service.Flipbook, error) {
	args := m.Called(ctx, id)
	var res *service.Flipbook
	if v := args.Get(0); v != nil {
		res = v.(*service.Flipbook)
	}
	return res, args.Error(1)
}

func (m *MockFlipbookService) List(ctx context.Context, limit, offset int) (*service.TaskListResult, error) {
	args := m.Called(ctx, limit, offset)
	var res *service.TaskListResult
	if v := args.Get(0); v != nil {
		res = v.(*service.TaskListResult)
	}
	return res, args.Error(1)
}
