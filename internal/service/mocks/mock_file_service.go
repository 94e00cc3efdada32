package mocks

import (
	"context"

	"stashdocs/internal/model"
	"stashdocs/internal/service"

	"github.com/stretchr/testify/mock"
)

type MockFileService struct {
	mock.Mock
}

func (m *MockFileService) CreateFile(ctx context.Context, principalID, stashID, name, content, docType string, tags []string) (*model.File, error) {
	args := m.Called(ctx, principalID, stashID, name, content, docType, tags)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.File), args.Error(1)
}

func (m *MockFileService) UpdateFile(ctx context.Context, principalID, fileID string, in service.UpdateFileInput) (*model.File, error) {
	args := m.Called(ctx, principalID, fileID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.File), args.Error(1)
}

func (m *MockFileService) RevertFile(ctx context.Context, principalID, fileID, versionID string) (*model.File, error) {
	args := m.Called(ctx, principalID, fileID, versionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.File), args.Error(1)
}

func (m *MockFileService) GetFile(ctx context.Context, principalID, fileID string) (*model.File, error) {
	args := m.Called(ctx, principalID, fileID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.File), args.Error(1)
}

func (m *MockFileService) ListVersions(ctx context.Context, principalID, fileID string) ([]model.FileVersion, error) {
	args := m.Called(ctx, principalID, fileID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.FileVersion), args.Error(1)
}

func (m *MockFileService) DeleteFile(ctx context.Context, principalID, fileID string) error {
	args := m.Called(ctx, principalID, fileID)
	return args.Error(0)
}
