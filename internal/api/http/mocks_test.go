package http_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"zephyrm-backend/internal/domain"
)

// MockRequestService
type MockRequestService struct {
	mock.Mock
}

func (m *MockRequestService) CreateRequest(ctx context.Context, userID, assetID int32, title, motivation string) (*domain.Request, error) {
	args := m.Called(ctx, userID, assetID, title, motivation)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Request), args.Error(1)
}
func (m *MockRequestService) Approve(ctx context.Context, requestID, targetAssetID, targetUserID int32) (*domain.Request, error) {
	args := m.Called(ctx, requestID, targetAssetID, targetUserID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Request), args.Error(1)
}
func (m *MockRequestService) Deny(ctx context.Context, requestID int32, motive string) (*domain.Request, error) {
	args := m.Called(ctx, requestID, motive)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Request), args.Error(1)
}
func (m *MockRequestService) Delete(ctx context.Context, requestID, requestingUserID int32) error {
	args := m.Called(ctx, requestID, requestingUserID)
	return args.Error(0)
}
func (m *MockRequestService) Get(ctx context.Context, id int32) (*domain.Request, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Request), args.Error(1)
}
func (m *MockRequestService) List(ctx context.Context, filter domain.RequestFilter) ([]domain.Request, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.Request), args.Error(1)
}
func (m *MockRequestService) MarkReturned(ctx context.Context, assetID, userID int32) (*domain.Asset, error) {
	args := m.Called(ctx, assetID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Asset), args.Error(1)
}
