package logstore

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockFetcher is a mock implementation of Fetcher for testing
type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) Info(ctx context.Context, slug Slug) (JobInfo, error) {
	args := m.Called(ctx, slug)
	return args.Get(0).(JobInfo), args.Error(1)
}

func (m *MockFetcher) Log(ctx context.Context, slug Slug) (string, error) {
	args := m.Called(ctx, slug)
	return args.String(0), args.Error(1)
}
