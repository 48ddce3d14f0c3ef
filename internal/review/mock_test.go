package review

import (
	"context"

	"github.com/stretchr/testify/mock"

	"image-review/backend/internal/backend"
)

// MockClient satisfies backend.Client
type MockClient struct {
	mock.Mock
}

func (m *MockClient) ListFolder(ctx context.Context, dir string) ([]backend.Entry, error) {
	args := m.Called(ctx, dir)
	entries, _ := args.Get(0).([]backend.Entry)
	return entries, args.Error(1)
}

func (m *MockClient) GetMetadata(ctx context.Context, id string) (backend.Item, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(backend.Item), args.Error(1)
}

func (m *MockClient) ListSharedLinks(ctx context.Context, path string) ([]backend.SharedLink, error) {
	args := m.Called(ctx, path)
	links, _ := args.Get(0).([]backend.SharedLink)
	return links, args.Error(1)
}

func (m *MockClient) CreateSharedLink(ctx context.Context, path string) (backend.SharedLink, error) {
	args := m.Called(ctx, path)
	return args.Get(0).(backend.SharedLink), args.Error(1)
}

func (m *MockClient) Move(ctx context.Context, from, to string) (backend.Item, error) {
	args := m.Called(ctx, from, to)
	return args.Get(0).(backend.Item), args.Error(1)
}

// fixedIndex returns a random source that always picks idx, recording n.
func fixedIndex(idx int, seen *int) func(int) int {
	return func(n int) int {
		if seen != nil {
			*seen = n
		}
		return idx
	}
}

func testFolders() Folders {
	f, err := NewFolders("/pending", "/approved", "/deleted", "/rework")
	if err != nil {
		panic(err)
	}
	return f
}
