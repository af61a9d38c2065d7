package mocks

import (
	"context"
	"io"
	"time"

	"github.com/bnema/vidflow/internal/domain"
	"github.com/bnema/vidflow/internal/port"
	"github.com/stretchr/testify/mock"
)

type StorageProviderMock struct {
	mock.Mock
	name domain.ProviderName
}

func NewStorageProviderMock(t interface {
	mock.TestingT
	Cleanup(func())
}, name domain.ProviderName) *StorageProviderMock {
	m := &StorageProviderMock{name: name}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *StorageProviderMock) Name() domain.ProviderName {
	return m.name
}

func (m *StorageProviderMock) Put(ctx context.Context, key string, content io.Reader, opts domain.PutOptions) (*domain.StoredObject, error) {
	args := m.Called(ctx, key, content, opts)
	obj, _ := args.Get(0).(*domain.StoredObject)
	return obj, args.Error(1)
}

func (m *StorageProviderMock) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *StorageProviderMock) Sign(ctx context.Context, key string, ttl time.Duration) (string, error) {
	args := m.Called(ctx, key, ttl)
	return args.String(0), args.Error(1)
}

func (m *StorageProviderMock) StreamURL(videoID, quality string) domain.StreamURL {
	args := m.Called(videoID, quality)
	return args.Get(0).(domain.StreamURL)
}

var _ port.StorageProvider = (*StorageProviderMock)(nil)
