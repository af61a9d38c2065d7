package mocks

import (
	"context"
	"time"

	"github.com/bnema/vidflow/internal/domain"
	"github.com/bnema/vidflow/internal/port"
	"github.com/stretchr/testify/mock"
)

type VideoStoreMock struct {
	mock.Mock
}

func NewVideoStoreMock(t interface {
	mock.TestingT
	Cleanup(func())
}) *VideoStoreMock {
	m := &VideoStoreMock{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *VideoStoreMock) Create(ctx context.Context, v *domain.Video) error {
	args := m.Called(ctx, v)
	return args.Error(0)
}

func (m *VideoStoreMock) Get(ctx context.Context, id string) (*domain.Video, error) {
	args := m.Called(ctx, id)
	v, _ := args.Get(0).(*domain.Video)
	return v, args.Error(1)
}

func (m *VideoStoreMock) List(ctx context.Context) ([]*domain.Video, error) {
	args := m.Called(ctx)
	list, _ := args.Get(0).([]*domain.Video)
	return list, args.Error(1)
}

func (m *VideoStoreMock) UpdateDetails(ctx context.Context, id, title, description string, updatedAt time.Time) error {
	args := m.Called(ctx, id, title, description, updatedAt)
	return args.Error(0)
}

func (m *VideoStoreMock) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *VideoStoreMock) Transition(ctx context.Context, v *domain.Video, expected domain.VideoStatus) error {
	args := m.Called(ctx, v, expected)
	return args.Error(0)
}

func (m *VideoStoreMock) ListProcessing(ctx context.Context) ([]*domain.Video, error) {
	args := m.Called(ctx)
	list, _ := args.Get(0).([]*domain.Video)
	return list, args.Error(1)
}

var _ port.VideoStore = (*VideoStoreMock)(nil)
