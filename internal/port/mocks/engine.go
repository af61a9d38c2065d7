package mocks

import (
	"context"
	"io"

	"github.com/bnema/vidflow/internal/domain"
	"github.com/bnema/vidflow/internal/port"
	"github.com/stretchr/testify/mock"
)

type EngineMock struct {
	mock.Mock
}

func NewEngineMock(t interface {
	mock.TestingT
	Cleanup(func())
}) *EngineMock {
	m := &EngineMock{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *EngineMock) Submit(ctx context.Context, filename string, content io.Reader) (string, error) {
	args := m.Called(ctx, filename, content)
	return args.String(0), args.Error(1)
}

func (m *EngineMock) Status(ctx context.Context, jobID string) (*domain.JobPayload, error) {
	args := m.Called(ctx, jobID)
	p, _ := args.Get(0).(*domain.JobPayload)
	return p, args.Error(1)
}

func (m *EngineMock) Health(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

var _ port.Engine = (*EngineMock)(nil)
