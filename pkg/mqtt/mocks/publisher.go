package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockPublisher is a mock implementation of the mqtt.Publisher interface for testing
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, msg any) error {
	args := m.Called(ctx, topic, msg)

	return args.Error(0)
}

func (m *MockPublisher) Disconnect(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
