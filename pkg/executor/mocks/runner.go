package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/00PrabalK00/RosScope/pkg/executor"
)

// MockRunner is a mock implementation of the executor.Runner interface for testing
type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) Run(ctx context.Context, program string, args []string, timeout time.Duration, env map[string]string) executor.Result {
	called := m.Called(ctx, program, args, timeout, env)

	return called.Get(0).(executor.Result)
}

func (m *MockRunner) RunShell(ctx context.Context, command string, timeout time.Duration, env map[string]string) executor.Result {
	called := m.Called(ctx, command, timeout, env)

	return called.Get(0).(executor.Result)
}
