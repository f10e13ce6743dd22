package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type Notifier struct {
	mock.Mock
}

func (m *Notifier) PostMessage(ctx context.Context, text string) error {
	args := m.Called(ctx, text)
	return args.Error(0)
}

func (m *Notifier) UploadFile(ctx context.Context, filename, title string, data []byte) error {
	args := m.Called(ctx, filename, title, data)
	return args.Error(0)
}
