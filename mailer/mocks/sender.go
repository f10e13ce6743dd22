package mocks

import (
	"github.com/stretchr/testify/mock"

	"github.com/tungahq/payments/mailer"
)

type ISender struct {
	mock.Mock
}

func (m *ISender) SendNotification(sn *mailer.SimpleNotification, to string, params map[string]interface{}) error {
	args := m.Called(sn, to, params)
	return args.Error(0)
}
