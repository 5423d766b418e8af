package mocks

import "github.com/stretchr/testify/mock"

type MockMailManager struct {
	mock.Mock
}

func (m *MockMailManager) SendOTPMail(email, name, otp string) error {
	args := m.Called(email, name, otp)
	return args.Error(0)
}

func (m *MockMailManager) SendPasswordResetMail(email, name, resetURL string) error {
	args := m.Called(email, name, resetURL)
	return args.Error(0)
}

func (m *MockMailManager) SendConfirmationMail(email, name string) error {
	args := m.Called(email, name)
	return args.Error(0)
}
