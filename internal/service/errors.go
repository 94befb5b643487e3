package service

import "errors"

var (
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrRegistrationFailed   = errors.New("registration failed: email already exists")
	ErrRecordingNotFound    = errors.New("recording not found")
	ErrInvalidInput         = errors.New("invalid input")
	ErrForbidden            = errors.New("operation not allowed for this role")
	ErrInternalServer       = errors.New("internal server error")
)
