package sms

import "errors"

var (
	ErrInvalidPhoneNumber = errors.New("phone number is not in E.164 format")
	ErrEmptyMessage       = errors.New("sms message body is empty")
	ErrInvalidConfig      = errors.New("invalid sms config")
	ErrSendFailed         = errors.New("sms gateway rejected the message")
)
