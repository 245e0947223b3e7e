package domain

import "errors"

var (
	// ErrTierConfig means the tier ladder cannot serve the requested level.
	ErrTierConfig = errors.New("escalation tier configuration error")
	// ErrInvalidState means the alert is not in a state that allows the operation.
	ErrInvalidState = errors.New("alert is in an invalid state for this operation")
	// ErrExpiredNotification is returned for notifications past their expiry.
	ErrExpiredNotification = errors.New("notification has expired")
	// ErrInvalidNotification is returned when a notification fails validation.
	ErrInvalidNotification = errors.New("invalid notification")
	// ErrInvalidPhoneNumber is returned for phone numbers not in E.164 format.
	ErrInvalidPhoneNumber = errors.New("invalid phone number")
	// ErrInvalidAlert is returned when a new alert fails validation.
	ErrInvalidAlert = errors.New("invalid alert")
	// ErrAlertNotFound is returned when an alert id does not exist.
	ErrAlertNotFound = errors.New("alert not found")
	// ErrUserNotFound is returned when a user id does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrQueueEntryNotFound is returned when a queue entry id does not exist.
	ErrQueueEntryNotFound = errors.New("notification queue entry not found")
	// ErrChannelNotConfigured is returned when no adapter serves a channel.
	ErrChannelNotConfigured = errors.New("channel not configured")
)
