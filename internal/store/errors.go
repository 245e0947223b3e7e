package store

import "errors"

var (
	ErrNilAlertID   = errors.New("alert id is required")
	ErrNilUserID    = errors.New("user id is required")
	ErrDuplicateID  = errors.New("record with the same id already exists")
	ErrQueueEntryID = errors.New("queue entry id is required")
)
