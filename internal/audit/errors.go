package audit

import "errors"

var (
	// ErrStorageNotAvailable indicates the storage backend is unavailable
	ErrStorageNotAvailable = errors.New("audit storage backend is unavailable")

	// ErrEventValidation indicates event validation failed
	ErrEventValidation = errors.New("audit event validation failed")

	// ErrChainBroken indicates a stored event does not match its hash or its predecessor
	ErrChainBroken = errors.New("audit hash chain is broken")

	// ErrIndexFailed indicates the search backend rejected a request
	ErrIndexFailed = errors.New("audit index request failed")
)
