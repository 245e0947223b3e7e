package push

import "errors"

var (
	ErrNoTokens      = errors.New("no push tokens")
	ErrInvalidConfig = errors.New("invalid push config")
	ErrSendFailed    = errors.New("push delivery failed")
)
