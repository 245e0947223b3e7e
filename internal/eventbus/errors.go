package eventbus

import "errors"

var (
	ErrBusClosed       = errors.New("eventbus: bus is closed")
	ErrMissingHospital = errors.New("eventbus: event has no hospital id")
	ErrMarshalEvent    = errors.New("eventbus: failed to encode event")
	ErrPublishFailed   = errors.New("eventbus: publish failed")
	ErrPublishTimeout  = errors.New("eventbus: publish timed out")
	ErrInvalidConfig   = errors.New("eventbus: invalid config")
)
