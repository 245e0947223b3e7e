package dispatch

import "errors"

var (
	ErrDispatcherStarted    = errors.New("dispatcher already started")
	ErrDispatcherNotStarted = errors.New("dispatcher not started")
	ErrBatcherClosed        = errors.New("batcher is closed")
	ErrNoContact            = errors.New("recipient has no contact details for channel")
	ErrAdapterPanic         = errors.New("channel adapter panicked")
	ErrEnqueueFailed        = errors.New("failed to enqueue notification")
	ErrNoChannels           = errors.New("no delivery channel available")
)
