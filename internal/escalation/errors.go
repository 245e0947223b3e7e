package escalation

import "errors"

var (
	ErrEngineStarted    = errors.New("escalation engine already started")
	ErrEngineNotStarted = errors.New("escalation engine not started")
	// ErrTickInProgress is returned when a tick starts while the previous one
	// is still running.
	ErrTickInProgress = errors.New("escalation tick already in progress")
	// ErrLeaseHeld is returned when another replica holds the tick lease.
	ErrLeaseHeld = errors.New("escalation tick lease held elsewhere")
)
