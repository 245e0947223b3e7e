// Package escalation moves unacknowledged alerts up the tier ladder.
//
// An Engine polls for active alerts whose escalation deadline has passed and
// advances each one by exactly one tier. The advance is a single transaction
// guarded by the alert's current level, so two engines racing on the same
// alert produce one transition: the loser's update matches no row and it
// skips. After commit the engine publishes an alert.escalated event and sends
// a critical notification to the staff of the new tier.
//
// Failures are isolated per alert and surface as EscalationResult values. An
// alert whose escalation failed is still due and is retried on the next tick.
//
// The engine also owns the rest of the alert lifecycle: Raise creates an
// alert at tier 1 and pages its role, and Acknowledge and Resolve stop
// escalation for good.
package escalation
