// Package store persists alerts, escalation history, staff, delivery logs and
// the notification retry queue.
//
// Store is the transactional boundary used by the escalation engine and the
// dispatcher. Two implementations exist: MemoryStore for tests and single-node
// development, and PostgresStore which runs over database/sql on top of the
// pgx driver with goose migrations embedded in the migrations package.
//
// Tier advances are optimistic: UpdateAlertTierConditional only touches a row
// whose level still equals the caller's fromTier and whose status is active.
// A false result means another worker already made the transition.
package store
