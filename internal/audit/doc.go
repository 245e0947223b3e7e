// Package audit keeps an append-only, tamper-evident record of escalation and
// delivery events.
//
// A Logger stamps each event with an id, time and result, filters sensitive
// metadata (phone numbers are masked, email addresses hashed) and seals it
// into a BLAKE2b hash chain: every event carries the hash of its predecessor,
// so a removed or edited row breaks Reader.Verify.
//
// Storage backends:
//
//   - MemoryStorage for tests and single-process development.
//   - PostgresStorage writes the audit_events table and supports batched inserts.
//   - OpenSearchStorage indexes events for search dashboards.
//   - MultiStorage writes a primary and mirrors to secondaries.
//   - AsyncWriter batches writes in the background for any BatchStorage.
//
// Basic usage:
//
//	l := audit.NewLogger(audit.NewPostgresStorage(db))
//	_ = l.Log(ctx, audit.ActionAlertEscalated,
//		audit.WithResource("alert", alertID),
//		audit.WithHospital(hospitalID),
//		audit.WithMetadata("to_tier", 2),
//	)
//
// Audit failures are reported to the caller but should never abort the
// operation being audited.
package audit
