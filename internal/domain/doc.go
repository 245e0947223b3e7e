// Package domain holds the core types shared by the escalation engine and the
// notification dispatcher: alerts and their lifecycle, the escalation tier
// ladder, notifications, channels, recipient preferences, delivery logs and
// the retry queue.
//
// The closed enumerations (Channel, NotificationType, Priority) expose their
// behaviour through exhaustive switch tables so adding a value forces every
// table to be revisited.
package domain
