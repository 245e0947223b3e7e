// Package push delivers mobile push notifications through an HTTP push
// gateway that fans a message out to device tokens.
//
// A send is considered successful when at least one token accepted the
// message; per-token failures are returned so callers can prune stale tokens.
package push
