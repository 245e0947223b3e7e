// Package httpapi is the admin HTTP surface: raising and driving alerts,
// sending notifications, managing staff and preferences, reading the audit
// trail and streaming hospital events. Every /api route requires a bearer
// token checked by an Authorizer; health and metrics routes are open.
package httpapi
