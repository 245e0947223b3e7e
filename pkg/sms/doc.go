// Package sms sends text messages through an HTTP SMS gateway.
//
// The client speaks a small JSON protocol (POST {base}/messages) using
// github.com/go-resty/resty/v2 with retries on transport errors, 429 and 5xx
// responses. Destination numbers must be in E.164 form; ValidatePhone
// enforces it before anything goes on the wire. Cost and segment counts are
// whatever the gateway reports.
package sms
