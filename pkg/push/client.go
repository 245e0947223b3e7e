package push

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Message is a push payload addressed to one or more device tokens.
type Message struct {
	Tokens   []string          `json:"tokens"`
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Data     map[string]string `json:"data,omitempty"`
	Priority string            `json:"priority,omitempty"`
}

// TokenError describes a token the gateway could not deliver to.
type TokenError struct {
	Token string `json:"token"`
	Error string `json:"error"`
}

// Result summarizes a multicast send.
type Result struct {
	MessageID string       `json:"id"`
	Delivered int          `json:"delivered"`
	Failures  []TokenError `json:"failures"`
}

// Client sends messages to the push gateway.
type Client struct {
	http *resty.Client
}

// NewClient validates cfg and returns a gateway client.
func NewClient(cfg Config) (*Client, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("%w: PUSH_GATEWAY_URL is required", ErrInvalidConfig)
	}

	rc := resty.New().
		SetBaseURL(strings.TrimRight(cfg.GatewayURL, "/")).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(200*time.Millisecond).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			return err != nil || resp.StatusCode() >= http.StatusInternalServerError
		}).
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		rc.SetAuthToken(cfg.APIKey)
	}

	return &Client{http: rc}, nil
}

// Send delivers msg. It fails when no token accepted the message, in which
// case the returned Result still lists the per-token failures.
func (c *Client) Send(ctx context.Context, msg Message) (Result, error) {
	if len(msg.Tokens) == 0 {
		return Result{}, ErrNoTokens
	}

	var out Result
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(msg).
		SetResult(&out).
		Post("/send")
	if err != nil {
		return Result{}, errors.Join(ErrSendFailed, err)
	}
	if resp.IsError() {
		return Result{}, fmt.Errorf("%w: status %d", ErrSendFailed, resp.StatusCode())
	}
	if out.Delivered == 0 {
		return out, fmt.Errorf("%w: all %d tokens rejected", ErrSendFailed, len(msg.Tokens))
	}
	return out, nil
}
