package sms

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
)

// Message is one outbound SMS.
type Message struct {
	To       string
	Body     string
	Priority string
}

// Receipt is the gateway's acknowledgement of an accepted message.
type Receipt struct {
	MessageID string
	Cost      float64
	Segments  int
}

type sendRequest struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Body     string `json:"body"`
	Priority string `json:"priority,omitempty"`
}

type sendResponse struct {
	ID       string  `json:"id"`
	Cost     float64 `json:"cost"`
	Segments int     `json:"segments"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Client sends messages to the gateway.
type Client struct {
	http     *resty.Client
	senderID string
}

// NewClient validates cfg and returns a gateway client.
func NewClient(cfg Config) (*Client, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("%w: SMS_GATEWAY_URL is required", ErrInvalidConfig)
	}

	rc := resty.New().
		SetBaseURL(strings.TrimRight(cfg.GatewayURL, "/")).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(cfg.RetryWaitTime).
		SetRetryMaxWaitTime(4*cfg.RetryWaitTime).
		AddRetryCondition(retryable).
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		rc.SetAuthToken(cfg.APIKey)
	}

	return &Client{http: rc, senderID: cfg.SenderID}, nil
}

func retryable(resp *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	return resp.StatusCode() == http.StatusTooManyRequests || resp.StatusCode() >= http.StatusInternalServerError
}

// Send submits msg. The number is validated before any request is made.
func (c *Client) Send(ctx context.Context, msg Message) (Receipt, error) {
	if err := ValidatePhone(msg.To); err != nil {
		return Receipt{}, err
	}
	if strings.TrimSpace(msg.Body) == "" {
		return Receipt{}, ErrEmptyMessage
	}

	var (
		out    sendResponse
		errOut errorResponse
	)
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(sendRequest{From: c.senderID, To: msg.To, Body: msg.Body, Priority: msg.Priority}).
		SetResult(&out).
		SetError(&errOut).
		Post("/messages")
	if err != nil {
		return Receipt{}, errors.Join(ErrSendFailed, err)
	}
	if resp.IsError() {
		return Receipt{}, fmt.Errorf("%w: status %d: %s %s", ErrSendFailed, resp.StatusCode(), errOut.Code, errOut.Message)
	}

	return Receipt{MessageID: out.ID, Cost: out.Cost, Segments: out.Segments}, nil
}
