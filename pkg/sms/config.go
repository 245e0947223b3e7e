package sms

import "time"

type Config struct {
	GatewayURL    string        `env:"SMS_GATEWAY_URL"`                      // GatewayURL is the gateway base URL; empty disables SMS.
	APIKey        string        `env:"SMS_API_KEY"`                          // APIKey is sent as a bearer token.
	SenderID      string        `env:"SMS_SENDER_ID" envDefault:"WARDWATCH"` // SenderID is the originator shown to recipients.
	Timeout       time.Duration `env:"SMS_TIMEOUT" envDefault:"10s"`         // Timeout per HTTP attempt.
	RetryCount    int           `env:"SMS_RETRY_COUNT" envDefault:"2"`       // RetryCount is the number of retries after the first attempt.
	RetryWaitTime time.Duration `env:"SMS_RETRY_WAIT" envDefault:"500ms"`    // RetryWaitTime is the initial retry backoff.
}

// Enabled reports whether a gateway is configured.
func (c Config) Enabled() bool {
	return c.GatewayURL != ""
}
