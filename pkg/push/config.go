package push

import "time"

type Config struct {
	GatewayURL string        `env:"PUSH_GATEWAY_URL"`                // GatewayURL is the gateway base URL; empty disables push.
	APIKey     string        `env:"PUSH_API_KEY"`                    // APIKey is sent as a bearer token.
	Timeout    time.Duration `env:"PUSH_TIMEOUT" envDefault:"10s"`   // Timeout per HTTP attempt.
	RetryCount int           `env:"PUSH_RETRY_COUNT" envDefault:"2"` // RetryCount is the number of retries after the first attempt.
}

// Enabled reports whether a gateway is configured.
func (c Config) Enabled() bool {
	return c.GatewayURL != ""
}
