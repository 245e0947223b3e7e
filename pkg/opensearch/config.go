package opensearch

// Config holds the OpenSearch connection used for audit indexing.
type Config struct {
	Addresses    []string `env:"OPENSEARCH_ADDRESSES" envSeparator:","`               // Addresses of cluster nodes; empty disables audit indexing.
	Username     string   `env:"OPENSEARCH_USERNAME"`                                 // Username for basic auth.
	Password     string   `env:"OPENSEARCH_PASSWORD"`                                 // Password for basic auth.
	AuditIndex   string   `env:"OPENSEARCH_AUDIT_INDEX" envDefault:"wardwatch-audit"` // AuditIndex receives audit events.
	MaxRetries   int      `env:"OPENSEARCH_MAX_RETRIES" envDefault:"3"`               // MaxRetries per request.
	DisableRetry bool     `env:"OPENSEARCH_DISABLE_RETRY" envDefault:"false"`         // DisableRetry turns client retries off.
}

// Enabled reports whether any node is configured.
func (c Config) Enabled() bool {
	return len(c.Addresses) > 0
}
