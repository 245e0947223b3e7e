// Package opensearch connects to the OpenSearch cluster that indexes audit
// events for search.
//
//	client, err := opensearch.New(ctx, cfg)
//	if errors.Is(err, opensearch.ErrNotConfigured) {
//		// audit events stay in Postgres only
//	}
//
// Healthcheck returns a probe suitable for the readiness endpoint.
package opensearch
