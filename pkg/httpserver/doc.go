// Package httpserver runs an http.Handler with graceful shutdown.
//
// Run blocks until the context is canceled or the listener fails, then drains
// in-flight requests for at most the configured shutdown timeout. It fits
// errgroup-style lifecycles:
//
//	srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))
//	g.Go(func() error { return srv.Run(ctx, router) })
//
// HealthCheckHandler serves liveness and readiness probes from named checks.
package httpserver
