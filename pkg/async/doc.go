// Package async runs independent pieces of work concurrently and collects
// every outcome, successful or not.
//
// Async starts one function and returns a Future. Map applies a function to a
// slice of inputs with a concurrency limit enforced by a weighted semaphore
// from golang.org/x/sync/semaphore, waits for all of them, and returns one
// Result per input in input order. A failing item never cancels its siblings.
//
//	results := async.Map(ctx, alerts, 8, func(ctx context.Context, a Alert) (Outcome, error) {
//	    return engine.Escalate(ctx, a)
//	})
//	for _, r := range results {
//	    if r.Err != nil {
//	        // handle per-item failure
//	    }
//	}
package async
