package async

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Result is the settled outcome of one task.
type Result[U any] struct {
	Value U
	Err   error
}

// Future is the pending result of an asynchronous computation.
type Future[U any] struct {
	res  Result[U]
	done chan struct{}
}

// Await blocks until the computation completes.
func (f *Future[U]) Await() (U, error) {
	<-f.done
	return f.res.Value, f.res.Err
}

// IsComplete reports whether the computation finished, without blocking.
func (f *Future[U]) IsComplete() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Async runs fn in its own goroutine. A canceled ctx short-circuits fn, and a
// panic inside fn is converted into an ErrPanic result.
func Async[T any, U any](ctx context.Context, param T, fn func(context.Context, T) (U, error)) *Future[U] {
	f := &Future[U]{done: make(chan struct{})}

	go func() {
		defer close(f.done)
		f.res = run(ctx, param, fn)
	}()

	return f
}

// WaitAll waits for every future and returns their results in order.
func WaitAll[U any](futures ...*Future[U]) []Result[U] {
	results := make([]Result[U], len(futures))
	for i, f := range futures {
		v, err := f.Await()
		results[i] = Result[U]{Value: v, Err: err}
	}
	return results
}

// Map applies fn to every item with at most limit calls in flight and returns
// one Result per item, in item order. limit <= 0 means unbounded.
func Map[T any, U any](ctx context.Context, items []T, limit int, fn func(context.Context, T) (U, error)) []Result[U] {
	results := make([]Result[U], len(items))
	if len(items) == 0 {
		return results
	}
	if limit <= 0 || limit > len(items) {
		limit = len(items)
	}

	sem := semaphore.NewWeighted(int64(limit))
	var wg sync.WaitGroup

	for i, item := range items {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Items never started still get a settled result.
			for j := i; j < len(items); j++ {
				results[j].Err = err
			}
			break
		}

		wg.Add(1)
		go func(i int, item T) {
			defer wg.Done()
			defer sem.Release(1)
			results[i] = run(ctx, item, fn)
		}(i, item)
	}

	wg.Wait()
	return results
}

func run[T any, U any](ctx context.Context, param T, fn func(context.Context, T) (U, error)) (res Result[U]) {
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	defer func() {
		if p := recover(); p != nil {
			res = Result[U]{Err: fmt.Errorf("%w: %v", ErrPanic, p)}
		}
	}()

	v, err := fn(ctx, param)
	return Result[U]{Value: v, Err: err}
}
