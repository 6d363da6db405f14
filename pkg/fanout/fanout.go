// Package fanout runs a set of independent jobs concurrently and
// waits for all of them to finish, collecting per-job outcomes. It is
// the single place where the "settle all, collect failures, never
// propagate" policy for side-effect boundaries lives.
package fanout

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Result is the outcome of one job.
type Result struct {
	Name string
	Err  error
}

// Failed reports whether the job returned an error.
func (r Result) Failed() bool {
	return r.Err != nil
}

// SettleAll runs every job concurrently, each under its own timeout,
// and blocks until all of them have settled. A slow or failing job
// never affects the others. Panics inside a job are converted to
// errors so one misbehaving sender cannot take the process down.
func SettleAll(ctx context.Context, timeout time.Duration, jobs map[string]func(context.Context) error) []Result {
	results := make([]Result, 0, len(jobs))
	if len(jobs) == 0 {
		return results
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)

	for name, job := range jobs {
		wg.Add(1)
		go func(name string, job func(context.Context) error) {
			defer wg.Done()

			jobCtx := ctx
			if timeout > 0 {
				var cancel context.CancelFunc
				jobCtx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			err := runRecovered(jobCtx, job)

			mu.Lock()
			results = append(results, Result{Name: name, Err: err})
			mu.Unlock()
		}(name, job)
	}

	wg.Wait()
	return results
}

func runRecovered(ctx context.Context, job func(context.Context) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("job panicked: %v", p)
		}
	}()
	return job(ctx)
}

// Errors filters the failed results.
func Errors(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if r.Failed() {
			failed = append(failed, r)
		}
	}
	return failed
}
