package testutil

import (
	"errors"
	"sync"
	"sync/atomic"

	"veritas/internal/sentinel"
)

// ConcurrentResult counts the outcomes of a RunConcurrent batch.
type ConcurrentResult struct {
	Successes int32
	Errors    int32
	Conflicts int32
	NotFounds int32
	// First keeps the first unclassified error for the failure message.
	First error
}

func (r *ConcurrentResult) Total() int32 {
	return r.Successes + r.Errors + r.Conflicts + r.NotFounds
}

// RunConcurrent starts n goroutines running fn(i) and waits for all of them.
// Store sentinel errors are counted separately from other failures.
func RunConcurrent(n int, fn func(i int) error) *ConcurrentResult {
	var (
		wg                                  sync.WaitGroup
		successes, errs, conflicts, missing atomic.Int32
		firstOnce                           sync.Once
		first                               error
	)
	start := make(chan struct{})

	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			err := fn(i)
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, sentinel.ErrConflict):
				conflicts.Add(1)
			case errors.Is(err, sentinel.ErrNotFound):
				missing.Add(1)
			default:
				errs.Add(1)
				firstOnce.Do(func() { first = err })
			}
		}()
	}
	close(start)
	wg.Wait()

	return &ConcurrentResult{
		Successes: successes.Load(),
		Errors:    errs.Load(),
		Conflicts: conflicts.Load(),
		NotFounds: missing.Load(),
		First:     first,
	}
}
