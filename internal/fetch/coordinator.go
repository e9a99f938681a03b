// Package fetch issues background listing fetches and admits only the result
// of the most recent request.
//
// Request and Accept must be called from the goroutine that owns navigation
// state. The returned Task runs anywhere; it only produces a Result value.
//
// Usage:
//
//	task := coord.Request("my-bucket", "logs/")
//	go func() { results <- task() }()
//	...
//	if res := <-results; coord.Accept(res) {
//	    cache.SetRawListing(res.Bucket, res.Scope, res.Records)
//	}
package fetch

import (
	"context"
	"time"

	"github.com/slmtnm/s3ranger/internal/logger"
	"github.com/slmtnm/s3ranger/internal/store"
)

// DefaultTimeout bounds a single fetch including every page.
const DefaultTimeout = 2 * time.Minute

// Generation tags a fetch request.
type Generation uint64

// Result is the immutable outcome of a Task.
type Result struct {
	Generation Generation
	Bucket     string
	Scope      string
	Records    []store.ObjectRecord
	Err        error
	Duration   time.Duration
}

// Task performs one fetch. It blocks until every page has been read.
type Task func() Result

// Coordinator hands out generation-tagged tasks.
type Coordinator struct {
	client  store.Client
	timeout time.Duration
	log     *logger.Logger
	current Generation
}

// NewCoordinator creates a coordinator listing through client. A zero
// timeout selects DefaultTimeout and a nil log discards output.
func NewCoordinator(client store.Client, timeout time.Duration, log *logger.Logger) *Coordinator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Coordinator{client: client, timeout: timeout, log: log}
}

// Request starts a new generation and returns the task that lists bucket
// under scope. The previous generation's task, if still running, is not
// cancelled; its result will simply be rejected by Accept.
func (c *Coordinator) Request(bucket, scope string) Task {
	c.current++
	gen := c.current
	client, timeout, log := c.client, c.timeout, c.log

	log.With().
		Uint64("generation", uint64(gen)).
		Str("bucket", bucket).
		Str("scope", scope).
		Logger().Debug("fetch requested")

	return func() Result {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		start := time.Now()
		records, err := store.Drain(ctx, client, bucket, scope)
		res := Result{
			Generation: gen,
			Bucket:     bucket,
			Scope:      scope,
			Records:    records,
			Err:        err,
			Duration:   time.Since(start),
		}
		if err != nil {
			res.Records = nil
		}
		return res
	}
}

// Accept reports whether res belongs to the current generation. Stale
// results are logged and dropped.
func (c *Coordinator) Accept(res Result) bool {
	if res.Generation != c.current {
		c.log.With().
			Uint64("generation", uint64(res.Generation)).
			Uint64("current", uint64(c.current)).
			Str("bucket", res.Bucket).
			Str("scope", res.Scope).
			Logger().Debug("stale fetch result discarded")
		return false
	}

	ev := c.log.With().
		Uint64("generation", uint64(res.Generation)).
		Str("bucket", res.Bucket).
		Str("scope", res.Scope).
		Int("records", len(res.Records)).
		Dur("duration", res.Duration).
		Logger()
	if res.Err != nil {
		ev.ErrorWith("fetch failed", res.Err, nil)
	} else {
		ev.Debug("fetch completed")
	}
	return true
}

// Current returns the generation of the latest request.
func (c *Coordinator) Current() Generation {
	return c.current
}

// Invalidate supersedes every outstanding task without starting a new one.
func (c *Coordinator) Invalidate() {
	c.current++
}
