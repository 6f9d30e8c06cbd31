package event

import (
	"context"

	"github.com/shopkit/backend/internal/domain/shared"
)

// ImmediateRunner runs every job inline as soon as it is scheduled
type ImmediateRunner struct{}

// Run executes the job and returns its error
func (ImmediateRunner) Run(ctx context.Context, job shared.Job) error {
	return job(ctx)
}

type jobQueueKey struct{}

type jobQueue struct {
	jobs []shared.Job
}

// QueueRunner runs deferred jobs as a FIFO trampoline bound to the context.
//
// The outermost Run creates a queue, runs its job and then drains whatever
// the job (and the jobs after it) scheduled, all on the calling goroutine.
// A Run issued while a queue is active only appends to it, so a handler
// never re-enters another handler before it has returned. Draining stops at
// the first failing job and that error is returned; jobs still queued are
// dropped and left for the outbox relay to redeliver.
type QueueRunner struct{}

// Run schedules or executes the job
func (QueueRunner) Run(ctx context.Context, job shared.Job) error {
	if q, ok := ctx.Value(jobQueueKey{}).(*jobQueue); ok {
		q.jobs = append(q.jobs, job)
		return nil
	}

	q := &jobQueue{jobs: []shared.Job{job}}
	ctx = context.WithValue(ctx, jobQueueKey{}, q)
	for len(q.jobs) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		next := q.jobs[0]
		q.jobs[0] = nil
		q.jobs = q.jobs[1:]
		if err := next(ctx); err != nil {
			return err
		}
	}
	return nil
}

// InQueue reports whether ctx is inside an active QueueRunner drain
func InQueue(ctx context.Context) bool {
	_, ok := ctx.Value(jobQueueKey{}).(*jobQueue)
	return ok
}

var (
	_ shared.HandlerRunner = ImmediateRunner{}
	_ shared.HandlerRunner = QueueRunner{}
)
