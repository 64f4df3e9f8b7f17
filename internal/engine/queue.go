package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tris077/Atomera/pkg/models"
)

// ErrQueueFull is returned by Enqueue when the dispatch buffer has no room.
// Callers should surface this as backpressure, not retry inline.
var ErrQueueFull = errors.New("dispatch queue is full")

// Queue decouples job acceptance from execution: handlers enqueue and
// return immediately, a fixed pool of workers drains the buffer. A full
// buffer rejects rather than blocking the request path.
type Queue struct {
	jobs       chan *models.Job
	dispatcher *Dispatcher
	workers    int
	logger     *slog.Logger

	wg sync.WaitGroup
}

func NewQueue(d *Dispatcher, workers, size int, logger *slog.Logger) *Queue {
	if workers < 1 {
		workers = 1
	}
	if size < 1 {
		size = 1
	}
	return &Queue{
		jobs:       make(chan *models.Job, size),
		dispatcher: d,
		workers:    workers,
		logger:     logger,
	}
}

// Enqueue hands a pending job to the worker pool without blocking.
func (q *Queue) Enqueue(job *models.Job) error {
	select {
	case q.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run starts the worker pool and blocks until ctx is cancelled and all
// in-flight jobs have finished.
func (q *Queue) Run(ctx context.Context) {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}
	q.wg.Wait()
}

func (q *Queue) worker(ctx context.Context, id int) {
	defer q.wg.Done()
	log := q.logger.With("worker", id)
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-q.jobs:
			q.process(ctx, job, log)
		}
	}
}

// process isolates a single job so a panicking backend takes down neither
// the worker nor its siblings; the job is recorded as failed instead.
func (q *Queue) process(ctx context.Context, job *models.Job, log *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("panic during job execution", "job_id", job.ID, "panic", r)
			failure := NewFailure(FailureUnknown, fmt.Sprintf("panic: %v", r), nil)
			q.dispatcher.fail(ctx, job.ID, failure, job.CreatedAt, log)
		}
	}()
	q.dispatcher.Process(ctx, job)
}
